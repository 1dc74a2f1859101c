// Package obs wires structured logging. A TUI owns the terminal, so logs go
// to a file when one is configured and are discarded otherwise.
package obs

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init points the global logger at path. An empty path disables logging
// entirely. The returned closer flushes the file on shutdown.
func Init(path, level string) (io.Closer, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if path == "" {
		log.Logger = zerolog.Nop()
		return io.NopCloser(nil), nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log.Logger = zerolog.New(file).With().Timestamp().Logger()
	return file, nil
}

// Logger returns a child logger tagged with the component name.
func Logger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dmaher/chronicle/internal/archive"
	"github.com/dmaher/chronicle/internal/obs"
	"github.com/dmaher/chronicle/internal/tui"
)

func main() {
	var (
		endpoint    string
		topK        int
		poolSize    int
		rerank      bool
		noAltScreen bool
		logFile     string
		logLevel    string
	)

	root := &cobra.Command{
		Use:          "chronicle",
		Short:        "Ask questions of a historical-text archive and read the cited sources",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			closer, err := obs.Init(logFile, logLevel)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			defer closer.Close()

			service := archive.NewFromEnv(archive.Config{Endpoint: endpoint})

			opts := []tea.ProgramOption{}
			if !noAltScreen {
				opts = append(opts, tea.WithAltScreen())
			}
			program := tea.NewProgram(
				tui.New(tui.Config{
					Service:  service,
					TopK:     topK,
					PoolSize: poolSize,
					Rerank:   rerank,
				}),
				opts...,
			)
			_, err = program.Run()
			return err
		},
	}

	root.Flags().StringVar(&endpoint, "endpoint", "", "answer service base URL (defaults to $CHRONICLE_ENDPOINT)")
	root.Flags().IntVar(&topK, "top-k", archive.DefaultTopK, "citations returned per answer")
	root.Flags().IntVar(&poolSize, "pool-size", archive.DefaultPoolSize, "retrieval pool collected before reranking")
	root.Flags().BoolVar(&rerank, "rerank", true, "ask the service to rerank the retrieval pool")
	root.Flags().BoolVar(&noAltScreen, "no-alt-screen", false, "disable the alternate screen buffer")
	root.Flags().StringVar(&logFile, "log-file", "", "write structured logs to this file (disabled when empty)")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level for --log-file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chronicle:", err)
		os.Exit(1)
	}
}

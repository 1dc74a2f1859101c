package tui

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dmaher/chronicle/internal/archive"
	"github.com/dmaher/chronicle/internal/preview"
)

const (
	askTimeout     = 2 * time.Minute
	previewTimeout = 90 * time.Second
)

type askResultMsg struct {
	seq      int
	response *archive.Response
	err      error
}

type pageTextMsg struct {
	key  string
	text string
	err  error
}

func askJob(service archive.Service, seq int, req archive.Request) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, askTimeout)
		defer cancel()
		resp, err := service.Ask(ctx, req)
		return askResultMsg{seq: seq, response: resp, err: err}, err
	}
}

func pageTextJob(client *http.Client, key, link string, page int) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, previewTimeout)
		defer cancel()
		text, err := preview.PageText(ctx, client, link, page)
		return pageTextMsg{key: key, text: text, err: err}, err
	}
}

// openBrowser hands the link to the host platform opener. The opener gets no
// referrer context; the link itself carries everything.
func openBrowser(link string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", link)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", link)
	default:
		cmd = exec.Command("xdg-open", link)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

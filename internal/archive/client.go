package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type httpService struct {
	endpoint string
	client   *http.Client
}

func (s *httpService) Name() string {
	return fmt.Sprintf("Archive (%s)", s.endpoint)
}

func (s *httpService) Ask(ctx context.Context, req Request) (*Response, error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/api/ask", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("archive API error: %s (%s)", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode archive response: %w", err)
	}
	return &parsed, nil
}

// ResolveViewerURL turns a service-relative viewer path into an absolute URL.
// Absolute inputs pass through untouched, even malformed ones; the preview
// layer degrades those itself. Returns false only for empty input.
func (s *httpService) ResolveViewerURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw, true
	}
	if ref.IsAbs() {
		return raw, true
	}
	base, err := url.Parse(s.endpoint)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

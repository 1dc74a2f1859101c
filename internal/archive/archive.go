package archive

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultEndpoint    = "http://localhost:8000"
	endpointEnvVar     = "CHRONICLE_ENDPOINT"
	defaultHTTPTimeout = 2 * time.Minute
)

const (
	// DefaultTopK is how many citations the service returns per answer.
	DefaultTopK = 5
	// DefaultPoolSize is how many candidates the service collects before reranking.
	DefaultPoolSize = 25
)

// Config describes how to reach the answer service.
type Config struct {
	Endpoint   string
	HTTPClient *http.Client
}

// Service answers questions over the text corpus and resolves citation links.
type Service interface {
	Ask(ctx context.Context, req Request) (*Response, error)
	ResolveViewerURL(raw string) (string, bool)
	Name() string
}

// Request carries one question plus the retrieval parameters the service
// expects. The service contract wants PoolSize >= TopK and a non-empty
// question; neither is checked here, the service reports its own errors.
type Request struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
	PoolSize int    `json:"pool_size"`
	Rerank   bool   `json:"rerank"`
}

// Response is a generated answer plus its supporting citations in ranked
// order. The first source is the default citation.
type Response struct {
	Answer  string     `json:"answer"`
	Sources []Citation `json:"sources"`
}

// Citation is one supporting excerpt with optional page and file metadata and
// an optional (possibly service-relative) link to the full source.
type Citation struct {
	Label      string `json:"label"`
	FileName   string `json:"file_name,omitempty"`
	PageNumber int    `json:"page_number,omitempty"`
	ViewerURL  string `json:"viewer_url,omitempty"`
	Text       string `json:"text"`
}

// NewFromEnv builds a Service from explicit config, falling back to the
// CHRONICLE_ENDPOINT environment variable and then the local default.
func NewFromEnv(cfg Config) Service {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if env := os.Getenv(endpointEnvVar); env != "" {
			endpoint = env
		} else {
			endpoint = defaultEndpoint
		}
	}
	return &httpService{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   pickHTTPClient(cfg.HTTPClient),
	}
}

func pickHTTPClient(custom *http.Client) *http.Client {
	if custom != nil {
		return custom
	}
	// Retrieval plus generation can run long; cancellation stays with the caller's context.
	return &http.Client{Timeout: defaultHTTPTimeout}
}

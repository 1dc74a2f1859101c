package preview

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	cacheEnvVar        = "CHRONICLE_CACHE_DIR"
	cacheSubdir        = "chronicle/sources"
	cacheTTL           = 24 * time.Hour
	metaSuffix         = ".meta"
	tmpSuffix          = ".tmp"
	defaultHTTPTimeout = 90 * time.Second
)

// documentCache keeps downloaded source documents on disk and revalidates
// stale copies with conditional requests instead of refetching.
type documentCache struct {
	dir    string
	client *http.Client
}

type documentMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"lastModified"`
	FetchedAt    time.Time `json:"fetchedAt"`
}

func newDocumentCache(client *http.Client) (*documentCache, error) {
	dir := os.Getenv(cacheEnvVar)
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = filepath.Join(os.TempDir(), "chronicle-cache")
		}
		dir = filepath.Join(base, cacheSubdir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &documentCache{dir: dir, client: client}, nil
}

// Fetch returns a local path for docURL, downloading only when the cached
// copy is missing or older than the TTL. A failed refresh falls back to the
// stale copy when one exists.
func (c *documentCache) Fetch(ctx context.Context, docURL string) (string, error) {
	docPath, metaPath := c.pathsFor(docURL)

	info, statErr := os.Stat(docPath)
	if statErr == nil && info.Size() > 0 && time.Since(info.ModTime()) < cacheTTL {
		return docPath, nil
	}

	meta, _ := readDocumentMeta(metaPath)
	hasStale := statErr == nil && info.Size() > 0

	path, err := c.refresh(ctx, docURL, docPath, metaPath, meta, hasStale)
	if err != nil {
		if hasStale {
			return docPath, nil
		}
		return "", err
	}
	return path, nil
}

func (c *documentCache) refresh(ctx context.Context, docURL, docPath, metaPath string, meta documentMeta, conditional bool) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return "", err
	}
	if conditional {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		meta.FetchedAt = time.Now().UTC()
		writeDocumentMeta(metaPath, meta)
		now := time.Now()
		_ = os.Chtimes(docPath, now, now)
		return docPath, nil
	case http.StatusOK:
		return c.store(resp, docPath, metaPath)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("source download failed: %s (%s)", resp.Status, string(body))
	}
}

func (c *documentCache) store(resp *http.Response, docPath, metaPath string) (string, error) {
	tmpPath := docPath + tmpSuffix
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, docPath); err != nil {
		return "", err
	}

	meta := documentMeta{
		URL:          resp.Request.URL.String(),
		ETag:         resp.Header.Get("Etag"),
		LastModified: resp.Header.Get("Last-Modified"),
		FetchedAt:    time.Now().UTC(),
	}
	if err := writeDocumentMeta(metaPath, meta); err != nil {
		return "", err
	}
	return docPath, nil
}

func (c *documentCache) pathsFor(docURL string) (string, string) {
	sum := sha1.Sum([]byte(docURL))
	key := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, key+".pdf"), filepath.Join(c.dir, key+metaSuffix)
}

func readDocumentMeta(path string) (documentMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return documentMeta{}, err
	}
	var meta documentMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return documentMeta{}, err
	}
	return meta, nil
}

func writeDocumentMeta(path string, meta documentMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

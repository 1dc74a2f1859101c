package preview

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var collapsedWhitespace = regexp.MustCompile(`\s+`)

// PageText downloads the source document behind docURL (through the on-disk
// cache) and extracts the plain text of one page. Page numbers are 1-based;
// zero or negative selects the first page, past-the-end clamps to the last.
func PageText(ctx context.Context, client *http.Client, docURL string, page int) (string, error) {
	cache, err := newDocumentCache(client)
	if err != nil {
		return "", err
	}
	path, err := cache.Fetch(ctx, docURL)
	if err != nil {
		return "", err
	}
	return readPage(path, page)
}

func readPage(path string, page int) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open source document: %w", err)
	}
	defer file.Close()

	total := reader.NumPage()
	if total == 0 {
		return "", fmt.Errorf("source document has no pages")
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}

	p := reader.Page(page)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d missing from source document", page)
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract page %d text: %w", page, err)
	}
	text = collapsedWhitespace.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("page %d has no extractable text", page)
	}
	return text, nil
}

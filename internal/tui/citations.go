package tui

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dmaher/chronicle/internal/archive"
	"github.com/dmaher/chronicle/internal/preview"
)

const noSourceLabel = "No source selected."

// source pairs a citation with the identity key assigned when its response
// arrived. Selection and expansion track the key, never the struct, so later
// re-renders cannot drift.
type source struct {
	archive.Citation
	key string
}

func keyedSources(citations []archive.Citation) []source {
	out := make([]source, 0, len(citations))
	for idx, c := range citations {
		out = append(out, source{Citation: c, key: citationKey(c, idx)})
	}
	return out
}

// citationKey builds the identity key: file name (label fallback) joined with
// the page number, or the rank index when no page is known. The service is
// trusted to keep keys unique within one response.
func citationKey(c archive.Citation, index int) string {
	name := c.FileName
	if name == "" {
		name = c.Label
	}
	if c.PageNumber > 0 {
		return fmt.Sprintf("%s-%d", name, c.PageNumber)
	}
	return fmt.Sprintf("%s-%d", name, index)
}

// resolvedSource is the single source of truth for the preview pane: the
// explicit selection when present, else the top-ranked citation of the latest
// response, else none.
func (m *model) resolvedSource() (source, bool) {
	if m.selectedKey != "" {
		for _, s := range m.sources {
			if s.key == m.selectedKey {
				return s, true
			}
		}
	}
	if len(m.sources) > 0 {
		return m.sources[0], true
	}
	return source{}, false
}

// isActive reports whether s is the citation the preview pane shows, which is
// what the list row highlight reflects.
func (m *model) isActive(s source) bool {
	resolved, ok := m.resolvedSource()
	return ok && resolved.key == s.key
}

// selectSource makes s the explicit selection, drops the answer highlight,
// and asks for the preview region to scroll into view.
func (m *model) selectSource(s source) {
	m.selectedKey = s.key
	m.answerHighlighted = false
	m.requestScroll(anchorPreview)
	m.markViewportDirty()
}

// toggleExpand flips the single excerpt-expansion slot for key. Expanding one
// excerpt collapses any other. Clears the answer highlight, leaves the
// selection alone, moves nothing.
func (m *model) toggleExpand(key string) {
	if m.expandedKey == key {
		m.expandedKey = ""
	} else {
		m.expandedKey = key
	}
	m.answerHighlighted = false
	m.markViewportDirty()
}

// resolvedLabel renders the preview pane caption: a fixed placeholder when
// nothing is resolved, otherwise the label with a page suffix only when a
// page number is known.
func (m *model) resolvedLabel() string {
	s, ok := m.resolvedSource()
	if !ok {
		return noSourceLabel
	}
	return sourceLabel(s)
}

func sourceLabel(s source) string {
	if s.PageNumber > 0 {
		return fmt.Sprintf("%s – page %d", s.Label, s.PageNumber)
	}
	return s.Label
}

// previewLink yields the absolute, embed-safe URL for the resolved citation,
// or false when no preview is possible.
func (m *model) previewLink() (string, bool) {
	s, ok := m.resolvedSource()
	if !ok || m.config.Service == nil {
		return "", false
	}
	return preview.Normalize(s.ViewerURL, m.config.Service.ResolveViewerURL)
}

func isPDFLink(link string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(parsed.Path), ".pdf")
}

// Package preview prepares citation links for inline display: it normalizes
// viewer URLs into absolute, embed-safe links and extracts the cited page's
// text from the source document.
package preview

import (
	"net/url"
	"strings"
)

// ResolveFunc maps a possibly relative viewer path to an absolute URL,
// reporting false when no absolute form exists.
type ResolveFunc func(raw string) (string, bool)

// Normalize resolves raw to an absolute URL and strips the reserved `search`
// key from its fragment. The service stashes a highlight term under that key
// for its own viewer; an embedded preview must not inherit it. The remaining
// fragment parameters keep their order, and an emptied fragment drops the `#`
// marker entirely. Returns false when raw is blank or the resolver yields
// nothing. A malformed absolute URL degrades to truncation at the first `#`.
func Normalize(raw string, resolve ResolveFunc) (string, bool) {
	if strings.TrimSpace(raw) == "" || resolve == nil {
		return "", false
	}
	abs, ok := resolve(raw)
	if !ok || strings.TrimSpace(abs) == "" {
		return "", false
	}

	parsed, err := url.Parse(abs)
	if err != nil {
		if idx := strings.Index(abs, "#"); idx >= 0 {
			return abs[:idx], true
		}
		return abs, true
	}

	fragment := parsed.EscapedFragment()
	if fragment == "" {
		return abs, true
	}

	kept := make([]string, 0, strings.Count(fragment, "&")+1)
	for _, pair := range strings.Split(fragment, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if idx := strings.Index(pair, "="); idx >= 0 {
			key = pair[:idx]
		}
		if key == "search" {
			continue
		}
		kept = append(kept, pair)
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""
	normalized := parsed.String()
	if len(kept) > 0 {
		normalized += "#" + strings.Join(kept, "&")
	}
	return normalized, true
}

package preview

import "testing"

func identity(raw string) (string, bool) { return raw, true }

func TestNormalizeStripsSearchFromFragment(t *testing.T) {
	got, ok := Normalize("https://host/doc#page=2&search=foo", identity)
	if !ok {
		t.Fatal("expected a normalized URL")
	}
	if got != "https://host/doc#page=2" {
		t.Fatalf("unexpected result: %s", got)
	}
}

func TestNormalizeDropsEmptiedFragment(t *testing.T) {
	got, ok := Normalize("https://host/doc#search=foo", identity)
	if !ok {
		t.Fatal("expected a normalized URL")
	}
	if got != "https://host/doc" {
		t.Fatalf("fragment marker should disappear, got %s", got)
	}
}

func TestNormalizePreservesFragmentOrder(t *testing.T) {
	got, ok := Normalize("https://host/doc#zoom=150&search=foo&page=4", identity)
	if !ok {
		t.Fatal("expected a normalized URL")
	}
	if got != "https://host/doc#zoom=150&page=4" {
		t.Fatalf("parameter order not preserved: %s", got)
	}
}

func TestNormalizeLeavesFragmentlessURLAlone(t *testing.T) {
	got, ok := Normalize("https://host/doc", identity)
	if !ok || got != "https://host/doc" {
		t.Fatalf("unexpected result: %q (%v)", got, ok)
	}
}

func TestNormalizeAbsentInput(t *testing.T) {
	if _, ok := Normalize("", identity); ok {
		t.Fatal("empty input should yield none")
	}
	if _, ok := Normalize("  ", identity); ok {
		t.Fatal("blank input should yield none")
	}
}

func TestNormalizeResolverFailure(t *testing.T) {
	deny := func(string) (string, bool) { return "", false }
	if _, ok := Normalize("/viewer/doc.pdf", deny); ok {
		t.Fatal("resolver failure should yield none")
	}
}

func TestNormalizeMalformedURLTruncatesAtFragment(t *testing.T) {
	bad := func(string) (string, bool) { return "https://host/%zz/doc#search=foo&page=2", true }
	got, ok := Normalize("anything", bad)
	if !ok {
		t.Fatal("malformed URL should still yield the truncated form")
	}
	if got != "https://host/%zz/doc" {
		t.Fatalf("expected truncation at #, got %s", got)
	}
}

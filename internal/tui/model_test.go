package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dmaher/chronicle/internal/archive"
)

type fakeService struct {
	resp *archive.Response
	err  error
}

func (f fakeService) Ask(ctx context.Context, req archive.Request) (*archive.Response, error) {
	return f.resp, f.err
}

func (f fakeService) ResolveViewerURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(raw, "http") {
		return raw, true
	}
	return "https://archive.test" + raw, true
}

func (f fakeService) Name() string { return "fake" }

func newTestModel(t *testing.T) *model {
	t.Helper()
	teaModel := New(Config{Service: fakeService{}})
	m, ok := teaModel.(*model)
	if !ok {
		t.Fatalf("expected *model, got %T", teaModel)
	}
	return m
}

func deliverAnswer(t *testing.T, m *model, resp *archive.Response) {
	t.Helper()
	m.askSeq++
	m.loading = true
	m.handleAskResult(askResultMsg{seq: m.askSeq, response: resp})
}

func TestEmptySourceListShowsPlaceholder(t *testing.T) {
	m := newTestModel(t)
	deliverAnswer(t, m, &archive.Response{Answer: "Nothing cited."})

	if _, ok := m.resolvedSource(); ok {
		t.Fatal("no sources should mean no resolved citation")
	}
	if got := m.resolvedLabel(); got != noSourceLabel {
		t.Fatalf("expected placeholder label, got %q", got)
	}
}

func TestSuccessSelectsFirstSource(t *testing.T) {
	m := newTestModel(t)
	deliverAnswer(t, m, &archive.Response{
		Answer: "The abbey was founded in 1121.",
		Sources: []archive.Citation{
			{Label: "A", PageNumber: 3},
			{Label: "B"},
		},
	})

	resolved, ok := m.resolvedSource()
	if !ok {
		t.Fatal("expected a resolved citation")
	}
	if resolved.key != m.sources[0].key {
		t.Fatalf("first source should resolve by default, got %q", resolved.key)
	}
	if got := m.resolvedLabel(); got != "A – page 3" {
		t.Fatalf("unexpected display label: %q", got)
	}
	if !m.answerHighlighted {
		t.Fatal("answer highlight should be on after a successful submit")
	}
	if m.expandedKey != "" {
		t.Fatalf("expand slot should reset on a new answer, got %q", m.expandedKey)
	}
	if m.pendingFocusAnchor != anchorAnswer {
		t.Fatalf("success should request a scroll to the answer, got %q", m.pendingFocusAnchor)
	}
}

func TestSelectingSourceMovesActiveMarkAndClearsHighlight(t *testing.T) {
	m := newTestModel(t)
	deliverAnswer(t, m, &archive.Response{
		Answer: "…",
		Sources: []archive.Citation{
			{Label: "A", PageNumber: 3},
			{Label: "B"},
		},
	})

	m.selectSource(m.sources[1])

	if !m.isActive(m.sources[1]) {
		t.Fatal("selected source should be active")
	}
	if m.isActive(m.sources[0]) {
		t.Fatal("previous default should no longer be active")
	}
	if m.answerHighlighted {
		t.Fatal("selecting a citation should clear the answer highlight")
	}
	if m.pendingFocusAnchor != anchorPreview {
		t.Fatalf("selection should request a scroll to the preview, got %q", m.pendingFocusAnchor)
	}
	if got := m.resolvedLabel(); got != "B" {
		t.Fatalf("label without a page number should omit the suffix, got %q", got)
	}
}

func TestToggleExpandIsSingleSlotAndIdempotentInPairs(t *testing.T) {
	m := newTestModel(t)
	deliverAnswer(t, m, &archive.Response{
		Answer: "…",
		Sources: []archive.Citation{
			{Label: "A", PageNumber: 3, Text: "first excerpt"},
			{Label: "B", Text: "second excerpt"},
		},
	})

	m.toggleExpand(m.sources[0].key)
	if m.expandedKey != m.sources[0].key {
		t.Fatalf("expand did not stick: %q", m.expandedKey)
	}

	m.toggleExpand(m.sources[1].key)
	if m.expandedKey != m.sources[1].key {
		t.Fatal("expanding a second excerpt should displace the first")
	}

	m.toggleExpand(m.sources[1].key)
	if m.expandedKey != "" {
		t.Fatalf("double toggle should land back on none, got %q", m.expandedKey)
	}
}

func TestToggleExpandLeavesSelectionAlone(t *testing.T) {
	m := newTestModel(t)
	deliverAnswer(t, m, &archive.Response{
		Answer:  "…",
		Sources: []archive.Citation{{Label: "A"}, {Label: "B"}},
	})

	before := m.selectedKey
	anchor := m.pendingFocusAnchor
	m.toggleExpand(m.sources[1].key)

	if m.selectedKey != before {
		t.Fatal("expanding must not change the selection")
	}
	if m.pendingFocusAnchor != anchor {
		t.Fatal("expanding must not request a scroll")
	}
	if m.answerHighlighted {
		t.Fatal("expanding should clear the answer highlight")
	}
}

func TestFailedSubmitClearsAnswerAndKeepsQuestion(t *testing.T) {
	m := newTestModel(t)
	m.questionInput.SetValue("who kept the annals?")
	deliverAnswer(t, m, &archive.Response{
		Answer:  "Earlier answer.",
		Sources: []archive.Citation{{Label: "A"}},
	})

	m.askSeq++
	m.loading = true
	m.handleAskResult(askResultMsg{seq: m.askSeq, err: errors.New("archive API error: 503 Service Unavailable")})

	if m.response != nil {
		t.Fatal("failure must discard the previous answer entirely")
	}
	if m.errorMessage != "archive API error: 503 Service Unavailable" {
		t.Fatalf("error message not surfaced verbatim: %q", m.errorMessage)
	}
	if m.answerHighlighted {
		t.Fatal("highlight should drop on failure")
	}
	if got := m.questionInput.Value(); got != "who kept the annals?" {
		t.Fatalf("question text should survive a failure, got %q", got)
	}
	if m.stage != stagePrompt {
		t.Fatalf("failure should return to the prompt, got %v", m.stage)
	}
}

func TestFailureWithoutMessageFallsBackToGeneric(t *testing.T) {
	if got := failureMessage(errors.New("")); got != genericFailureMessage {
		t.Fatalf("expected generic fallback, got %q", got)
	}
	if got := failureMessage(errors.New("dial tcp: refused")); got != "dial tcp: refused" {
		t.Fatalf("real messages pass through, got %q", got)
	}
}

func TestStaleResponseIsIgnored(t *testing.T) {
	m := newTestModel(t)
	m.askSeq = 2
	m.loading = true

	m.handleAskResult(askResultMsg{seq: 1, response: &archive.Response{Answer: "stale"}})

	if m.response != nil {
		t.Fatal("a superseded submission must not publish its answer")
	}
	if !m.loading {
		t.Fatal("the latest submission is still in flight")
	}
}

func TestSubmitSetsLoadingAndBlocksAffordance(t *testing.T) {
	m := newTestModel(t)
	m.questionInput.SetValue("first question")

	if cmd := m.submitQuestion(); cmd == nil {
		t.Fatal("submit should produce a command")
	}
	if !m.loading || m.stage != stageLoading {
		t.Fatalf("submit should enter the loading stage (loading=%v stage=%v)", m.loading, m.stage)
	}
	if m.errorMessage != "" {
		t.Fatal("pending submit should clear the error")
	}
	seq := m.askSeq

	// Enter during the loading stage reaches no input; the transition itself
	// stays unguarded.
	m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if m.askSeq != seq {
		t.Fatalf("loading stage should not issue another submission, seq %d -> %d", seq, m.askSeq)
	}
}

func TestEmptyQuestionIsSubmittedAsIs(t *testing.T) {
	m := newTestModel(t)
	m.questionInput.SetValue("")

	if cmd := m.submitQuestion(); cmd == nil {
		t.Fatal("an empty question still submits; the service owns validation")
	}
	if m.stage != stageLoading {
		t.Fatalf("expected loading stage, got %v", m.stage)
	}
}

func TestScrollRequestsCoalesce(t *testing.T) {
	m := newTestModel(t)
	m.requestScroll(anchorAnswer)
	m.requestScroll(anchorPreview)
	if m.pendingFocusAnchor != anchorPreview {
		t.Fatalf("latest scroll request should win, got %q", m.pendingFocusAnchor)
	}
}

func TestRefreshViewportConsumesPendingScroll(t *testing.T) {
	m := newTestModel(t)
	deliverAnswer(t, m, &archive.Response{
		Answer:  strings.Repeat("long answer text ", 40),
		Sources: []archive.Citation{{Label: "A", PageNumber: 3, Text: "excerpt"}},
	})
	m.viewport.Width = 80
	m.viewport.Height = 10

	m.requestScroll(anchorPreview)
	m.markViewportDirty()
	m.refreshViewportIfDirty()

	if m.pendingFocusAnchor != "" {
		t.Fatalf("applying the scroll should clear the slot, got %q", m.pendingFocusAnchor)
	}
	line, ok := m.sectionAnchors[anchorPreview]
	if !ok {
		t.Fatal("preview anchor missing from rebuilt content")
	}
	if m.viewport.YOffset != m.clampYOffset(line) {
		t.Fatalf("preview should align to the top of the view, offset %d want %d", m.viewport.YOffset, m.clampYOffset(line))
	}
}

func TestAnswerInteractionClearsHighlight(t *testing.T) {
	m := newTestModel(t)
	deliverAnswer(t, m, &archive.Response{
		Answer:  "…",
		Sources: []archive.Citation{{Label: "A"}},
	})
	if !m.answerHighlighted {
		t.Fatal("precondition: highlight on after success")
	}

	m.handleDisplayKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})

	if m.answerHighlighted {
		t.Fatal("focusing the answer region should end the highlight")
	}
	if m.pendingFocusAnchor != anchorAnswer {
		t.Fatalf("focusing the answer should request an answer scroll, got %q", m.pendingFocusAnchor)
	}
}

func TestStalePreviewResultIsDropped(t *testing.T) {
	m := newTestModel(t)
	deliverAnswer(t, m, &archive.Response{
		Answer:  "…",
		Sources: []archive.Citation{{Label: "A", FileName: "a.pdf"}, {Label: "B", FileName: "b.pdf"}},
	})

	m.selectSource(m.sources[1])
	m.handlePageText(pageTextMsg{key: m.sources[0].key, text: "old page"})

	if m.previewText == "old page" {
		t.Fatal("a preview for a superseded citation must not render")
	}
}

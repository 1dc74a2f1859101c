// Package tui implements the interactive client: question entry, the request
// lifecycle against the answer service, and the answer / sources / preview
// display with citation selection and expansion.
package tui

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dmaher/chronicle/internal/archive"
)

// Config wires runtime options into the TUI program.
type Config struct {
	Service    archive.Service
	HTTPClient *http.Client
	TopK       int
	PoolSize   int
	Rerank     bool
}

type stage int

const (
	stagePrompt stage = iota
	stageLoading
	stageDisplay
)

const (
	anchorAnswer  = "answer"
	anchorSources = "sources"
	anchorPreview = "preview"
)

const genericFailureMessage = "failed to reach backend"

type model struct {
	config Config
	stage  stage

	questionInput textinput.Model
	spinner       spinner.Model
	viewport      viewport.Model
	jobs          *jobBus

	// submission lifecycle
	askSeq  int
	loading bool

	// latest answer and its citations
	response          *archive.Response
	sources           []source
	selectedKey       string
	expandedKey       string
	answerHighlighted bool

	// inline page preview for the resolved citation
	previewKey     string
	previewText    string
	previewErr     string
	previewLoading bool

	cursor             int
	sourceLines        map[int]int
	sectionAnchors     map[string]int
	pendingFocusAnchor string

	infoMessage  string
	errorMessage string
	helpVisible  bool
	lastJob      jobSnapshot

	viewportDirty   bool
	viewportContent string
	lineCount       int
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	if config.TopK <= 0 {
		config.TopK = archive.DefaultTopK
	}
	if config.PoolSize <= 0 {
		config.PoolSize = archive.DefaultPoolSize
	}

	questionInput := textinput.New()
	questionInput.Placeholder = "Who commissioned the abbey chronicle?"
	questionInput.Focus()
	questionInput.CharLimit = 400
	questionInput.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	return &model{
		config:         config,
		stage:          stagePrompt,
		questionInput:  questionInput,
		spinner:        spin,
		viewport:       vp,
		jobs:           newJobBus(),
		sourceLines:    map[int]int{},
		sectionAnchors: map[string]int{},
		viewportDirty:  true,
		infoMessage:    "Type a question and press Enter.",
	}
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.loading || m.previewLoading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			switch m.stage {
			case stagePrompt:
				if m.response != nil {
					m.stage = stageDisplay
					m.questionInput.Blur()
					m.infoMessage = "Back to the answer. Press n for a new question."
					return m, nil
				}
				return m, tea.Quit
			default:
				return m, tea.Quit
			}
		}
		return m.handleKey(msg)
	case tea.MouseMsg:
		if m.stage == stageDisplay {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil
	case jobSignalMsg:
		m.lastJob = msg.Snapshot
		return m, nil
	case jobResultEnvelope:
		m.lastJob = msg.Snapshot
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case askResultMsg:
		return m.handleAskResult(msg)
	case pageTextMsg:
		return m.handlePageText(msg)
	case tea.WindowSizeMsg:
		newWidth := msg.Width - viewportHorizontalPadding
		if newWidth < minViewportWidth {
			newWidth = minViewportWidth
		}
		m.viewport.Width = newWidth
		height := msg.Height - 6
		if height < 5 {
			height = 5
		}
		m.viewport.Height = height
		m.markViewportDirty()
		return m, nil
	}
	return m, nil
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.stage {
	case stagePrompt:
		var cmd tea.Cmd
		m.questionInput, cmd = m.questionInput.Update(key)
		if key.Type == tea.KeyEnter {
			// Submitted exactly as typed, empty questions included; the
			// service reports its own validation errors.
			return m, tea.Batch(cmd, m.submitQuestion())
		}
		return m, cmd
	case stageLoading:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(key)
		return m, cmd
	case stageDisplay:
		return m.handleDisplayKey(key)
	default:
		return m, nil
	}
}

// submitQuestion starts an ask job stamped with a fresh sequence number.
// Older submissions keep running; their results are discarded on arrival.
func (m *model) submitQuestion() tea.Cmd {
	question := m.questionInput.Value()
	m.askSeq++
	m.loading = true
	m.errorMessage = ""
	m.stage = stageLoading
	m.questionInput.Blur()
	m.infoMessage = "Asking the archive…"
	req := archive.Request{
		Question: question,
		TopK:     m.config.TopK,
		PoolSize: m.config.PoolSize,
		Rerank:   m.config.Rerank,
	}
	return tea.Batch(m.spinner.Tick, m.jobs.Start(jobKindAsk, askJob(m.config.Service, m.askSeq, req)))
}

func (m *model) handleAskResult(msg askResultMsg) (tea.Model, tea.Cmd) {
	if msg.seq != m.askSeq {
		// A newer submission superseded this one.
		return m, nil
	}
	m.loading = false
	if msg.err != nil {
		m.response = nil
		m.sources = nil
		m.selectedKey = ""
		m.expandedKey = ""
		m.answerHighlighted = false
		m.previewKey = ""
		m.previewText = ""
		m.previewErr = ""
		m.previewLoading = false
		m.errorMessage = failureMessage(msg.err)
		m.stage = stagePrompt
		m.questionInput.Focus()
		m.infoMessage = "Adjust the question and press Enter to retry."
		m.markViewportDirty()
		return m, nil
	}

	m.response = msg.response
	m.sources = keyedSources(msg.response.Sources)
	m.selectedKey = ""
	if len(m.sources) > 0 {
		m.selectedKey = m.sources[0].key
	}
	m.expandedKey = ""
	m.answerHighlighted = true
	m.cursor = 0
	m.previewKey = ""
	m.previewText = ""
	m.previewErr = ""
	m.previewLoading = false
	m.errorMessage = ""
	m.stage = stageDisplay
	m.requestScroll(anchorAnswer)
	m.markViewportDirty()
	m.infoMessage = "Answer ready. j/k moves between sources, Enter selects one."

	if cmd := m.previewFetchCmd(); cmd != nil {
		return m, tea.Batch(m.spinner.Tick, cmd)
	}
	return m, nil
}

func (m *model) handlePageText(msg pageTextMsg) (tea.Model, tea.Cmd) {
	resolved, ok := m.resolvedSource()
	if !ok || resolved.key != msg.key {
		// The user moved on; this page belongs to a superseded preview.
		return m, nil
	}
	m.previewLoading = false
	if msg.err != nil {
		m.previewErr = msg.err.Error()
		m.previewText = ""
	} else {
		m.previewText = msg.text
		m.previewErr = ""
	}
	m.markViewportDirty()
	return m, nil
}

func (m *model) handleDisplayKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	handled := true
	switch key.String() {
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "enter", " ":
		if s, ok := m.sourceAtCursor(); ok {
			m.selectSource(s)
			m.infoMessage = "Source selected."
			if cmd := m.previewFetchCmd(); cmd != nil {
				return m, tea.Batch(m.spinner.Tick, cmd)
			}
			return m, nil
		}
		m.infoMessage = "Move onto a source row to select it."
	case "x", "tab":
		if s, ok := m.sourceAtCursor(); ok {
			m.toggleExpand(s.key)
		} else {
			m.infoMessage = "Move onto a source row to expand its excerpt."
		}
	case "a":
		// Entering the answer region is the interaction that ends the
		// post-submission highlight.
		m.answerHighlighted = false
		m.requestScroll(anchorAnswer)
		m.markViewportDirty()
		m.infoMessage = "Answer in view."
	case "p":
		m.requestScroll(anchorPreview)
		m.markViewportDirty()
	case "o":
		link, ok := m.previewLink()
		if !ok {
			m.infoMessage = "No source link to open."
			return m, nil
		}
		if err := openBrowser(link); err != nil {
			m.errorMessage = err.Error()
		} else {
			m.infoMessage = "Opened the full source in your browser."
		}
	case "n":
		m.stage = stagePrompt
		m.questionInput.Focus()
		m.errorMessage = ""
		m.infoMessage = "Edit the question and press Enter."
	case "g":
		m.viewport.SetYOffset(0)
		m.infoMessage = "Jumped to top."
	case "G":
		m.viewport.SetYOffset(m.clampYOffset(m.lineCount))
		m.infoMessage = "Jumped to bottom."
	case "?":
		m.helpVisible = !m.helpVisible
		m.markViewportDirty()
	default:
		handled = false
	}
	if handled {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(key)
	return m, cmd
}

func (m *model) moveCursor(delta int) {
	if len(m.sources) == 0 {
		return
	}
	target := m.cursor + delta
	if target < 0 {
		target = 0
	}
	if target >= len(m.sources) {
		target = len(m.sources) - 1
	}
	if target == m.cursor {
		return
	}
	m.cursor = target
	m.markViewportDirty()
	m.refreshViewportIfDirty()
	if line, ok := m.sourceLines[m.cursor]; ok {
		m.ensureLineVisible(line)
	}
}

func (m *model) sourceAtCursor() (source, bool) {
	if m.cursor < 0 || m.cursor >= len(m.sources) {
		return source{}, false
	}
	return m.sources[m.cursor], true
}

// previewFetchCmd starts a page-text job for the resolved citation when its
// normalized link points at a PDF source. Results are keyed so a stale fetch
// cannot clobber a newer selection.
func (m *model) previewFetchCmd() tea.Cmd {
	s, ok := m.resolvedSource()
	if !ok {
		return nil
	}
	link, ok := m.previewLink()
	if !ok || !isPDFLink(link) {
		m.previewKey = ""
		m.previewText = ""
		m.previewErr = ""
		m.previewLoading = false
		return nil
	}
	if m.previewKey == s.key && (m.previewText != "" || m.previewLoading) {
		return nil
	}
	m.previewKey = s.key
	m.previewText = ""
	m.previewErr = ""
	m.previewLoading = true
	return m.jobs.Start(jobKindPreview, pageTextJob(m.config.HTTPClient, s.key, link, s.PageNumber))
}

// requestScroll records the anchor to bring into view on the next content
// rebuild. A single slot: overlapping requests coalesce and the latest wins.
func (m *model) requestScroll(anchor string) {
	m.pendingFocusAnchor = anchor
}

func failureMessage(err error) string {
	if err == nil || strings.TrimSpace(err.Error()) == "" {
		return genericFailureMessage
	}
	return err.Error()
}

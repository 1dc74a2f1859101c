package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const heroTagline = "Ask the archive. Read the sources."

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
	excerptPreviewLimit       = 160
	timeMeterPrecision        = time.Millisecond
)

func (m *model) View() string {
	switch m.stage {
	case stagePrompt:
		return m.viewPrompt()
	case stageLoading:
		return m.viewLoading()
	case stageDisplay:
		return m.viewDisplay()
	default:
		return ""
	}
}

func (m *model) viewPrompt() string {
	form := strings.Builder{}
	form.WriteString(sectionHeaderStyle.Render("Ask a question about the corpus"))
	form.WriteRune('\n')
	form.WriteString(m.questionInput.View())
	form.WriteRune('\n')
	form.WriteString(helperStyle.Render(m.optionsLine()))
	form.WriteRune('\n')
	form.WriteString(helperStyle.Render(m.infoMessage))
	if m.errorMessage != "" {
		form.WriteRune('\n')
		form.WriteString(errorStyle.Render(m.errorMessage))
	}
	return joinNonEmpty([]string{m.heroView(), form.String()})
}

func (m *model) viewLoading() string {
	body := fmt.Sprintf("%s Asking the archive…", m.spinner.View())
	return joinNonEmpty([]string{m.heroView(), body})
}

func (m *model) viewDisplay() string {
	if m.response == nil {
		return m.viewPrompt()
	}
	m.refreshViewportIfDirty()
	parts := []string{m.heroView(), m.sessionMeterView(), m.viewport.View()}
	if m.errorMessage != "" {
		parts = append(parts, errorStyle.Render(m.errorMessage))
	}
	if m.infoMessage != "" {
		parts = append(parts, helperStyle.Render(m.infoMessage))
	}
	parts = append(parts, m.keyLegendView())
	if m.helpVisible {
		parts = append(parts, m.helpView())
	}
	return joinNonEmpty(parts)
}

func (m *model) heroView() string {
	logo := logoStyle.Render("CHRONICLE")
	return lipgloss.JoinVertical(
		lipgloss.Left,
		logo,
		taglineStyle.Render(heroTagline),
	)
}

func (m *model) optionsLine() string {
	rerank := "off"
	if m.config.Rerank {
		rerank = "on"
	}
	return fmt.Sprintf("top_k %d  •  pool %d  •  rerank %s", m.config.TopK, m.config.PoolSize, rerank)
}

func (m *model) sessionMeterView() string {
	stats := []string{
		fmt.Sprintf("Sources %d", len(m.sources)),
		m.resolvedLabel(),
		m.optionsLine(),
	}
	if m.config.Service != nil {
		stats = append(stats, m.config.Service.Name())
	}
	if m.lastJob.ID != "" && m.lastJob.Status != jobStatusRunning {
		stats = append(stats, fmt.Sprintf("last job %s in %s", m.lastJob.Status, m.lastJob.Duration.Round(timeMeterPrecision)))
	}
	return statusBarStyle.Render(strings.Join(stats, "  •  "))
}

type keyHint struct {
	Key         string
	Description string
}

func (m *model) keyLegendView() string {
	hints := []keyHint{
		{"↑/↓", "Move between sources"},
		{"enter", "Select source"},
		{"x", "Expand excerpt"},
		{"a", "Focus answer"},
		{"p", "Focus preview"},
		{"o", "Open full source"},
		{"n", "New question"},
		{"g/G", "Top or bottom"},
		{"?", "Toggle help"},
	}
	rows := []string{}
	const columns = 3
	for i := 0; i < len(hints); i += columns {
		end := i + columns
		if end > len(hints) {
			end = len(hints)
		}
		var cells []string
		for _, hint := range hints[i:end] {
			key := keyStyle.Render(hint.Key)
			desc := keyDescStyle.Render(" " + hint.Description)
			cells = append(cells, lipgloss.JoinHorizontal(lipgloss.Top, key, desc))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return legendBoxStyle.Render(strings.Join(rows, "\n"))
}

func (m *model) helpView() string {
	lines := []string{
		sectionHeaderStyle.Render("How Chronicle works"),
		helperStyle.Render("• the answer panel glows right after a submission; pressing a (or touching any source) calms it down."),
		helperStyle.Render("• the marked source row is the one the preview pane shows; Enter moves the mark, x unfolds one excerpt at a time."),
		helperStyle.Render("• o opens the full source page in your browser with the service highlight stripped from the link."),
		helperStyle.Render("• n edits the question again; the previous answer stays until the new one lands."),
	}
	return helpBoxStyle.Render(strings.Join(lines, "\n"))
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

func (m *model) markViewportDirty() {
	m.viewportDirty = true
}

func (m *model) refreshViewportIfDirty() {
	if m.viewportDirty {
		m.refreshViewport()
	}
}

// refreshViewport rebuilds the display content and, as the last step, applies
// the pending scroll request. Deferring the scroll to this point guarantees
// the target anchor exists in the freshly built content.
func (m *model) refreshViewport() {
	m.viewportDirty = false
	prevYOffset := m.viewport.YOffset
	if m.response == nil {
		m.viewportContent = ""
		m.viewport.SetContent("")
		m.sourceLines = map[int]int{}
		m.sectionAnchors = map[string]int{}
		m.lineCount = 0
		return
	}

	view := m.buildDisplayContent()
	m.viewportContent = view.content
	m.sourceLines = view.sourceLines
	m.sectionAnchors = view.anchors
	m.lineCount = strings.Count(view.content, "\n") + 1

	targetYOffset := prevYOffset
	if m.pendingFocusAnchor != "" {
		if line, ok := view.anchors[m.pendingFocusAnchor]; ok {
			targetYOffset = m.alignAnchor(m.pendingFocusAnchor, line)
			m.pendingFocusAnchor = ""
		}
	}

	m.viewport.SetContent(view.content)
	if m.viewport.Height > 0 {
		// Height zero means a headless context; moving focus is a no-op there.
		m.viewport.SetYOffset(m.clampYOffset(targetYOffset))
	}
}

// alignAnchor picks the Y offset for a focus move: the answer region is
// centered in view, everything else aligns to the top edge.
func (m *model) alignAnchor(anchor string, line int) int {
	if anchor == anchorAnswer {
		return line - m.viewport.Height/2
	}
	return line
}

func (m *model) ensureLineVisible(line int) {
	if line < 0 {
		line = 0
	}
	if line < m.viewport.YOffset {
		m.viewport.SetYOffset(line)
		return
	}
	lowerBound := m.viewport.YOffset + m.viewport.Height - 1
	if line > lowerBound {
		target := line - m.viewport.Height + 1
		if target < 0 {
			target = 0
		}
		m.viewport.SetYOffset(target)
	}
}

func (m *model) clampYOffset(offset int) int {
	maxOffset := m.lineCount - m.viewport.Height
	if m.viewport.Height <= 0 {
		maxOffset = m.lineCount - 1
	}
	if maxOffset < 0 {
		maxOffset = 0
	}
	if offset < 0 {
		return 0
	}
	if offset > maxOffset {
		return maxOffset
	}
	return offset
}

type displayView struct {
	content     string
	sourceLines map[int]int
	anchors     map[string]int
}

type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

func (cb *contentBuilder) String() string {
	return cb.builder.String()
}

func (cb *contentBuilder) Line() int {
	return cb.lines
}

func (m *model) buildDisplayContent() displayView {
	cb := &contentBuilder{}
	anchors := map[string]int{}
	baseWrap := m.wrapWidth(0)
	indentWrap := m.wrapWidth(6)

	anchors[anchorAnswer] = cb.Line()
	cb.WriteString(sectionHeaderStyle.Render("Answer (press a to focus)"))
	cb.WriteRune('\n')
	answer := wordwrap.String(m.response.Answer, baseWrap)
	if m.answerHighlighted {
		answer = answerGlowStyle.Render(answer)
	}
	cb.WriteString(answer)
	cb.WriteRune('\n')

	cb.WriteRune('\n')
	anchors[anchorSources] = cb.Line()
	cb.WriteString(sectionHeaderStyle.Render("Sources (Enter to select, x to expand)"))
	cb.WriteRune('\n')
	sourceLines := make(map[int]int, len(m.sources))
	if len(m.sources) == 0 {
		cb.WriteString(helperStyle.Render("The service returned no supporting sources."))
		cb.WriteRune('\n')
	}
	for idx, s := range m.sources {
		lineNumber := cb.Line()
		sourceLines[idx] = lineNumber

		cursor := " "
		if m.cursor == idx {
			cursor = ">"
		}
		mark := " "
		if m.isActive(s) {
			mark = "●"
		}
		row := fmt.Sprintf(" %s %s %d. %s", cursor, mark, idx+1, sourceLabel(s))
		if m.isActive(s) {
			row = activeSourceStyle.Render(row)
		}
		cb.WriteString(row)
		cb.WriteRune('\n')

		excerpt := s.Text
		if m.expandedKey != s.key {
			excerpt = truncateExcerpt(excerpt, excerptPreviewLimit)
		}
		cb.WriteString(indentMultiline(wordwrap.String(excerpt, indentWrap), "     "))
		cb.WriteRune('\n')
	}

	cb.WriteRune('\n')
	anchors[anchorPreview] = cb.Line()
	cb.WriteString(sectionHeaderStyle.Render("Source Preview (p to focus, o to open)"))
	cb.WriteRune('\n')
	cb.WriteString(previewCaptionStyle.Render(m.resolvedLabel()))
	cb.WriteRune('\n')
	if link, ok := m.previewLink(); ok {
		cb.WriteString(helperStyle.Render(link))
		cb.WriteRune('\n')
	}
	switch {
	case m.previewLoading:
		cb.WriteString(helperStyle.Render(fmt.Sprintf("%s Fetching the cited page…", m.spinner.View())))
		cb.WriteRune('\n')
	case m.previewErr != "":
		cb.WriteString(errorStyle.Render(m.previewErr))
		cb.WriteRune('\n')
	case m.previewText != "":
		cb.WriteString(wordwrap.String(m.previewText, baseWrap))
		cb.WriteRune('\n')
	default:
		cb.WriteString(helperStyle.Render("No inline preview for this source. Press o to open it in full."))
		cb.WriteRune('\n')
	}

	return displayView{
		content:     cb.String(),
		sourceLines: sourceLines,
		anchors:     anchors,
	}
}

func truncateExcerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func (m *model) wrapWidth(padding int) int {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	if padding < 0 {
		padding = 0
	}
	available := width - padding
	if available < 20 {
		available = 20
	}
	return available
}

var (
	sectionHeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	logoStyle           = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#d4a03c")).Padding(0, 1)
	taglineStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#b08030")).Italic(true)
	statusBarStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#c9b458")).Padding(0, 1)
	keyStyle            = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	legendBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(1, 2)
	helpBoxStyle        = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#7f5af0")).Padding(1, 2)
	answerGlowStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#f2e8c9"))
	activeSourceStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	previewCaptionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147"))
)

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/domain"
)

// ChatPort is the TUI-facing subset of the chat service.
type ChatPort interface {
	Send(ctx context.Context, text string) (domain.ChatResponse, error)
	Documents() []domain.Document
	Summary() (string, error)
}

// DocumentAddedMsg tells the model a document was ingested outside the UI
// loop, e.g. by the workspace watcher.
type DocumentAddedMsg struct {
	Document domain.Document
}

type summaryMsg struct {
	text string
	err  error
}

type responseMsg struct {
	resp domain.ChatResponse
	err  error
}

type entry struct {
	role    domain.Role
	text    string
	sources []string
	failed  bool
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service  ChatPort
	ctx      context.Context
	input    textinput.Model
	viewport viewport.Model
	markdown *glamour.TermRenderer
	entries  []entry
	docs     []domain.Document
	selected int
	preview  bool
	summary  string
	status   string
	waiting  bool
	ready    bool
	width    int
}

const sidebarWidth = 28

// New creates a new TUI model instance.
func New(ctx context.Context, service ChatPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	m := Model{
		service:  service,
		ctx:      ctx,
		input:    ti,
		viewport: viewport.New(0, 0),
	}
	m.refreshDocuments()
	m.status = fmt.Sprintf("%d documents loaded. Tab previews, ↑/↓ selects.", len(m.docs))
	return m
}

// Init starts the cursor blink and the first workspace summary.
func (m Model) Init() tea.Cmd { return tea.Batch(textinput.Blink, m.summarize()) }

// Update handles key, window and service events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		rw, _ := resultBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, input box
		m.viewport.Width = max(20, msg.Width-sidebarWidth-rw-2)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.markdown = newRenderer(m.viewport.Width)
		m.viewport.SetContent(m.renderBody())
		return m, nil

	case DocumentAddedMsg:
		m.refreshDocuments()
		m.selected = len(m.docs) - 1
		m.status = fmt.Sprintf("Added %s (%d documents)", msg.Document.Filename, len(m.docs))
		m.viewport.SetContent(m.renderBody())
		return m, m.summarize()

	case summaryMsg:
		if msg.err == nil {
			m.summary = strings.ReplaceAll(msg.text, "\n", " ")
		}
		return m, nil

	case responseMsg:
		m.waiting = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{role: domain.RoleAssistant, text: msg.err.Error(), failed: true})
			m.status = "Error: " + msg.err.Error()
		} else {
			e := entry{role: domain.RoleAssistant, text: msg.resp.Text}
			for _, d := range msg.resp.RelevantDocs {
				e.sources = append(e.sources, d.Filename)
			}
			m.entries = append(m.entries, e)
			m.status = "Ready."
		}
		m.preview = false
		m.viewport.SetContent(m.renderBody())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.entries = append(m.entries, entry{role: domain.RoleUser, text: q})
			m.input.Reset()
			m.waiting = true
			m.preview = false
			m.status = "Thinking..."
			m.viewport.SetContent(m.renderBody())
			m.viewport.GotoBottom()
			return m, m.send(q)
		case "tab":
			if len(m.docs) > 0 {
				m.preview = !m.preview
				m.viewport.SetContent(m.renderBody())
				m.viewport.GotoTop()
			}
			return m, nil
		case "up", "down":
			if len(m.docs) > 0 {
				step := 1
				if msg.String() == "up" {
					step = -1
				}
				m.selected = (m.selected + step + len(m.docs)) % len(m.docs)
				if m.preview {
					m.viewport.SetContent(m.renderBody())
					m.viewport.GotoTop()
				}
			}
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Chat")
	summary := dimStyle.Render(truncate(m.summary, max(10, m.width)))
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebarStyle.Height(m.viewport.Height).Render(m.renderSidebar()),
		resultBoxStyle.Render(m.viewport.View()),
	)
	input := queryBoxStyle.Width(max(10, m.width-4)).Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) send(q string) tea.Cmd {
	svc, ctx := m.service, m.ctx
	return func() tea.Msg {
		resp, err := svc.Send(ctx, q)
		return responseMsg{resp: resp, err: err}
	}
}

// summarize computes the header summary off the update loop.
func (m Model) summarize() tea.Cmd {
	svc := m.service
	return func() tea.Msg {
		text, err := svc.Summary()
		return summaryMsg{text: text, err: err}
	}
}

func (m *Model) refreshDocuments() {
	m.docs = m.service.Documents()
	if m.selected >= len(m.docs) {
		m.selected = max(0, len(m.docs)-1)
	}
}

func (m Model) renderSidebar() string {
	if len(m.docs) == 0 {
		return dimStyle.Render("Drop .md files into\nthe workspace.")
	}
	lines := make([]string, len(m.docs))
	for i, d := range m.docs {
		name := truncate(d.Filename, sidebarWidth-4)
		if i == m.selected {
			lines[i] = selectedStyle.Render("▸ " + name)
		} else {
			lines[i] = "  " + name
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderBody() string {
	if m.preview && m.selected < len(m.docs) {
		d := m.docs[m.selected]
		return selectedStyle.Render(d.Filename) + "\n\n" + m.renderMarkdown(d.Content)
	}
	if len(m.entries) == 0 {
		return dimStyle.Render("No messages yet.")
	}
	var b strings.Builder
	for _, e := range m.entries {
		switch {
		case e.role == domain.RoleUser:
			b.WriteString(userStyle.Render("You: ") + e.text + "\n")
		case e.failed:
			b.WriteString(errorStyle.Render("Error: "+e.text) + "\n")
		default:
			b.WriteString(m.renderMarkdown(e.text))
			if len(e.sources) > 0 {
				b.WriteString(dimStyle.Render("Sources: "+strings.Join(e.sources, ", ")) + "\n")
			}
		}
		b.WriteString("\n")
	}
	if m.waiting {
		b.WriteString(dimStyle.Render("…"))
	}
	return b.String()
}

func (m Model) renderMarkdown(text string) string {
	if m.markdown == nil {
		return text + "\n"
	}
	out, err := m.markdown.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func newRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dracula"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sidebarStyle   = lipgloss.NewStyle().Width(sidebarWidth).Padding(1, 1, 0, 0)
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

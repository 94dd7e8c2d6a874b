package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

type exchange struct {
	query string
	reply *domain.Reply
	err   error
}

type replyMsg struct {
	query string
	reply *domain.Reply
	err   error
}

// Model is the Bubble Tea chat model bound to one conversation session.
type Model struct {
	agent     ports.Responder
	sessionID string
	timeout   time.Duration

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	history []exchange
	pending string
	ready   bool
}

func New(agent ports.Responder, sessionID string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your PDFs and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return Model{
		agent:     agent,
		sessionID: sessionID,
		timeout:   timeout,
		input:     ti,
		viewport:  viewport.New(80, 20),
		spinner:   sp,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, qh := queryBoxStyle.GetFrameSize()
		_, th := transcriptStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			query := strings.TrimSpace(m.input.Value())
			if query == "" || m.pending != "" {
				return m, nil
			}
			m.pending = query
			m.input.Reset()
			m.refresh()
			return m, tea.Batch(m.ask(query), m.spinner.Tick)
		}
		if msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	case replyMsg:
		m.pending = ""
		m.history = append(m.history, exchange{query: msg.query, reply: msg.reply, err: msg.err})
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil
	case spinner.TickMsg:
		if m.pending == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(query string) tea.Cmd {
	agent := m.agent
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		reply, err := agent.Respond(ctx, query)
		return replyMsg{query: query, reply: reply, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("PDF Assistant")
	session := mutedStyle.Render("session " + m.sessionID + "  (Esc to quit, PgUp/PgDn to scroll)")
	status := statusStyle.Render("Ready.")
	if m.pending != "" {
		status = statusStyle.Render(m.spinner.View() + " thinking...")
	}
	return header + "\n" + session + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		queryBoxStyle.Render(m.input.View()) + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.history) == 0 && m.pending == "" {
		return mutedStyle.Render("No questions yet.")
	}
	var b strings.Builder
	for _, ex := range m.history {
		b.WriteString(userStyle.Render("You: ") + ex.query + "\n")
		if ex.err != nil {
			b.WriteString(errorStyle.Render("Error: "+ex.err.Error()) + "\n\n")
			continue
		}
		b.WriteString(assistantStyle.Render("Assistant: ") + ex.reply.Reply + "\n")
		if sources := renderSources(ex.reply.Retrieved); sources != "" {
			b.WriteString(mutedStyle.Render(sources) + "\n")
		}
		b.WriteString("\n")
	}
	if m.pending != "" {
		b.WriteString(userStyle.Render("You: ") + m.pending + "\n")
	}
	return b.String()
}

func renderSources(results []domain.RankedResult) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		label := fmt.Sprintf("%s pg %s", r.DocID, r.PageNum)
		if r.Score != nil {
			label += fmt.Sprintf(" (%.2f)", *r.Score)
		}
		parts = append(parts, label)
	}
	return "Sources: " + strings.Join(parts, "; ")
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

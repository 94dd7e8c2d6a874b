package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type responderFake struct {
	err     error
	queries []string
}

func (f *responderFake) Respond(_ context.Context, query string) (*domain.Reply, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Reply{
		Reply:     "Revenue grew 12%.",
		Retrieved: []domain.RankedResult{{DocID: "report", PageNum: "3", Score: domain.Score(0.91)}},
	}, nil
}

func sized(m Model) Model {
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model)
}

func submit(t *testing.T, m Model, query string) Model {
	t.Helper()
	m.input.SetValue(query)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected a command after Enter")
	}
	m = updated.(Model)
	if m.pending != query {
		t.Fatalf("expected pending query %q, got %q", query, m.pending)
	}

	msg := m.ask(query)()
	updated, _ = m.Update(msg)
	return updated.(Model)
}

func TestEnterAsksAgentAndRendersCitations(t *testing.T) {
	agent := &responderFake{}
	m := sized(New(agent, "20261019_101500_abcdef12", time.Second))

	m = submit(t, m, "How did revenue change?")

	if len(agent.queries) != 1 || agent.queries[0] != "How did revenue change?" {
		t.Fatalf("unexpected agent calls: %v", agent.queries)
	}
	transcript := m.renderTranscript()
	if !strings.Contains(transcript, "Revenue grew 12%.") || !strings.Contains(transcript, "report pg 3 (0.91)") {
		t.Fatalf("unexpected transcript: %q", transcript)
	}
	if m.pending != "" {
		t.Fatalf("pending must be cleared after reply")
	}
}

func TestErrorReplyIsShown(t *testing.T) {
	m := sized(New(&responderFake{err: errors.New("conversational pipeline error")}, "s", time.Second))
	m = submit(t, m, "q")
	if !strings.Contains(m.renderTranscript(), "Error: conversational pipeline error") {
		t.Fatalf("expected error in transcript: %q", m.renderTranscript())
	}
}

func TestBlankInputIsIgnored(t *testing.T) {
	m := sized(New(&responderFake{}, "s", time.Second))
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("expected no command for blank input")
	}
	if updated.(Model).pending != "" {
		t.Fatalf("blank input must not be pending")
	}
}

func TestEscQuits(t *testing.T) {
	m := sized(New(&responderFake{}, "s", time.Second))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

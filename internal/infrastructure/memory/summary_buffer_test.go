package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type storeFake struct {
	turns     []domain.Turn
	snapshots map[string]domain.MemorySnapshot
	appendErr error
}

func newStoreFake() *storeFake {
	return &storeFake{snapshots: map[string]domain.MemorySnapshot{}}
}

func (s *storeFake) AppendTurn(_ context.Context, turn domain.Turn) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.turns = append(s.turns, turn)
	return nil
}

func (s *storeFake) LoadSnapshot(_ context.Context, sessionID string) (*domain.MemorySnapshot, error) {
	snap, ok := s.snapshots[sessionID]
	if !ok {
		return &domain.MemorySnapshot{SessionID: sessionID}, nil
	}
	snap.Buffer = append([]domain.Turn(nil), snap.Buffer...)
	return &snap, nil
}

func (s *storeFake) SaveSnapshot(_ context.Context, snapshot domain.MemorySnapshot) error {
	s.snapshots[snapshot.SessionID] = snapshot
	return nil
}

type summarizerFake struct {
	prompts []string
	err     error
}

func (f *summarizerFake) Invoke(_ context.Context, messages []domain.ChatMessage) (string, error) {
	f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	if f.err != nil {
		return "", f.err
	}
	return "summary v" + string(rune('0'+len(f.prompts))), nil
}

func TestSaveThenLoadKeepsVerbatimTurns(t *testing.T) {
	store := newStoreFake()
	summarizer := &summarizerFake{}
	mem := NewSummaryBufferMemory("s1", store, summarizer, Settings{MaxBufferTurns: 5, MaxTokenLimit: 1000}, nil)
	ctx := context.Background()

	if err := mem.Save(ctx, "What was Q3 revenue?", "12M per report1 pg 3."); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := mem.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := "Human: What was Q3 revenue?\nAI: 12M per report1 pg 3."
	if got != want {
		t.Fatalf("Load() = %q, want %q", got, want)
	}
	if len(summarizer.prompts) != 0 {
		t.Fatalf("expected no summarization, got %d calls", len(summarizer.prompts))
	}
	if len(store.turns) != 1 {
		t.Fatalf("expected turn log append, got %d", len(store.turns))
	}
}

func TestSaveFoldsOldestTurnsBeyondBufferSize(t *testing.T) {
	store := newStoreFake()
	summarizer := &summarizerFake{}
	mem := NewSummaryBufferMemory("s1", store, summarizer, Settings{MaxBufferTurns: 2, MaxTokenLimit: 10000}, nil)
	ctx := context.Background()

	for _, q := range []string{"one", "two", "three", "four"} {
		if err := mem.Save(ctx, q, "ok "+q); err != nil {
			t.Fatalf("Save(%s) error = %v", q, err)
		}
	}

	snap := store.snapshots["s1"]
	if len(snap.Buffer) != 2 || snap.Buffer[0].Input != "three" {
		t.Fatalf("unexpected buffer: %+v", snap.Buffer)
	}
	if snap.Summary != "summary v2" {
		t.Fatalf("unexpected summary %q", snap.Summary)
	}
	if !strings.Contains(summarizer.prompts[0], "Human: one\nAI: ok one") {
		t.Fatalf("expected folded turn in prompt, got %q", summarizer.prompts[0])
	}
	if !strings.Contains(summarizer.prompts[1], "summary v1") || !strings.Contains(summarizer.prompts[1], "Human: two") {
		t.Fatalf("expected progressive summary prompt, got %q", summarizer.prompts[1])
	}

	got, _ := mem.Load(ctx)
	if !strings.HasPrefix(got, "System: summary v2\nHuman: three") {
		t.Fatalf("unexpected rendered memory %q", got)
	}
}

func TestSaveFoldsWhenTokenBudgetExceeded(t *testing.T) {
	store := newStoreFake()
	summarizer := &summarizerFake{}
	mem := NewSummaryBufferMemory("s1", store, summarizer, Settings{MaxBufferTurns: 10, MaxTokenLimit: 20}, nil)
	ctx := context.Background()

	long := strings.Repeat("word ", 12)
	if err := mem.Save(ctx, "first", long); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mem.Save(ctx, "second", "short"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	snap := store.snapshots["s1"]
	if len(snap.Buffer) != 1 || snap.Buffer[0].Input != "second" {
		t.Fatalf("expected only the newest turn to stay verbatim, got %+v", snap.Buffer)
	}
	if len(summarizer.prompts) != 1 || !strings.Contains(summarizer.prompts[0], "Human: first") {
		t.Fatalf("expected the long turn to be summarized once, got %q", summarizer.prompts)
	}
}

func TestSavePropagatesSummarizerError(t *testing.T) {
	store := newStoreFake()
	mem := NewSummaryBufferMemory("s1", store, &summarizerFake{err: errors.New("llm down")}, Settings{MaxBufferTurns: 1, MaxTokenLimit: 1000}, nil)
	ctx := context.Background()

	if err := mem.Save(ctx, "a", "b"); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	if err := mem.Save(ctx, "c", "d"); err == nil {
		t.Fatalf("expected summarizer error")
	}
	if len(store.turns) != 1 {
		t.Fatalf("expected failed exchange to stay out of the turn log, got %d turns", len(store.turns))
	}
	snap := store.snapshots["s1"]
	if len(snap.Buffer) != 1 || snap.Buffer[0].Input != "a" || snap.Summary != "" {
		t.Fatalf("expected snapshot untouched by failed save, got %+v", snap)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("EstimateTokens(\"\") = %d", got)
	}
	if got := EstimateTokens("abcde"); got != 2 {
		t.Fatalf("EstimateTokens(abcde) = %d", got)
	}
}

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

var tracer = otel.Tracer("github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/memory")

const summarizePrompt = `Progressively summarize the lines of conversation provided, adding onto the previous summary and returning a new summary.
Keep document names, page numbers and figures that were cited.

Current summary:
%s

New lines of conversation:
%s

New summary:`

type Settings struct {
	MaxBufferTurns int
	MaxTokenLimit  int
}

func (s Settings) normalize() Settings {
	if s.MaxBufferTurns <= 0 {
		s.MaxBufferTurns = 10
	}
	if s.MaxTokenLimit <= 0 {
		s.MaxTokenLimit = 1000
	}
	return s
}

// SummaryBufferMemory keeps the newest turns verbatim and folds older ones
// into a running summary once the buffer exceeds its turn or token budget.
type SummaryBufferMemory struct {
	sessionID  string
	store      ports.TurnStore
	summarizer ports.ChatModel
	settings   Settings
	logger     *slog.Logger
	now        func() time.Time
}

func NewSummaryBufferMemory(
	sessionID string,
	store ports.TurnStore,
	summarizer ports.ChatModel,
	settings Settings,
	logger *slog.Logger,
) *SummaryBufferMemory {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryBufferMemory{
		sessionID:  sessionID,
		store:      store,
		summarizer: summarizer,
		settings:   settings.normalize(),
		logger:     logger,
		now:        time.Now,
	}
}

// Load renders the summary and buffered turns as chat history text.
func (m *SummaryBufferMemory) Load(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "memory.load")
	defer span.End()

	snapshot, err := m.store.LoadSnapshot(ctx, m.sessionID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	span.SetAttributes(attribute.Int("memory.buffer_turns", len(snapshot.Buffer)))
	return Render(*snapshot), nil
}

// Save commits the snapshot before appending to the turn log, so a failed
// summarization leaves both untouched and the exchange is not half recorded.
func (m *SummaryBufferMemory) Save(ctx context.Context, input, output string) error {
	ctx, span := tracer.Start(ctx, "memory.save")
	defer span.End()

	turn := domain.Turn{SessionID: m.sessionID, Input: input, Output: output, CreatedAt: m.now().UTC()}
	snapshot, err := m.store.LoadSnapshot(ctx, m.sessionID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	snapshot.SessionID = m.sessionID
	snapshot.Buffer = append(snapshot.Buffer, turn)

	var folded []domain.Turn
	for len(snapshot.Buffer) > 0 && m.overBudget(snapshot.Buffer) {
		folded = append(folded, snapshot.Buffer[0])
		snapshot.Buffer = snapshot.Buffer[1:]
	}

	if len(folded) > 0 {
		summary, err := m.summarize(ctx, snapshot.Summary, folded)
		if err != nil {
			span.RecordError(err)
			return err
		}
		snapshot.Summary = summary
		m.logger.Debug("memory_summarized", "session_id", m.sessionID, "folded_turns", len(folded), "buffer_turns", len(snapshot.Buffer))
	}

	if err := m.store.SaveSnapshot(ctx, *snapshot); err != nil {
		span.RecordError(err)
		return err
	}
	if err := m.store.AppendTurn(ctx, turn); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (m *SummaryBufferMemory) overBudget(buffer []domain.Turn) bool {
	if len(buffer) > m.settings.MaxBufferTurns {
		return true
	}
	return EstimateTokens(renderTurns(buffer)) > m.settings.MaxTokenLimit
}

func (m *SummaryBufferMemory) summarize(ctx context.Context, current string, turns []domain.Turn) (string, error) {
	prompt := fmt.Sprintf(summarizePrompt, current, renderTurns(turns))
	summary, err := m.summarizer.Invoke(ctx, []domain.ChatMessage{{Role: domain.RoleUser, Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("summarize memory: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// Render formats a snapshot the way it is fed back into prompts.
func Render(snapshot domain.MemorySnapshot) string {
	var b strings.Builder
	if snapshot.Summary != "" {
		b.WriteString("System: ")
		b.WriteString(snapshot.Summary)
	}
	if turns := renderTurns(snapshot.Buffer); turns != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(turns)
	}
	return b.String()
}

func renderTurns(turns []domain.Turn) string {
	lines := make([]string, 0, len(turns)*2)
	for _, t := range turns {
		lines = append(lines, "Human: "+t.Input, "AI: "+t.Output)
	}
	return strings.Join(lines, "\n")
}

// EstimateTokens approximates a token count as one token per four runes.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

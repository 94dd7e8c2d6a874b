package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

type RetrievalSettings struct {
	TopK           int
	ScoreThreshold float64
}

// ConversationalAgent answers queries for a single session. Respond calls are
// serialized so the session memory has one writer at a time.
type ConversationalAgent struct {
	sessionID string
	retriever ports.Retriever
	model     ports.ChatModel
	memory    ports.ConversationMemory
	settings  RetrievalSettings
	logger    *slog.Logger

	mu sync.Mutex
}

func NewConversationalAgent(
	sessionID string,
	retriever ports.Retriever,
	model ports.ChatModel,
	memory ports.ConversationMemory,
	settings RetrievalSettings,
	logger *slog.Logger,
) *ConversationalAgent {
	if settings.TopK <= 0 {
		settings.TopK = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationalAgent{
		sessionID: sessionID,
		retriever: retriever,
		model:     model,
		memory:    memory,
		settings:  settings,
		logger:    logger.With("session_id", sessionID),
	}
}

func (a *ConversationalAgent) SessionID() string {
	return a.sessionID
}

// Respond retrieves evidence, generates a cited answer and records the
// exchange in memory. Every failure is returned as *domain.PipelineError.
func (a *ConversationalAgent) Respond(ctx context.Context, query string) (*domain.Reply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, span := tracer.Start(ctx, "rag.respond")
	defer span.End()

	reply, stage, err := a.respond(ctx, query)
	if err != nil {
		span.RecordError(err)
		a.logger.Error("conversation_failed", "query", query, "stage", stage, "error", err)
		return nil, domain.NewPipelineError(err)
	}
	span.SetAttributes(attribute.Int("rag.retrieved", len(reply.Retrieved)))
	return reply, nil
}

func (a *ConversationalAgent) respond(ctx context.Context, query string) (*domain.Reply, string, error) {
	retrieval, err := a.retriever.Retrieve(ctx, query, a.settings.TopK, a.settings.ScoreThreshold)
	if err != nil {
		return nil, "retrieve", err
	}
	results := retrieval.Results

	history, err := a.memory.Load(ctx)
	if err != nil {
		return nil, "load_memory", fmt.Errorf("load memory: %w", err)
	}

	prompt := buildConversationPrompt(query, history, renderSnippets(results))
	answer, err := a.generate(ctx, prompt)
	if err != nil {
		return nil, "generate", err
	}

	if err := a.memory.Save(ctx, query, answer); err != nil {
		return nil, "save_memory", fmt.Errorf("save memory: %w", err)
	}

	return &domain.Reply{
		SessionID: a.sessionID,
		Reply:     answer,
		Retrieved: results,
	}, "", nil
}

func (a *ConversationalAgent) generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "rag.generate")
	defer span.End()

	answer, err := a.model.Invoke(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: conversationSystemPrompt},
		{Role: domain.RoleUser, Content: prompt},
	})
	if err != nil {
		span.RecordError(err)
		return "", domain.WrapError(domain.ErrGeneration, "generate answer", err)
	}
	return answer, nil
}

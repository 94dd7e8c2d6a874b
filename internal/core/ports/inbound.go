package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

// DocumentIngestor is the inbound contract for PDF upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document ingestion state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// Retriever turns a free-text query into ranked evidence.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, scoreThreshold float64) (*domain.Retrieval, error)
}

// Responder answers a query within one conversation session.
type Responder interface {
	Respond(ctx context.Context, query string) (*domain.Reply, error)
}

// ChatService routes queries to the conversation session they belong to.
type ChatService interface {
	Chat(ctx context.Context, sessionID, query string) (*domain.Reply, error)
}

// SessionHistory exposes the saved turns of a conversation session.
type SessionHistory interface {
	History(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)
}

package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

// DocumentRepository persists and reads ingestion state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	FindLatestByFilename(ctx context.Context, filename string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveIndexStats(ctx context.Context, id string, pageCount, chunkCount int) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// PageExtractor extracts per-page plain text from a stored document.
type PageExtractor interface {
	ExtractPages(ctx context.Context, doc *domain.Document) ([]domain.Page, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into semantically usable chunks.
type Chunker interface {
	Split(text string) []string
}

// VectorStore indexes chunk vectors and performs nearest-neighbour search.
type VectorStore interface {
	IndexChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Candidate, error)
}

// ChunkIndexer embeds and stores chunks.
type ChunkIndexer interface {
	AddChunks(ctx context.Context, chunks []domain.Chunk) error
}

// SimilaritySearcher is the query side of the embedding/index service.
type SimilaritySearcher interface {
	SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]domain.Candidate, error)
}

// ChatModel invokes a language model with role-tagged messages.
type ChatModel interface {
	Invoke(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// ConversationMemory is the session-scoped memory read before and
// appended to after each generation.
type ConversationMemory interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, input, output string) error
}

// TurnStore persists the turn log and memory snapshots per session.
type TurnStore interface {
	AppendTurn(ctx context.Context, turn domain.Turn) error
	LoadSnapshot(ctx context.Context, sessionID string) (*domain.MemorySnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot domain.MemorySnapshot) error
}

// TurnHistory reads back the saved turns of a session, oldest first.
type TurnHistory interface {
	ListTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)
}

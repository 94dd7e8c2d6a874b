package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

const defaultEmbedBatchSize = 32

// Index is the embedding and index service: it embeds text with an
// Embedder and delegates storage and nearest-neighbour search to a
// VectorStore.
type Index struct {
	embedder  ports.Embedder
	store     ports.VectorStore
	batchSize int
	logger    *slog.Logger
}

func NewIndex(embedder ports.Embedder, store ports.VectorStore, batchSize int, logger *slog.Logger) *Index {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		embedder:  embedder,
		store:     store,
		batchSize: batchSize,
		logger:    logger,
	}
}

// AddChunks embeds chunks in batches and indexes them in a single call so
// the store can replace each document atomically.
func (i *Index) AddChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += i.batchSize {
		end := min(start+i.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		batch, err := i.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(batch))
		}
		vectors = append(vectors, batch...)
	}

	if err := i.store.IndexChunks(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	i.logger.Debug("chunks_indexed", "chunks", len(chunks))
	return nil
}

func (i *Index) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	vector, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	candidates, err := i.store.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return candidates, nil
}

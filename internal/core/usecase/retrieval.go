package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

var tracer = otel.Tracer("github.com/kirillkom/pdf-rag-assistant/internal/core/usecase")

// overFetchFactor leaves room for candidates lost to post-filtering.
const overFetchFactor = 2

type RetrievalUseCase struct {
	extractor *FilterExtractor
	index     ports.SimilaritySearcher
	logger    *slog.Logger
}

func NewRetrievalUseCase(
	extractor *FilterExtractor,
	index ports.SimilaritySearcher,
	logger *slog.Logger,
) *RetrievalUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalUseCase{
		extractor: extractor,
		index:     index,
		logger:    logger,
	}
}

// Retrieve extracts filters, over-fetches candidates with the original query
// and returns the filtered, ranked and truncated results.
func (uc *RetrievalUseCase) Retrieve(
	ctx context.Context,
	query string,
	topK int,
	scoreThreshold float64,
) (*domain.Retrieval, error) {
	filters := uc.extractor.ExtractFilters(ctx, query)
	uc.logger.Debug("filters_extracted", "query", query, "filters", filters.String())

	candidates, err := uc.FetchCandidates(ctx, query, topK)
	if err != nil {
		uc.logger.Error("retrieval_failed", "query", query, "stage", "fetch_candidates", "error", err)
		return nil, domain.WrapError(domain.ErrRetrieval, "retrieve", err)
	}

	results := FilterAndRank(candidates, filters, scoreThreshold, topK)
	uc.logger.Info("retrieval_completed",
		"query", query,
		"candidates", len(candidates),
		"results", len(results),
		"top_k", topK,
		"score_threshold", scoreThreshold,
	)
	return &domain.Retrieval{Filters: filters, Results: results}, nil
}

// FetchCandidates requests 2k neighbours for the query. Order is whatever the
// index returns.
func (uc *RetrievalUseCase) FetchCandidates(ctx context.Context, query string, k int) ([]domain.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "rag.fetch_candidates")
	defer span.End()
	span.SetAttributes(attribute.Int("rag.k", k*overFetchFactor))

	candidates, err := uc.index.SimilaritySearchWithScore(ctx, query, k*overFetchFactor)
	if err != nil {
		span.RecordError(err)
		return nil, domain.WrapError(domain.ErrIndexService, "similarity search", fmt.Errorf("k=%d: %w", k*overFetchFactor, err))
	}
	span.SetAttributes(attribute.Int("rag.candidates", len(candidates)))
	return candidates, nil
}

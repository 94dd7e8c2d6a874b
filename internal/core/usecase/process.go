package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.PageExtractor
	chunker   ports.Chunker
	indexer   ports.ChunkIndexer
	logger    *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.PageExtractor,
	chunker ports.Chunker,
	indexer ports.ChunkIndexer,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		indexer:   indexer,
		logger:    logger,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	doc, pages, chunks, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		uc.logger.Error("document_process_failed", "document_id", documentID, "error", err)
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveIndexStats(ctx, doc.ID, pages, chunks); err != nil {
		err = fmt.Errorf("save index stats: %w", err)
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	uc.logger.Info("document_processed", "document_id", documentID, "doc_id", doc.DocID, "pages", pages, "chunks", chunks)
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (*domain.Document, int, int, error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return nil, 0, 0, err
	}

	pages, err := uc.extractPages(ctx, doc)
	if err != nil {
		return nil, 0, 0, err
	}

	chunks, err := uc.chunk(doc, pages)
	if err != nil {
		return nil, 0, 0, err
	}

	if err := uc.indexer.AddChunks(ctx, chunks); err != nil {
		return nil, 0, 0, fmt.Errorf("index chunks: %w", err)
	}

	return doc, len(pages), len(chunks), nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractPages(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	pages, err := uc.extractor.ExtractPages(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pages", errors.New("document has no pages"))
	}
	return pages, nil
}

// chunk splits every page independently so a chunk never spans two pages.
func (uc *ProcessDocumentUseCase) chunk(doc *domain.Document, pages []domain.Page) ([]domain.Chunk, error) {
	out := make([]domain.Chunk, 0, len(pages))
	for _, page := range pages {
		for i, text := range uc.chunker.Split(page.Text) {
			out = append(out, domain.Chunk{
				ChunkID: ChunkID(doc.DocID, page.Number, i+1),
				DocID:   doc.DocID,
				PageNum: page.Number,
				Source:  doc.Filename,
				Text:    text,
			})
		}
	}
	if len(out) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}
	return out, nil
}

func ChunkID(docID string, pageNum, chunkIndex int) string {
	return fmt.Sprintf("%s_pg%d_ch%d", docID, pageNum, chunkIndex)
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}

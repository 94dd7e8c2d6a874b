package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

const pdfMimeType = "application/pdf"

type IngestDocumentUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	sessionID string
	logger    *slog.Logger
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	sessionID string,
	logger *slog.Logger,
) *IngestDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestDocumentUseCase{
		repo:      repo,
		storage:   storage,
		queue:     queue,
		sessionID: sessionID,
		logger:    logger,
	}
}

// Upload stores a PDF and queues it for processing. A file whose name and
// checksum match an already indexed document is skipped and the existing
// record is returned.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	if !isPDF(filename, mimeType) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("only PDF files are supported: %s", filename))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	hash := md5.New()
	if err := uc.storage.Save(ctx, storageKey, io.TeeReader(body, hash)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	checksum := hex.EncodeToString(hash.Sum(nil))

	// Only the latest upload of a filename is indexed, so an older checksum
	// matching is not enough to skip.
	existing, err := uc.repo.FindLatestByFilename(ctx, filename)
	switch {
	case err == nil && existing.Checksum == checksum && existing.Status == domain.StatusReady:
		uc.logger.Info("document_unchanged", "filename", filename, "document_id", existing.ID, "checksum", checksum)
		if err := uc.storage.Delete(ctx, storageKey); err != nil {
			uc.logger.Warn("duplicate_upload_cleanup_failed", "storage_key", storageKey, "error", err)
		}
		return existing, nil
	case err != nil && !errors.Is(err, domain.ErrDocumentNotFound):
		return nil, fmt.Errorf("lookup document checksum: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		DocID:       DocIDFromFilename(filename),
		Filename:    filename,
		MimeType:    pdfMimeType,
		StoragePath: storageKey,
		Checksum:    checksum,
		SessionID:   uc.sessionID,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	uc.logger.Info("document_queued", "filename", filename, "document_id", doc.ID, "doc_id", doc.DocID)
	return doc, nil
}

// DocIDFromFilename derives the human-facing document id: the file stem with
// spaces replaced by underscores.
func DocIDFromFilename(filename string) string {
	base := filepath.Base(filename)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(stem, " ", "_")
}

func isPDF(filename, mimeType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), pdfMimeType)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.pdf"
	}
	return base
}

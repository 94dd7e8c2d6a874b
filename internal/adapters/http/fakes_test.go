package httpadapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/config"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type ingestFake struct {
	err error
}

func (f ingestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", io.EOF)
	}

	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		DocID:       "report",
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "doc-1_report.pdf",
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type docsFake struct {
	err error
}

func (f docsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: id, DocID: "report", Filename: "report.pdf", Status: domain.StatusReady}, nil
}

type retrieverFake struct {
	retrieval *domain.Retrieval
	err       error

	lastTopK      int
	lastThreshold float64
}

func (f *retrieverFake) Retrieve(_ context.Context, _ string, topK int, threshold float64) (*domain.Retrieval, error) {
	f.lastTopK = topK
	f.lastThreshold = threshold
	if f.err != nil {
		return nil, f.err
	}
	if f.retrieval == nil {
		return &domain.Retrieval{}, nil
	}
	return f.retrieval, nil
}

type chatFake struct {
	reply *domain.Reply
	err   error

	lastSession string
}

func (f *chatFake) Chat(_ context.Context, sessionID, query string) (*domain.Reply, error) {
	f.lastSession = sessionID
	if f.err != nil {
		return nil, f.err
	}
	if f.reply != nil {
		return f.reply, nil
	}
	return &domain.Reply{SessionID: "generated", Reply: "echo: " + query}, nil
}

type historyFake struct {
	turns []domain.Turn
	err   error

	lastLimit int
}

func (f *historyFake) History(_ context.Context, _ string, limit int) ([]domain.Turn, error) {
	f.lastLimit = limit
	return f.turns, f.err
}

func testConfig() config.Config {
	return config.Config{
		RAGTopK:           5,
		RAGScoreThreshold: 0.4,
		APIMaxUploadMB:    1,
	}
}

func newTestHandler(cfg config.Config, services Services) http.Handler {
	if services.Ingestor == nil {
		services.Ingestor = ingestFake{}
	}
	if services.Documents == nil {
		services.Documents = docsFake{}
	}
	if services.Retriever == nil {
		services.Retriever = &retrieverFake{}
	}
	if services.Chat == nil {
		services.Chat = &chatFake{}
	}
	if services.History == nil {
		services.History = &historyFake{}
	}
	return NewRouter(cfg, services).Handler()
}

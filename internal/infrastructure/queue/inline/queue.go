package inline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Queue runs the ingestion handler synchronously inside Publish. It serves
// single-process setups (chat TUI, directory ingest with -sync) where no
// broker is running.
type Queue struct {
	mu      sync.RWMutex
	handler func(context.Context, string) error
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{logger: logger}
}

// SetHandler installs the handler used by PublishDocumentIngested.
func (q *Queue) SetHandler(handler func(context.Context, string) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = handler
}

func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	q.mu.RLock()
	handler := q.handler
	q.mu.RUnlock()
	if handler == nil {
		return fmt.Errorf("inline queue: no handler installed")
	}
	if err := handler(ctx, documentID); err != nil {
		q.logger.Error("worker_handler_failed", "document_id", documentID, "error", err)
	}
	return nil
}

// SubscribeDocumentIngested installs handler and blocks until ctx is done.
func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	q.SetHandler(handler)
	<-ctx.Done()
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/kirillkom/pdf-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/pdf-rag-assistant/internal/config"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/observability/logging"
)

const serviceName = "rag-ingest"

type summary struct {
	queued    int
	unchanged int
	indexed   int
	failed    int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	dir := flag.String("dir", cfg.SourceDir, "directory scanned recursively for PDF files")
	sync := flag.Bool("sync", false, "process uploads in this process instead of publishing to NATS")
	flag.Parse()

	logger := logging.New(serviceName, cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := bootstrap.QueueNATS
	if *sync {
		mode = bootstrap.QueueInline
	}
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger, Queue: mode})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	paths, err := findPDFs(*dir)
	if err != nil {
		logger.Error("source_scan_failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("source_scanned", "dir", *dir, "files", len(paths))

	var sum summary
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		doc, err := uploadFile(ctx, app, path)
		if err != nil {
			sum.failed++
			logger.Error("file_ingest_failed", "path", path, "error", err)
			continue
		}
		switch {
		case doc.Status == domain.StatusReady && !*sync:
			sum.unchanged++
			logger.Info("file_unchanged", "path", path, "doc_id", doc.DocID)
		case *sync:
			sum.record(ctx, app, doc, logger, path)
		default:
			sum.queued++
			logger.Info("file_queued", "path", path, "document_id", doc.ID)
		}
	}

	logger.Info("ingest_finished",
		"queued", sum.queued,
		"indexed", sum.indexed,
		"unchanged", sum.unchanged,
		"failed", sum.failed,
	)
	if sum.failed > 0 {
		os.Exit(1)
	}
}

// record re-reads the document after inline processing to learn its outcome.
func (s *summary) record(ctx context.Context, app *bootstrap.App, uploaded *domain.Document, logger *slog.Logger, path string) {
	if uploaded.Status == domain.StatusReady {
		s.unchanged++
		logger.Info("file_unchanged", "path", path, "doc_id", uploaded.DocID)
		return
	}
	doc, err := app.Repo.GetByID(ctx, uploaded.ID)
	if err != nil {
		s.failed++
		logger.Error("file_status_unknown", "path", path, "error", err)
		return
	}
	if doc.Status != domain.StatusReady {
		s.failed++
		logger.Error("file_index_failed", "path", path, "status", doc.Status, "error", doc.Error)
		return
	}
	s.indexed++
	logger.Info("file_indexed", "path", path, "doc_id", doc.DocID, "pages", doc.PageCount, "chunks", doc.ChunkCount)
}

func uploadFile(ctx context.Context, app *bootstrap.App, path string) (*domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return app.IngestUC.Upload(ctx, filepath.Base(path), "application/pdf", f)
}

// findPDFs returns every *.pdf under dir in lexical order.
func findPDFs(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(d.Name()), ".pdf") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

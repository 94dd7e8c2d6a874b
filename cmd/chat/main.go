package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kirillkom/pdf-rag-assistant/internal/adapters/tui"
	"github.com/kirillkom/pdf-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/pdf-rag-assistant/internal/config"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/usecase"
	"github.com/kirillkom/pdf-rag-assistant/internal/observability/logging"
)

const serviceName = "rag-chat"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	session := flag.String("session", "", "session id to continue; a new one is generated when empty")
	ingestDir := flag.String("ingest", "", "index every PDF in this directory before chatting")
	logFile := flag.String("log-file", filepath.Join(os.TempDir(), "rag-chat.log"), "log destination; the terminal is owned by the UI")
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	logger := logging.New(serviceName, cfg.LogLevel, "text", f)
	slog.SetDefault(logger)

	ctx := context.Background()
	mode := bootstrap.QueueNone
	if *ingestDir != "" {
		mode = bootstrap.QueueInline
	}
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger, Queue: mode})
	if err != nil {
		return err
	}
	defer app.Close()

	if *ingestDir != "" {
		if err := ingestDirectory(ctx, app, *ingestDir); err != nil {
			return err
		}
	}

	sessionID := strings.TrimSpace(*session)
	if sessionID == "" {
		sessionID = usecase.NewSessionID(time.Now())
	}
	agent := app.Sessions.Session(sessionID)

	model := tui.New(agent, sessionID, time.Duration(cfg.OllamaTimeoutSecs)*2*time.Second)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("run chat ui: %w", err)
	}
	fmt.Println("session:", sessionID)
	return nil
}

func ingestDirectory(ctx context.Context, app *bootstrap.App, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read ingest dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		fmt.Fprintf(os.Stderr, "indexing %s\n", path)
		if err := uploadFile(ctx, app, path); err != nil {
			return err
		}
	}
	return nil
}

func uploadFile(ctx context.Context, app *bootstrap.App, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := app.IngestUC.Upload(ctx, filepath.Base(path), "application/pdf", f); err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}
	return nil
}

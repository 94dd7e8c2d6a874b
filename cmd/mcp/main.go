package main

import (
	"context"
	"log/slog"
	"os"

	mcpadapter "github.com/kirillkom/pdf-rag-assistant/internal/adapters/mcp"
	"github.com/kirillkom/pdf-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/pdf-rag-assistant/internal/config"
	"github.com/kirillkom/pdf-rag-assistant/internal/observability/logging"
)

const serviceName = "rag-mcp"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	// stdout carries the protocol.
	logger := logging.New(serviceName, cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(app.Retriever, app.Sessions, mcpadapter.Settings{
		TopK:           cfg.RAGTopK,
		ScoreThreshold: cfg.RAGScoreThreshold,
	}, logger)

	logger.Info("mcp_serving_stdio")
	if err := srv.ServeStdio(); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}

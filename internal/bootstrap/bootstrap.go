package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/pdf-rag-assistant/internal/config"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/usecase"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/memory"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/queue/inline"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/repository/postgres"
	redisstore "github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/repository/redis"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/vector"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/vector/inmemory"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/vector/qdrant"
)

// QueueMode selects how ingestion events travel to the processor.
type QueueMode int

const (
	// QueueNone wires no ingestion; used by query-only processes.
	QueueNone QueueMode = iota
	// QueueNATS publishes to NATS for the worker process.
	QueueNATS
	// QueueInline processes each upload synchronously in-process.
	QueueInline
)

type Options struct {
	Logger        *slog.Logger
	Queue         QueueMode
	OnStateChange func(operation, from, to string)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type turnStore interface {
	ports.TurnStore
	ports.TurnHistory
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	Retriever ports.Retriever
	Sessions  *usecase.SessionManager
	History   ports.SessionHistory
	Checks    map[string]HealthCheck

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		Checks: make(map[string]HealthCheck),
	}
	if err := app.wire(ctx, opts); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context, opts Options) error {
	cfg := a.Config
	logger := a.Logger

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	a.onClose(func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	a.Checks["postgres"] = db.PingContext
	repo := postgres.NewDocumentRepository(db)
	a.Repo = repo

	resCfg := cfg.Resilience()
	resCfg.Logger = logger
	resCfg.OnStateChange = opts.OnStateChange
	// Indexing retries transient failures; the query path fails fast.
	indexExec := resilience.NewExecutor(resCfg)
	queryExec := resilience.NewExecutor(resCfg.SingleAttempt())

	ollamaTimeout := time.Duration(cfg.OllamaTimeoutSecs) * time.Second
	indexLLM := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		Timeout:  ollamaTimeout,
		Executor: indexExec,
	})
	queryLLM := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		Timeout:     ollamaTimeout,
		Temperature: cfg.OllamaTemperature,
		Executor:    queryExec,
	})

	indexStore, queryStore := a.vectorStores(indexExec, queryExec)
	indexer := vector.NewIndex(ollama.NewEmbedder(indexLLM), indexStore, cfg.EmbedBatchSize, logger)
	searcher := vector.NewIndex(ollama.NewEmbedder(queryLLM), queryStore, cfg.EmbedBatchSize, logger)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extractor := pdftext.NewExtractor(storage)
	a.ProcessUC = usecase.NewProcessDocumentUseCase(repo, extractor, chunker, indexer, logger)

	switch opts.Queue {
	case QueueNATS:
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			QueueGroup:         cfg.NATSQueueGroup,
			HandlerTimeout:     time.Duration(cfg.WorkerTimeoutSecs) * time.Second,
			ResilienceExecutor: indexExec,
			Logger:             logger,
		})
		if err != nil {
			return fmt.Errorf("init message queue: %w", err)
		}
		a.onClose(queue.Close)
		a.Queue = queue
		a.Checks["nats"] = func(context.Context) error {
			if !queue.Connected() {
				return fmt.Errorf("not connected")
			}
			return nil
		}
	case QueueInline:
		queue := inline.New(logger)
		queue.SetHandler(a.ProcessUC.ProcessByID)
		a.Queue = queue
	}
	if a.Queue != nil {
		a.IngestUC = usecase.NewIngestDocumentUseCase(repo, storage, a.Queue, usecase.NewSessionID(time.Now()), logger)
	}

	filterExtractor := usecase.NewFilterExtractor(ollama.NewJSONChatModel(queryLLM), logger)
	retriever := usecase.NewRetrievalUseCase(filterExtractor, searcher, logger)
	a.Retriever = retriever

	turns, err := a.turnStore(ctx, db)
	if err != nil {
		return err
	}
	a.History = usecase.NewSessionHistoryUseCase(turns)

	generator := ollama.NewChatModel(queryLLM)
	memSettings := memory.Settings{MaxBufferTurns: cfg.MemoryMaxTurns, MaxTokenLimit: cfg.MemoryMaxTokens}
	newMemory := func(sessionID string) ports.ConversationMemory {
		return memory.NewSummaryBufferMemory(sessionID, turns, generator, memSettings, logger)
	}
	a.Sessions = usecase.NewSessionManager(
		retriever,
		generator,
		newMemory,
		usecase.RetrievalSettings{TopK: cfg.RAGTopK, ScoreThreshold: cfg.RAGScoreThreshold},
		cfg.MaxSessions,
		logger,
	)
	return nil
}

// vectorStores returns the write-side and read-side stores. The in-memory
// backend shares one store; Qdrant gets one client per executor.
func (a *App) vectorStores(indexExec, queryExec *resilience.Executor) (ports.VectorStore, ports.VectorStore) {
	cfg := a.Config
	if cfg.VectorBackend == config.VectorBackendMemory {
		a.Logger.Warn("vector_backend_in_memory", "note", "index is lost on restart and not shared between processes")
		store := inmemory.New()
		return store, store
	}
	indexStore := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{Executor: indexExec})
	queryStore := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{Executor: queryExec})
	return indexStore, queryStore
}

func (a *App) turnStore(ctx context.Context, db *sql.DB) (turnStore, error) {
	cfg := a.Config
	if cfg.MemoryBackend != config.MemoryBackendRedis {
		return postgres.NewConversationRepository(db), nil
	}
	rdb, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.onClose(func() { _ = rdb.Close() })
	a.Checks["redis"] = func(ctx context.Context) error { return pingRedis(ctx, rdb) }
	return redisstore.NewTurnStore(rdb, redisstore.Options{
		KeyPrefix: cfg.RedisKeyPrefix,
		TTL:       time.Duration(cfg.RedisTTLHours) * time.Hour,
	}), nil
}

func pingRedis(ctx context.Context, rdb goredis.UniversalClient) error {
	return rdb.Ping(ctx).Err()
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

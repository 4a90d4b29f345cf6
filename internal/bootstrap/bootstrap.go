package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/ragcore/ragcore/internal/config"
	"github.com/ragcore/ragcore/internal/core/ports"
	"github.com/ragcore/ragcore/internal/core/usecase"
	"github.com/ragcore/ragcore/internal/infrastructure/chunking"
	pdfextractor "github.com/ragcore/ragcore/internal/infrastructure/extractor/pdf"
	"github.com/ragcore/ragcore/internal/infrastructure/extractor/plaintext"
	"github.com/ragcore/ragcore/internal/infrastructure/llm/ollama"
	"github.com/ragcore/ragcore/internal/infrastructure/parser/markdown"
	natsqueue "github.com/ragcore/ragcore/internal/infrastructure/queue/nats"
	"github.com/ragcore/ragcore/internal/infrastructure/storage/postgres"
	"github.com/ragcore/ragcore/internal/infrastructure/storage/sqlite"
)

// App holds the wired object graph shared by the api and worker binaries.
type App struct {
	Indexer  ports.DocumentIndexer
	Searcher ports.Searcher
	Query    ports.QueryService
	Embedder ports.Embedder
	Queue    *natsqueue.Queue
	Store    ports.VectorStore

	closers []func() error
}

// New wires storage, the model provider, the queue and the use cases from
// configuration. withQueue is false for deployments that index inline only.
func New(ctx context.Context, cfg config.Config, withQueue bool) (*App, error) {
	app := &App{}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store
	app.closers = append(app.closers, store.Close)

	client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		EmbedTimeout:   time.Duration(cfg.EmbedTimeoutSeconds) * time.Second,
		GenTimeout:     time.Duration(cfg.GenTimeoutSeconds) * time.Second,
		MaxRetries:     cfg.EmbedMaxRetries,
		RequestsPerSec: cfg.EmbedRequestsPerSec,
	})
	embedder := ollama.NewEmbedder(client, cfg.EmbedBatchSize)
	generator := ollama.NewGenerator(client)
	judge := ollama.NewJudge(client)
	app.Embedder = embedder

	var queue ports.MessageQueue
	if withQueue {
		q, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect queue: %w", err)
		}
		app.Queue = q
		app.closers = append(app.closers, func() error {
			q.Close()
			return nil
		})
		queue = q
	}

	engine := chunking.NewEngine(chunking.Config{
		MaxChunkSize:     cfg.ChunkMaxSize,
		MinChunkSize:     cfg.ChunkMinSize,
		Overlap:          cfg.ChunkOverlap,
		PreserveHeadings: cfg.ChunkPreserveHeadings,
		Strategy:         chunking.Strategy(cfg.ChunkStrategy),
	})

	extractors := map[string]ports.TextExtractor{
		".txt": plaintext.New(),
		".pdf": pdfextractor.New(),
	}

	app.Indexer = usecase.NewIndexUseCase(markdown.New(), extractors, engine, embedder, store, queue)

	searcher := usecase.NewSearchUseCase(embedder, store, cfg.SearchTopK)
	app.Searcher = searcher

	reranker := usecase.NewReranker(judge, time.Duration(cfg.RerankTimeoutSeconds)*time.Second)
	app.Query = usecase.NewQueryUseCase(searcher, reranker, generator, usecase.QueryConfig{
		DefaultTopK:      cfg.SearchTopK,
		FilteredMinScore: cfg.SearchMinScore,
	})

	return app, nil
}

func openStore(ctx context.Context, cfg config.Config) (ports.VectorStore, error) {
	switch cfg.StorageBackend {
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		store := postgres.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := sqlite.NewStore(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// Close releases resources in reverse wiring order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexara-id/lexara/internal/config"
	"github.com/lexara-id/lexara/internal/core"
	"github.com/lexara-id/lexara/internal/core/chunker"
	db "github.com/lexara-id/lexara/internal/core/database"
	"github.com/lexara-id/lexara/internal/core/extractor"
	"github.com/lexara-id/lexara/internal/core/ingestion"
	"github.com/lexara-id/lexara/internal/core/llm"
	objectclient "github.com/lexara-id/lexara/internal/core/object-client"
	"github.com/lexara-id/lexara/internal/core/queue"
	"github.com/lexara-id/lexara/internal/core/vectorstore"
	"github.com/lexara-id/lexara/internal/core/vectorstore/milvus"
	"github.com/lexara-id/lexara/internal/core/vectorstore/pgvector"
)

// App owns every long-lived component and wires them together.
type App struct {
	DBClient    core.DbClient
	ObjClient   core.ObjectClient
	Embedder    core.EmbeddingProvider
	VectorStore vectorstore.Store
	Broker      queue.Broker
	Ingestor    *ingestion.Ingestor
	Server      *Server

	cfg *config.Config
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("database initialized and bootstrapped")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		dbClient.Close()
		return nil, err
	}
	slog.Info("object client initialized")

	embedder, err := llm.NewEmbedder(appCtx, cfg)
	if err != nil {
		dbClient.Close()
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	store, err := newVectorStore(cfg, dbClient)
	if err != nil {
		dbClient.Close()
		return nil, err
	}
	if err := store.EnsureCollection(appCtx); err != nil {
		dbClient.Close()
		return nil, fmt.Errorf("prepare vector store: %w", err)
	}
	slog.Info("vector store ready", "engine", cfg.VectorEngine)

	broker, err := newBroker(cfg)
	if err != nil {
		store.Close()
		dbClient.Close()
		return nil, err
	}

	chunkOpts, err := chunkOptions(cfg)
	if err != nil {
		broker.Close()
		store.Close()
		dbClient.Close()
		return nil, err
	}

	chk, err := chunker.New(embedder)
	if err != nil {
		broker.Close()
		store.Close()
		dbClient.Close()
		return nil, fmt.Errorf("initialize chunker: %w", err)
	}

	ext := extractor.NewDocumentExtractor()
	ing := ingestion.NewIngestor(dbClient, ext, chk, embedder, store, chunkOpts, cfg.EmbedBatchSize)

	server := NewServer(cfg, dbClient, objClient, broker, embedder, store)

	return &App{
		DBClient:    dbClient,
		ObjClient:   objClient,
		Embedder:    embedder,
		VectorStore: store,
		Broker:      broker,
		Ingestor:    ing,
		Server:      server,
		cfg:         cfg,
	}, nil
}

func newVectorStore(cfg *config.Config, dbClient core.DbClient) (vectorstore.Store, error) {
	engine, err := vectorstore.ParseEngine(cfg.VectorEngine)
	if err != nil {
		return nil, err
	}
	switch engine {
	case vectorstore.EngineMilvus:
		return milvus.NewStore(milvus.Config{
			Addr:       cfg.VectorAddr,
			Username:   cfg.VectorUsername,
			Password:   cfg.VectorPassword,
			Collection: cfg.VectorCollection,
			Dimension:  cfg.EmbedDim,
		})
	case vectorstore.EnginePgvector:
		client, ok := dbClient.(*db.DatabaseClient)
		if !ok {
			return nil, fmt.Errorf("pgvector engine needs the postgres client")
		}
		return pgvector.NewStore(client.DB(), cfg.EmbedDim)
	}
	return nil, fmt.Errorf("unknown vector engine %q", cfg.VectorEngine)
}

func newBroker(cfg *config.Config) (queue.Broker, error) {
	backend, err := queue.ParseBackend(cfg.Broker)
	if err != nil {
		return nil, err
	}
	switch backend {
	case queue.BackendAMQP:
		return queue.NewAmqpBroker(cfg.AmqpURL, cfg.QueueName, cfg.MaxAttempts)
	case queue.BackendMemory:
		return queue.NewMemoryBroker(100, cfg.IngestionWorkers, cfg.MaxAttempts), nil
	}
	return nil, fmt.Errorf("unknown broker %q", cfg.Broker)
}

func chunkOptions(cfg *config.Config) (chunker.Options, error) {
	strategy, err := chunker.ParseStrategy(cfg.ChunkStrategy)
	if err != nil {
		return chunker.Options{}, err
	}
	bpType, err := chunker.ParseBreakpointType(cfg.BreakpointType)
	if err != nil {
		return chunker.Options{}, err
	}

	opts := chunker.Options{
		Strategy:         strategy,
		ChunkLength:      cfg.ChunkLength,
		ChunkSize:        cfg.ChunkSize,
		ChunkOverlap:     cfg.ChunkOverlap,
		SlideSentences:   cfg.SlideSentences,
		BreakpointType:   bpType,
		BreakpointAmount: cfg.BreakpointAmount,
	}
	if err := opts.Validate(); err != nil {
		return chunker.Options{}, err
	}
	return opts, nil
}

// StartWorkers runs the ingestion consumers until ctx is cancelled.
func (a *App) StartWorkers(ctx context.Context) error {
	return a.Broker.Consume(ctx, a.Ingestor.Handle)
}

func (a *App) Close() {
	if a.Broker != nil {
		_ = a.Broker.Close()
	}
	if a.VectorStore != nil {
		_ = a.VectorStore.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}

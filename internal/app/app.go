// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/markdave123-py/vectora/internal/config"
	"github.com/markdave123-py/vectora/internal/core"
	"github.com/markdave123-py/vectora/internal/core/chunking"
	db "github.com/markdave123-py/vectora/internal/core/database"
	"github.com/markdave123-py/vectora/internal/core/ingestion_engine"
	"github.com/markdave123-py/vectora/internal/core/llm"
	objectclient "github.com/markdave123-py/vectora/internal/core/object-client"
	"github.com/markdave123-py/vectora/internal/core/remotetask"
	"github.com/markdave123-py/vectora/internal/core/retry"
	"github.com/markdave123-py/vectora/internal/core/vectordb"
	"github.com/markdave123-py/vectora/internal/services"
)

type App struct {
	DBClient     *db.DatabaseClient
	ObjectClient core.ObjectClient
	VectorStore  core.VectorStore
	Server       *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Object client initialized and ready.")

	store, err := newVectorStore(cfg, dbClient)
	if err != nil {
		return nil, err
	}
	log.Printf("Vector store backend: %s", cfg.VectorBackend)

	provider, err := newEmbedProvider(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}
	embedder := llm.NewEmbedGateway(provider, retry.DefaultPolicy())

	taskClient := remotetask.NewClient(remotetask.Config{
		BaseURL: cfg.ChunkerURL,
		APIKey:  cfg.ChunkerAPIKey,
	}, nil)
	chunker := chunking.NewGateway(taskClient, chunking.Config{
		MaxTokensPerChunk: cfg.MaxTokensPerChunk,
		Tokenizer:         cfg.Tokenizer,
		MergePeers:        cfg.MergePeers,
	})

	extractor := ingestion_engine.NewDocconvExtractor(false)

	ingCfg := &ingestion_engine.IngestConfig{
		EmbedDim:      cfg.EmbedDim,
		Distance:      cfg.Distance,
		ScoreMin:      float32(cfg.ScoreMin),
		CharsPerToken: cfg.CharsPerToken,
	}

	ledger := services.NewLedgerService(dbClient)
	documents := services.NewDocumentService(dbClient, objClient, extractor, cfg.BucketName)
	collections := services.NewCollectionService(dbClient, store, ingCfg.EmbedDim, ingCfg.Distance)
	sampler := services.NewSamplerService(store, embedder, ingCfg.ScoreMin, ingCfg.CharsPerToken)

	ingestor := ingestion_engine.NewDocumentIngestor(documents, chunker, embedder, store, ledger)

	server := NewServer(cfg, &ServerDeps{
		DB:          dbClient,
		Documents:   documents,
		Collections: collections,
		Ledger:      ledger,
		Sampler:     sampler,
		Ingestor:    ingestor,
	})

	return &App{DBClient: dbClient, ObjectClient: objClient, VectorStore: store, Server: server}, nil
}

// newVectorStore selects the vector backend. Qdrant is the default; pgvector
// rides the existing Postgres pool.
func newVectorStore(cfg *config.Config, dbClient *db.DatabaseClient) (core.VectorStore, error) {
	switch cfg.VectorBackend {
	case "qdrant", "":
		return vectordb.NewQdrantStore(vectordb.QdrantConfig{
			URL:    cfg.QdrantURL,
			APIKey: cfg.QdrantAPIKey,
		}, &http.Client{Timeout: 30 * time.Second}), nil
	case "pgvector":
		return vectordb.NewPgvectorStore(dbClient.DB()), nil
	}
	return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
}

// newEmbedProvider selects the raw embedding provider; the gateway wraps it
// with sanitation, batching, and retries either way.
func newEmbedProvider(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	switch cfg.EmbedProvider {
	case "openai", "":
		return llm.NewOpenAIEmbedder(llm.OpenAIConfig{
			BaseURL: cfg.EmbedBaseURL,
			APIKey:  cfg.EmbedAPIKey,
			Model:   cfg.EmbedModel,
		}, nil), nil
	case "gemini":
		return llm.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
	}
	return nil, fmt.Errorf("unknown embed provider %q", cfg.EmbedProvider)
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}

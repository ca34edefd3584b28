package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/askgenie/internal/cache"
	"github.com/nikhilbhutani/askgenie/internal/chatbot"
	"github.com/nikhilbhutani/askgenie/internal/config"
	"github.com/nikhilbhutani/askgenie/internal/conversation"
	"github.com/nikhilbhutani/askgenie/internal/crawler"
	"github.com/nikhilbhutani/askgenie/internal/database"
	"github.com/nikhilbhutani/askgenie/internal/embedding"
	"github.com/nikhilbhutani/askgenie/internal/ingest"
	"github.com/nikhilbhutani/askgenie/internal/llm"
	"github.com/nikhilbhutani/askgenie/internal/rag"
	"github.com/nikhilbhutani/askgenie/internal/vectorstore"
	"github.com/nikhilbhutani/askgenie/pkg/chunker"
)

// App holds the shared components used by the API server and the worker.
type App struct {
	DB    *pgxpool.Pool
	Redis *redis.Client

	Gateway       llm.Gateway
	Embedder      embedding.Embedder
	Vectors       vectorstore.VectorStore
	Crawler       crawler.Crawler
	Chatbots      *chatbot.Service
	ChatbotRepo   chatbot.Repository
	Conversations conversation.Repository
	Pipeline      *ingest.Pipeline
	Engine        *rag.Engine
}

// New connects to Postgres and Redis, applies migrations and builds the
// ingestion and retrieval components. Redis is optional: when it cannot be
// reached the embedding cache is disabled.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db

	if err := database.RunMigrations(ctx, db, database.MigrationSource(cfg.Database.MigrationsPath)); err != nil {
		a.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisOK := true
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, embedding cache disabled", "addr", cfg.Redis.Addr, "error", err)
		redisOK = false
	}

	gw, err := llm.NewGateway(ctx, cfg.LLM)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init llm gateway: %w", err)
	}
	a.Gateway = gw
	for _, m := range unlistedModels(gw.ListModels(), cfg.LLM) {
		slog.Warn("configured model not in provider catalogue", "provider", m.Provider, "model", m.Model)
	}

	embedSvc := embedding.NewService(gw, cfg.LLM.EmbedProvider, cfg.LLM.EmbedModel)
	a.Embedder = embedSvc
	if cfg.Cache.Enabled && redisOK {
		a.Embedder = embedding.NewCachedEmbedder(embedSvc, cache.NewCache(a.Redis, "askgenie:"), embedSvc.Model(), cfg.Cache.TTL)
	}

	a.Vectors, err = newVectorStore(db, cfg.VectorStore)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Crawler = newCrawler(cfg.Crawl)

	botRepo := chatbot.NewPgStore(db)
	a.ChatbotRepo = botRepo
	a.Chatbots = chatbot.NewService(botRepo, a.Vectors)
	a.Conversations = conversation.NewPgStore(db)

	a.Pipeline = ingest.NewPipeline(botRepo, a.Crawler, a.Embedder, a.Vectors, ingest.Config{
		Chunk: chunker.Options{
			ChunkSize: cfg.Ingest.ChunkSize,
			Overlap:   cfg.Ingest.ChunkOverlap,
		},
		Concurrency:      cfg.Ingest.Concurrency,
		PagePause:        cfg.Ingest.PagePause,
		FailOnZeroChunks: cfg.Ingest.FailOnZeroChunks,
	})

	gen := rag.NewGatewayGenerator(gw, cfg.LLM.DefaultProvider, cfg.LLM.DefaultModel, cfg.LLM.Temperature)
	a.Engine = rag.NewEngine(a.Conversations, a.Embedder, a.Vectors, gen, rag.Config{
		MatchThreshold: cfg.Retrieval.MatchThreshold,
		MatchCount:     cfg.Retrieval.MatchCount,
		HistoryLimit:   cfg.Retrieval.HistoryLimit,
	})

	slog.Info("components ready",
		"vector_backend", cfg.VectorStore.Backend,
		"answer_provider", cfg.LLM.DefaultProvider,
		"embed_model", embedSvc.Model(),
		"firecrawl", cfg.Crawl.FirecrawlKey != "",
		"embedding_cache", cfg.Cache.Enabled && redisOK,
	)
	return a, nil
}

// unlistedModels returns the configured answer and embedding models that
// their provider does not advertise. Providers may still accept them.
func unlistedModels(available []llm.ModelInfo, cfg config.LLMConfig) []llm.ModelInfo {
	known := make(map[llm.ModelInfo]bool, len(available))
	for _, m := range available {
		known[llm.ModelInfo{Provider: m.Provider, Model: m.Model}] = true
	}

	var out []llm.ModelInfo
	for _, m := range []llm.ModelInfo{
		{Provider: cfg.DefaultProvider, Model: cfg.DefaultModel},
		{Provider: cfg.EmbedProvider, Model: cfg.EmbedModel},
	} {
		if m.Model == "" || known[m] {
			continue
		}
		out = append(out, m)
	}
	return out
}

func newVectorStore(db *pgxpool.Pool, cfg config.VectorStoreConfig) (vectorstore.VectorStore, error) {
	switch cfg.Backend {
	case "", "pgvector":
		return vectorstore.NewPgVectorStore(db), nil
	case "chromem":
		s, err := vectorstore.NewChromemStore(cfg.ChromemDir)
		if err != nil {
			return nil, fmt.Errorf("open chromem store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
}

// newCrawler uses the crawl service when a key is configured and the
// single-page scraper otherwise.
func newCrawler(cfg config.CrawlConfig) crawler.Crawler {
	fallback := crawler.NewScraper(cfg.FallbackTimeout, cfg.MinContentLength)
	if cfg.FirecrawlKey == "" {
		return crawler.NewService(nil, fallback)
	}
	primary := crawler.NewFirecrawlClient(cfg.FirecrawlURL, cfg.FirecrawlKey, cfg.PageLimit, cfg.PollInterval).
		WithJobTimeout(cfg.Timeout)
	return crawler.NewService(primary, fallback)
}

func (a *App) Close() error {
	var errs []error
	if a.Gateway != nil {
		errs = append(errs, a.Gateway.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		a.DB.Close()
	}
	return errors.Join(errs...)
}

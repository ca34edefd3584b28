package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/askgenie/internal/chatbot"
	"github.com/nikhilbhutani/askgenie/internal/crawler"
	"github.com/nikhilbhutani/askgenie/internal/embedding"
	"github.com/nikhilbhutani/askgenie/internal/models"
	"github.com/nikhilbhutani/askgenie/internal/vectorstore"
	"github.com/nikhilbhutani/askgenie/pkg/chunker"
	"golang.org/x/sync/errgroup"
)

var (
	ErrCrawlFailed     = errors.New("crawl failed")
	ErrIngestionFailed = errors.New("failed to create chatbot")
	ErrNoChunksIndexed = errors.New("no chunks could be indexed")
	ErrInvalidURL      = errors.New("url is required")
	ErrMissingUser     = errors.New("userId is required")
)

type Config struct {
	Chunk       chunker.Options
	Concurrency int
	// PagePause is waited between consecutive pages, not after the last one.
	PagePause time.Duration
	// FailOnZeroChunks marks a chatbot as error when no chunk was stored.
	FailOnZeroChunks bool
}

func DefaultConfig() Config {
	return Config{
		Chunk:            chunker.DefaultOptions(),
		Concurrency:      5,
		PagePause:        250 * time.Millisecond,
		FailOnZeroChunks: true,
	}
}

type Request struct {
	URL    string
	UserID string
	Name   string
}

type Result struct {
	ChatbotID uuid.UUID
	Chatbot   *models.Chatbot
	Pages     int
	Chunks    int64
	Stored    int64
	Failed    int64
}

type Pipeline struct {
	bots     chatbot.Repository
	crawler  crawler.Crawler
	embedder embedding.Embedder
	vectors  vectorstore.VectorStore
	cfg      Config
}

func NewPipeline(bots chatbot.Repository, c crawler.Crawler, e embedding.Embedder, v vectorstore.VectorStore, cfg Config) *Pipeline {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Pipeline{
		bots:     bots,
		crawler:  c,
		embedder: e,
		vectors:  v,
		cfg:      cfg,
	}
}

// Ingest creates the chatbot record and indexes its site in one call.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	bot, err := p.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	return p.Index(ctx, bot)
}

// Create stores a new chatbot in the processing state. Nothing is crawled.
func (p *Pipeline) Create(ctx context.Context, req Request) (*models.Chatbot, error) {
	if req.URL == "" {
		return nil, ErrInvalidURL
	}
	if req.UserID == "" {
		return nil, ErrMissingUser
	}
	name := req.Name
	if name == "" {
		name = models.DefaultChatbotName
	}

	bot := &models.Chatbot{
		ID:     uuid.New(),
		UserID: req.UserID,
		URL:    req.URL,
		Name:   name,
		Status: models.ChatbotStatusProcessing,
	}
	if err := p.bots.Create(ctx, bot); err != nil {
		return nil, fmt.Errorf("%w: create record: %v", ErrIngestionFailed, err)
	}

	slog.Info("chatbot record created", "chatbot_id", bot.ID, "url", bot.URL)
	return bot, nil
}

// Index crawls the chatbot's URL, embeds and stores every chunk, and moves
// the record to ready. On failure the record is moved to error and the
// returned error matches ErrCrawlFailed, ErrNoChunksIndexed or
// ErrIngestionFailed.
func (p *Pipeline) Index(ctx context.Context, bot *models.Chatbot) (res *Result, err error) {
	res = &Result{ChatbotID: bot.ID, Chatbot: bot}
	log := slog.With("chatbot_id", bot.ID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("ingestion panicked", "panic", r)
			p.markError(ctx, bot.ID)
			res, err = nil, fmt.Errorf("%w: %v", ErrIngestionFailed, r)
		}
	}()

	pages, err := p.crawler.Crawl(ctx, bot.URL)
	if err != nil {
		log.Error("crawl failed", "url", bot.URL, "error", err)
		p.markError(ctx, bot.ID)
		return nil, fmt.Errorf("%w: %w", ErrCrawlFailed, err)
	}
	res.Pages = len(pages)

	log.Info("processing pages", "pages", len(pages))

	var stored, failed, total atomic.Int64
	for i := range pages {
		url, title := pages[i].SourceURL, pages[i].Title
		chunks := chunker.ChunkText(pages[i].Content, p.cfg.Chunk)
		pages[i].Content = ""

		log.Info("processing page", "page", i+1, "pages", len(pages), "title", title, "chunks", len(chunks))
		total.Add(int64(len(chunks)))

		meta := vectorstore.Metadata{
			ChatbotID: bot.ID.String(),
			URL:       url,
			UserID:    bot.UserID,
		}

		var g errgroup.Group
		g.SetLimit(p.cfg.Concurrency)
		for _, c := range chunks {
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						failed.Add(1)
						log.Error("chunk panicked", "url", url, "chunk", c.Index, "panic", r)
					}
				}()
				if err := p.storeChunk(ctx, c.Content, meta); err != nil {
					failed.Add(1)
					log.Warn("chunk skipped", "url", url, "chunk", c.Index, "error", err)
					return nil
				}
				stored.Add(1)
				return nil
			})
		}
		_ = g.Wait()

		pages[i] = crawler.Page{}

		if i < len(pages)-1 && p.cfg.PagePause > 0 {
			select {
			case <-ctx.Done():
				p.markError(ctx, bot.ID)
				return nil, fmt.Errorf("%w: %w", ErrIngestionFailed, ctx.Err())
			case <-time.After(p.cfg.PagePause):
			}
		}
	}

	res.Chunks, res.Stored, res.Failed = total.Load(), stored.Load(), failed.Load()
	log.Info("chunks processed", "total", res.Chunks, "stored", res.Stored, "failed", res.Failed)

	if res.Stored == 0 && p.cfg.FailOnZeroChunks {
		p.markError(ctx, bot.ID)
		return nil, ErrNoChunksIndexed
	}

	if err := p.bots.UpdateStatus(ctx, bot.ID, models.ChatbotStatusReady); err != nil {
		log.Error("finalize chatbot failed", "error", err)
		p.markError(ctx, bot.ID)
		return nil, fmt.Errorf("%w: finalize: %w", ErrIngestionFailed, err)
	}
	bot.Status = models.ChatbotStatusReady

	log.Info("chatbot knowledge indexed")
	return res, nil
}

func (p *Pipeline) storeChunk(ctx context.Context, content string, meta vectorstore.Metadata) error {
	vec, err := p.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed chunk: %w", err)
	}
	if err := p.vectors.Insert(ctx, vectorstore.Row{
		Content:   content,
		Embedding: vec,
		Metadata:  meta,
	}); err != nil {
		return fmt.Errorf("store chunk: %w", err)
	}
	return nil
}

// Fail moves a processing chatbot to error, for callers that gave up on
// indexing it, such as when the background job could not be queued.
func (p *Pipeline) Fail(ctx context.Context, id uuid.UUID) {
	p.markError(ctx, id)
}

// markError moves the record to error, ignoring failures. It uses a context
// detached from cancellation so a cancelled request still records the error.
func (p *Pipeline) markError(ctx context.Context, id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := p.bots.UpdateStatus(ctx, id, models.ChatbotStatusError); err != nil && !errors.Is(err, chatbot.ErrNotFound) {
		slog.Error("mark chatbot error failed", "chatbot_id", id, "error", err)
	}
}

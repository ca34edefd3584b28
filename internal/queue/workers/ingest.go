package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/askgenie/internal/chatbot"
	"github.com/nikhilbhutani/askgenie/internal/ingest"
	"github.com/nikhilbhutani/askgenie/internal/models"
	"github.com/nikhilbhutani/askgenie/internal/queue"
)

// Indexer is the part of the ingestion pipeline the worker drives.
type Indexer interface {
	Index(ctx context.Context, bot *models.Chatbot) (*ingest.Result, error)
}

type ChatbotLoader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Chatbot, error)
}

type IngestWorker struct {
	bots    ChatbotLoader
	indexer Indexer
}

func NewIngestWorker(bots ChatbotLoader, indexer Indexer) *IngestWorker {
	return &IngestWorker{bots: bots, indexer: indexer}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	id, err := queue.ParseChatbotIngest(t)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	bot, err := w.bots.Get(ctx, id)
	if errors.Is(err, chatbot.ErrNotFound) {
		slog.Warn("chatbot gone before ingestion", "chatbot_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load chatbot: %w", err)
	}
	if bot.Status != models.ChatbotStatusProcessing {
		slog.Info("chatbot not pending ingestion, skipping", "chatbot_id", id, "status", bot.Status)
		return nil
	}

	slog.Info("ingesting chatbot", "chatbot_id", id, "url", bot.URL)

	res, err := w.indexer.Index(ctx, bot)
	if err != nil {
		return fmt.Errorf("index chatbot %s: %w: %w", id, err, asynq.SkipRetry)
	}

	slog.Info("chatbot ingested", "chatbot_id", id, "pages", res.Pages, "stored", res.Stored, "failed", res.Failed)
	return nil
}

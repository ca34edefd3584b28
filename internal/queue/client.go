package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/askgenie/internal/config"
)

const (
	QueueDefault = "default"

	// A full crawl with the page pause can take a while on large sites.
	ingestTimeout = 45 * time.Minute
)

type Client struct {
	client *asynq.Client
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueChatbotIngest schedules indexing for a chatbot already stored in the
// processing state. The chatbot id is the task id, so a second enqueue for the
// same chatbot is rejected. Ingestion is not retried: rows written by a
// partial run would be duplicated.
func (c *Client) EnqueueChatbotIngest(ctx context.Context, chatbotID uuid.UUID) error {
	task, err := NewChatbotIngestTask(chatbotID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID(chatbotID.String()),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(0),
		asynq.Timeout(ingestTimeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue %s for %s: already queued: %w", TypeChatbotIngest, chatbotID, err)
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeChatbotIngest, err)
	}
	return nil
}

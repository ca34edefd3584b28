package chatbot

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/askgenie/internal/models"
)

var ErrNotFound = errors.New("chatbot not found")

// Repository persists chatbot records.
type Repository interface {
	Create(ctx context.Context, bot *models.Chatbot) error
	Get(ctx context.Context, id uuid.UUID) (*models.Chatbot, error)
	ListByUser(ctx context.Context, userID string) ([]models.Chatbot, error)
	// UpdateStatus moves a processing record to status. It returns
	// ErrNotFound when no processing record with that id exists.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

const chatbotColumns = `id, user_id, url, name, status, created_at, updated_at`

func (s *PgStore) Create(ctx context.Context, bot *models.Chatbot) error {
	if bot.ID == uuid.Nil {
		bot.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO chatbots (id, user_id, url, name, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		bot.ID, bot.UserID, bot.URL, bot.Name, bot.Status,
	).Scan(&bot.CreatedAt, &bot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert chatbot: %w", err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, id uuid.UUID) (*models.Chatbot, error) {
	var b models.Chatbot
	err := s.db.QueryRow(ctx,
		`SELECT `+chatbotColumns+` FROM chatbots WHERE id = $1`, id,
	).Scan(&b.ID, &b.UserID, &b.URL, &b.Name, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chatbot: %w", err)
	}
	return &b, nil
}

func (s *PgStore) ListByUser(ctx context.Context, userID string) ([]models.Chatbot, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+chatbotColumns+` FROM chatbots WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chatbots: %w", err)
	}
	defer rows.Close()

	bots := []models.Chatbot{}
	for rows.Next() {
		var b models.Chatbot
		if err := rows.Scan(&b.ID, &b.UserID, &b.URL, &b.Name, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chatbot: %w", err)
		}
		bots = append(bots, b)
	}
	return bots, rows.Err()
}

func (s *PgStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE chatbots SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("update chatbot status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM chatbots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete chatbot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

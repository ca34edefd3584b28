package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/askgenie/internal/models"
	"github.com/nikhilbhutani/askgenie/internal/vectorstore"
)

var ErrPartialDelete = errors.New("chatbot deleted but its documents were not")

// PartialDeleteError reports that the record is gone while its chunk rows
// remain in the vector store.
type PartialDeleteError struct {
	ChatbotID uuid.UUID
	Err       error
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("chatbot %s deleted but documents remain: %v", e.ChatbotID, e.Err)
}

func (e *PartialDeleteError) Unwrap() error { return e.Err }

func (e *PartialDeleteError) Is(target error) bool { return target == ErrPartialDelete }

type Service struct {
	repo    Repository
	vectors vectorstore.VectorStore
}

func NewService(repo Repository, vectors vectorstore.VectorStore) *Service {
	return &Service{repo: repo, vectors: vectors}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Chatbot, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]models.Chatbot, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Delete removes the chatbot record and then every chunk row tagged with
// its id. The record goes first so a missing chatbot never triggers a
// document sweep.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	n, err := s.vectors.DeleteByChatbot(ctx, id.String())
	if err != nil {
		slog.Error("chatbot documents not deleted", "chatbot_id", id, "error", err)
		return &PartialDeleteError{ChatbotID: id, Err: err}
	}

	slog.Info("chatbot deleted", "chatbot_id", id, "documents", n)
	return nil
}

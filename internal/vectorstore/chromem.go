package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
)

const chromemCollection = "documents"

// ChromemStore keeps chunk rows in an embedded chromem-go database. It is
// meant for single-node deployments and local development.
type ChromemStore struct {
	// held across Count and QueryEmbedding so the clamped result count stays valid
	mu  sync.RWMutex
	col *chromem.Collection
}

// NewChromemStore opens a persistent database under dir, or an in-memory one
// when dir is empty.
func NewChromemStore(dir string) (*ChromemStore, error) {
	var (
		db  *chromem.DB
		err error
	)
	if dir != "" {
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	col, err := db.GetOrCreateCollection(chromemCollection, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("open chromem collection: %w", err)
	}
	return &ChromemStore{col: col}, nil
}

// noEmbedding rejects documents that arrive without a vector. Embeddings are
// always computed by the caller.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem store requires precomputed embeddings")
}

func (s *ChromemStore) Insert(ctx context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.col.AddDocument(ctx, chromem.Document{
		ID:        uuid.NewString(),
		Content:   row.Content,
		Embedding: row.Embedding,
		Metadata: map[string]string{
			"chatbot_id": row.Metadata.ChatbotID,
			"url":        row.Metadata.URL,
			"user_id":    row.Metadata.UserID,
		},
	})
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *ChromemStore) Match(ctx context.Context, p MatchParams) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := min(p.MatchCount, s.col.Count())
	if n <= 0 {
		return nil, nil
	}

	var where map[string]string
	if len(p.Filter) > 0 {
		where = p.Filter
	}

	res, err := s.col.QueryEmbedding(ctx, p.QueryEmbedding, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("match documents: %w", err)
	}

	results := make([]Match, 0, len(res))
	for _, r := range res {
		sim := float64(r.Similarity)
		if sim <= p.MatchThreshold {
			continue
		}
		results = append(results, Match{
			Content: r.Content,
			Metadata: Metadata{
				ChatbotID: r.Metadata["chatbot_id"],
				URL:       r.Metadata["url"],
				UserID:    r.Metadata["user_id"],
			},
			Similarity: sim,
		})
	}
	return results, nil
}

func (s *ChromemStore) DeleteByChatbot(ctx context.Context, chatbotID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.col.Count()
	if err := s.col.Delete(ctx, map[string]string{"chatbot_id": chatbotID}, nil); err != nil {
		return 0, fmt.Errorf("delete documents for chatbot %s: %w", chatbotID, err)
	}
	return int64(before - s.col.Count()), nil
}

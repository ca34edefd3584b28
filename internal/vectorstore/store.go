package vectorstore

import (
	"context"
)

// Metadata links a chunk row to its chatbot. It is stored as JSON and the
// chatbot_id key is what retrieval and deletion filter on.
type Metadata struct {
	ChatbotID string `json:"chatbot_id"`
	URL       string `json:"url"`
	UserID    string `json:"user_id"`
}

// Row is one embedded chunk. Rows are insert-only.
type Row struct {
	Content   string
	Embedding []float32
	Metadata  Metadata
}

// MatchParams mirrors the match_documents database function. Filter keys are
// metadata fields that must match exactly; an empty filter matches all rows.
type MatchParams struct {
	QueryEmbedding []float32
	MatchThreshold float64
	MatchCount     int
	Filter         map[string]string
}

type Match struct {
	Content    string   `json:"content"`
	Metadata   Metadata `json:"metadata"`
	Similarity float64  `json:"similarity"`
}

type VectorStore interface {
	Insert(ctx context.Context, row Row) error
	// Match returns rows with similarity strictly above the threshold,
	// best first, at most MatchCount of them.
	Match(ctx context.Context, p MatchParams) ([]Match, error)
	DeleteByChatbot(ctx context.Context, chatbotID string) (int64, error)
}

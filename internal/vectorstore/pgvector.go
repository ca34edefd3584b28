package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) Insert(ctx context.Context, row Row) error {
	meta, err := json.Marshal(row.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO documents (content, embedding, metadata) VALUES ($1, $2, $3)`,
		row.Content, pgvector.NewVector(row.Embedding), meta,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PgVectorStore) Match(ctx context.Context, p MatchParams) ([]Match, error) {
	filter := p.Filter
	if filter == nil {
		filter = map[string]string{}
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT content, metadata, similarity FROM match_documents($1, $2, $3, $4)`,
		pgvector.NewVector(p.QueryEmbedding), p.MatchThreshold, p.MatchCount, filterJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("match documents: %w", err)
	}
	defer rows.Close()

	var results []Match
	for rows.Next() {
		var (
			m    Match
			meta []byte
		)
		if err := rows.Scan(&m.Content, &meta, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode match metadata: %w", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return results, nil
}

func (s *PgVectorStore) DeleteByChatbot(ctx context.Context, chatbotID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM documents WHERE metadata->>'chatbot_id' = $1`, chatbotID)
	if err != nil {
		return 0, fmt.Errorf("delete documents for chatbot %s: %w", chatbotID, err)
	}
	return tag.RowsAffected(), nil
}

package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *ChromemStore) {
	t.Helper()
	ctx := context.Background()
	rows := []Row{
		{Content: "bot A pricing", Embedding: []float32{1, 0, 0}, Metadata: Metadata{ChatbotID: "a", URL: "https://a.example/pricing", UserID: "u1"}},
		{Content: "bot A about", Embedding: []float32{0.9, 0.1, 0}, Metadata: Metadata{ChatbotID: "a", URL: "https://a.example/about", UserID: "u1"}},
		{Content: "bot A unrelated", Embedding: []float32{0, 0, 1}, Metadata: Metadata{ChatbotID: "a", URL: "https://a.example/misc", UserID: "u1"}},
		{Content: "bot B pricing", Embedding: []float32{1, 0, 0}, Metadata: Metadata{ChatbotID: "b", URL: "https://b.example/pricing", UserID: "u2"}},
	}
	for _, r := range rows {
		require.NoError(t, s.Insert(ctx, r))
	}
}

func TestChromemStore_MatchFiltersByChatbotAndThreshold(t *testing.T) {
	s, err := NewChromemStore("")
	require.NoError(t, err)
	seed(t, s)

	matches, err := s.Match(context.Background(), MatchParams{
		QueryEmbedding: []float32{1, 0, 0},
		MatchThreshold: 0.4,
		MatchCount:     10,
		Filter:         map[string]string{"chatbot_id": "a"},
	})
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "bot A pricing", matches[0].Content)
	assert.Equal(t, "bot A about", matches[1].Content)
	assert.GreaterOrEqual(t, matches[0].Similarity, matches[1].Similarity)
	for _, m := range matches {
		assert.Equal(t, "a", m.Metadata.ChatbotID)
		assert.Greater(t, m.Similarity, 0.4)
	}
}

func TestChromemStore_MatchCountClamped(t *testing.T) {
	s, err := NewChromemStore("")
	require.NoError(t, err)
	seed(t, s)

	matches, err := s.Match(context.Background(), MatchParams{
		QueryEmbedding: []float32{1, 0, 0},
		MatchThreshold: -1,
		MatchCount:     1,
	})
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestChromemStore_EmptyCollection(t *testing.T) {
	s, err := NewChromemStore("")
	require.NoError(t, err)

	matches, err := s.Match(context.Background(), MatchParams{QueryEmbedding: []float32{1, 0}, MatchCount: 10})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestChromemStore_DeleteByChatbot(t *testing.T) {
	s, err := NewChromemStore("")
	require.NoError(t, err)
	seed(t, s)
	ctx := context.Background()

	n, err := s.DeleteByChatbot(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	matches, err := s.Match(ctx, MatchParams{QueryEmbedding: []float32{1, 0, 0}, MatchThreshold: 0, MatchCount: 10})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].Metadata.ChatbotID)
}

func TestChromemStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewChromemStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Insert(context.Background(), Row{
		Content:   "persisted chunk",
		Embedding: []float32{0, 1},
		Metadata:  Metadata{ChatbotID: "p"},
	}))

	reopened, err := NewChromemStore(dir)
	require.NoError(t, err)
	matches, err := reopened.Match(context.Background(), MatchParams{QueryEmbedding: []float32{0, 1}, MatchCount: 5})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "persisted chunk", matches[0].Content)
}

package rag

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/askgenie/internal/conversation"
	"github.com/nikhilbhutani/askgenie/internal/models"
	"github.com/nikhilbhutani/askgenie/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memConvs struct {
	mu      sync.Mutex
	convs   map[uuid.UUID]models.Conversation
	msgs    []models.Message
	touched int
	clock   time.Time
}

func newMemConvs() *memConvs {
	return &memConvs{convs: map[uuid.UUID]models.Conversation{}, clock: time.Unix(1700000000, 0)}
}

func (m *memConvs) CreateConversation(_ context.Context, c *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[c.ID] = *c
	return nil
}

func (m *memConvs) GetConversation(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	return &c, nil
}

func (m *memConvs) ListConversations(context.Context, uuid.UUID, string) ([]models.Conversation, error) {
	return nil, nil
}

func (m *memConvs) TouchConversation(context.Context, uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched++
	return nil
}

func (m *memConvs) DeleteConversation(context.Context, uuid.UUID) error { return nil }

func (m *memConvs) AddMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	msg.ID = uuid.New()
	msg.CreatedAt = m.clock
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memConvs) RecentMessages(ctx context.Context, id uuid.UUID, limit int) ([]models.Message, error) {
	all, _ := m.ListMessages(ctx, id)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (m *memConvs) ListMessages(_ context.Context, id uuid.UUID) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.msgs {
		if msg.ConversationID == id {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type stubEmbedder struct {
	err   error
	calls int
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0, 0}, nil
}

type stubVectors struct {
	matches []vectorstore.Match
	err     error
	params  vectorstore.MatchParams
}

func (s *stubVectors) Insert(context.Context, vectorstore.Row) error { return nil }

func (s *stubVectors) Match(_ context.Context, p vectorstore.MatchParams) ([]vectorstore.Match, error) {
	s.params = p
	return s.matches, s.err
}

func (s *stubVectors) DeleteByChatbot(context.Context, string) (int64, error) { return 0, nil }

type stubGenerator struct {
	answer  string
	err     error
	prompts []string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.answer, s.err
}

func match(chatbotID uuid.UUID, url, content string) vectorstore.Match {
	return vectorstore.Match{
		Content:    content,
		Metadata:   vectorstore.Metadata{ChatbotID: chatbotID.String(), URL: url},
		Similarity: 0.8,
	}
}

func TestAnswer_GeneratesFromContext(t *testing.T) {
	bot := uuid.New()
	other := uuid.New()
	convs := newMemConvs()
	vectors := &stubVectors{matches: []vectorstore.Match{
		match(bot, "https://acme.example/admissions", "Admissions open in May."),
		match(other, "https://evil.example", "Unrelated tenant text."),
		match(bot, "https://acme.example/fees", "Fees are due in June."),
		match(bot, "https://acme.example/admissions", "Apply online."),
	}}
	gen := &stubGenerator{answer: "Admissions open in May."}
	e := NewEngine(convs, &stubEmbedder{}, vectors, gen, DefaultConfig())

	resp, err := e.Answer(context.Background(), AskRequest{
		Question:  "When do admissions open?",
		UserID:    "user-1",
		ChatbotID: bot,
	})
	require.NoError(t, err)

	assert.Equal(t, "Admissions open in May.", resp.Answer)
	assert.Equal(t, []string{"https://acme.example/admissions", "https://acme.example/fees"}, resp.Sources)
	assert.NotEqual(t, uuid.Nil, resp.ConversationID)

	assert.Equal(t, 0.4, vectors.params.MatchThreshold)
	assert.Equal(t, 10, vectors.params.MatchCount)
	assert.Equal(t, map[string]string{"chatbot_id": bot.String()}, vectors.params.Filter)

	require.Len(t, gen.prompts, 1)
	p := gen.prompts[0]
	assert.Contains(t, p, "Admissions open in May.\n\n---\n\nFees are due in June.\n\n---\n\nApply online.")
	assert.NotContains(t, p, "Unrelated tenant text.")
	assert.Contains(t, p, "User: When do admissions open?")
	assert.Contains(t, p, "QUESTION: When do admissions open?")

	conv, err := convs.GetConversation(context.Background(), resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "When do admissions open?", conv.Title)
	assert.Equal(t, "user-1", conv.UserID)

	msgs, _ := convs.ListMessages(context.Background(), resp.ConversationID)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAI, msgs[1].Role)
	assert.Equal(t, resp.Sources, msgs[1].Sources)
	assert.Equal(t, 1, convs.touched)
}

func TestAnswer_NoContextShortCircuits(t *testing.T) {
	bot := uuid.New()
	convs := newMemConvs()
	vectors := &stubVectors{matches: []vectorstore.Match{
		match(uuid.New(), "https://other.example", "Belongs to another chatbot."),
	}}
	gen := &stubGenerator{answer: "should not be used"}
	e := NewEngine(convs, &stubEmbedder{}, vectors, gen, DefaultConfig())

	resp, err := e.Answer(context.Background(), AskRequest{Question: "Anything?", UserID: "u", ChatbotID: bot})
	require.NoError(t, err)

	assert.Equal(t, NoContextAnswer, resp.Answer)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, gen.prompts)

	msgs, _ := convs.ListMessages(context.Background(), resp.ConversationID)
	require.Len(t, msgs, 2)
	assert.Equal(t, NoContextAnswer, msgs[1].Content)
	assert.Equal(t, 1, convs.touched)
}

func TestAnswer_GenerationFailureApologizes(t *testing.T) {
	bot := uuid.New()
	convs := newMemConvs()
	vectors := &stubVectors{matches: []vectorstore.Match{match(bot, "https://acme.example", "Some context.")}}
	gen := &stubGenerator{err: errors.New("all retries exhausted for gemini")}
	e := NewEngine(convs, &stubEmbedder{}, vectors, gen, DefaultConfig())

	resp, err := e.Answer(context.Background(), AskRequest{Question: "Hi?", UserID: "u", ChatbotID: bot})
	require.NoError(t, err)

	assert.Equal(t, ApologyAnswer, resp.Answer)
	assert.Empty(t, resp.Sources)

	msgs, _ := convs.ListMessages(context.Background(), resp.ConversationID)
	require.Len(t, msgs, 2)
	assert.Equal(t, ApologyAnswer, msgs[1].Content)
}

func TestAnswer_RetrievalFailureKeepsQuestion(t *testing.T) {
	tests := []struct {
		name     string
		embedder *stubEmbedder
		vectors  *stubVectors
	}{
		{"embedding", &stubEmbedder{err: errors.New("quota exceeded")}, &stubVectors{}},
		{"vector search", &stubEmbedder{}, &stubVectors{err: errors.New("function match_documents does not exist")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			convs := newMemConvs()
			gen := &stubGenerator{answer: "x"}
			e := NewEngine(convs, tt.embedder, tt.vectors, gen, DefaultConfig())

			_, err := e.Answer(context.Background(), AskRequest{Question: "Hello?", UserID: "u", ChatbotID: uuid.New()})
			require.ErrorIs(t, err, ErrRetrieval)

			require.Len(t, convs.msgs, 1)
			assert.Equal(t, models.RoleUser, convs.msgs[0].Role)
			assert.Equal(t, "Hello?", convs.msgs[0].Content)
			assert.Empty(t, gen.prompts)
			assert.Zero(t, convs.touched)
		})
	}
}

func TestAnswer_ContinuesConversation(t *testing.T) {
	bot := uuid.New()
	convs := newMemConvs()
	vectors := &stubVectors{matches: []vectorstore.Match{match(bot, "https://acme.example", "Context.")}}
	gen := &stubGenerator{answer: "First answer."}
	e := NewEngine(convs, &stubEmbedder{}, vectors, gen, DefaultConfig())

	first, err := e.Answer(context.Background(), AskRequest{Question: "First question?", UserID: "u", ChatbotID: bot})
	require.NoError(t, err)

	gen.answer = "Second answer."
	second, err := e.Answer(context.Background(), AskRequest{
		Question:       "Second question?",
		UserID:         "u",
		ChatbotID:      bot,
		ConversationID: first.ConversationID,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Len(t, convs.convs, 1)

	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[1], "User: First question?\nAI: First answer.\nUser: Second question?")

	msgs, _ := convs.ListMessages(context.Background(), first.ConversationID)
	assert.Len(t, msgs, 4)
}

func TestAnswer_HistoryWindow(t *testing.T) {
	bot := uuid.New()
	convs := newMemConvs()
	vectors := &stubVectors{matches: []vectorstore.Match{match(bot, "https://acme.example", "Context.")}}
	gen := &stubGenerator{answer: "ok"}
	cfg := DefaultConfig()
	cfg.HistoryLimit = 2
	e := NewEngine(convs, &stubEmbedder{}, vectors, gen, cfg)

	first, err := e.Answer(context.Background(), AskRequest{Question: "q1", UserID: "u", ChatbotID: bot})
	require.NoError(t, err)
	_, err = e.Answer(context.Background(), AskRequest{Question: "q2", UserID: "u", ChatbotID: bot, ConversationID: first.ConversationID})
	require.NoError(t, err)

	last := gen.prompts[len(gen.prompts)-1]
	assert.NotContains(t, last, "User: q1")
	assert.Contains(t, last, "AI: ok\nUser: q2")
}

func TestAnswer_ForeignConversationRejected(t *testing.T) {
	bot := uuid.New()
	convs := newMemConvs()
	owned := models.Conversation{ID: uuid.New(), UserID: "owner", ChatbotID: bot}
	require.NoError(t, convs.CreateConversation(context.Background(), &owned))
	e := NewEngine(convs, &stubEmbedder{}, &stubVectors{}, &stubGenerator{}, DefaultConfig())

	_, err := e.Answer(context.Background(), AskRequest{Question: "q", UserID: "intruder", ChatbotID: bot, ConversationID: owned.ID})
	assert.ErrorIs(t, err, conversation.ErrNotFound)

	_, err = e.Answer(context.Background(), AskRequest{Question: "q", UserID: "owner", ChatbotID: uuid.New(), ConversationID: owned.ID})
	assert.ErrorIs(t, err, conversation.ErrNotFound)

	_, err = e.Answer(context.Background(), AskRequest{Question: "q", UserID: "owner", ChatbotID: bot, ConversationID: uuid.New()})
	assert.ErrorIs(t, err, conversation.ErrNotFound)

	assert.Empty(t, convs.msgs)
}

func TestAnswer_Validation(t *testing.T) {
	e := NewEngine(newMemConvs(), &stubEmbedder{}, &stubVectors{}, &stubGenerator{}, DefaultConfig())

	_, err := e.Answer(context.Background(), AskRequest{Question: "   ", ChatbotID: uuid.New()})
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = e.Answer(context.Background(), AskRequest{Question: "q"})
	assert.ErrorIs(t, err, ErrMissingBot)
}

func TestUniqueSources(t *testing.T) {
	bot := uuid.New()
	got := UniqueSources([]vectorstore.Match{
		match(bot, "https://a.example/B", ""),
		match(bot, "https://a.example/b", ""),
		match(bot, "https://a.example/B", ""),
		match(bot, "", ""),
	})
	assert.Equal(t, []string{"https://a.example/B", "https://a.example/b"}, got)
}

func TestRenderTranscript(t *testing.T) {
	got := RenderTranscript([]models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAI, Content: "hello"},
	})
	assert.Equal(t, "User: hi\nAI: hello", got)
	assert.Empty(t, RenderTranscript(nil))
}

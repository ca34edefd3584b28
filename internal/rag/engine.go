package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/askgenie/internal/conversation"
	"github.com/nikhilbhutani/askgenie/internal/embedding"
	"github.com/nikhilbhutani/askgenie/internal/models"
	"github.com/nikhilbhutani/askgenie/internal/prompt"
	"github.com/nikhilbhutani/askgenie/internal/vectorstore"
	"github.com/nikhilbhutani/askgenie/pkg/tokenizer"
)

const (
	NoContextAnswer = "I don't have enough information on this topic."
	ApologyAnswer   = "I'm sorry, I'm having trouble thinking right now."
)

var (
	// ErrRetrieval covers failures between saving the question and producing
	// an answer. The question stays saved.
	ErrRetrieval     = errors.New("retrieval failed")
	ErrEmptyQuestion = errors.New("question is required")
	ErrMissingBot    = errors.New("chatbotId is required")
)

type Config struct {
	MatchThreshold float64
	MatchCount     int
	HistoryLimit   int
}

func DefaultConfig() Config {
	return Config{
		MatchThreshold: 0.4,
		MatchCount:     10,
		HistoryLimit:   20,
	}
}

type AskRequest struct {
	Question  string
	UserID    string
	ChatbotID uuid.UUID
	// ConversationID is optional; a new conversation is started when nil.
	ConversationID uuid.UUID
}

type AskResponse struct {
	Answer         string    `json:"answer"`
	Sources        []string  `json:"sources"`
	ConversationID uuid.UUID `json:"conversationId"`
}

type Engine struct {
	convs    conversation.Repository
	embedder embedding.Embedder
	vectors  vectorstore.VectorStore
	gen      Generator
	cfg      Config
}

func NewEngine(convs conversation.Repository, e embedding.Embedder, v vectorstore.VectorStore, gen Generator, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MatchCount <= 0 {
		cfg.MatchCount = def.MatchCount
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	return &Engine{
		convs:    convs,
		embedder: e,
		vectors:  v,
		gen:      gen,
		cfg:      cfg,
	}
}

// Answer runs one question/answer turn. The question is saved before any
// model call. A failed generation still completes the turn with
// ApologyAnswer; a failed lookup returns an error matching ErrRetrieval.
func (e *Engine) Answer(ctx context.Context, req AskRequest) (*AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if req.ChatbotID == uuid.Nil {
		return nil, ErrMissingBot
	}

	conv, err := e.resolveConversation(ctx, req, question)
	if err != nil {
		return nil, err
	}
	log := slog.With("chatbot_id", req.ChatbotID, "conversation_id", conv.ID)

	if err := e.convs.AddMessage(ctx, &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        question,
	}); err != nil {
		return nil, fmt.Errorf("save question: %w", err)
	}

	matches, transcript, err := e.retrieve(ctx, conv.ID, req.ChatbotID, question)
	if err != nil {
		log.Error("retrieval failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	var answer string
	sources := []string{}
	if len(matches) == 0 {
		log.Info("no relevant context found")
		answer = NoContextAnswer
	} else {
		text := prompt.RenderAnswer(BuildContext(matches), transcript, question)
		log.Info("generating answer", "chunks", len(matches), "prompt_tokens", tokenizer.CountTokens(text))

		answer, err = e.gen.Generate(ctx, text)
		if err != nil {
			log.Error("generation failed", "error", err)
			answer = ApologyAnswer
		} else {
			sources = UniqueSources(matches)
		}
	}

	if err := e.convs.AddMessage(ctx, &models.Message{
		ConversationID: conv.ID,
		Role:           models.RoleAI,
		Content:        answer,
		Sources:        sources,
	}); err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}
	if err := e.convs.TouchConversation(ctx, conv.ID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	return &AskResponse{
		Answer:         answer,
		Sources:        sources,
		ConversationID: conv.ID,
	}, nil
}

func (e *Engine) resolveConversation(ctx context.Context, req AskRequest, question string) (*models.Conversation, error) {
	if req.ConversationID != uuid.Nil {
		conv, err := e.convs.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return nil, err
		}
		if conv.ChatbotID != req.ChatbotID || (req.UserID != "" && conv.UserID != req.UserID) {
			return nil, conversation.ErrNotFound
		}
		return conv, nil
	}

	conv := &models.Conversation{
		ID:        uuid.New(),
		UserID:    req.UserID,
		ChatbotID: req.ChatbotID,
		Title:     conversation.TitleFrom(question),
	}
	if err := e.convs.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("start conversation: %w", err)
	}
	return conv, nil
}

// retrieve loads the recent transcript and the chatbot's relevant chunks.
func (e *Engine) retrieve(ctx context.Context, convID, chatbotID uuid.UUID, question string) ([]vectorstore.Match, string, error) {
	history, err := e.convs.RecentMessages(ctx, convID, e.cfg.HistoryLimit)
	if err != nil {
		return nil, "", fmt.Errorf("load history: %w", err)
	}

	vec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, "", fmt.Errorf("embed question: %w", err)
	}

	id := chatbotID.String()
	matches, err := e.vectors.Match(ctx, vectorstore.MatchParams{
		QueryEmbedding: vec,
		MatchThreshold: e.cfg.MatchThreshold,
		MatchCount:     e.cfg.MatchCount,
		Filter:         map[string]string{"chatbot_id": id},
	})
	if err != nil {
		return nil, "", fmt.Errorf("match documents: %w", err)
	}

	return FilterByChatbot(matches, id), RenderTranscript(history), nil
}

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/askgenie/internal/auth"
	"github.com/nikhilbhutani/askgenie/internal/conversation"
	"github.com/nikhilbhutani/askgenie/internal/rag"
)

type Answerer interface {
	Answer(ctx context.Context, req rag.AskRequest) (*rag.AskResponse, error)
}

type ChatHandler struct {
	engine Answerer
}

func NewChatHandler(engine Answerer) *ChatHandler {
	return &ChatHandler{engine: engine}
}

type askRequest struct {
	Question       string `json:"question"`
	UserID         string `json:"userId"`
	ChatbotID      string `json:"chatbotId"`
	ConversationID string `json:"conversationId"`
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" || req.ChatbotID == "" {
		writeError(w, http.StatusBadRequest, "Question and ChatbotID required")
		return
	}

	botID, err := uuid.Parse(req.ChatbotID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chatbotId")
		return
	}
	var convID uuid.UUID
	if req.ConversationID != "" {
		if convID, err = uuid.Parse(req.ConversationID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid conversationId")
			return
		}
	}

	resp, err := h.engine.Answer(r.Context(), rag.AskRequest{
		Question:       req.Question,
		UserID:         auth.ResolveUserID(r.Context(), req.UserID),
		ChatbotID:      botID,
		ConversationID: convID,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, rag.ErrEmptyQuestion), errors.Is(err, rag.ErrMissingBot):
		writeError(w, http.StatusBadRequest, "Question and ChatbotID required")
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, "Conversation not found")
	default:
		slog.Error("answer failed", "chatbot_id", botID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/askgenie/internal/auth"
	"github.com/nikhilbhutani/askgenie/internal/conversation"
	"github.com/nikhilbhutani/askgenie/internal/models"
)

type ConversationHandler struct {
	convs conversation.Repository
}

func NewConversationHandler(convs conversation.Repository) *ConversationHandler {
	return &ConversationHandler{convs: convs}
}

type createConversationRequest struct {
	UserID    string `json:"userId"`
	ChatbotID string `json:"chatbotId"`
	Title     string `json:"title"`
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID := auth.ResolveUserID(r.Context(), req.UserID)
	botID, err := uuid.Parse(req.ChatbotID)
	if userID == "" || err != nil {
		writeError(w, http.StatusBadRequest, "userId and chatbotId are required")
		return
	}

	title := conversation.TitleFrom(req.Title)
	if title == "" {
		title = models.DefaultConversationTitle
	}

	conv := &models.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		ChatbotID: botID,
		Title:     title,
	}
	if err := h.convs.CreateConversation(r.Context(), conv); err != nil {
		slog.Error("create conversation failed", "chatbot_id", botID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

// List returns a user's conversations with one chatbot, most recent first.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	botID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	userID := auth.ResolveUserID(r.Context(), r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	convs, err := h.convs.ListConversations(r.Context(), botID, userID)
	if err != nil {
		slog.Error("list conversations failed", "chatbot_id", botID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch conversations")
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs, "count": len(convs)})
}

func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.convs.GetConversation(r.Context(), id); err != nil {
		h.writeLookupError(w, id, err)
		return
	}

	msgs, err := h.convs.ListMessages(r.Context(), id)
	if err != nil {
		slog.Error("list messages failed", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "count": len(msgs)})
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.convs.DeleteConversation(r.Context(), id); err != nil {
		h.writeLookupError(w, id, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "message": "Conversation deleted"})
}

func (h *ConversationHandler) writeLookupError(w http.ResponseWriter, id uuid.UUID, err error) {
	if errors.Is(err, conversation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	slog.Error("conversation lookup failed", "conversation_id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "Failed to process conversation")
}

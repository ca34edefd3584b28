package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikhilbhutani/askgenie/internal/auth"
	"github.com/nikhilbhutani/askgenie/internal/chatbot"
	"github.com/nikhilbhutani/askgenie/internal/ingest"
	"github.com/nikhilbhutani/askgenie/internal/models"
)

// Ingester creates chatbot records and indexes their sites.
type Ingester interface {
	Create(ctx context.Context, req ingest.Request) (*models.Chatbot, error)
	Index(ctx context.Context, bot *models.Chatbot) (*ingest.Result, error)
	Fail(ctx context.Context, id uuid.UUID)
}

type ChatbotService interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Chatbot, error)
	ListByUser(ctx context.Context, userID string) ([]models.Chatbot, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Enqueuer hands indexing to the background worker.
type Enqueuer interface {
	EnqueueChatbotIngest(ctx context.Context, chatbotID uuid.UUID) error
}

type ChatbotHandler struct {
	ingester Ingester
	bots     ChatbotService
	queue    Enqueuer
	async    bool
}

// NewChatbotHandler builds the chatbot endpoints. q may be nil, in which case
// every creation is indexed within the request. asyncDefault applies when the
// request has no async query parameter.
func NewChatbotHandler(ing Ingester, bots ChatbotService, q Enqueuer, asyncDefault bool) *ChatbotHandler {
	return &ChatbotHandler{ingester: ing, bots: bots, queue: q, async: asyncDefault}
}

type createChatbotRequest struct {
	URL    string `json:"url"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

func (h *ChatbotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createChatbotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID := auth.ResolveUserID(r.Context(), req.UserID)
	if req.URL == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "url and userId are required")
		return
	}
	async, err := h.wantAsync(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bot, err := h.ingester.Create(r.Context(), ingest.Request{URL: req.URL, UserID: userID, Name: req.Name})
	if err != nil {
		slog.Error("create chatbot failed", "url", req.URL, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create chatbot")
		return
	}

	if async {
		if err := h.queue.EnqueueChatbotIngest(r.Context(), bot.ID); err != nil {
			slog.Error("enqueue ingestion failed", "chatbot_id", bot.ID, "error", err)
			h.ingester.Fail(r.Context(), bot.ID)
			writeError(w, http.StatusInternalServerError, "Failed to create chatbot")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"chatbotId": bot.ID,
			"status":    bot.Status,
			"chatbot":   bot,
		})
		return
	}

	// Indexing outlives a client that disconnects mid-crawl; the record must
	// still reach ready or error.
	res, err := h.ingester.Index(context.WithoutCancel(r.Context()), bot)
	if err != nil {
		writeIngestError(w, bot.ID, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"chatbotId": bot.ID,
		"status":    models.ChatbotStatusReady,
		"chatbot":   res.Chatbot,
		"pages":     res.Pages,
		"chunks":    res.Stored,
	})
}

// wantAsync reads the async query parameter. Asking for background indexing
// without a queue is a client error rather than a silent synchronous run.
func (h *ChatbotHandler) wantAsync(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("async")
	if v == "" {
		return h.async && h.queue != nil, nil
	}
	async, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New("async must be true or false")
	}
	if async && h.queue == nil {
		return false, errors.New("async indexing is not enabled on this server")
	}
	return async, nil
}

func writeIngestError(w http.ResponseWriter, id uuid.UUID, err error) {
	status, msg := http.StatusInternalServerError, "Failed to create chatbot"
	switch {
	case errors.Is(err, ingest.ErrCrawlFailed):
		status, msg = http.StatusUnprocessableEntity, "Failed to crawl website"
	case errors.Is(err, ingest.ErrNoChunksIndexed):
		status, msg = http.StatusUnprocessableEntity, "No content could be indexed from this website"
	}
	writeJSON(w, status, map[string]any{
		"error":     msg,
		"chatbotId": id,
		"status":    models.ChatbotStatusError,
	})
}

func (h *ChatbotHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.ResolveUserID(r.Context(), r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	bots, err := h.bots.ListByUser(r.Context(), userID)
	if err != nil {
		slog.Error("list chatbots failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch chatbots")
		return
	}
	if bots == nil {
		bots = []models.Chatbot{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"chatbots": bots, "count": len(bots)})
}

func (h *ChatbotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := chatbotID(w, r)
	if !ok {
		return
	}

	bot, err := h.bots.Get(r.Context(), id)
	if errors.Is(err, chatbot.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Chatbot not found")
		return
	}
	if err != nil {
		slog.Error("get chatbot failed", "chatbot_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch chatbot")
		return
	}

	writeJSON(w, http.StatusOK, bot)
}

func (h *ChatbotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := chatbotID(w, r)
	if !ok {
		return
	}

	err := h.bots.Delete(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "message": "Chatbot deleted"})
	case errors.Is(err, chatbot.ErrNotFound):
		writeError(w, http.StatusNotFound, "Chatbot not found")
	case errors.Is(err, chatbot.ErrPartialDelete):
		writeJSON(w, http.StatusMultiStatus, map[string]string{
			"status":  "partial_failure",
			"message": "Bot deleted but failed to clear vectors",
		})
	default:
		slog.Error("delete chatbot failed", "chatbot_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete chatbot")
	}
}

// chatbotID reads the {id} path parameter. An id that does not parse cannot
// name a chatbot, so it is reported as not found.
func chatbotID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Chatbot not found")
		return uuid.Nil, false
	}
	return id, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

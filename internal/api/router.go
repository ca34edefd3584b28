package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nikhilbhutani/askgenie/internal/api/handlers"
	"github.com/nikhilbhutani/askgenie/internal/api/middleware"
	"github.com/nikhilbhutani/askgenie/internal/auth"
	"github.com/nikhilbhutani/askgenie/internal/config"
	"github.com/nikhilbhutani/askgenie/internal/conversation"
)

// Services are the domain components behind the HTTP routes. Queue is nil
// when background ingestion is not available.
type Services struct {
	Ingester      handlers.Ingester
	Chatbots      handlers.ChatbotService
	Queue         handlers.Enqueuer
	Engine        handlers.Answerer
	Conversations conversation.Repository
	Health        *handlers.HealthHandler
}

type Router struct {
	mux *chi.Mux
	cfg *config.Config
	svc Services
	jwt *auth.JWTMiddleware
	rl  *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, svc Services) *Router {
	return &Router{
		mux: chi.NewRouter(),
		cfg: cfg,
		svc: svc,
		jwt: auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
		rl:  middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateBurst),
	}
}

// Setup wires the routes. Idle rate-limit buckets are swept until ctx ends.
func (rt *Router) Setup(ctx context.Context) http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	go rt.sweep(ctx)

	health := rt.svc.Health
	if health == nil {
		health = handlers.NewHealthHandlerWithChecks(nil)
	}
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.rl.Limit)
		r.Use(rt.jwt.Identify)

		botH := handlers.NewChatbotHandler(rt.svc.Ingester, rt.svc.Chatbots, rt.svc.Queue, rt.cfg.Ingest.Async)
		convH := handlers.NewConversationHandler(rt.svc.Conversations)
		r.Route("/chatbots", func(r chi.Router) {
			r.Post("/", botH.Create)
			r.Get("/", botH.List)
			r.Get("/{id}", botH.Get)
			r.Delete("/{id}", botH.Delete)
			r.Get("/{id}/conversations", convH.List)
		})

		chatH := handlers.NewChatHandler(rt.svc.Engine)
		r.Post("/chat", chatH.Ask)

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", convH.Create)
			r.Get("/{id}/messages", convH.Messages)
			r.Delete("/{id}", convH.Delete)
		})
	})

	return r
}

func (rt *Router) sweep(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rt.rl.Sweep(3 * time.Minute)
		}
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikhilbhutani/askgenie/internal/api"
	"github.com/nikhilbhutani/askgenie/internal/api/handlers"
	"github.com/nikhilbhutani/askgenie/internal/app"
	"github.com/nikhilbhutani/askgenie/internal/config"
	"github.com/nikhilbhutani/askgenie/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	svc := api.Services{
		Ingester:      a.Pipeline,
		Chatbots:      a.Chatbots,
		Engine:        a.Engine,
		Conversations: a.Conversations,
		Health:        handlers.NewHealthHandler(a.DB, a.Redis),
	}
	if cfg.Ingest.Async {
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		svc.Queue = qc
	}

	router := api.NewRouter(cfg, svc)
	handler := router.Setup(ctx)

	// Synchronous chatbot creation crawls the whole site inside the request.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "async_ingest", cfg.Ingest.Async)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}

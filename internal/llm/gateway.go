package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/nikhilbhutani/askgenie/internal/config"
)

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	fallbackProvider string
	embedProvider    string
	maxRetries       int
	backoff          func(attempt int) time.Duration
}

// NewGateway registers every provider that has credentials in cfg. Ollama is
// always registered when a URL is set since it needs no key.
func NewGateway(ctx context.Context, cfg config.LLMConfig) (Gateway, error) {
	providers := make(map[string]Provider)

	switch {
	case cfg.OpenAIKey != "" && cfg.OpenAIBaseURL != "":
		providers["openai"] = NewOpenAIProviderWithBaseURL(cfg.OpenAIKey, cfg.OpenAIBaseURL)
	case cfg.OpenAIKey != "":
		providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
	}
	if cfg.AnthropicKey != "" {
		providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}
	if cfg.GeminiKey != "" {
		p, err := NewGeminiProvider(ctx, cfg.GeminiKey)
		if err != nil {
			return nil, fmt.Errorf("init gemini provider: %w", err)
		}
		providers["gemini"] = p
	}
	if cfg.OllamaURL != "" {
		providers["ollama"] = NewOllamaProvider(cfg.OllamaURL)
	}

	return NewGatewayWithProviders(providers, cfg), nil
}

// NewGatewayWithProviders builds a gateway over an explicit provider set.
func NewGatewayWithProviders(providers map[string]Provider, cfg config.LLMConfig) Gateway {
	return &gateway{
		providers:        providers,
		defaultProvider:  cfg.DefaultProvider,
		fallbackProvider: cfg.FallbackProvider,
		embedProvider:    cfg.EmbedProvider,
		maxRetries:       cfg.MaxRetries,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * 500 * time.Millisecond
		},
	}
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	resp, err := g.chatWithRetry(ctx, providerName, req)
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != providerName && ctx.Err() == nil {
		slog.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		// The requested model belongs to the primary vendor.
		fallbackReq := req
		fallbackReq.Model = ""
		if fp, perr := g.Provider(g.fallbackProvider); perr == nil && len(fp.Models()) > 0 {
			fallbackReq.Model = fp.Models()[0]
		}
		return g.chatWithRetry(ctx, g.fallbackProvider, fallbackReq)
	}
	return resp, err
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	var resp *ChatResponse
	err = g.retry(ctx, providerName, func() error {
		var cerr error
		resp, cerr = p.ChatCompletion(ctx, req)
		return cerr
	})
	return resp, err
}

func (g *gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.embedProvider
	}
	if providerName == "" {
		providerName = g.defaultProvider
	}

	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	var resp *EmbeddingResponse
	err = g.retry(ctx, providerName, func() error {
		var eerr error
		resp, eerr = p.GenerateEmbedding(ctx, req)
		return eerr
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(req.Input) {
		return nil, fmt.Errorf("%s returned %d embeddings for %d inputs", providerName, len(resp.Embeddings), len(req.Input))
	}
	return resp, nil
}

func (g *gateway) retry(ctx context.Context, providerName string, call func() error) error {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.backoff(attempt)):
			}
			slog.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}

		err := call()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnsupported) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
}

func (g *gateway) ListModels() []ModelInfo {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	var models []ModelInfo
	for _, name := range names {
		p := g.providers[name]
		for _, m := range p.Models() {
			kind := "chat"
			if strings.Contains(m, "embed") {
				kind = "embedding"
			}
			models = append(models, ModelInfo{
				Provider: p.Name(),
				Model:    m,
				Type:     kind,
			})
		}
	}
	return models
}

func (g *gateway) Close() error {
	var errs []error
	for _, p := range g.providers {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

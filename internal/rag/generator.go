package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/askgenie/internal/llm"
)

// Generator produces the full answer text for a prompt in one call.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GatewayGenerator struct {
	gateway     llm.Gateway
	provider    string
	model       string
	temperature float64
}

func NewGatewayGenerator(gw llm.Gateway, provider, model string, temperature float64) *GatewayGenerator {
	if temperature <= 0 {
		temperature = 0.3
	}
	return &GatewayGenerator{
		gateway:     gw,
		provider:    provider,
		model:       model,
		temperature: temperature,
	}
}

func (g *GatewayGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.gateway.Chat(ctx, llm.ChatRequest{
		Provider:    g.provider,
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	slog.Debug("answer generated",
		"provider", resp.Provider,
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"cost_usd", resp.CostUSD,
		"latency_ms", resp.LatencyMs,
	)

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", errors.New("generate answer: empty response")
	}
	return answer, nil
}

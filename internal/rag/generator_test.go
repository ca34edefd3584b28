package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/nikhilbhutani/askgenie/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatGateway struct {
	llm.Gateway
	resp *llm.ChatResponse
	err  error
	req  llm.ChatRequest
}

func (g *chatGateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	g.req = req
	return g.resp, g.err
}

func TestGatewayGenerator(t *testing.T) {
	gw := &chatGateway{resp: &llm.ChatResponse{Provider: "gemini", Model: "gemini-1.5-flash", Content: "  Answer.\n"}}
	gen := NewGatewayGenerator(gw, "gemini", "gemini-1.5-flash", 0)

	out, err := gen.Generate(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "Answer.", out)

	assert.Equal(t, "gemini", gw.req.Provider)
	assert.Equal(t, "gemini-1.5-flash", gw.req.Model)
	assert.Equal(t, 0.3, gw.req.Temperature)
	require.Len(t, gw.req.Messages, 1)
	assert.Equal(t, llm.Message{Role: "user", Content: "the prompt"}, gw.req.Messages[0])
}

func TestGatewayGenerator_Errors(t *testing.T) {
	gen := NewGatewayGenerator(&chatGateway{err: errors.New("boom")}, "", "", 0.3)
	_, err := gen.Generate(context.Background(), "p")
	assert.ErrorContains(t, err, "boom")

	gen = NewGatewayGenerator(&chatGateway{resp: &llm.ChatResponse{Content: "   "}}, "", "", 0.3)
	_, err = gen.Generate(context.Background(), "p")
	assert.ErrorContains(t, err, "empty response")
}

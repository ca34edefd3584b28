package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: cl}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Models() []string {
	return []string{
		"gemini-1.5-flash", "gemini-1.5-pro", "gemini-2.0-flash",
		"text-embedding-004",
	}
}

func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *GeminiProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	m := p.client.GenerativeModel(model)
	if req.Temperature > 0 {
		m.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.TopP > 0 {
		m.SetTopP(float32(req.TopP))
	}
	if len(req.Stop) > 0 {
		m.StopSequences = req.Stop
	}

	system, history, last := toGeminiContents(req.Messages)
	if system != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	if last == "" {
		return nil, fmt.Errorf("gemini chat: no user message")
	}

	var (
		resp *genai.GenerateContentResponse
		err  error
	)
	if len(history) == 0 {
		resp, err = m.GenerateContent(ctx, genai.Text(last))
	} else {
		cs := m.StartChat()
		cs.History = history
		resp, err = cs.SendMessage(ctx, genai.Text(last))
	}
	if err != nil {
		return nil, fmt.Errorf("gemini chat: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini chat: empty candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}

	var inputTokens, outputTokens, totalTokens int
	if u := resp.UsageMetadata; u != nil {
		inputTokens = int(u.PromptTokenCount)
		outputTokens = int(u.CandidatesTokenCount)
		totalTokens = int(u.TotalTokenCount)
	}

	return &ChatResponse{
		Provider:     "gemini",
		Model:        model,
		Content:      b.String(),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  totalTokens,
		CostUSD:      CalculateCost(model, inputTokens, outputTokens),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func (p *GeminiProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	model := req.Model
	if model == "" {
		model = "text-embedding-004"
	}
	if len(req.Input) == 0 {
		return &EmbeddingResponse{Provider: "gemini", Model: model}, nil
	}

	em := p.client.EmbeddingModel(model)

	if len(req.Input) == 1 {
		res, err := em.EmbedContent(ctx, genai.Text(req.Input[0]))
		if err != nil {
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		if res.Embedding == nil {
			return nil, fmt.Errorf("gemini embed: empty embedding")
		}
		return &EmbeddingResponse{
			Provider:   "gemini",
			Model:      model,
			Embeddings: [][]float32{res.Embedding.Values},
		}, nil
	}

	batch := em.NewBatch()
	for _, t := range req.Input {
		batch.AddContent(genai.Text(t))
	}
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}

	out := make([][]float32, 0, len(res.Embeddings))
	for _, e := range res.Embeddings {
		out = append(out, e.Values)
	}
	return &EmbeddingResponse{
		Provider:   "gemini",
		Model:      model,
		Embeddings: out,
	}, nil
}

// toGeminiContents splits a chat transcript into a system instruction, the
// prior turns, and the final user message that is sent.
func toGeminiContents(in []Message) (string, []*genai.Content, string) {
	var system []string
	var turns []Message
	for _, m := range in {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}

	var last string
	if n := len(turns); n > 0 && turns[n-1].Role == "user" {
		last = turns[n-1].Content
		turns = turns[:n-1]
	}

	history := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == "assistant" {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(t.Content)},
		})
	}
	return strings.Join(system, "\n\n"), history, last
}

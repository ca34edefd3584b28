package embedding

import (
	"context"
	"testing"

	"github.com/nikhilbhutani/askgenie/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	llm.Gateway
	batches [][]string
}

func (f *fakeGateway) Embed(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	f.batches = append(f.batches, req.Input)
	out := make([][]float32, len(req.Input))
	for i := range out {
		out[i] = []float32{1}
	}
	return &llm.EmbeddingResponse{Embeddings: out}, nil
}

func TestServiceEmbedBatch_SplitsIntoHundreds(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewService(gw, "gemini", "")

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = "t"
	}

	vecs, err := svc.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, 250)
	require.Len(t, gw.batches, 3)
	assert.Len(t, gw.batches[0], 100)
	assert.Len(t, gw.batches[2], 50)
	assert.Equal(t, "gemini/text-embedding-004", svc.Model())
}

func TestServiceEmbed_Single(t *testing.T) {
	svc := NewService(&fakeGateway{}, "openai", "text-embedding-3-small")

	vec, err := svc.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
}

package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nikhilbhutani/askgenie/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 0.25}, nil
}

func newCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewCache(client, "emb:"), mr
}

func TestCachedEmbedder_HitSkipsModel(t *testing.T) {
	c, _ := newCache(t)
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, c, "gemini/text-embedding-004", time.Hour)
	ctx := context.Background()

	first, err := e.Embed(ctx, "pricing page")
	require.NoError(t, err)
	second, err := e.Embed(ctx, "pricing page")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedEmbedder_KeyIncludesModel(t *testing.T) {
	c, _ := newCache(t)
	inner := &countingEmbedder{}
	ctx := context.Background()

	_, err := NewCachedEmbedder(inner, c, "model-a", time.Hour).Embed(ctx, "same text")
	require.NoError(t, err)
	_, err = NewCachedEmbedder(inner, c, "model-b", time.Hour).Embed(ctx, "same text")
	require.NoError(t, err)

	assert.Equal(t, int32(2), inner.calls.Load())
	assert.NotEqual(t, cacheKey("model-a", "same text"), cacheKey("model-b", "same text"))
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	c, mr := newCache(t)
	inner := &countingEmbedder{err: errors.New("quota")}
	e := NewCachedEmbedder(inner, c, "m", time.Hour)

	_, err := e.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Empty(t, mr.Keys())
}

func TestCachedEmbedder_CacheDownFallsThrough(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, cache.NewCache(client, "emb:"), "m", time.Hour)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0.25}, vec)
	assert.Equal(t, int32(1), inner.calls.Load())
}

package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/askgenie/internal/cache"
)

// CachedEmbedder serves repeated texts from Redis. Cache failures never fail
// an embedding call.
type CachedEmbedder struct {
	next  Embedder
	cache *cache.Cache
	model string
	ttl   time.Duration
}

func NewCachedEmbedder(next Embedder, c *cache.Cache, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: c, model: model, ttl: ttl}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(e.model, text)

	var vec []float32
	err := e.cache.Get(ctx, key, &vec)
	if err == nil && len(vec) > 0 {
		return vec, nil
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		slog.Warn("embedding cache read failed", "error", err)
	}

	vec, err = e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.Set(ctx, key, vec, e.ttl); err != nil {
		slog.Warn("embedding cache write failed", "error", err)
	}
	return vec, nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

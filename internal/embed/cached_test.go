package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps StaticEmbedder and counts backend calls.
type countingEmbedder struct {
	*StaticEmbedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_HitsSkipBackend(t *testing.T) {
	// Given: a cached embedder
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 16)
	ctx := context.Background()

	// When: embedding the same text twice
	a, err := cached.Embed(ctx, "timpris")
	require.NoError(t, err)
	b, err := cached.Embed(ctx, "timpris")
	require.NoError(t, err)

	// Then: one backend call, identical vectors
	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, a, b)
}

func TestCachedEmbedder_BatchPartialHits(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 16)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "ett")
	require.NoError(t, err)
	inner.calls.Store(0)

	// When: a batch with one cached and two new texts
	vecs, err := cached.EmbedBatch(ctx, []string{"ett", "två", "tre"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	// Then: only the uncached texts hit the backend
	assert.Equal(t, int64(2), inner.calls.Load())

	direct, err := NewStaticEmbedder().Embed(ctx, "ett")
	require.NoError(t, err)
	assert.Equal(t, direct, vecs[0])
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := NewStaticEmbedder()
	cached := NewCachedEmbedder(inner, 0) // 0 falls back to default size

	assert.Equal(t, inner.Dimensions(), cached.Dimensions())
	assert.Equal(t, inner.ModelName(), cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
	assert.Same(t, inner, cached.Inner())
}

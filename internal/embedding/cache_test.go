package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedEmbedder_ReusesResults(t *testing.T) {
	inner := NewStaticEmbedder(2, map[string][]float32{"a": {1, 0}, "b": {0, 1}, "c": {1, 1}})
	c, err := NewCachedEmbedder(inner, 2)
	require.NoError(t, err)
	ctx := context.Background()

	v, err := c.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
	_, err = c.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.Calls())

	// Mutating a returned vector must not poison the cache.
	v[0] = 42
	again, err := c.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, float32(1), again[0])

	_, _ = c.Embed(ctx, "b")
	_, _ = c.Embed(ctx, "c") // evicts a
	assert.Equal(t, 2, c.Len())
	_, _ = c.Embed(ctx, "a")
	assert.Equal(t, 4, inner.Calls())
	assert.Equal(t, 2, c.Dimensions())
}

func TestCachedEmbedder_DoesNotCacheErrors(t *testing.T) {
	inner := NewStaticEmbedder(2, nil)
	inner.Err = errors.New("provider down")
	c, err := NewCachedEmbedder(inner, 4)
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestNewCachedEmbedder_InvalidSize(t *testing.T) {
	_, err := NewCachedEmbedder(NewMockEmbedder(4), 0)
	assert.Error(t, err)
}

package mock

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedIsDeterministic(t *testing.T) {
	c := NewClient(nil)
	ctx := context.Background()

	a, err := c.Embed(ctx, "hello world")
	require.NoError(t, err)
	b, err := c.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestEmbedDiffersAcrossTexts(t *testing.T) {
	c := NewClient(nil)
	ctx := context.Background()

	a, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	b, err := c.Embed(ctx, "goodbye")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestEmbedProducesUnitVectors(t *testing.T) {
	c := NewClient(&Config{Dimensions: 64})
	ctx := context.Background()

	v, err := c.Embed(ctx, "some text")
	require.NoError(t, err)
	require.Len(t, v, 64)

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestDimensions(t *testing.T) {
	assert.Equal(t, DefaultDimensions, NewClient(nil).Dimensions())
	assert.Equal(t, 128, NewClient(&Config{Dimensions: 128}).Dimensions())
}

func TestEmbedBatchMatchesEmbed(t *testing.T) {
	c := NewClient(nil)
	ctx := context.Background()

	texts := []string{"one", "two", "three"}
	batch, err := c.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := c.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

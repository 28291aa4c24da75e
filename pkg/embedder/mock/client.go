// Package mock provides a deterministic embedding provider for tests and
// offline development.
//
// Vectors are derived from a hash of the input text, so identical texts
// always produce identical embeddings and no network access is needed. The
// vectors carry no semantic meaning.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultDimensions is the vector size used when none is configured.
const DefaultDimensions = 384

// Client implements embedder.Provider with hash-derived pseudo-random vectors.
type Client struct {
	dimensions int
}

// Config contains configuration for the mock embedder.
type Config struct {
	// Dimensions is the vector size to produce (0 = DefaultDimensions).
	Dimensions int
}

// NewClient creates a new mock embedder.
func NewClient(cfg *Config) *Client {
	dimensions := DefaultDimensions
	if cfg != nil && cfg.Dimensions > 0 {
		dimensions = cfg.Dimensions
	}
	return &Client{dimensions: dimensions}
}

// Embed returns a deterministic unit vector derived from the text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	vector := make([]float64, c.dimensions)
	var norm float64
	for i := range vector {
		// Linear congruential step over the hash state.
		state = state*6364136223846793005 + 1442695040888963407
		vector[i] = float64(int64(state>>11))/float64(1<<52) - 1
		norm += vector[i] * vector[i]
	}

	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vector {
			vector[i] /= norm
		}
	}

	return vector, nil
}

// EmbedBatch embeds each text independently.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	embeddings := make([][]float64, len(texts))
	for i, text := range texts {
		embedding, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// Dimensions returns the configured vector size.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}

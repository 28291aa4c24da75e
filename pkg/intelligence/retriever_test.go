package intelligence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmry-ai/mmry-go/pkg/storage"
	memstore "github.com/mmry-ai/mmry-go/pkg/storage/memory"
)

func insertMemory(t *testing.T, store storage.VectorStore, id int64, userID, content string, embedding []float64, createdAt time.Time) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), &storage.Memory{
		ID: id, UserID: userID, Content: content, Embedding: embedding,
		CreatedAt: createdAt, UpdatedAt: createdAt,
	}))
}

func TestRetrieveEmptyStoreReturnsSentinel(t *testing.T) {
	store := memstore.NewStore(nil)
	provider := &fakeLLM{response: "should not be called"}
	emb := &fakeEmbedder{fallback: []float64{1, 0}}
	r := NewRetriever(store, emb, NewContextBuilder(provider), nil)

	result, err := r.Retrieve(context.Background(), "alice", "anything", 3)
	require.NoError(t, err)

	assert.Empty(t, result.Candidates)
	assert.Equal(t, EmptyContextSummary, result.ContextSummary)
	assert.Empty(t, provider.prompts, "LLM must not be called for an empty result")
}

func TestRetrieveRanksByDecayAdjustedScore(t *testing.T) {
	store := memstore.NewStore(nil)
	provider := &fakeLLM{response: "a summary paragraph"}
	emb := &fakeEmbedder{fallback: []float64{1, 0}}
	r := NewRetriever(store, emb, NewContextBuilder(provider), &RetrieverConfig{
		DecayHalfLife: 10 * time.Hour,
	})

	now := time.Now().UTC()
	// Slightly more similar but much older vs slightly less similar but
	// fresh: decay must reorder them.
	insertMemory(t, store, 1, "alice", "old near-match", []float64{1, 0}, now.Add(-100*time.Hour))
	insertMemory(t, store, 2, "alice", "fresh close-match", []float64{0.95, 0.312}, now)

	result, err := r.Retrieve(context.Background(), "alice", "query", 2)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)

	assert.Equal(t, int64(2), result.Candidates[0].Memory.ID)
	assert.Equal(t, int64(1), result.Candidates[1].Memory.ID)
	assert.Greater(t, result.Candidates[0].RankScore, result.Candidates[1].RankScore)
	assert.Equal(t, "a summary paragraph", result.ContextSummary)
}

func TestRetrieveTruncatesToTopK(t *testing.T) {
	store := memstore.NewStore(nil)
	provider := &fakeLLM{response: "summary"}
	emb := &fakeEmbedder{fallback: []float64{1, 0}}
	r := NewRetriever(store, emb, NewContextBuilder(provider), nil)

	now := time.Now().UTC()
	for i := int64(1); i <= 10; i++ {
		insertMemory(t, store, i, "alice", "memory", []float64{1, 0}, now)
	}

	result, err := r.Retrieve(context.Background(), "alice", "query", 3)
	require.NoError(t, err)
	assert.Len(t, result.Candidates, 3)
}

func TestRetrieveDefaultsTopK(t *testing.T) {
	store := memstore.NewStore(nil)
	provider := &fakeLLM{response: "summary"}
	emb := &fakeEmbedder{fallback: []float64{1, 0}}
	r := NewRetriever(store, emb, NewContextBuilder(provider), nil)

	now := time.Now().UTC()
	for i := int64(1); i <= 10; i++ {
		insertMemory(t, store, i, "alice", "memory", []float64{1, 0}, now)
	}

	result, err := r.Retrieve(context.Background(), "alice", "query", 0)
	require.NoError(t, err)
	assert.Len(t, result.Candidates, DefaultTopK)
}

func TestRetrieveScopesToOwner(t *testing.T) {
	store := memstore.NewStore(nil)
	provider := &fakeLLM{response: "summary"}
	emb := &fakeEmbedder{fallback: []float64{1, 0}}
	r := NewRetriever(store, emb, NewContextBuilder(provider), nil)

	now := time.Now().UTC()
	insertMemory(t, store, 1, "alice", "alice memory", []float64{1, 0}, now)
	insertMemory(t, store, 2, "bob", "bob memory", []float64{1, 0}, now)

	result, err := r.Retrieve(context.Background(), "alice", "query", 5)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "alice memory", result.Candidates[0].Memory.Content)
}

func TestRetrieveContextBuilderFailure(t *testing.T) {
	store := memstore.NewStore(nil)
	provider := &fakeLLM{err: errors.New("model unavailable")}
	emb := &fakeEmbedder{fallback: []float64{1, 0}}
	r := NewRetriever(store, emb, NewContextBuilder(provider), nil)

	insertMemory(t, store, 1, "alice", "memory", []float64{1, 0}, time.Now().UTC())

	_, err := r.Retrieve(context.Background(), "alice", "query", 3)
	require.Error(t, err)
}

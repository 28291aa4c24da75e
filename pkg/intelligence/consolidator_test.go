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

func newTestConsolidator(t *testing.T, store storage.VectorStore, provider *fakeLLM, emb *fakeEmbedder, threshold float64) *Consolidator {
	t.Helper()
	c, err := NewConsolidator(store, emb, NewMerger(provider), &ConsolidatorConfig{
		SimilarityThreshold: threshold,
	})
	require.NoError(t, err)
	return c
}

func TestConsolidateCreatesWhenStoreEmpty(t *testing.T) {
	store := memstore.NewStore(nil)
	c := newTestConsolidator(t, store, &fakeLLM{}, &fakeEmbedder{fallback: []float64{1, 0}}, 0.8)

	result, err := c.Consolidate(context.Background(), "alice", "User lives in Mumbai", []float64{1, 0}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, result.Status)
	assert.NotZero(t, result.Memory.ID)
	assert.Equal(t, "alice", result.Memory.UserID)
	assert.Equal(t, "User lives in Mumbai", result.Memory.Content)
	assert.Empty(t, result.Memory.History)
}

func TestConsolidateMergesAboveThreshold(t *testing.T) {
	store := memstore.NewStore(nil)
	provider := &fakeLLM{response: "User lives in Mumbai and works at Google."}
	emb := &fakeEmbedder{fallback: []float64{1, 0}}
	c := newTestConsolidator(t, store, provider, emb, 0.8)

	first, err := c.Consolidate(context.Background(), "alice", "User lives in Mumbai", []float64{1, 0}, nil)
	require.NoError(t, err)

	// Identical embedding, similarity 1.0.
	second, err := c.Consolidate(context.Background(), "alice", "User works at Google in Mumbai", []float64{1, 0}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusMerged, second.Status)
	assert.Equal(t, first.Memory.ID, second.Memory.ID)
	assert.Equal(t, "User lives in Mumbai and works at Google.", second.Memory.Content)

	require.Len(t, second.Memory.History, 1)
	assert.Equal(t, "User lives in Mumbai", second.Memory.History[0].Content)

	all, err := store.GetAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConsolidateThresholdBoundary(t *testing.T) {
	// cos([1,0], [0.8,0.6]) is exactly 0.8.
	tests := []struct {
		name       string
		threshold  float64
		wantStatus string
	}{
		{"similarity equal to threshold merges", 0.8, StatusMerged},
		{"similarity below threshold creates", 0.9, StatusCreated},
		{"zero threshold always merges", 0, StatusMerged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.NewStore(nil)
			provider := &fakeLLM{response: "merged statement"}
			emb := &fakeEmbedder{fallback: []float64{1, 0}}
			c := newTestConsolidator(t, store, provider, emb, tt.threshold)

			_, err := c.Consolidate(context.Background(), "alice", "existing", []float64{1, 0}, nil)
			require.NoError(t, err)

			result, err := c.Consolidate(context.Background(), "alice", "incoming", []float64{0.8, 0.6}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, result.Status)
		})
	}
}

func TestConsolidateTieBreaksOnUpdatedAt(t *testing.T) {
	store := memstore.NewStore(nil)
	provider := &fakeLLM{response: "merged"}
	emb := &fakeEmbedder{fallback: []float64{1, 0}}
	c := newTestConsolidator(t, store, provider, emb, 0.8)

	now := time.Now().UTC()
	older := &storage.Memory{
		ID: 1, UserID: "alice", Content: "older", Embedding: []float64{1, 0},
		CreatedAt: now.Add(-2 * time.Hour), UpdatedAt: now.Add(-2 * time.Hour),
	}
	newer := &storage.Memory{
		ID: 2, UserID: "alice", Content: "newer", Embedding: []float64{1, 0},
		CreatedAt: now.Add(-1 * time.Hour), UpdatedAt: now.Add(-1 * time.Hour),
	}
	require.NoError(t, store.Insert(context.Background(), older))
	require.NoError(t, store.Insert(context.Background(), newer))

	result, err := c.Consolidate(context.Background(), "alice", "incoming", []float64{1, 0}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusMerged, result.Status)
	assert.Equal(t, int64(2), result.Memory.ID)
}

func TestConsolidateMergeFailureLeavesStoreUntouched(t *testing.T) {
	store := memstore.NewStore(nil)
	provider := &fakeLLM{response: "unused"}
	emb := &fakeEmbedder{fallback: []float64{1, 0}}
	c := newTestConsolidator(t, store, provider, emb, 0.8)

	_, err := c.Consolidate(context.Background(), "alice", "User lives in Mumbai", []float64{1, 0}, nil)
	require.NoError(t, err)

	provider.err = errors.New("model unavailable")

	_, err = c.Consolidate(context.Background(), "alice", "User works at Google", []float64{1, 0}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConsolidationFailed))

	// The candidate is untouched and no duplicate was created.
	all, err := store.GetAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "User lives in Mumbai", all[0].Content)
	assert.Empty(t, all[0].History)
}

func TestConsolidateGlobalScopeIsOwnPartition(t *testing.T) {
	store := memstore.NewStore(nil)
	provider := &fakeLLM{response: "merged global statement"}
	emb := &fakeEmbedder{fallback: []float64{1, 0}}
	c := newTestConsolidator(t, store, provider, emb, 0.8)
	ctx := context.Background()

	seeded, err := c.Consolidate(ctx, "alice", "User lives in Mumbai", []float64{1, 0}, nil)
	require.NoError(t, err)

	// A near-duplicate with no owner must not fold into alice's record.
	first, err := c.Consolidate(ctx, "", "Someone lives in Mumbai", []float64{1, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, first.Status)
	assert.Empty(t, first.Memory.UserID)
	assert.NotEqual(t, seeded.Memory.ID, first.Memory.ID)

	// A second ownerless ingest merges within the global partition.
	second, err := c.Consolidate(ctx, "", "Someone moved to Mumbai", []float64{1, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusMerged, second.Status)
	assert.Equal(t, first.Memory.ID, second.Memory.ID)

	// Alice's record is untouched.
	got, err := store.Get(ctx, seeded.Memory.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "User lives in Mumbai", got.Content)
	assert.Empty(t, got.History)
}

func TestConsolidateMergeCarriesMetadata(t *testing.T) {
	store := memstore.NewStore(nil)
	provider := &fakeLLM{response: "User lives in Mumbai and works at Google."}
	emb := &fakeEmbedder{fallback: []float64{1, 0}}
	c := newTestConsolidator(t, store, provider, emb, 0.8)
	ctx := context.Background()

	_, err := c.Consolidate(ctx, "alice", "User lives in Mumbai", []float64{1, 0},
		map[string]interface{}{"source": "import", "raw_text": "old"})
	require.NoError(t, err)

	result, err := c.Consolidate(ctx, "alice", "User works at Google", []float64{1, 0},
		map[string]interface{}{"raw_text": "new", "channel": "chat"})
	require.NoError(t, err)
	require.Equal(t, StatusMerged, result.Status)

	// Incoming keys win, untouched stored keys survive.
	assert.Equal(t, "import", result.Memory.Metadata["source"])
	assert.Equal(t, "new", result.Memory.Metadata["raw_text"])
	assert.Equal(t, "chat", result.Memory.Metadata["channel"])
}

func TestConsolidateOwnerIsolation(t *testing.T) {
	store := memstore.NewStore(nil)
	provider := &fakeLLM{response: "merged"}
	emb := &fakeEmbedder{fallback: []float64{1, 0}}
	c := newTestConsolidator(t, store, provider, emb, 0.8)

	_, err := c.Consolidate(context.Background(), "alice", "User lives in Mumbai", []float64{1, 0}, nil)
	require.NoError(t, err)

	// Identical content for another owner must not merge across owners.
	result, err := c.Consolidate(context.Background(), "bob", "User lives in Mumbai", []float64{1, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, result.Status)

	all, err := store.GetAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

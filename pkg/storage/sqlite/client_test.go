package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmry-ai/mmry-go/pkg/storage"
)

func newTestStore(t *testing.T, historyLimit int) *Client {
	t.Helper()
	client, err := NewClient(&Config{
		DBPath:             filepath.Join(t.TempDir(), "test.db"),
		CollectionName:     "memories",
		EmbeddingModelDims: 2,
		HistoryLimit:       historyLimit,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func insertTestMemory(t *testing.T, c *Client, id int64, userID, content string, embedding []float64) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, c.Insert(context.Background(), &storage.Memory{
		ID: id, UserID: userID, Content: content, Embedding: embedding,
		Metadata:  map[string]interface{}{"source": "test"},
		CreatedAt: now, UpdatedAt: now,
	}))
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	c := newTestStore(t, 0)
	insertTestMemory(t, c, 1, "alice", "hello", []float64{1, 0})

	got, err := c.Get(context.Background(), 1, nil)
	require.NoError(t, err)

	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, []float64{1, 0}, got.Embedding)
	assert.Equal(t, "test", got.Metadata["source"])
	assert.Empty(t, got.History)
}

func TestSearchRanksAndScopes(t *testing.T) {
	c := newTestStore(t, 0)
	ctx := context.Background()

	insertTestMemory(t, c, 1, "alice", "orthogonal", []float64{0, 1})
	insertTestMemory(t, c, 2, "alice", "aligned", []float64{1, 0})
	insertTestMemory(t, c, 3, "bob", "other owner", []float64{1, 0})

	results, err := c.Search(ctx, []float64{1, 0}, &storage.SearchOptions{UserID: "alice", Limit: 10})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, int64(1), results[1].ID)
}

func TestSearchExactUserPartitions(t *testing.T) {
	c := newTestStore(t, 0)
	ctx := context.Background()

	insertTestMemory(t, c, 1, "alice", "owned", []float64{1, 0})
	insertTestMemory(t, c, 2, "", "global", []float64{1, 0})

	// The empty owner addresses only ownerless records.
	results, err := c.Search(ctx, []float64{1, 0}, &storage.SearchOptions{ExactUser: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID)

	// Without the flag the empty owner is no filter at all.
	results, err = c.Search(ctx, []float64{1, 0}, &storage.SearchOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestUpdateIsTransactionalWithHistory(t *testing.T) {
	c := newTestStore(t, 2)
	ctx := context.Background()

	insertTestMemory(t, c, 1, "alice", "v1", []float64{1, 0})

	for _, content := range []string{"v2", "v3", "v4"} {
		_, err := c.Update(ctx, 1, content, []float64{0, 1}, nil)
		require.NoError(t, err)
	}

	got, err := c.Get(ctx, 1, nil)
	require.NoError(t, err)

	assert.Equal(t, "v4", got.Content)
	assert.Equal(t, []float64{0, 1}, got.Embedding)
	require.Len(t, got.History, 2, "history must be trimmed to the limit")
	assert.Equal(t, "v2", got.History[0].Content)
	assert.Equal(t, "v3", got.History[1].Content)
}

func TestUpdateNotFoundForWrongOwner(t *testing.T) {
	c := newTestStore(t, 0)
	ctx := context.Background()

	insertTestMemory(t, c, 1, "alice", "v1", []float64{1, 0})

	_, err := c.Update(ctx, 1, "v2", []float64{1, 0}, &storage.UpdateOptions{UserID: "bob"})
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	got, err := c.Get(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Content)
	assert.Empty(t, got.History, "failed update must not leave a history entry")
}

func TestUpdateExactUserCannotCrossPartition(t *testing.T) {
	c := newTestStore(t, 0)
	ctx := context.Background()

	insertTestMemory(t, c, 1, "alice", "owned", []float64{1, 0})

	_, err := c.Update(ctx, 1, "hijacked", []float64{1, 0}, &storage.UpdateOptions{ExactUser: true})
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	got, err := c.Get(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "owned", got.Content)
	assert.Empty(t, got.History)
}

func TestUpdateReplacesMetadata(t *testing.T) {
	c := newTestStore(t, 0)
	ctx := context.Background()

	insertTestMemory(t, c, 1, "alice", "v1", []float64{1, 0})

	// Without metadata in the options the stored metadata survives.
	updated, err := c.Update(ctx, 1, "v2", []float64{1, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, "test", updated.Metadata["source"])

	updated, err = c.Update(ctx, 1, "v3", []float64{1, 0}, &storage.UpdateOptions{
		Metadata: map[string]interface{}{"source": "merge", "channel": "chat"},
	})
	require.NoError(t, err)
	assert.Equal(t, "merge", updated.Metadata["source"])
	assert.Equal(t, "chat", updated.Metadata["channel"])

	got, err := c.Get(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "merge", got.Metadata["source"])
}

func TestDeleteRemovesHistory(t *testing.T) {
	c := newTestStore(t, 0)
	ctx := context.Background()

	insertTestMemory(t, c, 1, "alice", "v1", []float64{1, 0})
	_, err := c.Update(ctx, 1, "v2", []float64{1, 0}, nil)
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, 1, nil))
	assert.True(t, errors.Is(c.Delete(ctx, 1, nil), storage.ErrNotFound))

	// Re-inserting the same ID must start with a clean history.
	insertTestMemory(t, c, 1, "alice", "fresh", []float64{1, 0})
	got, err := c.Get(ctx, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, got.History)
}

func TestGetAllNewestFirstWithPagination(t *testing.T) {
	c := newTestStore(t, 0)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, c.Insert(ctx, &storage.Memory{
			ID: i, UserID: "alice", Content: "m", Embedding: []float64{1, 0},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := c.GetAll(ctx, &storage.GetAllOptions{UserID: "alice", Limit: 2, Offset: 1})
	require.NoError(t, err)

	require.Len(t, page, 2)
	assert.Equal(t, int64(4), page[0].ID)
	assert.Equal(t, int64(3), page[1].ID)

	// An offset applies even without a limit.
	rest, err := c.GetAll(ctx, &storage.GetAllOptions{UserID: "alice", Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest, 3)
	assert.Equal(t, int64(3), rest[0].ID)
	assert.Equal(t, int64(1), rest[2].ID)
}

func TestDeleteAllScoped(t *testing.T) {
	c := newTestStore(t, 0)
	ctx := context.Background()

	insertTestMemory(t, c, 1, "alice", "a", []float64{1, 0})
	insertTestMemory(t, c, 2, "bob", "b", []float64{1, 0})

	require.NoError(t, c.DeleteAll(ctx, &storage.DeleteAllOptions{UserID: "alice"}))

	remaining, err := c.GetAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "bob", remaining[0].UserID)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0}, []float64{1, 0}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"mismatched lengths", []float64{1, 0}, []float64{1}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

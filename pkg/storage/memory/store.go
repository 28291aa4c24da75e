// Package memory provides an in-process implementation of the vector store.
//
// It keeps all records in a map guarded by a read-write mutex. It is intended
// for tests and examples that should not touch a real database; data is lost
// when the process exits.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mmry-ai/mmry-go/pkg/storage"
)

// Store implements storage.VectorStore entirely in process memory.
type Store struct {
	mu           sync.RWMutex
	records      map[int64]*storage.Memory
	historyLimit int
}

// Config contains configuration for the in-process store.
type Config struct {
	// HistoryLimit bounds the version history per memory (0 = unlimited).
	HistoryLimit int
}

// NewStore creates an empty in-process store.
func NewStore(cfg *Config) *Store {
	historyLimit := 0
	if cfg != nil {
		historyLimit = cfg.HistoryLimit
	}
	return &Store{
		records:      make(map[int64]*storage.Memory),
		historyLimit: historyLimit,
	}
}

// Insert inserts a memory.
func (s *Store) Insert(ctx context.Context, memory *storage.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[memory.ID]; exists {
		return fmt.Errorf("Insert: duplicate id %d", memory.ID)
	}

	s.records[memory.ID] = copyMemory(memory)
	return nil
}

// Search performs cosine similarity search over the owner's records.
func (s *Store) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var memories []*storage.Memory
	for _, record := range s.records {
		if !matchOwner(record.UserID, opts.UserID, opts.ExactUser) {
			continue
		}

		result := copyMemory(record)
		result.History = nil
		result.Score = cosineSimilarity(embedding, record.Embedding)
		if result.Score >= opts.MinScore {
			memories = append(memories, result)
		}
	}

	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].Score > memories[j].Score
	})
	if opts.Limit > 0 && len(memories) > opts.Limit {
		memories = memories[:opts.Limit]
	}

	return memories, nil
}

// Get retrieves a memory by ID, including its version history.
func (s *Store) Get(ctx context.Context, id int64, opts *storage.GetOptions) (*storage.Memory, error) {
	if opts == nil {
		opts = &storage.GetOptions{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok || (opts.UserID != "" && record.UserID != opts.UserID) {
		return nil, fmt.Errorf("Get: %w", storage.ErrNotFound)
	}

	return copyMemory(record), nil
}

// Update replaces a memory's content and embedding, appending the prior
// content to the version history.
func (s *Store) Update(ctx context.Context, id int64, content string, embedding []float64, opts *storage.UpdateOptions) (*storage.Memory, error) {
	if opts == nil {
		opts = &storage.UpdateOptions{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok || !matchOwner(record.UserID, opts.UserID, opts.ExactUser) {
		return nil, fmt.Errorf("Update: %w", storage.ErrNotFound)
	}

	now := time.Now().UTC()
	record.History = append(record.History, storage.HistoryEntry{
		Content:    record.Content,
		ReplacedAt: now,
	})
	if s.historyLimit > 0 && len(record.History) > s.historyLimit {
		record.History = record.History[len(record.History)-s.historyLimit:]
	}

	record.Content = content
	record.Embedding = append([]float64(nil), embedding...)
	record.UpdatedAt = now
	if opts.Metadata != nil {
		record.Metadata = make(map[string]interface{}, len(opts.Metadata))
		for k, v := range opts.Metadata {
			record.Metadata[k] = v
		}
	}

	return copyMemory(record), nil
}

// Delete deletes a memory and its version history.
func (s *Store) Delete(ctx context.Context, id int64, opts *storage.DeleteOptions) error {
	if opts == nil {
		opts = &storage.DeleteOptions{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok || (opts.UserID != "" && record.UserID != opts.UserID) {
		return fmt.Errorf("Delete: %w", storage.ErrNotFound)
	}

	delete(s.records, id)
	return nil
}

// GetAll retrieves all memories, newest first, with optional pagination.
func (s *Store) GetAll(ctx context.Context, opts *storage.GetAllOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.GetAllOptions{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var memories []*storage.Memory
	for _, record := range s.records {
		if opts.UserID != "" && record.UserID != opts.UserID {
			continue
		}
		memories = append(memories, copyMemory(record))
	}

	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(memories) {
			return nil, nil
		}
		memories = memories[opts.Offset:]
	}
	if opts.Limit > 0 && len(memories) > opts.Limit {
		memories = memories[:opts.Limit]
	}

	return memories, nil
}

// DeleteAll deletes all memories matching the given owner filter.
func (s *Store) DeleteAll(ctx context.Context, opts *storage.DeleteAllOptions) error {
	if opts == nil {
		opts = &storage.DeleteAllOptions{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, record := range s.records {
		if opts.UserID == "" || record.UserID == opts.UserID {
			delete(s.records, id)
		}
	}
	return nil
}

// Close is a no-op for the in-process store.
func (s *Store) Close() error {
	return nil
}

// matchOwner reports whether a record is visible to the given owner filter.
// With exact set, an empty userID addresses the global partition; without it,
// an empty userID matches every record.
func matchOwner(recordUserID, userID string, exact bool) bool {
	if exact {
		return recordUserID == userID
	}
	return userID == "" || recordUserID == userID
}

// copyMemory deep-copies a record so callers cannot mutate store state.
func copyMemory(m *storage.Memory) *storage.Memory {
	result := *m
	result.Embedding = append([]float64(nil), m.Embedding...)
	if m.Metadata != nil {
		result.Metadata = make(map[string]interface{}, len(m.Metadata))
		for k, v := range m.Metadata {
			result.Metadata[k] = v
		}
	}
	if m.History != nil {
		result.History = append([]storage.HistoryEntry(nil), m.History...)
	}
	return &result
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

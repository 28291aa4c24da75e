package core

import (
	"time"

	"github.com/mmry-ai/mmry-go/pkg/storage"
)

// Memory represents a single memory record.
//
// Every record belongs to exactly one owner (UserID, empty for global scope),
// holds the current consolidated summary with its embedding, and carries the
// prior summary values in History.
type Memory struct {
	// ID is the unique identifier. Assigned at creation, never reused.
	ID int64 `json:"id"`

	// UserID identifies the owner. Immutable after creation.
	UserID string `json:"user_id,omitempty"`

	// Content is the current consolidated summary.
	Content string `json:"content"`

	// Metadata contains caller-supplied attributes, shallow-merged on merge.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the memory was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the memory was last mutated.
	UpdatedAt time.Time `json:"updated_at"`

	// History holds prior summary values, oldest first.
	History []HistoryEntry `json:"history,omitempty"`
}

// HistoryEntry is one prior summary value of a memory.
type HistoryEntry struct {
	// Content is the summary text that was replaced.
	Content string `json:"content"`

	// ReplacedAt is when the summary was replaced.
	ReplacedAt time.Time `json:"replaced_at"`
}

// AddResult is the outcome of an Add operation.
type AddResult struct {
	// Status is "created" when a new record was made, "merged" when the
	// input was folded into an existing record.
	Status string `json:"status"`

	// Memory is the resulting record.
	Memory *Memory `json:"memory"`
}

// Candidate is one query result with its scoring breakdown.
type Candidate struct {
	// Memory is the matched record.
	Memory *Memory `json:"memory"`

	// Similarity is the raw cosine similarity to the query.
	Similarity float64 `json:"similarity"`

	// RankScore is the decay-adjusted score used for ordering.
	RankScore float64 `json:"rank_score"`
}

// QueryResult is the outcome of a Query operation.
type QueryResult struct {
	// Query is the original query text.
	Query string `json:"query"`

	// Memories holds the ranked results, best first.
	Memories []*Candidate `json:"memories"`

	// ContextSummary is a paragraph built from the results, or the
	// empty-result sentinel when nothing matched.
	ContextSummary string `json:"context_summary"`
}

// HealthStats is a snapshot of the memory store.
type HealthStats struct {
	// TotalMemories is the number of records in scope.
	TotalMemories int `json:"total_memories"`

	// TotalVersions is the number of history entries across those records.
	TotalVersions int `json:"total_versions"`

	// Owners is the number of distinct owners in scope.
	Owners int `json:"owners"`

	// OldestCreatedAt and NewestCreatedAt bound the creation times.
	// Zero when the store is empty.
	OldestCreatedAt time.Time `json:"oldest_created_at,omitempty"`
	NewestCreatedAt time.Time `json:"newest_created_at,omitempty"`

	// AverageAgeSeconds is the mean record age at snapshot time.
	AverageAgeSeconds float64 `json:"average_age_seconds"`
}

// fromStorageMemory converts a storage record to the public type.
func fromStorageMemory(m *storage.Memory) *Memory {
	if m == nil {
		return nil
	}

	memory := &Memory{
		ID:        m.ID,
		UserID:    m.UserID,
		Content:   m.Content,
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for _, entry := range m.History {
		memory.History = append(memory.History, HistoryEntry{
			Content:    entry.Content,
			ReplacedAt: entry.ReplacedAt,
		})
	}
	return memory
}

// fromStorageMemories converts a slice of storage records.
func fromStorageMemories(memories []*storage.Memory) []*Memory {
	result := make([]*Memory, len(memories))
	for i, m := range memories {
		result[i] = fromStorageMemory(m)
	}
	return result
}

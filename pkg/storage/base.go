// Package storage provides interfaces and types for vector storage backends.
//
// It defines the VectorStore interface that all storage implementations must satisfy,
// along with the memory record type and per-operation options.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a memory does not exist or is outside the
// caller's owner scope. Implementations must not distinguish the two cases.
var ErrNotFound = errors.New("memory not found")

// Memory represents a memory record persisted in the vector store.
//
// This type is defined in the storage package to avoid circular dependencies
// with the core package. The core package mirrors it for its public surface.
type Memory struct {
	// ID is the unique identifier of the memory. Never reused after deletion.
	ID int64

	// UserID identifies the owner of this memory. Empty means global scope.
	UserID string

	// Content is the current summary text of the memory.
	Content string

	// Embedding is the vector embedding of Content.
	Embedding []float64

	// Metadata contains caller-supplied attributes. Never interpreted by the store.
	Metadata map[string]interface{}

	// CreatedAt is when the memory was created.
	CreatedAt time.Time

	// UpdatedAt is when the memory was last mutated.
	UpdatedAt time.Time

	// History holds prior summary values, oldest first. Populated by Get and
	// GetAll; Search omits it for efficiency.
	History []HistoryEntry

	// Score is the similarity score from search operations (cosine, [-1, 1]).
	Score float64
}

// HistoryEntry is one prior summary value of a memory.
type HistoryEntry struct {
	// Content is the summary text that was replaced.
	Content string

	// ReplacedAt is when the summary was replaced.
	ReplacedAt time.Time
}

// VectorStore defines the interface for vector storage backends.
//
// All storage implementations (SQLite, PostgreSQL, MySQL, in-memory) must
// implement this interface. Update appends the prior content to the record's
// version history and replaces the row in a single transaction, so a failed
// update never leaves a partial write behind.
type VectorStore interface {
	// Insert inserts a new memory into the store.
	Insert(ctx context.Context, memory *Memory) error

	// Search performs vector similarity search.
	//
	// Results are sorted by similarity (highest first) and scoped to
	// opts.UserID; an empty UserID searches all records unless
	// opts.ExactUser restricts it to the global partition.
	Search(ctx context.Context, embedding []float64, opts *SearchOptions) ([]*Memory, error)

	// Get retrieves a memory by ID, including its version history.
	//
	// Returns ErrNotFound if the memory does not exist or does not belong to
	// opts.UserID when one is given.
	Get(ctx context.Context, id int64, opts *GetOptions) (*Memory, error)

	// Update replaces a memory's content and embedding, appending the prior
	// content to the version history atomically. The history is trimmed to the
	// store's configured limit, oldest entries first.
	//
	// Returns ErrNotFound if the memory does not exist or does not belong to
	// opts.UserID when one is given.
	Update(ctx context.Context, id int64, content string, embedding []float64, opts *UpdateOptions) (*Memory, error)

	// Delete deletes a memory and its version history.
	//
	// Returns ErrNotFound if the memory does not exist or does not belong to
	// opts.UserID when one is given.
	Delete(ctx context.Context, id int64, opts *DeleteOptions) error

	// GetAll retrieves all memories for an owner (or every record when
	// opts.UserID is empty), newest first, with optional pagination.
	GetAll(ctx context.Context, opts *GetAllOptions) ([]*Memory, error)

	// DeleteAll deletes all memories matching the given owner filter.
	DeleteAll(ctx context.Context, opts *DeleteAllOptions) error

	// Close closes the store and releases resources.
	Close() error
}

// SearchOptions contains options for search operations.
type SearchOptions struct {
	// UserID scopes results to a single owner. Empty searches all records
	// unless ExactUser is set.
	UserID string

	// ExactUser matches only records whose owner equals UserID, so an empty
	// UserID addresses the global partition instead of every owner.
	ExactUser bool

	// Limit sets the maximum number of results to return.
	Limit int

	// MinScore drops results with a similarity score below this value.
	MinScore float64
}

// GetOptions contains options for get operations with access control.
type GetOptions struct {
	// UserID restricts access to memories belonging to this owner.
	UserID string
}

// UpdateOptions contains options for update operations with access control.
type UpdateOptions struct {
	// UserID restricts updates to memories belonging to this owner.
	UserID string

	// ExactUser matches only records whose owner equals UserID, so an empty
	// UserID addresses the global partition instead of every record.
	ExactUser bool

	// Metadata replaces the record's stored metadata when non-nil.
	Metadata map[string]interface{}
}

// DeleteOptions contains options for delete operations with access control.
type DeleteOptions struct {
	// UserID restricts deletions to memories belonging to this owner.
	UserID string
}

// GetAllOptions contains options for GetAll operations.
type GetAllOptions struct {
	// UserID filters results to a single owner. Empty returns all records.
	UserID string

	// Limit sets the maximum number of results to return (0 = no limit).
	Limit int

	// Offset sets the number of results to skip (for pagination).
	Offset int
}

// DeleteAllOptions contains options for DeleteAll operations.
type DeleteAllOptions struct {
	// UserID filters deletions to a single owner. Empty deletes all records.
	UserID string
}

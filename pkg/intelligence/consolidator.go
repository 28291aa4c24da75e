package intelligence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mmry-ai/mmry-go/pkg/embedder"
	"github.com/mmry-ai/mmry-go/pkg/storage"
)

// ErrConsolidationFailed is returned when an ingest found a merge candidate
// but the merge could not be completed. The ingest fails as a whole; the
// candidate is left untouched and no duplicate record is created.
var ErrConsolidationFailed = errors.New("memory consolidation failed")

// Consolidation status values.
const (
	StatusCreated = "created"
	StatusMerged  = "merged"
)

// DefaultCandidateLimit is how many nearest neighbors are examined when
// looking for a merge candidate.
const DefaultCandidateLimit = 5

// Result is the outcome of a consolidation: whether the summary became a new
// record or was merged into an existing one, and the record as persisted.
type Result struct {
	Status string
	Memory *storage.Memory
}

// Consolidator decides, for each incoming summary, whether to create a new
// memory or fold it into the most similar existing one.
type Consolidator struct {
	store          storage.VectorStore
	embedder       embedder.Provider
	merger         *Merger
	node           *snowflake.Node
	threshold      float64
	candidateLimit int
}

// ConsolidatorConfig configures a Consolidator.
type ConsolidatorConfig struct {
	// SimilarityThreshold is the minimum cosine similarity for a candidate
	// to absorb the new summary. At exactly the threshold the merge wins.
	SimilarityThreshold float64

	// CandidateLimit caps how many neighbors are fetched per ingest
	// (0 = DefaultCandidateLimit).
	CandidateLimit int
}

// NewConsolidator creates a Consolidator.
func NewConsolidator(store storage.VectorStore, emb embedder.Provider, merger *Merger, cfg *ConsolidatorConfig) (*Consolidator, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("NewConsolidator: %w", err)
	}

	threshold := 0.0
	candidateLimit := DefaultCandidateLimit
	if cfg != nil {
		threshold = cfg.SimilarityThreshold
		if cfg.CandidateLimit > 0 {
			candidateLimit = cfg.CandidateLimit
		}
	}

	return &Consolidator{
		store:          store,
		embedder:       emb,
		merger:         merger,
		node:           node,
		threshold:      threshold,
		candidateLimit: candidateLimit,
	}, nil
}

// Consolidate ingests a summarized statement with its embedding.
//
// It searches the owner's existing memories for the most similar record. If
// none reaches the similarity threshold a new record is created. Otherwise
// the candidate's content and the new summary are merged by the LLM, the
// merged text is re-embedded, and the candidate is updated in place with its
// prior content appended to the version history and the incoming metadata
// shallow-merged over the stored metadata.
//
// The empty owner is its own partition: a global ingest only ever sees and
// mutates global records, and owner-scoped ingests never see global ones.
//
// A merge that cannot complete fails the whole ingest with
// ErrConsolidationFailed; it never falls back to creating a duplicate.
func (c *Consolidator) Consolidate(ctx context.Context, userID, content string, embedding []float64, metadata map[string]interface{}) (*Result, error) {
	candidates, err := c.store.Search(ctx, embedding, &storage.SearchOptions{
		UserID:    userID,
		ExactUser: true,
		Limit:     c.candidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("consolidate: search: %w", err)
	}

	best := bestCandidate(candidates)
	if best == nil || best.Score < c.threshold {
		memory, err := c.create(ctx, userID, content, embedding, metadata)
		if err != nil {
			return nil, err
		}
		return &Result{Status: StatusCreated, Memory: memory}, nil
	}

	merged, err := c.merger.Merge(ctx, best.Content, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConsolidationFailed, err)
	}

	mergedEmbedding, err := c.embedder.Embed(ctx, merged)
	if err != nil {
		return nil, fmt.Errorf("%w: embed merged content: %w", ErrConsolidationFailed, err)
	}

	memory, err := c.store.Update(ctx, best.ID, merged, mergedEmbedding, &storage.UpdateOptions{
		UserID:    userID,
		ExactUser: true,
		Metadata:  mergeMetadata(best.Metadata, metadata),
	})
	if err != nil {
		return nil, fmt.Errorf("consolidate: update: %w", err)
	}

	return &Result{Status: StatusMerged, Memory: memory}, nil
}

func (c *Consolidator) create(ctx context.Context, userID, content string, embedding []float64, metadata map[string]interface{}) (*storage.Memory, error) {
	now := time.Now().UTC()
	memory := &storage.Memory{
		ID:        c.node.Generate().Int64(),
		UserID:    userID,
		Content:   content,
		Embedding: embedding,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.store.Insert(ctx, memory); err != nil {
		return nil, fmt.Errorf("consolidate: insert: %w", err)
	}

	return memory, nil
}

// mergeMetadata overlays the incoming metadata on the stored metadata,
// key by key. Returns nil when there is nothing incoming, leaving the stored
// metadata untouched.
func mergeMetadata(stored, incoming map[string]interface{}) map[string]interface{} {
	if incoming == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(stored)+len(incoming))
	for k, v := range stored {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

// bestCandidate picks the highest-scoring candidate. Ties on score go to the
// most recently updated record.
func bestCandidate(candidates []*storage.Memory) *storage.Memory {
	var best *storage.Memory
	for _, candidate := range candidates {
		if best == nil ||
			candidate.Score > best.Score ||
			(candidate.Score == best.Score && candidate.UpdatedAt.After(best.UpdatedAt)) {
			best = candidate
		}
	}
	return best
}

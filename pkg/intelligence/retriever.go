package intelligence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mmry-ai/mmry-go/pkg/embedder"
	"github.com/mmry-ai/mmry-go/pkg/storage"
)

// EmptyContextSummary is returned as the context summary when a query
// matches no memories. The LLM is not called in that case.
const EmptyContextSummary = "no relevant memories found"

// DefaultTopK is the number of results returned when none is requested.
const DefaultTopK = 3

// DefaultOverfetchFactor is how many times topK candidates are pulled from
// the store before reranking. Decay reordering can promote results from
// beyond the top similarity matches.
const DefaultOverfetchFactor = 3

// Candidate is one retrieved memory with its raw similarity and the
// decay-adjusted score used for ordering.
type Candidate struct {
	Memory     *storage.Memory
	Similarity float64
	RankScore  float64
}

// RetrievalResult is the outcome of a retrieval: the ranked candidates and a
// context paragraph built from them.
type RetrievalResult struct {
	Candidates     []*Candidate
	ContextSummary string
}

// Retriever answers queries by embedding them, reranking the store's nearest
// neighbors with time decay, and building an LLM context summary over the
// winners.
type Retriever struct {
	store     storage.VectorStore
	embedder  embedder.Provider
	builder   *ContextBuilder
	halfLife  time.Duration
	overfetch int
}

// RetrieverConfig configures a Retriever.
type RetrieverConfig struct {
	// DecayHalfLife controls how fast older memories lose rank
	// (0 = DefaultHalfLife).
	DecayHalfLife time.Duration

	// OverfetchFactor multiplies topK for the store fetch
	// (0 = DefaultOverfetchFactor).
	OverfetchFactor int
}

// NewRetriever creates a Retriever.
func NewRetriever(store storage.VectorStore, emb embedder.Provider, builder *ContextBuilder, cfg *RetrieverConfig) *Retriever {
	halfLife := DefaultHalfLife
	overfetch := DefaultOverfetchFactor
	if cfg != nil {
		if cfg.DecayHalfLife > 0 {
			halfLife = cfg.DecayHalfLife
		}
		if cfg.OverfetchFactor > 0 {
			overfetch = cfg.OverfetchFactor
		}
	}

	return &Retriever{
		store:     store,
		embedder:  emb,
		builder:   builder,
		halfLife:  halfLife,
		overfetch: overfetch,
	}
}

// Retrieve runs a query against the owner's memories.
//
// The query is embedded, topK*overfetch nearest neighbors are fetched, each
// is rescored with time decay, and the topK highest rank scores win. Ties on
// rank score go to the more recently updated memory. When nothing matches,
// the sentinel EmptyContextSummary is returned without calling the LLM.
func (r *Retriever) Retrieve(ctx context.Context, userID, query string, topK int) (*RetrievalResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve: embed query: %w", err)
	}

	fetchLimit := topK * r.overfetch
	if fetchLimit < topK {
		fetchLimit = topK
	}

	memories, err := r.store.Search(ctx, embedding, &storage.SearchOptions{
		UserID: userID,
		Limit:  fetchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve: search: %w", err)
	}

	if len(memories) == 0 {
		return &RetrievalResult{ContextSummary: EmptyContextSummary}, nil
	}

	now := time.Now().UTC()
	candidates := make([]*Candidate, len(memories))
	for i, memory := range memories {
		candidates[i] = &Candidate{
			Memory:     memory,
			Similarity: memory.Score,
			RankScore:  RankScore(memory.Score, memory.CreatedAt, now, r.halfLife),
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].RankScore != candidates[j].RankScore {
			return candidates[i].RankScore > candidates[j].RankScore
		}
		return candidates[i].Memory.UpdatedAt.After(candidates[j].Memory.UpdatedAt)
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	contents := make([]string, len(candidates))
	for i, candidate := range candidates {
		contents[i] = candidate.Memory.Content
	}

	summary, err := r.builder.BuildContext(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	return &RetrievalResult{
		Candidates:     candidates,
		ContextSummary: summary,
	}, nil
}

package sqlite

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/mmry-ai/mmry-go/pkg/storage"
)

// scanner abstracts sql.Row and sql.Rows for scanning memory rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (*storage.Memory, error) {
	var memory storage.Memory
	var embeddingJSON, metadataJSON string

	err := row.Scan(
		&memory.ID,
		&memory.UserID,
		&memory.Content,
		&embeddingJSON,
		&metadataJSON,
		&memory.CreatedAt,
		&memory.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(embeddingJSON), &memory.Embedding); err != nil {
		return nil, err
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &memory.Metadata); err != nil {
			return nil, err
		}
	}

	return &memory, nil
}

// buildWhereClause builds the owner filter. With exact set, an empty userID
// addresses the global partition; without it, an empty userID matches every
// record.
func buildWhereClause(userID string, exact bool) (string, []interface{}) {
	if userID == "" && !exact {
		return "", nil
	}
	return "WHERE user_id = ?", []interface{}{userID}
}

// cosineSimilarity calculates the cosine similarity between two vectors.
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

// sortByScore sorts memories by similarity score descending and applies the
// result limit.
func sortByScore(memories []*storage.Memory, limit int) []*storage.Memory {
	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].Score > memories[j].Score
	})

	if limit > 0 && len(memories) > limit {
		memories = memories[:limit]
	}

	return memories
}

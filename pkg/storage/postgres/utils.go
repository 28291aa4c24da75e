package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mmry-ai/mmry-go/pkg/storage"
)

// vectorToString converts a vector to pgvector's text format: "[0.1,0.2,...]".
func vectorToString(vector []float64) string {
	if len(vector) == 0 {
		return "[]"
	}

	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = fmt.Sprintf("%f", v)
	}

	return "[" + strings.Join(parts, ",") + "]"
}

// parseVectorString parses pgvector's text format back into a slice.
func parseVectorString(s string) ([]float64, error) {
	s = strings.Trim(s, "[]")
	if s == "" {
		return []float64{}, nil
	}

	parts := strings.Split(s, ",")
	result := make([]float64, len(parts))

	for i, part := range parts {
		var val float64
		_, err := fmt.Sscanf(strings.TrimSpace(part), "%f", &val)
		if err != nil {
			return nil, err
		}
		result[i] = val
	}

	return result, nil
}

func scanMemory(row *sql.Row) (*storage.Memory, error) {
	var memory storage.Memory
	var embeddingStr string
	var metadataStr []byte

	err := row.Scan(
		&memory.ID,
		&memory.UserID,
		&memory.Content,
		&embeddingStr,
		&metadataStr,
		&memory.CreatedAt,
		&memory.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	embedding, err := parseVectorString(embeddingStr)
	if err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	memory.Embedding = embedding

	if len(metadataStr) > 0 {
		if err := json.Unmarshal(metadataStr, &memory.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}

	return &memory, nil
}

func scanMemories(rows *sql.Rows, hasScore bool) ([]*storage.Memory, error) {
	var memories []*storage.Memory

	for rows.Next() {
		var memory storage.Memory
		var embeddingStr string
		var metadataStr []byte

		dest := []interface{}{
			&memory.ID,
			&memory.UserID,
			&memory.Content,
			&embeddingStr,
			&metadataStr,
			&memory.CreatedAt,
			&memory.UpdatedAt,
		}
		if hasScore {
			dest = append(dest, &memory.Score)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		embedding, err := parseVectorString(embeddingStr)
		if err != nil {
			return nil, fmt.Errorf("parse embedding: %w", err)
		}
		memory.Embedding = embedding

		if len(metadataStr) > 0 {
			if err := json.Unmarshal(metadataStr, &memory.Metadata); err != nil {
				return nil, fmt.Errorf("parse metadata: %w", err)
			}
		}

		memories = append(memories, &memory)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return memories, nil
}

package core

import (
	"context"
	"time"

	"github.com/mmry-ai/mmry-go/pkg/storage"
)

// Health reports a snapshot of the memory store.
//
// The snapshot covers one owner when scoped, or every record otherwise:
// record count, total history entries, distinct owners, creation time
// bounds, and average record age.
//
// Example:
//
//	stats, err := client.Health(ctx, core.WithUserIDForGetAll("user_001"))
func (c *Client) Health(ctx context.Context, opts ...GetAllOption) (*HealthStats, error) {
	getAllOpts := applyGetAllOptions(opts)

	memories, err := c.storage.GetAll(ctx, &storage.GetAllOptions{
		UserID: getAllOpts.UserID,
	})
	if err != nil {
		return nil, NewMemoryError("Health", classifyProviderError(err))
	}

	stats := &HealthStats{
		TotalMemories: len(memories),
	}

	owners := make(map[string]struct{})
	now := time.Now().UTC()
	var totalAge float64

	for _, memory := range memories {
		stats.TotalVersions += len(memory.History)
		owners[memory.UserID] = struct{}{}

		if stats.OldestCreatedAt.IsZero() || memory.CreatedAt.Before(stats.OldestCreatedAt) {
			stats.OldestCreatedAt = memory.CreatedAt
		}
		if memory.CreatedAt.After(stats.NewestCreatedAt) {
			stats.NewestCreatedAt = memory.CreatedAt
		}

		age := now.Sub(memory.CreatedAt).Seconds()
		if age < 0 {
			age = 0
		}
		totalAge += age
	}

	stats.Owners = len(owners)
	if len(memories) > 0 {
		stats.AverageAgeSeconds = totalAge / float64(len(memories))
	}

	c.logger.Log("health_snapshot", map[string]interface{}{
		"user_id":        getAllOpts.UserID,
		"total_memories": stats.TotalMemories,
		"total_versions": stats.TotalVersions,
		"owners":         stats.Owners,
	})

	return stats, nil
}

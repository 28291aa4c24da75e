// Package intelligence implements the memory consolidation and retrieval
// logic: merge-or-create ingestion, time-decayed reranking, and the LLM task
// wrappers (summarization, merging, context building).
package intelligence

import (
	"math"
	"time"
)

// DefaultHalfLife is the decay half-life used when none is configured.
// 100 hours keeps day-old memories relevant while letting stale ones fade.
const DefaultHalfLife = 100 * time.Hour

// DecayFactor returns the exponential freshness factor for a memory created
// at createdAt, evaluated at now.
//
// The factor is exp(-age/halfLife), 1.0 for a brand-new memory and falling
// toward 0 as it ages. Clock skew can place createdAt in the future; the age
// is clamped at zero so the factor never exceeds 1.
func DecayFactor(createdAt, now time.Time, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}

	age := now.Sub(createdAt)
	if age < 0 {
		age = 0
	}

	return math.Exp(-age.Seconds() / halfLife.Seconds())
}

// RankScore combines a similarity score with time decay:
//
//	rankScore = similarity * exp(-age/halfLife)
//
// Higher similarity always ranks higher at equal age, and younger memories
// always rank higher at equal similarity.
func RankScore(similarity float64, createdAt, now time.Time, halfLife time.Duration) float64 {
	return similarity * DecayFactor(createdAt, now, halfLife)
}

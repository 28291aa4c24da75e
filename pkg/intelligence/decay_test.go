package intelligence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecayFactor(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	halfLife := 100 * time.Hour

	t.Run("fresh memory has factor 1", func(t *testing.T) {
		assert.InDelta(t, 1.0, DecayFactor(now, now, halfLife), 1e-9)
	})

	t.Run("factor decreases with age", func(t *testing.T) {
		young := DecayFactor(now.Add(-1*time.Hour), now, halfLife)
		old := DecayFactor(now.Add(-50*time.Hour), now, halfLife)
		older := DecayFactor(now.Add(-500*time.Hour), now, halfLife)

		assert.Greater(t, young, old)
		assert.Greater(t, old, older)
		assert.Greater(t, older, 0.0)
	})

	t.Run("future createdAt is clamped to age zero", func(t *testing.T) {
		factor := DecayFactor(now.Add(2*time.Hour), now, halfLife)
		assert.InDelta(t, 1.0, factor, 1e-9)
	})

	t.Run("zero half-life falls back to default", func(t *testing.T) {
		createdAt := now.Add(-DefaultHalfLife)
		got := DecayFactor(createdAt, now, 0)
		want := DecayFactor(createdAt, now, DefaultHalfLife)
		assert.InDelta(t, want, got, 1e-9)
	})
}

func TestRankScore(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	halfLife := 100 * time.Hour
	createdAt := now.Add(-10 * time.Hour)

	t.Run("monotone in similarity at equal age", func(t *testing.T) {
		low := RankScore(0.3, createdAt, now, halfLife)
		high := RankScore(0.9, createdAt, now, halfLife)
		assert.Greater(t, high, low)
	})

	t.Run("monotone in age at equal similarity", func(t *testing.T) {
		young := RankScore(0.8, now.Add(-1*time.Hour), now, halfLife)
		old := RankScore(0.8, now.Add(-200*time.Hour), now, halfLife)
		assert.Greater(t, young, old)
	})

	t.Run("never exceeds raw similarity", func(t *testing.T) {
		for _, age := range []time.Duration{0, time.Hour, 100 * time.Hour, 10000 * time.Hour} {
			score := RankScore(0.8, now.Add(-age), now, halfLife)
			assert.LessOrEqual(t, score, 0.8)
		}
	})

	t.Run("zero similarity stays zero", func(t *testing.T) {
		assert.Equal(t, 0.0, RankScore(0, createdAt, now, halfLife))
	})
}

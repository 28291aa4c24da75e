package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryError(t *testing.T) {
	t.Run("formats with operation", func(t *testing.T) {
		err := NewMemoryError("Add", ErrInvalidInput)
		assert.Equal(t, "mmry: Add: invalid input", err.Error())
	})

	t.Run("unwraps to sentinel", func(t *testing.T) {
		err := NewMemoryError("Get", ErrNotFound)
		assert.True(t, errors.Is(err, ErrNotFound))

		var memErr *MemoryError
		require.True(t, errors.As(err, &memErr))
		assert.Equal(t, "Get", memErr.Op)
	})

	t.Run("nil error returns nil", func(t *testing.T) {
		assert.Nil(t, NewMemoryError("Add", nil))
	})

	t.Run("wraps nested chains", func(t *testing.T) {
		inner := fmt.Errorf("query: %w", ErrConsolidationFailed)
		err := NewMemoryError("Add", inner)
		assert.True(t, errors.Is(err, ErrConsolidationFailed))
	})
}

type timeoutNetError struct{ timeout bool }

func (e *timeoutNetError) Error() string   { return "net failure" }
func (e *timeoutNetError) Timeout() bool   { return e.timeout }
func (e *timeoutNetError) Temporary() bool { return false }

func TestClassifyProviderError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, classifyProviderError(nil))
	})

	t.Run("deadline exceeded becomes timeout", func(t *testing.T) {
		err := classifyProviderError(fmt.Errorf("call: %w", context.DeadlineExceeded))
		assert.True(t, errors.Is(err, ErrTimeout))
	})

	t.Run("net timeout becomes timeout", func(t *testing.T) {
		err := classifyProviderError(fmt.Errorf("call: %w", &timeoutNetError{timeout: true}))
		assert.True(t, errors.Is(err, ErrTimeout))
		assert.False(t, errors.Is(err, ErrConnectionFailed))
	})

	t.Run("net failure becomes connection error", func(t *testing.T) {
		err := classifyProviderError(fmt.Errorf("call: %w", &timeoutNetError{}))
		assert.True(t, errors.Is(err, ErrConnectionFailed))
	})

	t.Run("taxonomy sentinels pass through", func(t *testing.T) {
		err := classifyProviderError(fmt.Errorf("get: %w", ErrNotFound))
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrConnectionFailed))

		err = classifyProviderError(fmt.Errorf("merge: %w", ErrConsolidationFailed))
		assert.True(t, errors.Is(err, ErrConsolidationFailed))
	})

	t.Run("other errors pass through unchanged", func(t *testing.T) {
		plain := errors.New("something else")
		assert.Equal(t, plain, classifyProviderError(plain))
	})
}

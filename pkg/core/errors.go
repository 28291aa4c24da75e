// Package core provides the main mmry client and memory management functionality.
package core

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/mmry-ai/mmry-go/pkg/intelligence"
	"github.com/mmry-ai/mmry-go/pkg/storage"
)

// Predefined errors for common failure scenarios.
var (
	// ErrNotFound indicates that a requested memory was not found or is not
	// visible to the calling owner.
	ErrNotFound = storage.ErrNotFound

	// ErrConsolidationFailed indicates that a merge candidate was found but
	// the merge could not be completed. The ingest fails as a whole.
	ErrConsolidationFailed = intelligence.ErrConsolidationFailed

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConnectionFailed indicates that a provider (LLM, embedder, or
	// storage) could not be reached.
	ErrConnectionFailed = errors.New("provider connection failed")

	// ErrTimeout indicates that a provider call exceeded its deadline.
	ErrTimeout = errors.New("provider timeout")
)

// MemoryError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "Add",
//	    Err: ErrInvalidInput,
//	}
//	// Error() returns: "mmry: Add: invalid input"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "mmry: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("mmry: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with MemoryError.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewMemoryError("Add", err)
//	}
//
// Parameters:
//   - op: Name of the operation (e.g., "Add", "Query", "Update")
//   - err: The underlying error to wrap
//
// Returns a MemoryError, or nil if err is nil.
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}

// classifyProviderError tags provider call failures as timeout or connection
// errors so callers can match them with errors.Is. Errors that already carry
// a taxonomy sentinel pass through unchanged.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConsolidationFailed) ||
		errors.Is(err, ErrInvalidInput) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return err
}

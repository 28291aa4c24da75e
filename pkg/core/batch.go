package core

import (
	"context"
	"sync"

	"github.com/mmry-ai/mmry-go/pkg/llm"
)

// AddRequest is one item of a batched ingest. Either Content or Turns must
// be set; Turns wins when both are present.
type AddRequest struct {
	// Content is plain text to ingest.
	Content string

	// Turns are conversation messages to ingest instead of plain text.
	Turns []llm.Message

	// UserID scopes the memory to an owner.
	UserID string

	// Metadata contains caller-supplied attributes.
	Metadata map[string]interface{}
}

// BatchAddResult is the per-item outcome of a batched ingest.
type BatchAddResult struct {
	// Status is "created" or "merged" (empty when Err is set).
	Status string

	// Memory is the resulting record (nil when Err is set).
	Memory *Memory

	// Err is the item's failure (nil on success).
	Err error
}

// AddBatch ingests multiple items concurrently.
//
// Items are independent: one failure does not abort the others, and the
// returned slice matches the input order with a per-item outcome. Items for
// the same owner are serialized by the owner lock, so a batch of similar
// statements for one owner consolidates into a single memory; items for
// different owners run in parallel.
//
// Example:
//
//	results := client.AddBatch(ctx, []core.AddRequest{
//	    {Content: "User lives in Mumbai", UserID: "alice"},
//	    {Content: "User plays tennis", UserID: "bob"},
//	})
//	for i, r := range results {
//	    if r.Err != nil {
//	        log.Printf("item %d failed: %v", i, r.Err)
//	    }
//	}
func (c *Client) AddBatch(ctx context.Context, requests []AddRequest) []*BatchAddResult {
	results := make([]*BatchAddResult, len(requests))

	var wg sync.WaitGroup
	for i, request := range requests {
		wg.Add(1)
		go func(i int, request AddRequest) {
			defer wg.Done()

			opts := []AddOption{WithUserID(request.UserID)}
			if request.Metadata != nil {
				opts = append(opts, WithMetadata(request.Metadata))
			}

			var result *AddResult
			var err error
			if len(request.Turns) > 0 {
				result, err = c.AddMessages(ctx, request.Turns, opts...)
			} else {
				result, err = c.Add(ctx, request.Content, opts...)
			}

			if err != nil {
				results[i] = &BatchAddResult{Err: err}
				return
			}
			results[i] = &BatchAddResult{
				Status: result.Status,
				Memory: result.Memory,
			}
		}(i, request)
	}
	wg.Wait()

	return results
}

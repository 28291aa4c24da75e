package core

import (
	"context"
	"sync"

	"github.com/mmry-ai/mmry-go/pkg/llm"
)

// AsyncClient provides asynchronous mmry operations.
//
// It wraps the synchronous Client and executes all operations in separate goroutines,
// making it suitable for scenarios requiring concurrent processing of multiple operations.
//
// All async methods return channels that will receive the results when operations complete.
// The client tracks all goroutines and provides Wait() to ensure all operations finish.
// Sync and async surfaces share one implementation, so consolidation and
// ranking behave identically on both.
//
// Example:
//
//	asyncClient, _ := core.NewAsyncClient(config)
//	defer asyncClient.Close()
//
//	resultChan := asyncClient.AddAsync(ctx, "User likes Python", core.WithUserID("user_001"))
//	result := <-resultChan
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
type AsyncClient struct {
	*Client
	wg sync.WaitGroup
}

// NewAsyncClient creates a new asynchronous mmry client.
//
// Parameters:
//   - cfg: mmry configuration
//
// Returns:
//   - *AsyncClient: The asynchronous client instance
//   - error: Error if configuration is invalid or initialization fails
func NewAsyncClient(cfg *Config) (*AsyncClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return &AsyncClient{
		Client: client,
	}, nil
}

// NewAsyncClientFromClient wraps an existing synchronous client.
func NewAsyncClientFromClient(client *Client) *AsyncClient {
	return &AsyncClient{Client: client}
}

// AddAsync ingests text asynchronously.
//
// The operation executes in a separate goroutine and returns results via a channel.
func (ac *AsyncClient) AddAsync(ctx context.Context, content string, opts ...AddOption) <-chan *AsyncAddResult {
	resultChan := make(chan *AsyncAddResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		result, err := ac.Add(ctx, content, opts...)
		resultChan <- &AsyncAddResult{
			Result: result,
			Error:  err,
		}
		close(resultChan)
	}()

	return resultChan
}

// AddMessagesAsync ingests conversation turns asynchronously.
func (ac *AsyncClient) AddMessagesAsync(ctx context.Context, turns []llm.Message, opts ...AddOption) <-chan *AsyncAddResult {
	resultChan := make(chan *AsyncAddResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		result, err := ac.AddMessages(ctx, turns, opts...)
		resultChan <- &AsyncAddResult{
			Result: result,
			Error:  err,
		}
		close(resultChan)
	}()

	return resultChan
}

// QueryAsync queries memories asynchronously.
func (ac *AsyncClient) QueryAsync(ctx context.Context, query string, opts ...QueryOption) <-chan *AsyncQueryResult {
	resultChan := make(chan *AsyncQueryResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		result, err := ac.Query(ctx, query, opts...)
		resultChan <- &AsyncQueryResult{
			Result: result,
			Error:  err,
		}
		close(resultChan)
	}()

	return resultChan
}

// GetAsync retrieves a memory by ID asynchronously.
func (ac *AsyncClient) GetAsync(ctx context.Context, id int64, opts ...GetOption) <-chan *MemoryResult {
	resultChan := make(chan *MemoryResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		memory, err := ac.Get(ctx, id, opts...)
		resultChan <- &MemoryResult{
			Memory: memory,
			Error:  err,
		}
		close(resultChan)
	}()

	return resultChan
}

// UpdateAsync updates a memory asynchronously.
func (ac *AsyncClient) UpdateAsync(ctx context.Context, id int64, content string, opts ...UpdateOption) <-chan *MemoryResult {
	resultChan := make(chan *MemoryResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		memory, err := ac.Update(ctx, id, content, opts...)
		resultChan <- &MemoryResult{
			Memory: memory,
			Error:  err,
		}
		close(resultChan)
	}()

	return resultChan
}

// DeleteAsync deletes a memory asynchronously.
//
// Returns:
//   - <-chan error: Channel that receives error (nil if deletion succeeds)
func (ac *AsyncClient) DeleteAsync(ctx context.Context, id int64, opts ...DeleteOption) <-chan error {
	errChan := make(chan error, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		err := ac.Delete(ctx, id, opts...)
		errChan <- err
		close(errChan)
	}()

	return errChan
}

// GetAllAsync retrieves all memories asynchronously.
func (ac *AsyncClient) GetAllAsync(ctx context.Context, opts ...GetAllOption) <-chan *AsyncGetAllResult {
	resultChan := make(chan *AsyncGetAllResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		memories, err := ac.GetAll(ctx, opts...)
		resultChan <- &AsyncGetAllResult{
			Memories: memories,
			Error:    err,
		}
		close(resultChan)
	}()

	return resultChan
}

// AddBatchAsync ingests a batch asynchronously.
func (ac *AsyncClient) AddBatchAsync(ctx context.Context, requests []AddRequest) <-chan []*BatchAddResult {
	resultChan := make(chan []*BatchAddResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		resultChan <- ac.AddBatch(ctx, requests)
		close(resultChan)
	}()

	return resultChan
}

// Wait waits for all asynchronous operations to complete.
//
// This method blocks until all goroutines started by async methods have finished.
// It should be called before program exit to ensure all operations complete.
func (ac *AsyncClient) Wait() {
	ac.wg.Wait()
}

// Close closes the asynchronous client.
//
// It first waits for all asynchronous operations to complete, then closes the underlying client.
func (ac *AsyncClient) Close() error {
	ac.Wait()
	return ac.Client.Close()
}

// AsyncAddResult contains the result of an asynchronous Add operation.
type AsyncAddResult struct {
	// Result is the add outcome (nil if error occurred).
	Result *AddResult

	// Error is the error returned by the operation (nil if operation succeeded).
	Error error
}

// AsyncQueryResult contains the result of an asynchronous Query operation.
type AsyncQueryResult struct {
	// Result is the query outcome (nil if error occurred).
	Result *QueryResult

	// Error is the error returned by the operation (nil if operation succeeded).
	Error error
}

// MemoryResult contains the result of a single-memory operation.
type MemoryResult struct {
	// Memory is the memory returned by the operation (nil if error occurred).
	Memory *Memory

	// Error is the error returned by the operation (nil if operation succeeded).
	Error error
}

// AsyncGetAllResult contains the result of an asynchronous GetAll operation.
type AsyncGetAllResult struct {
	// Memories is the list of memories.
	Memories []*Memory

	// Error is the error returned by the operation (nil if operation succeeded).
	Error error
}

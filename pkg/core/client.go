package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmry-ai/mmry-go/pkg/embedder"
	mockEmbedder "github.com/mmry-ai/mmry-go/pkg/embedder/mock"
	openaiEmbedder "github.com/mmry-ai/mmry-go/pkg/embedder/openai"
	"github.com/mmry-ai/mmry-go/pkg/intelligence"
	"github.com/mmry-ai/mmry-go/pkg/llm"
	ollamaLLM "github.com/mmry-ai/mmry-go/pkg/llm/ollama"
	openaiLLM "github.com/mmry-ai/mmry-go/pkg/llm/openai"
	openrouterLLM "github.com/mmry-ai/mmry-go/pkg/llm/openrouter"
	"github.com/mmry-ai/mmry-go/pkg/storage"
	memoryStore "github.com/mmry-ai/mmry-go/pkg/storage/memory"
	mysqlStore "github.com/mmry-ai/mmry-go/pkg/storage/mysql"
	postgresStore "github.com/mmry-ai/mmry-go/pkg/storage/postgres"
	sqliteStore "github.com/mmry-ai/mmry-go/pkg/storage/sqlite"
)

// Client is the main mmry client for memory management.
//
// It sits between an application and the vector store, turning raw text into
// consolidated memories on the way in and into ranked, context-summarized
// results on the way out:
//   - Add summarizes input, then merges it into the most similar existing
//     memory or creates a new one
//   - Query embeds the question, reranks matches with time decay, and builds
//     a context paragraph from the winners
//
// The client is thread-safe. Ingestion is serialized per owner so concurrent
// adds of similar content consolidate instead of duplicating; different
// owners proceed in parallel.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(config)
//	defer client.Close()
//
//	result, _ := client.Add(ctx, "I moved to Mumbai last month",
//	    core.WithUserID("user_001"),
//	)
type Client struct {
	// config contains the client configuration.
	config *Config

	// storage is the vector store for memory persistence.
	storage storage.VectorStore

	// llm is the LLM provider for summarization, merging, and context building.
	llm llm.Provider

	// embedder is the embedding provider for vector generation.
	embedder embedder.Provider

	// summarizer distills raw input into memory statements.
	summarizer *intelligence.Summarizer

	// consolidator decides merge-vs-create for each ingest.
	consolidator *intelligence.Consolidator

	// retriever answers queries with decay-ranked results.
	retriever *intelligence.Retriever

	// logger is the optional JSONL event log (nil = disabled).
	logger *EventLogger

	// locks serializes ingestion per owner.
	locks *ownerLocks
}

// NewClient creates a new mmry client.
//
// The client is initialized with:
//   - Vector store (SQLite, PostgreSQL, MySQL, or in-process)
//   - LLM provider (OpenAI, OpenRouter, Ollama)
//   - Embedding provider (OpenAI, mock)
//
// The embedder's vector dimensionality is checked against the store
// configuration so a mismatch fails here rather than mid-query.
//
// Parameters:
//   - cfg: Configuration containing storage, LLM, and embedding settings
//
// Returns a new Client instance, or an error if initialization fails.
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	memCfg := cfg.memoryConfig()

	store, err := initStorage(cfg.VectorStore, memCfg.HistoryLimit)
	if err != nil {
		return nil, err
	}

	llmProvider, err := initLLM(cfg.LLM)
	if err != nil {
		return nil, err
	}

	embedderProvider, err := initEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}

	if dims, ok := storeDimensions(cfg.VectorStore); ok && dims != embedderProvider.Dimensions() {
		return nil, NewMemoryError("NewClient", fmt.Errorf(
			"%w: embedder produces %d dimensions but the store expects %d",
			ErrInvalidConfig, embedderProvider.Dimensions(), dims))
	}

	return NewClientWithComponents(cfg, store, llmProvider, embedderProvider)
}

// NewClientWithComponents creates a client from pre-built providers.
//
// This is the wiring point for tests and for applications that manage their
// own provider lifecycles. The configuration's Memory section and LogPath
// still apply; the provider sections are ignored.
func NewClientWithComponents(cfg *Config, store storage.VectorStore, llmProvider llm.Provider, embedderProvider embedder.Provider) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	memCfg := cfg.memoryConfig()

	consolidator, err := intelligence.NewConsolidator(store, embedderProvider,
		intelligence.NewMerger(llmProvider),
		&intelligence.ConsolidatorConfig{
			SimilarityThreshold: memCfg.SimilarityThreshold,
			CandidateLimit:      memCfg.CandidateLimit,
		})
	if err != nil {
		return nil, NewMemoryError("NewClient", err)
	}

	retriever := intelligence.NewRetriever(store, embedderProvider,
		intelligence.NewContextBuilder(llmProvider),
		&intelligence.RetrieverConfig{
			DecayHalfLife:   memCfg.DecayHalfLife(),
			OverfetchFactor: memCfg.OverfetchFactor,
		})

	var logger *EventLogger
	if cfg.LogPath != "" {
		logger, err = NewEventLogger(cfg.LogPath)
		if err != nil {
			return nil, NewMemoryError("NewClient", err)
		}
	}

	return &Client{
		config:       cfg,
		storage:      store,
		llm:          llmProvider,
		embedder:     embedderProvider,
		summarizer:   intelligence.NewSummarizer(llmProvider),
		consolidator: consolidator,
		retriever:    retriever,
		logger:       logger,
		locks:        newOwnerLocks(),
	}, nil
}

// Add ingests raw text as a memory.
//
// The method:
//  1. Summarizes the text into a factual memory statement
//  2. Generates an embedding for the statement
//  3. Merges it into the most similar existing memory of the same owner,
//     or creates a new record when nothing is similar enough
//
// The search-merge-persist sequence is serialized per owner, so concurrent
// adds of similar content end up consolidated rather than duplicated.
//
// Returns the outcome (status "created" or "merged" plus the record), or an
// error. A failed merge fails the whole ingest; it never silently creates a
// duplicate.
//
// Example:
//
//	result, err := client.Add(ctx, "I started a new job at Google",
//	    core.WithUserID("user_001"),
//	    core.WithMetadata(map[string]interface{}{"source": "chat"}),
//	)
func (c *Client) Add(ctx context.Context, content string, opts ...AddOption) (*AddResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, NewMemoryError("Add", fmt.Errorf("%w: empty content", ErrInvalidInput))
	}

	addOpts := applyAddOptions(opts)

	c.logger.Log("create_request", map[string]interface{}{
		"user_id": addOpts.UserID,
		"text":    content,
	})

	summary, err := c.summarizer.Summarize(ctx, content)
	if err != nil {
		return nil, NewMemoryError("Add", classifyProviderError(err))
	}

	return c.ingest(ctx, summary, content, addOpts)
}

// AddMessages ingests conversation turns as a memory.
//
// The turns are summarized into factual memory statements about the user and
// consolidated like a plain-text Add.
//
// Example:
//
//	result, err := client.AddMessages(ctx, []llm.Message{
//	    {Role: "user", Content: "I just moved to Mumbai"},
//	    {Role: "assistant", Content: "How are you finding it?"},
//	    {Role: "user", Content: "Great, I started at Google here"},
//	}, core.WithUserID("user_001"))
func (c *Client) AddMessages(ctx context.Context, turns []llm.Message, opts ...AddOption) (*AddResult, error) {
	if len(turns) == 0 {
		return nil, NewMemoryError("AddMessages", fmt.Errorf("%w: empty conversation", ErrInvalidInput))
	}

	addOpts := applyAddOptions(opts)

	raw := intelligence.FormatConversation(turns)
	c.logger.Log("create_request", map[string]interface{}{
		"user_id": addOpts.UserID,
		"text":    raw,
	})

	summary, err := c.summarizer.SummarizeConversation(ctx, turns)
	if err != nil {
		return nil, NewMemoryError("AddMessages", classifyProviderError(err))
	}

	return c.ingest(ctx, summary, raw, addOpts)
}

// ingest consolidates a summarized statement under the owner's lock.
func (c *Client) ingest(ctx context.Context, summary, rawText string, addOpts *AddOptions) (*AddResult, error) {
	embedding, err := c.embedder.Embed(ctx, summary)
	if err != nil {
		return nil, NewMemoryError("Add", classifyProviderError(err))
	}

	metadata := make(map[string]interface{}, len(addOpts.Metadata)+1)
	for k, v := range addOpts.Metadata {
		metadata[k] = v
	}
	metadata["raw_text"] = rawText

	release := c.locks.lock(addOpts.UserID)
	defer release()

	result, err := c.consolidator.Consolidate(ctx, addOpts.UserID, summary, embedding, metadata)
	if err != nil {
		return nil, NewMemoryError("Add", classifyProviderError(err))
	}

	c.logger.Log("create_result", map[string]interface{}{
		"user_id": addOpts.UserID,
		"status":  result.Status,
		"id":      result.Memory.ID,
		"content": result.Memory.Content,
	})

	return &AddResult{
		Status: result.Status,
		Memory: fromStorageMemory(result.Memory),
	}, nil
}

// Query retrieves memories relevant to a question.
//
// The query is embedded, the owner's nearest memories are reranked with time
// decay, and a context paragraph is built from the topK winners. When no
// memory matches, the result carries the empty-context sentinel and the LLM
// is not called.
//
// Example:
//
//	result, err := client.Query(ctx, "Where does the user work?",
//	    core.WithUserIDForQuery("user_001"),
//	    core.WithTopK(5),
//	)
func (c *Client) Query(ctx context.Context, query string, opts ...QueryOption) (*QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, NewMemoryError("Query", fmt.Errorf("%w: empty query", ErrInvalidInput))
	}

	queryOpts := applyQueryOptions(opts)

	c.logger.Log("query_request", map[string]interface{}{
		"user_id": queryOpts.UserID,
		"query":   query,
		"top_k":   queryOpts.TopK,
	})

	retrieval, err := c.retriever.Retrieve(ctx, queryOpts.UserID, query, queryOpts.TopK)
	if err != nil {
		return nil, NewMemoryError("Query", classifyProviderError(err))
	}

	result := &QueryResult{
		Query:          query,
		ContextSummary: retrieval.ContextSummary,
	}
	for _, candidate := range retrieval.Candidates {
		result.Memories = append(result.Memories, &Candidate{
			Memory:     fromStorageMemory(candidate.Memory),
			Similarity: candidate.Similarity,
			RankScore:  candidate.RankScore,
		})
	}

	c.logger.Log("query_result", map[string]interface{}{
		"user_id": queryOpts.UserID,
		"query":   query,
		"results": len(result.Memories),
	})

	return result, nil
}

// Update replaces a memory's content directly, bypassing consolidation.
//
// The new content is embedded and the record is rewritten with its prior
// content appended to the version history. Returns ErrNotFound when the
// memory does not exist or belongs to another owner.
//
// Example:
//
//	memory, err := client.Update(ctx, id, "User lives in Pune now",
//	    core.WithUserIDForUpdate("user_001"),
//	)
func (c *Client) Update(ctx context.Context, id int64, content string, opts ...UpdateOption) (*Memory, error) {
	if strings.TrimSpace(content) == "" {
		return nil, NewMemoryError("Update", fmt.Errorf("%w: empty content", ErrInvalidInput))
	}

	updateOpts := applyUpdateOptions(opts)

	embedding, err := c.embedder.Embed(ctx, content)
	if err != nil {
		return nil, NewMemoryError("Update", classifyProviderError(err))
	}

	release := c.locks.lock(updateOpts.UserID)
	defer release()

	memory, err := c.storage.Update(ctx, id, content, embedding, &storage.UpdateOptions{
		UserID: updateOpts.UserID,
	})
	if err != nil {
		return nil, NewMemoryError("Update", classifyProviderError(err))
	}

	c.logger.Log("update_result", map[string]interface{}{
		"user_id": updateOpts.UserID,
		"id":      id,
	})

	return fromStorageMemory(memory), nil
}

// Get retrieves a memory by ID, including its version history.
//
// Returns ErrNotFound when the memory does not exist or belongs to another
// owner.
func (c *Client) Get(ctx context.Context, id int64, opts ...GetOption) (*Memory, error) {
	getOpts := applyGetOptions(opts)

	memory, err := c.storage.Get(ctx, id, &storage.GetOptions{
		UserID: getOpts.UserID,
	})
	if err != nil {
		return nil, NewMemoryError("Get", classifyProviderError(err))
	}

	return fromStorageMemory(memory), nil
}

// Delete removes a memory permanently. Its ID is never reused.
//
// Returns ErrNotFound when the memory does not exist or belongs to another
// owner.
func (c *Client) Delete(ctx context.Context, id int64, opts ...DeleteOption) error {
	deleteOpts := applyDeleteOptions(opts)

	err := c.storage.Delete(ctx, id, &storage.DeleteOptions{
		UserID: deleteOpts.UserID,
	})
	if err != nil {
		return NewMemoryError("Delete", classifyProviderError(err))
	}

	c.logger.Log("delete_result", map[string]interface{}{
		"user_id": deleteOpts.UserID,
		"id":      id,
	})

	return nil
}

// GetAll lists memories, newest first, with optional owner filter and
// pagination.
//
// Example:
//
//	memories, err := client.GetAll(ctx,
//	    core.WithUserIDForGetAll("user_001"),
//	    core.WithLimitForGetAll(20),
//	)
func (c *Client) GetAll(ctx context.Context, opts ...GetAllOption) ([]*Memory, error) {
	getAllOpts := applyGetAllOptions(opts)

	memories, err := c.storage.GetAll(ctx, &storage.GetAllOptions{
		UserID: getAllOpts.UserID,
		Limit:  getAllOpts.Limit,
		Offset: getAllOpts.Offset,
	})
	if err != nil {
		return nil, NewMemoryError("GetAll", classifyProviderError(err))
	}

	return fromStorageMemories(memories), nil
}

// DeleteAll removes all memories for an owner, or every memory when no
// owner is given.
func (c *Client) DeleteAll(ctx context.Context, opts ...DeleteOption) error {
	deleteOpts := applyDeleteOptions(opts)

	err := c.storage.DeleteAll(ctx, &storage.DeleteAllOptions{
		UserID: deleteOpts.UserID,
	})
	if err != nil {
		return NewMemoryError("DeleteAll", classifyProviderError(err))
	}

	return nil
}

// Close closes the client and releases all provider resources.
func (c *Client) Close() error {
	var firstErr error
	if err := c.storage.Close(); err != nil {
		firstErr = err
	}
	if err := c.llm.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// initStorage creates the vector store from configuration.
func initStorage(cfg VectorStoreConfig, historyLimit int) (storage.VectorStore, error) {
	switch cfg.Provider {
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:             getStringConfig(cfg.Config, "db_path", "./mmry.db"),
			CollectionName:     getStringConfig(cfg.Config, "collection_name", "memories"),
			EmbeddingModelDims: getIntConfig(cfg.Config, "embedding_model_dims", 1536),
			HistoryLimit:       historyLimit,
		})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:               getStringConfig(cfg.Config, "host", "localhost"),
			Port:               getIntConfig(cfg.Config, "port", 5432),
			User:               getStringConfig(cfg.Config, "user", "postgres"),
			Password:           getStringConfig(cfg.Config, "password", ""),
			DBName:             getStringConfig(cfg.Config, "db_name", "mmry"),
			CollectionName:     getStringConfig(cfg.Config, "collection_name", "memories"),
			EmbeddingModelDims: getIntConfig(cfg.Config, "embedding_model_dims", 1536),
			SSLMode:            getStringConfig(cfg.Config, "ssl_mode", "disable"),
			HistoryLimit:       historyLimit,
		})
	case "mysql":
		return mysqlStore.NewClient(&mysqlStore.Config{
			Host:               getStringConfig(cfg.Config, "host", "127.0.0.1"),
			Port:               getIntConfig(cfg.Config, "port", 3306),
			User:               getStringConfig(cfg.Config, "user", "root"),
			Password:           getStringConfig(cfg.Config, "password", ""),
			DBName:             getStringConfig(cfg.Config, "db_name", "mmry"),
			CollectionName:     getStringConfig(cfg.Config, "collection_name", "memories"),
			EmbeddingModelDims: getIntConfig(cfg.Config, "embedding_model_dims", 1536),
			HistoryLimit:       historyLimit,
		})
	case "memory":
		return memoryStore.NewStore(&memoryStore.Config{
			HistoryLimit: historyLimit,
		}), nil
	default:
		return nil, NewMemoryError("initStorage",
			fmt.Errorf("%w: unsupported vector store provider: %s", ErrInvalidConfig, cfg.Provider))
	}
}

// initLLM creates the LLM provider from configuration.
func initLLM(cfg LLMConfig) (llm.Provider, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Provider {
	case "openai":
		return openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: timeout,
		})
	case "openrouter":
		return openrouterLLM.NewClient(&openrouterLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: timeout,
		})
	case "ollama":
		return ollamaLLM.NewClient(&ollamaLLM.Config{
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: timeout,
		})
	default:
		return nil, NewMemoryError("initLLM",
			fmt.Errorf("%w: unsupported llm provider: %s", ErrInvalidConfig, cfg.Provider))
	}
}

// initEmbedder creates the embedding provider from configuration.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
			Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		})
	case "mock":
		return mockEmbedder.NewClient(&mockEmbedder.Config{
			Dimensions: cfg.Dimensions,
		}), nil
	default:
		return nil, NewMemoryError("initEmbedder",
			fmt.Errorf("%w: unsupported embedder provider: %s", ErrInvalidConfig, cfg.Provider))
	}
}

// storeDimensions reads the configured embedding dimensionality, when the
// backend declares one.
func storeDimensions(cfg VectorStoreConfig) (int, bool) {
	if cfg.Provider == "memory" {
		return 0, false
	}
	if cfg.Config == nil {
		return 0, false
	}
	dims := getIntConfig(cfg.Config, "embedding_model_dims", 0)
	return dims, dims > 0
}

func getStringConfig(config map[string]interface{}, key, defaultValue string) string {
	if config == nil {
		return defaultValue
	}
	if value, ok := config[key].(string); ok && value != "" {
		return value
	}
	return defaultValue
}

func getIntConfig(config map[string]interface{}, key string, defaultValue int) int {
	if config == nil {
		return defaultValue
	}
	switch value := config[key].(type) {
	case int:
		return value
	case float64:
		return int(value)
	}
	return defaultValue
}

func applyAddOptions(opts []AddOption) *AddOptions {
	options := &AddOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func applyQueryOptions(opts []QueryOption) *QueryOptions {
	options := &QueryOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func applyUpdateOptions(opts []UpdateOption) *UpdateOptions {
	options := &UpdateOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func applyDeleteOptions(opts []DeleteOption) *DeleteOptions {
	options := &DeleteOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func applyGetOptions(opts []GetOption) *GetOptions {
	options := &GetOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func applyGetAllOptions(opts []GetAllOption) *GetAllOptions {
	options := &GetAllOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

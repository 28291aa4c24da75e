package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for a mmry client.
//
// It includes settings for:
//   - LLM provider (summarization, merging, context building)
//   - Embedding provider (vector generation)
//   - Vector store (memory persistence)
//   - Memory behavior (consolidation threshold, decay, history bounds)
//
// Example:
//
//	config := &core.Config{
//	    LLM: core.LLMConfig{
//	        Provider: "openrouter",
//	        APIKey:   "sk-or-...",
//	    },
//	    Embedder: core.EmbedderConfig{
//	        Provider:   "openai",
//	        APIKey:     "sk-...",
//	        Dimensions: 1536,
//	    },
//	    VectorStore: core.VectorStoreConfig{
//	        Provider: "sqlite",
//	        Config: map[string]interface{}{
//	            "db_path": "./memories.db",
//	        },
//	    },
//	}
type Config struct {
	// LLM contains LLM provider configuration.
	LLM LLMConfig `json:"llm"`

	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder"`

	// VectorStore contains vector store configuration.
	VectorStore VectorStoreConfig `json:"vector_store"`

	// Memory contains memory behavior configuration (nil = defaults).
	Memory *MemoryConfig `json:"memory,omitempty"`

	// LogPath enables the JSONL event log when non-empty.
	LogPath string `json:"log_path,omitempty"`
}

// LLMConfig contains configuration for the LLM provider.
//
// Supported providers: openai, openrouter, ollama
type LLMConfig struct {
	// Provider is the LLM provider name (openai, openrouter, ollama).
	Provider string `json:"provider"`

	// APIKey is the API key for the LLM provider.
	APIKey string `json:"api_key"`

	// Model is the model name to use (provider default if empty).
	Model string `json:"model,omitempty"`

	// BaseURL is the base URL for the API (provider default if empty).
	BaseURL string `json:"base_url,omitempty"`

	// TimeoutSeconds bounds each LLM call (0 = no client-side deadline).
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai, mock
type EmbedderConfig struct {
	// Provider is the embedding provider name (openai, mock).
	Provider string `json:"provider"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key"`

	// Model is the embedding model name (provider default if empty).
	Model string `json:"model,omitempty"`

	// BaseURL is the base URL for the API (provider default if empty).
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (e.g., 1536).
	Dimensions int `json:"dimensions,omitempty"`

	// TimeoutSeconds bounds each embedding call (0 = no client-side deadline).
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// VectorStoreConfig contains configuration for the vector store.
//
// Supported providers: sqlite, postgres, mysql, memory
type VectorStoreConfig struct {
	// Provider is the vector store provider name (sqlite, postgres, mysql, memory).
	Provider string `json:"provider"`

	// Config contains provider-specific configuration.
	// For SQLite: db_path, collection_name, embedding_model_dims
	// For PostgreSQL: host, port, user, password, db_name, collection_name, embedding_model_dims, ssl_mode
	// For MySQL: host, port, user, password, db_name, collection_name, embedding_model_dims
	Config map[string]interface{} `json:"config"`
}

// Default memory behavior values.
const (
	DefaultSimilarityThreshold  = 0.8
	DefaultDecayHalfLifeSeconds = 360000
	DefaultOverfetchFactor      = 3
	DefaultCandidateLimit       = 5
	DefaultHistoryLimit         = 50
)

// MemoryConfig contains configuration for memory behavior.
type MemoryConfig struct {
	// SimilarityThreshold is the minimum cosine similarity for an incoming
	// summary to merge into an existing memory. At exactly the threshold
	// the merge wins. Range [0, 1]; 0 merges into the nearest memory
	// whenever one exists.
	SimilarityThreshold float64 `json:"similarity_threshold"`

	// DecayHalfLifeSeconds controls how fast older memories lose rank
	// during retrieval.
	DecayHalfLifeSeconds float64 `json:"decay_half_life_seconds"`

	// OverfetchFactor multiplies topK for the retrieval store fetch.
	OverfetchFactor int `json:"overfetch_factor"`

	// CandidateLimit caps how many neighbors are examined per ingest.
	CandidateLimit int `json:"candidate_limit"`

	// HistoryLimit bounds the version history per memory.
	HistoryLimit int `json:"history_limit"`
}

// DefaultMemoryConfig returns the default memory behavior configuration.
func DefaultMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		SimilarityThreshold:  DefaultSimilarityThreshold,
		DecayHalfLifeSeconds: DefaultDecayHalfLifeSeconds,
		OverfetchFactor:      DefaultOverfetchFactor,
		CandidateLimit:       DefaultCandidateLimit,
		HistoryLimit:         DefaultHistoryLimit,
	}
}

// DecayHalfLife returns the half-life as a duration.
func (m *MemoryConfig) DecayHalfLife() time.Duration {
	return time.Duration(m.DecayHalfLifeSeconds * float64(time.Second))
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, postgres, mysql, memory)
//   - SQLITE_PATH, SQLITE_COLLECTION, SQLITE_EMBEDDING_MODEL_DIMS
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD, etc.
//   - MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD, etc.
//   - LLM_PROVIDER, LLM_API_KEY, LLM_MODEL, LLM_BASE_URL
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL
//   - SIMILARITY_THRESHOLD, DECAY_HALF_LIFE_SECONDS, HISTORY_LIMIT
//   - MEMORY_LOG_PATH (enables the JSONL event log)
//
// Returns a Config instance, or an error if loading fails.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")

	vectorStoreConfig := make(map[string]interface{})

	switch provider {
	case "sqlite":
		dims, _ := strconv.Atoi(getEnvOrDefault("SQLITE_EMBEDDING_MODEL_DIMS", "1536"))

		vectorStoreConfig = map[string]interface{}{
			"db_path":              getEnvOrDefault("SQLITE_PATH", "./mmry.db"),
			"collection_name":      getEnvOrDefault("SQLITE_COLLECTION", "memories"),
			"embedding_model_dims": dims,
		}
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		dims, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_EMBEDDING_MODEL_DIMS", "1536"))

		vectorStoreConfig = map[string]interface{}{
			"host":                 getEnvOrDefault("POSTGRES_HOST", "localhost"),
			"port":                 port,
			"user":                 getEnvOrDefault("POSTGRES_USER", "postgres"),
			"password":             os.Getenv("POSTGRES_PASSWORD"),
			"db_name":              getEnvOrDefault("POSTGRES_DATABASE", "mmry"),
			"collection_name":      getEnvOrDefault("POSTGRES_COLLECTION", "memories"),
			"embedding_model_dims": dims,
			"ssl_mode":             getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
		}
	case "mysql":
		port, _ := strconv.Atoi(getEnvOrDefault("MYSQL_PORT", "3306"))
		dims, _ := strconv.Atoi(getEnvOrDefault("MYSQL_EMBEDDING_MODEL_DIMS", "1536"))

		vectorStoreConfig = map[string]interface{}{
			"host":                 getEnvOrDefault("MYSQL_HOST", "127.0.0.1"),
			"port":                 port,
			"user":                 getEnvOrDefault("MYSQL_USER", "root"),
			"password":             os.Getenv("MYSQL_PASSWORD"),
			"db_name":              getEnvOrDefault("MYSQL_DATABASE", "mmry"),
			"collection_name":      getEnvOrDefault("MYSQL_COLLECTION", "memories"),
			"embedding_model_dims": dims,
		}
	}

	llmProvider := getEnvOrDefault("LLM_PROVIDER", "openrouter")
	var llmBaseURL string
	switch llmProvider {
	case "ollama":
		llmBaseURL = os.Getenv("OLLAMA_LLM_BASE_URL")
	default:
		llmBaseURL = os.Getenv("LLM_BASE_URL")
	}

	embedderProvider := getEnvOrDefault("EMBEDDING_PROVIDER", "openai")
	dims, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_DIMENSIONS", "1536"))

	memoryConfig := DefaultMemoryConfig()
	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			memoryConfig.SimilarityThreshold = threshold
		}
	}
	if v := os.Getenv("DECAY_HALF_LIFE_SECONDS"); v != "" {
		if halfLife, err := strconv.ParseFloat(v, 64); err == nil {
			memoryConfig.DecayHalfLifeSeconds = halfLife
		}
	}
	if v := os.Getenv("HISTORY_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			memoryConfig.HistoryLimit = limit
		}
	}

	config := &Config{
		LLM: LLMConfig{
			Provider: llmProvider,
			APIKey:   os.Getenv("LLM_API_KEY"),
			Model:    os.Getenv("LLM_MODEL"),
			BaseURL:  llmBaseURL,
		},
		Embedder: EmbedderConfig{
			Provider:   embedderProvider,
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      os.Getenv("EMBEDDING_MODEL"),
			BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
			Dimensions: dims,
		},
		VectorStore: VectorStoreConfig{
			Provider: provider,
			Config:   vectorStoreConfig,
		},
		Memory:  memoryConfig,
		LogPath: os.Getenv("MEMORY_LOG_PATH"),
	}

	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, NewMemoryError("LoadConfigFromEnvFile", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewMemoryError("LoadConfigFromJSON", err)
	}

	return &config, nil
}

// Validate validates the configuration.
//
// Checks that all required fields are set and that memory behavior values
// are in range:
//   - LLM, embedder, and vector store providers must be specified
//   - SimilarityThreshold must be within [0, 1]
//   - DecayHalfLifeSeconds must be positive
//   - OverfetchFactor must be at least 1
//
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	if c.Embedder.Provider == "" {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	if c.VectorStore.Provider == "" {
		return NewMemoryError("Validate", ErrInvalidConfig)
	}
	if c.Memory != nil {
		if c.Memory.SimilarityThreshold < 0 || c.Memory.SimilarityThreshold > 1 {
			return NewMemoryError("Validate", ErrInvalidConfig)
		}
		if c.Memory.DecayHalfLifeSeconds <= 0 {
			return NewMemoryError("Validate", ErrInvalidConfig)
		}
		if c.Memory.OverfetchFactor < 1 {
			return NewMemoryError("Validate", ErrInvalidConfig)
		}
	}
	return nil
}

// memoryConfig returns the memory behavior, falling back to defaults.
func (c *Config) memoryConfig() *MemoryConfig {
	if c.Memory != nil {
		return c.Memory
	}
	return DefaultMemoryConfig()
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}

package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		LLM:         LLMConfig{Provider: "openrouter", APIKey: "key"},
		Embedder:    EmbedderConfig{Provider: "mock", Dimensions: 8},
		VectorStore: VectorStoreConfig{Provider: "memory"},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"missing llm provider", func(c *Config) { c.LLM.Provider = "" }, true},
		{"missing embedder provider", func(c *Config) { c.Embedder.Provider = "" }, true},
		{"missing store provider", func(c *Config) { c.VectorStore.Provider = "" }, true},
		{"threshold above one", func(c *Config) {
			c.Memory = DefaultMemoryConfig()
			c.Memory.SimilarityThreshold = 1.1
		}, true},
		{"negative threshold", func(c *Config) {
			c.Memory = DefaultMemoryConfig()
			c.Memory.SimilarityThreshold = -0.1
		}, true},
		{"zero threshold is legal", func(c *Config) {
			c.Memory = DefaultMemoryConfig()
			c.Memory.SimilarityThreshold = 0
		}, false},
		{"non-positive half-life", func(c *Config) {
			c.Memory = DefaultMemoryConfig()
			c.Memory.DecayHalfLifeSeconds = 0
		}, true},
		{"overfetch below one", func(c *Config) {
			c.Memory = DefaultMemoryConfig()
			c.Memory.OverfetchFactor = 0
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultMemoryConfig(t *testing.T) {
	cfg := DefaultMemoryConfig()
	assert.Equal(t, 0.8, cfg.SimilarityThreshold)
	assert.Equal(t, float64(360000), cfg.DecayHalfLifeSeconds)
	assert.Equal(t, 3, cfg.OverfetchFactor)
	assert.Equal(t, 50, cfg.HistoryLimit)
}

func TestLoadConfigFromJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"llm": {"provider": "openrouter", "api_key": "key"},
		"embedder": {"provider": "openai", "api_key": "key", "dimensions": 1536},
		"vector_store": {"provider": "sqlite", "config": {"db_path": "./test.db"}},
		"memory": {"similarity_threshold": 0.9, "decay_half_life_seconds": 7200, "overfetch_factor": 2, "history_limit": 10}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfigFromJSON(path)
	require.NoError(t, err)

	assert.Equal(t, "openrouter", cfg.LLM.Provider)
	assert.Equal(t, "sqlite", cfg.VectorStore.Provider)
	require.NotNil(t, cfg.Memory)
	assert.Equal(t, 0.9, cfg.Memory.SimilarityThreshold)
	assert.Equal(t, 10, cfg.Memory.HistoryLimit)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromJSONMissingFile(t *testing.T) {
	_, err := LoadConfigFromJSON(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestNewClientRejectsDimensionMismatch(t *testing.T) {
	cfg := &Config{
		LLM:      LLMConfig{Provider: "openrouter", APIKey: "key"},
		Embedder: EmbedderConfig{Provider: "mock", Dimensions: 8},
		VectorStore: VectorStoreConfig{
			Provider: "sqlite",
			Config: map[string]interface{}{
				"db_path":              filepath.Join(t.TempDir(), "test.db"),
				"embedding_model_dims": 1536,
			},
		},
	}

	_, err := NewClient(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

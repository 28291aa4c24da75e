// Package ollama provides an Ollama LLM client for local models.
//
// Ollama serves an OpenAI-compatible chat completions endpoint under /v1,
// so the client reuses the OpenAI SDK pointed at the local server. No API
// key is required; the SDK demands a non-empty value, so a placeholder is
// used.
package ollama

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mmry-ai/mmry-go/pkg/llm"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is the local Ollama OpenAI-compatible endpoint.
const DefaultBaseURL = "http://localhost:11434/v1"

// DefaultModel is used when no model is configured.
const DefaultModel = "llama3"

// Client is an Ollama LLM client implementing llm.Provider.
type Client struct {
	client *openai.Client
	model  string
}

// Config is the configuration for Ollama.
// Model: Model name pulled into the local Ollama instance
// BaseURL: Server URL, defaults to http://localhost:11434/v1
// Timeout: Per-request timeout, 0 disables the client-side deadline
type Config struct {
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new Ollama client.
func NewClient(cfg *Config) (*Client, error) {
	config := openai.DefaultConfig("ollama")
	config.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Generate generates text based on the prompt.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	messages := []llm.Message{
		{Role: "user", Content: prompt},
	}
	return c.GenerateWithMessages(ctx, messages, opts...)
}

// GenerateWithMessages generates text using message history.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		TopP:        float32(options.TopP),
		Stop:        options.Stop,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("llm generation failed: no choices returned from Ollama")
	}

	return resp.Choices[0].Message.Content, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return nil
}

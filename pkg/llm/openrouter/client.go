// Package openrouter provides an OpenRouter LLM client.
//
// OpenRouter exposes an OpenAI-compatible API that routes requests to many
// upstream model providers, so the client reuses the OpenAI SDK with a
// different base URL and provider-prefixed model names.
package openrouter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mmry-ai/mmry-go/pkg/llm"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is the OpenRouter API endpoint.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// DefaultModel is used when no model is configured.
const DefaultModel = "openai/gpt-oss-safeguard-20b"

// Client is an OpenRouter LLM client implementing llm.Provider.
type Client struct {
	client *openai.Client
	model  string
}

// Config is the configuration for OpenRouter.
// APIKey: OpenRouter API key (required)
// Model: Provider-prefixed model name, e.g. "anthropic/claude-3-haiku"
// BaseURL: API base URL, defaults to the official OpenRouter endpoint
// Timeout: Per-request timeout, 0 disables the client-side deadline
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new OpenRouter client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("NewOpenRouterClient: api key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
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
		return "", errors.New("llm generation failed: no choices returned from OpenRouter API")
	}

	return resp.Choices[0].Message.Content, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return nil
}

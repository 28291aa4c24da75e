package intelligence

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmry-ai/mmry-go/pkg/llm"
)

// Summarizer distills raw text or conversation turns into a compact factual
// memory statement before it is consolidated.
type Summarizer struct {
	llm llm.Provider
}

// NewSummarizer creates a Summarizer backed by the given LLM provider.
func NewSummarizer(provider llm.Provider) *Summarizer {
	return &Summarizer{llm: provider}
}

// Summarize condenses plain text into one factual memory statement.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize the following text into one factual memory statement "+
			"about the user. Be concise and neutral.\n\n"+
			"Text: %s\n\nMemory:", text)

	result, err := s.llm.Generate(ctx, prompt,
		llm.WithMaxTokens(256),
		llm.WithTemperature(0.2),
	)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	return strings.TrimSpace(result), nil
}

// SummarizeConversation extracts key factual memories from conversation
// turns and condenses them into memory statements.
func (s *Summarizer) SummarizeConversation(ctx context.Context, turns []llm.Message) (string, error) {
	prompt := fmt.Sprintf(
		"Analyze the following conversation and extract key factual memories "+
			"about the user. Summarize into one or more concise memory statements. "+
			"Be neutral and factual.\n\n"+
			"Conversation:\n%s\n\n"+
			"Extracted Memories:", FormatConversation(turns))

	result, err := s.llm.Generate(ctx, prompt,
		llm.WithMaxTokens(256),
		llm.WithTemperature(0.2),
	)
	if err != nil {
		return "", fmt.Errorf("summarize conversation: %w", err)
	}

	return strings.TrimSpace(result), nil
}

// FormatConversation renders conversation turns as "Role: content" lines.
func FormatConversation(turns []llm.Message) string {
	lines := make([]string, len(turns))
	for i, turn := range turns {
		role := turn.Role
		if role == "" {
			role = "unknown"
		}
		lines[i] = capitalize(role) + ": " + turn.Content
	}
	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

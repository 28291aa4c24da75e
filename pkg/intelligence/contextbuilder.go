package intelligence

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmry-ai/mmry-go/pkg/llm"
)

// ContextBuilder condenses ranked memory statements into one coherent
// paragraph for prompt injection.
type ContextBuilder struct {
	llm llm.Provider
}

// NewContextBuilder creates a ContextBuilder backed by the given LLM provider.
func NewContextBuilder(provider llm.Provider) *ContextBuilder {
	return &ContextBuilder{llm: provider}
}

// BuildContext combines memory statements into one concise paragraph.
//
// Example:
//
//	["User lives in Mumbai", "User works at Google", "User likes sushi"]
//	→ "The user lives in Mumbai, works at Google, and likes sushi."
func (b *ContextBuilder) BuildContext(ctx context.Context, memories []string) (string, error) {
	lines := make([]string, len(memories))
	for i, memory := range memories {
		lines[i] = "- " + memory
	}

	prompt := fmt.Sprintf(
		"You are an assistant that builds context summaries for an AI agent.\n"+
			"Combine the following memory statements into one concise paragraph.\n"+
			"Keep it factual, coherent, and human-readable.\n\n"+
			"Memories:\n%s\n\nContext Summary:", strings.Join(lines, "\n"))

	result, err := b.llm.Generate(ctx, prompt,
		llm.WithMaxTokens(150),
		llm.WithTemperature(0.3),
	)
	if err != nil {
		return "", fmt.Errorf("build context: %w", err)
	}

	return strings.TrimSpace(result), nil
}

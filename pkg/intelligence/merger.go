package intelligence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmry-ai/mmry-go/pkg/llm"
)

// Merger combines an existing memory statement with new information into a
// single updated statement.
type Merger struct {
	llm llm.Provider
}

// NewMerger creates a Merger backed by the given LLM provider.
func NewMerger(provider llm.Provider) *Merger {
	return &Merger{llm: provider}
}

// Merge combines two memory statements into one concise factual statement.
//
// Example:
//
//	old = "User lives in Mumbai."
//	new = "User works at Google in Mumbai."
//	→ "User lives in Mumbai and works at Google."
func (m *Merger) Merge(ctx context.Context, oldMemory, newMemory string) (string, error) {
	prompt := fmt.Sprintf(
		"You are a factual knowledge merger for an AI memory system.\n"+
			"Combine the two given memory statements into one concise, factual statement.\n"+
			"Keep all valid facts, remove contradictions, and be precise.\n\n"+
			"Old memory: %s\n"+
			"New memory: %s\n\n"+
			"Merged memory:", oldMemory, newMemory)

	result, err := m.llm.Generate(ctx, prompt,
		llm.WithMaxTokens(128),
		llm.WithTemperature(0.2),
	)
	if err != nil {
		return "", fmt.Errorf("merge: %w", err)
	}

	result = strings.TrimSpace(result)
	if result == "" {
		return "", errors.New("merge: empty result")
	}

	return result, nil
}

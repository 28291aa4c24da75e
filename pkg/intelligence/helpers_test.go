package intelligence

import (
	"context"
	"errors"
	"strings"

	"github.com/mmry-ai/mmry-go/pkg/llm"
)

// fakeLLM returns a fixed response, or fails when err is set. It records the
// prompts it was called with.
type fakeLLM struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeLLM) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = m.Content
	}
	return f.Generate(ctx, strings.Join(parts, "\n"), opts...)
}

func (f *fakeLLM) Close() error { return nil }

// fakeEmbedder maps exact texts to fixed vectors; unknown texts get the
// fallback vector.
type fakeEmbedder struct {
	vectors  map[string][]float64
	fallback []float64
	err      error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	if f.fallback != nil {
		return f.fallback, nil
	}
	return nil, errors.New("no vector for text: " + text)
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	result := make([][]float64, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

func (f *fakeEmbedder) Dimensions() int {
	if f.fallback != nil {
		return len(f.fallback)
	}
	for _, v := range f.vectors {
		return len(v)
	}
	return 0
}

func (f *fakeEmbedder) Close() error { return nil }

package generator

import (
	"context"
	"fmt"
)

const mockPreview = 100

func NewMockGenerator() Generator {
	return &mockGenerator{}
}

type mockGenerator struct{}

// Generate echoes the first 100 characters of the prompt.
func (g *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	preview := []rune(prompt)
	if len(preview) > mockPreview {
		preview = preview[:mockPreview]
	}

	answer := fmt.Sprintf("This is a mock response for testing. Your question was: '%s...'. "+
		"Please configure a real LLM provider (ollama or openai) for production use.", string(preview))

	return answer, nil
}

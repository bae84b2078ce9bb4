package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIModel     = openai.GPT3Dot5Turbo
	DefaultOpenAIMaxTokens = 500
)

func NewOpenAIGenerator(cfg OpenAIConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}

	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultOpenAIMaxTokens
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &openAIGenerator{
		client:    openai.NewClientWithConfig(config),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

type openAIGenerator struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func (g *openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens: g.maxTokens,
	}

	rsp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: status %d: %s", ErrRequestFailed, apiErr.HTTPStatusCode, apiErr.Message)
		}

		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", fmt.Errorf("%w: status %d: %w", ErrRequestFailed, reqErr.HTTPStatusCode, reqErr.Err)
		}

		return "", fmt.Errorf("%w: openai: %w", ErrServiceUnavailable, err)
	}

	if len(rsp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrRequestFailed)
	}

	return rsp.Choices[0].Message.Content, nil
}

package generator

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrServiceUnavailable  = errors.New("generation service unavailable")
	ErrMissingCredential   = errors.New("missing generation credential")
	ErrRequestFailed       = errors.New("generation request failed")
	ErrUnsupportedProvider = errors.New("unsupported generation provider")
)

type Provider string

const (
	ProviderMock   Provider = "mock"
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

type Config struct {
	Provider Provider     `yaml:"provider"`
	Ollama   OllamaConfig `yaml:"ollama"`
	OpenAI   OpenAIConfig `yaml:"openai"`
}

type OllamaConfig struct {
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

type OpenAIConfig struct {
	APIKey    string `yaml:"apiKey"`
	BaseURL   string `yaml:"baseURL"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"maxTokens"`
}

// Generator turns a prompt into answer text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New selects the generator variant once from cfg.Provider.
func New(cfg Config) (Generator, error) {
	switch cfg.Provider {
	case ProviderMock, "":
		return NewMockGenerator(), nil

	case ProviderOllama:
		return NewOllamaGenerator(cfg.Ollama), nil

	case ProviderOpenAI:
		return NewOpenAIGenerator(cfg.OpenAI)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

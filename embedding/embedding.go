package embedding

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
	ErrMissingCredential   = errors.New("missing embedding credential")
	ErrUnexpectedDimension = errors.New("unexpected embedding dimension")
	ErrEmptyEmbedding      = errors.New("empty embedding")
)

const DefaultDimension = 384

type Provider string

const (
	ProviderHash   Provider = "hash"
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

type Config struct {
	Provider  Provider `yaml:"provider"`
	Model     string   `yaml:"model"`
	BaseURL   string   `yaml:"baseURL"`
	APIKey    string   `yaml:"apiKey"`
	Dimension int      `yaml:"dimension"`
}

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

func New(cfg Config) (Embedder, error) {
	if cfg.Dimension == 0 {
		cfg.Dimension = DefaultDimension
	}

	switch cfg.Provider {
	case ProviderHash, "":
		return NewHashEmbedder(cfg.Dimension), nil

	case ProviderOllama:
		return NewOllamaEmbedder(cfg), nil

	case ProviderOpenAI:
		return NewOpenAIEmbedder(cfg)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

func checkDimension(v []float32, dimension int) error {
	if len(v) == 0 {
		return ErrEmptyEmbedding
	}

	if len(v) != dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrUnexpectedDimension, len(v), dimension)
	}

	return nil
}

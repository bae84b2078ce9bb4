package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"
)

const (
	DefaultOllamaModel   = "all-minilm"
	DefaultOllamaBaseURL = "http://localhost:11434"
)

// NewOllamaEmbedder calls the local Ollama embeddings API through the
// embedding func shipped with chromem-go.
func NewOllamaEmbedder(cfg Config) Embedder {
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}

	if cfg.Dimension == 0 {
		cfg.Dimension = DefaultDimension
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/") + "/api"

	return &ollamaEmbedder{
		embed:     chromem.NewEmbeddingFuncOllama(cfg.Model, baseURL),
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}
}

type ollamaEmbedder struct {
	embed     chromem.EmbeddingFunc
	model     string
	dimension int
}

func (e *ollamaEmbedder) Dimension() int {
	return e.dimension
}

func (e *ollamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ollama %s: %w", e.model, err)
	}

	if err := checkDimension(v, e.dimension); err != nil {
		return nil, err
	}

	return v, nil
}

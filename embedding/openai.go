package embedding

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

func NewOpenAIEmbedder(cfg Config) (Embedder, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}

	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}

	if cfg.Dimension == 0 {
		cfg.Dimension = DefaultDimension
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &openAIEmbedder{
		client:    openai.NewClientWithConfig(config),
		model:     openai.EmbeddingModel(cfg.Model),
		dimension: cfg.Dimension,
	}, nil
}

type openAIEmbedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

func (e *openAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	rsp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      e.model,
		Dimensions: e.dimension,
	})
	if err != nil {
		return nil, err
	}

	if len(rsp.Data) == 0 {
		return nil, ErrEmptyEmbedding
	}

	v := rsp.Data[0].Embedding
	if err := checkDimension(v, e.dimension); err != nil {
		return nil, err
	}

	return v, nil
}

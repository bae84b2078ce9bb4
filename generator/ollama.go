package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "gemma:2b"
)

func NewOllamaGenerator(cfg OllamaConfig) Generator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}

	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}

	return &ollamaGenerator{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  http.DefaultClient,
	}
}

type ollamaGenerator struct {
	baseURL string
	model   string
	client  *http.Client
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (g *ollamaGenerator) unavailable(cause any) error {
	return fmt.Errorf("%w: ollama at %s: %v. Please start Ollama: 'ollama serve' and pull model: 'ollama pull %s'",
		ErrServiceUnavailable, g.baseURL, cause, g.model)
}

func (g *ollamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(&ollamaGenerateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", g.unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", g.unavailable(fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", g.unavailable(err)
	}

	return result.Response, nil
}

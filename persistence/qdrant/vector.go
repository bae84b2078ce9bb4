package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/flarexio/docrag/vector"
)

const payloadText = "text"

func NewQdrantIndex(cfg vector.Config) (vector.Index, error) {
	if cfg.URL == "" || cfg.Collection == "" {
		return nil, errors.New("missing url or collection for qdrant index")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &qdrantIndex{
		location:   strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type qdrantIndex struct {
	location   string
	apiKey     string
	collection string
	client     *http.Client

	mu        sync.RWMutex
	dimension int
}

type envelope[T any] struct {
	Status status `json:"status"`
	Result T      `json:"result"`
}

type status struct {
	State string `json:"status"`
	Error string `json:"error,omitempty"`
}

// Qdrant reports status either as a plain string or as {"error": "..."}.
func (s *status) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}

		s.State = strings.ToLower(v)
		return nil
	}

	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}

	if obj.Error != "" {
		s.State = "error"
		s.Error = obj.Error
	}

	return nil
}

type point struct {
	ID      uint64         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type scoredPoint struct {
	ID      json.Number    `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant http %d: %s", e.Code, e.Body)
}

func (idx *qdrantIndex) collectionPath() string {
	return "/collections/" + url.PathEscape(idx.collection)
}

func (idx *qdrantIndex) EnsureCollection(ctx context.Context, dimension int, distance vector.Distance) error {
	if distance == "" {
		distance = vector.DistanceCosine
	}

	size, err := idx.probe(ctx)
	switch {
	case err == nil:
		if size != 0 && size != dimension {
			return fmt.Errorf("%w: collection %s stores %d, embedder produces %d",
				vector.ErrDimensionMismatch, idx.collection, size, dimension)
		}

	case errors.Is(err, vector.ErrCollectionNotFound):
		if err := idx.create(ctx, dimension, distance); err != nil {
			return err
		}

	default:
		return err
	}

	idx.mu.Lock()
	idx.dimension = dimension
	idx.mu.Unlock()

	return nil
}

type collectionInfo struct {
	Config struct {
		Params struct {
			// a single unnamed vector; named vectors decode as zero
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

// probe returns the stored vector size of an existing collection.
func (idx *qdrantIndex) probe(ctx context.Context) (int, error) {
	var rsp envelope[collectionInfo]

	err := idx.do(ctx, http.MethodGet, idx.collectionPath(), nil, &rsp)
	if err == nil {
		return rsp.Result.Config.Params.Vectors.Size, nil
	}

	var se *statusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return 0, vector.ErrCollectionNotFound
	}

	return 0, err
}

func (idx *qdrantIndex) create(ctx context.Context, dimension int, distance vector.Distance) error {
	req := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": string(distance),
		},
	}

	var rsp envelope[json.RawMessage]
	if err := idx.do(ctx, http.MethodPut, idx.collectionPath(), req, &rsp); err != nil {
		return err
	}

	if rsp.Status.State != "" && rsp.Status.State != "ok" {
		return fmt.Errorf("%w: %s", vector.ErrIndexUnavailable, rsp.Status.Error)
	}

	return nil
}

func (idx *qdrantIndex) ensuredDimension() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.dimension == 0 {
		return 0, vector.ErrCollectionNotReady
	}

	return idx.dimension, nil
}

func (idx *qdrantIndex) Upsert(ctx context.Context, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}

	dimension, err := idx.ensuredDimension()
	if err != nil {
		return err
	}

	if err := vector.CheckDimension(dimension, points...); err != nil {
		return err
	}

	body := make([]point, len(points))
	for i, p := range points {
		payload := make(map[string]any, len(p.Metadata)+1)
		for k, v := range p.Metadata {
			payload[k] = v
		}
		payload[payloadText] = p.Text

		body[i] = point{
			ID:      p.ID,
			Vector:  p.Vector,
			Payload: payload,
		}
	}

	req := map[string]any{
		"points": body,
	}

	// wait=true makes qdrant apply the whole batch before answering
	path := idx.collectionPath() + "/points?wait=true"

	var rsp envelope[json.RawMessage]
	if err := idx.do(ctx, http.MethodPut, path, req, &rsp); err != nil {
		return err
	}

	if rsp.Status.State != "" && rsp.Status.State != "ok" {
		return fmt.Errorf("%w: %s", vector.ErrIndexUnavailable, rsp.Status.Error)
	}

	return nil
}

func (idx *qdrantIndex) Search(ctx context.Context, query []float32, limit int) ([]vector.Result, error) {
	dimension, err := idx.ensuredDimension()
	if err != nil {
		return nil, err
	}

	if len(query) != dimension {
		return nil, fmt.Errorf("%w: query has %d, collection expects %d",
			vector.ErrDimensionMismatch, len(query), dimension)
	}

	if limit < 1 {
		return []vector.Result{}, nil
	}

	req := map[string]any{
		"vector":       query,
		"limit":        limit,
		"with_payload": true,
	}

	var rsp envelope[[]scoredPoint]
	if err := idx.do(ctx, http.MethodPost, idx.collectionPath()+"/points/search", req, &rsp); err != nil {
		return nil, err
	}

	results := make([]vector.Result, 0, len(rsp.Result))
	for _, p := range rsp.Result {
		id, err := strconv.ParseUint(p.ID.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unexpected point id %q: %w", p.ID, err)
		}

		result := vector.Result{
			ID:       id,
			Metadata: make(map[string]string),
			Score:    p.Score,
		}

		for k, v := range p.Payload {
			s, ok := v.(string)
			if !ok {
				continue
			}

			if k == payloadText {
				result.Text = s
				continue
			}

			result.Metadata[k] = s
		}

		results = append(results, result)
	}

	return results, nil
}

func (idx *qdrantIndex) Close() error {
	idx.client.CloseIdleConnections()
	return nil
}

func (idx *qdrantIndex) do(ctx context.Context, method string, path string, req any, rsp any) error {
	var buf io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return err
		}

		buf = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, idx.location+path, buf)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")

	if idx.apiKey != "" {
		request.Header.Set("api-key", idx.apiKey)
	}

	response, err := idx.client.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %w", vector.ErrIndexUnavailable, err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", vector.ErrIndexUnavailable, err)
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("%w: %w", vector.ErrIndexUnavailable,
			&statusError{response.StatusCode, string(payload)})
	}

	if rsp != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, rsp); err != nil {
			return err
		}
	}

	return nil
}

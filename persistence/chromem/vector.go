package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/flarexio/docrag/vector"
)

var errPrecomputedOnly = errors.New("chromem collection accepts precomputed embeddings only")

func NewChromemIndex(cfg vector.Config) (vector.Index, error) {
	var db *chromem.DB
	if !cfg.Persistent {
		db = chromem.NewDB()
	} else {
		d, err := chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", vector.ErrIndexUnavailable, err)
		}

		db = d
	}

	return &chromemIndex{
		db:   db,
		name: cfg.Collection,
	}, nil
}

type chromemIndex struct {
	db   *chromem.DB
	name string

	mu         sync.RWMutex
	collection *chromem.Collection
	dimension  int
}

// Embeddings are always produced upstream by the configured embedder.
func precomputed(ctx context.Context, text string) ([]float32, error) {
	return nil, errPrecomputedOnly
}

func (idx *chromemIndex) EnsureCollection(ctx context.Context, dimension int, distance vector.Distance) error {
	if distance != vector.DistanceCosine {
		return fmt.Errorf("%w: %s", vector.ErrUnsupportedDistance, distance)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	c := idx.db.GetCollection(idx.name, precomputed)
	if c == nil {
		metadata := map[string]string{
			"dimension": strconv.Itoa(dimension),
			"distance":  string(distance),
		}

		created, err := idx.db.CreateCollection(idx.name, metadata, precomputed)
		if err != nil {
			return fmt.Errorf("%w: %w", vector.ErrIndexUnavailable, err)
		}

		c = created
	} else if err := storedDimension(ctx, c, dimension); err != nil {
		return err
	}

	idx.collection = c
	idx.dimension = dimension
	return nil
}

// storedDimension compares dimension against a vector already held by c.
// chromem keeps collection metadata private, so one stored document is
// sampled instead.
func storedDimension(ctx context.Context, c *chromem.Collection, dimension int) error {
	if c.Count() == 0 || dimension < 1 {
		return nil
	}

	unit := make([]float32, dimension)
	unit[0] = 1

	results, err := c.QueryEmbedding(ctx, unit, 1, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: collection %s: %w", vector.ErrDimensionMismatch, c.Name, err)
	}

	if len(results) > 0 && len(results[0].Embedding) != dimension {
		return fmt.Errorf("%w: collection %s stores %d, embedder produces %d",
			vector.ErrDimensionMismatch, c.Name, len(results[0].Embedding), dimension)
	}

	return nil
}

func (idx *chromemIndex) ensured() (*chromem.Collection, int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.collection == nil {
		return nil, 0, vector.ErrCollectionNotReady
	}

	return idx.collection, idx.dimension, nil
}

func (idx *chromemIndex) Upsert(ctx context.Context, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}

	c, dimension, err := idx.ensured()
	if err != nil {
		return err
	}

	if err := vector.CheckDimension(dimension, points...); err != nil {
		return err
	}

	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		docs[i] = chromem.Document{
			ID:        strconv.FormatUint(p.ID, 10),
			Metadata:  p.Metadata,
			Embedding: p.Vector,
			Content:   p.Text,
		}
	}

	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrIndexUnavailable, err)
	}

	return nil
}

func (idx *chromemIndex) Search(ctx context.Context, query []float32, limit int) ([]vector.Result, error) {
	c, dimension, err := idx.ensured()
	if err != nil {
		return nil, err
	}

	if len(query) != dimension {
		return nil, fmt.Errorf("%w: query has %d, collection expects %d",
			vector.ErrDimensionMismatch, len(query), dimension)
	}

	// chromem rejects nResults above the document count
	if limit > c.Count() {
		limit = c.Count()
	}

	if limit < 1 {
		return []vector.Result{}, nil
	}

	results, err := c.QueryEmbedding(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrIndexUnavailable, err)
	}

	out := make([]vector.Result, len(results))
	for i, result := range results {
		id, err := strconv.ParseUint(result.ID, 10, 64)
		if err != nil {
			return nil, err
		}

		out[i] = vector.Result{
			ID:       id,
			Text:     result.Content,
			Metadata: result.Metadata,
			Score:    result.Similarity,
		}
	}

	return out, nil
}

func (idx *chromemIndex) Close() error {
	return nil
}

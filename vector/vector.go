package vector

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrIndexUnavailable    = errors.New("vector index unavailable")
	ErrCollectionNotFound  = errors.New("collection not found")
	ErrDimensionMismatch   = errors.New("vector dimension mismatch")
	ErrUnsupportedDistance = errors.New("unsupported distance metric")
	ErrUnsupportedDriver   = errors.New("unsupported vector driver")
	ErrCollectionNotReady  = errors.New("collection not ensured")
)

// MetadataFilename is the metadata key holding a point's source filename.
const MetadataFilename = "filename"

type Distance string

const (
	DistanceCosine Distance = "Cosine"
)

type Driver string

const (
	DriverChromem  Driver = "chromem"
	DriverQdrant   Driver = "qdrant"
	DriverPGVector Driver = "pgvector"
)

type Config struct {
	Driver     Driver        `yaml:"driver"`
	Collection string        `yaml:"collection"`
	Dimension  int           `yaml:"dimension"`
	Distance   Distance      `yaml:"distance"`
	Timeout    time.Duration `yaml:"timeout"`

	// chromem
	Persistent bool   `yaml:"persistent"`
	Path       string `yaml:"path"`

	// qdrant
	URL    string `yaml:"url"`
	APIKey string `yaml:"apiKey"`

	// pgvector
	DSN string `yaml:"dsn"`
}

// Index persists and searches vectors with attached metadata.
type Index interface {

	// EnsureCollection creates the collection only when it does not exist.
	EnsureCollection(ctx context.Context, dimension int, distance Distance) error

	// Upsert inserts or overwrites points by identifier in one batch.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to limit points ordered by descending similarity.
	Search(ctx context.Context, vector []float32, limit int) ([]Result, error)

	Close() error
}

type Point struct {
	ID       uint64            `json:"id"`
	Vector   []float32         `json:"vector"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Result struct {
	ID       uint64            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float32           `json:"score"`
}

func (r Result) Filename() string {
	if r.Metadata == nil {
		return ""
	}

	return r.Metadata[MetadataFilename]
}

// CheckDimension validates every point against the collection dimension.
func CheckDimension(dimension int, points ...Point) error {
	for _, p := range points {
		if len(p.Vector) != dimension {
			return fmt.Errorf("%w: point %d has %d, collection expects %d",
				ErrDimensionMismatch, p.ID, len(p.Vector), dimension)
		}
	}

	return nil
}

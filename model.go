package docrag

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flarexio/docrag/embedding"
	"github.com/flarexio/docrag/generator"
	"github.com/flarexio/docrag/vector"
)

var (
	ErrInvalidQuestion = errors.New("question must not be empty")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrInvalidChunker  = errors.New("invalid chunker configuration")
	ErrEmbedding       = errors.New("embedding failed")
)

type Config struct {
	UploadDir string          `yaml:"uploadDir"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`

	Embedding embedding.Config `yaml:"embedding"`
	Vector    vector.Config    `yaml:"vector"`
	Generator generator.Config `yaml:"generator"`
}

type ChunkerConfig struct {
	Window  int `yaml:"window"`
	Overlap int `yaml:"overlap"`
}

type RetrievalConfig struct {
	TopK            int `yaml:"topK"`
	ContextResults  int `yaml:"contextResults"`
	MaxContextChars int `yaml:"maxContextChars"`
}

type IngestConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type TimeoutConfig struct {
	Embedding  time.Duration `yaml:"embedding"`
	Search     time.Duration `yaml:"search"`
	Generation time.Duration `yaml:"generation"`
}

const (
	DefaultUploadDir       = "uploads"
	DefaultWindow          = 500
	DefaultOverlap         = 50
	DefaultTopK            = 5
	DefaultContextResults  = 2
	DefaultMaxContextChars = 1500
	DefaultConcurrency     = 4
	DefaultCollection      = "documents"

	DefaultEmbeddingTimeout  = 30 * time.Second
	DefaultSearchTimeout     = 15 * time.Second
	DefaultGenerationTimeout = 120 * time.Second
)

func DefaultConfig() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every zero-valued field.
func (cfg *Config) ApplyDefaults() {
	if cfg.UploadDir == "" {
		cfg.UploadDir = DefaultUploadDir
	}

	if cfg.Chunker.Window == 0 {
		cfg.Chunker.Window = DefaultWindow
	}

	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = DefaultOverlap
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}

	if cfg.Retrieval.ContextResults == 0 {
		cfg.Retrieval.ContextResults = DefaultContextResults
	}

	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = DefaultMaxContextChars
	}

	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = DefaultConcurrency
	}

	if cfg.Timeouts.Embedding == 0 {
		cfg.Timeouts.Embedding = DefaultEmbeddingTimeout
	}

	if cfg.Timeouts.Search == 0 {
		cfg.Timeouts.Search = DefaultSearchTimeout
	}

	if cfg.Timeouts.Generation == 0 {
		cfg.Timeouts.Generation = DefaultGenerationTimeout
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = embedding.ProviderHash
	}

	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = embedding.DefaultDimension
	}

	if cfg.Vector.Driver == "" {
		cfg.Vector.Driver = vector.DriverChromem
	}

	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = DefaultCollection
	}

	if cfg.Vector.Dimension == 0 {
		cfg.Vector.Dimension = cfg.Embedding.Dimension
	}

	if cfg.Vector.Distance == "" {
		cfg.Vector.Distance = vector.DistanceCosine
	}

	if cfg.Vector.Timeout == 0 {
		cfg.Vector.Timeout = cfg.Timeouts.Search
	}

	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = generator.ProviderMock
	}
}

// LoadConfig reads a YAML config file. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}

		cfg.ApplyDefaults()
		return cfg, nil
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// Chunk is one overlapping word window of a document.
type Chunk struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

// ID derives a stable point identifier from the chunk position.
func (c Chunk) ID() uint64 {
	return ChunkID(c.Filename, c.Index)
}

// ChunkID hashes filename and ordinal into a 63-bit identifier, so it also
// fits signed 64-bit columns.
func ChunkID(filename string, ordinal int) uint64 {
	sum := sha256.Sum256([]byte(filename + "|" + strconv.Itoa(ordinal)))
	return binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63)
}

type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

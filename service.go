package docrag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flarexio/docrag/embedding"
	"github.com/flarexio/docrag/extract"
	"github.com/flarexio/docrag/generator"
	"github.com/flarexio/docrag/vector"
)

// Service defines the core logic of docrag.
type Service interface {

	// Close releases the vector index.
	Close() error

	// Ingest extracts, chunks, embeds and indexes the document stored at path,
	// returning the number of chunks written.
	Ingest(ctx context.Context, path string, filename string) (int, error)

	// Query answers a question from the most similar indexed chunks.
	Query(ctx context.Context, question string) (*Answer, error)
}

type ServiceMiddleware func(Service) Service

func NewService(ctx context.Context, cfg Config,
	extractor extract.Extractor,
	embedder embedding.Embedder,
	index vector.Index,
	generator generator.Generator,
) (Service, error) {
	cfg.ApplyDefaults()

	log := zap.L().With(
		zap.String("service", "docrag"),
	)

	chunker, err := NewChunker(cfg.Chunker.Window, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}

	if embedder.Dimension() != cfg.Vector.Dimension {
		return nil, fmt.Errorf("%w: embedder produces %d, index expects %d",
			vector.ErrDimensionMismatch, embedder.Dimension(), cfg.Vector.Dimension)
	}

	ensureCtx, cancel := context.WithTimeout(ctx, cfg.Timeouts.Search)
	defer cancel()

	if err := index.EnsureCollection(ensureCtx, cfg.Vector.Dimension, cfg.Vector.Distance); err != nil {
		return nil, err
	}

	log.Info("collection ensured",
		zap.String("collection", cfg.Vector.Collection),
		zap.Int("dimension", cfg.Vector.Dimension),
	)

	return &service{
		cfg:       cfg,
		log:       log,
		chunker:   chunker,
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		generator: generator,
	}, nil
}

type service struct {
	cfg Config
	log *zap.Logger

	chunker   *Chunker
	extractor extract.Extractor
	embedder  embedding.Embedder
	index     vector.Index
	generator generator.Generator
}

func (svc *service) Close() error {
	return svc.index.Close()
}

func (svc *service) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, svc.cfg.Timeouts.Embedding)
	defer cancel()

	v, err := svc.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	return v, nil
}

func (svc *service) Ingest(ctx context.Context, path string, filename string) (int, error) {
	if strings.TrimSpace(filename) == "" {
		return 0, ErrInvalidFilename
	}

	log := svc.log.With(
		zap.String("action", "ingest"),
		zap.String("filename", filename),
	)

	text, err := svc.extractor.Extract(ctx, path, filename)
	if err != nil {
		return 0, err
	}

	chunks := svc.chunker.Chunk(text, filename)
	if len(chunks) == 0 {
		log.Warn("no text to index")
		return 0, nil
	}

	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.cfg.Ingest.Concurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			v, err := svc.embed(gctx, chunk.Text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}

			vectors[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	points := make([]vector.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = vector.Point{
			ID:     chunk.ID(),
			Vector: vectors[i],
			Text:   chunk.Text,
			Metadata: map[string]string{
				vector.MetadataFilename: filename,
			},
		}
	}

	upsertCtx, cancel := context.WithTimeout(ctx, svc.cfg.Timeouts.Search)
	defer cancel()

	if err := svc.index.Upsert(upsertCtx, points); err != nil {
		return 0, err
	}

	log.Debug("points upserted", zap.Int("count", len(points)))
	return len(chunks), nil
}

func (svc *service) Query(ctx context.Context, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrInvalidQuestion
	}

	query, err := svc.embed(ctx, question)
	if err != nil {
		return nil, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, svc.cfg.Timeouts.Search)
	defer cancel()

	results, err := svc.index.Search(searchCtx, query, svc.cfg.Retrieval.TopK)
	if err != nil {
		return nil, err
	}

	contextText := AssembleContext(results,
		svc.cfg.Retrieval.ContextResults,
		svc.cfg.Retrieval.MaxContextChars,
	)

	prompt := BuildPrompt(question, contextText)

	answer, err := svc.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Answer:  answer,
		Sources: Sources(results),
	}, nil
}

func (svc *service) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, svc.cfg.Timeouts.Generation)
	defer cancel()

	return svc.generator.Generate(ctx, prompt)
}

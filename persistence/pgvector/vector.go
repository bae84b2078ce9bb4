package pgvector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/flarexio/docrag/vector"
)

func NewPGVectorIndex(ctx context.Context, cfg vector.Config) (vector.Index, error) {
	if cfg.DSN == "" || cfg.Collection == "" {
		return nil, errors.New("missing dsn or collection for pgvector index")
	}

	config, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrIndexUnavailable, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", vector.ErrIndexUnavailable, err)
	}

	return &pgvectorIndex{
		pool:  pool,
		name:  cfg.Collection,
		table: pgx.Identifier{cfg.Collection}.Sanitize(),
	}, nil
}

type pgvectorIndex struct {
	pool  *pgxpool.Pool
	name  string
	table string

	mu        sync.RWMutex
	dimension int
}

func (idx *pgvectorIndex) EnsureCollection(ctx context.Context, dimension int, distance vector.Distance) error {
	if distance != vector.DistanceCosine {
		return fmt.Errorf("%w: %s", vector.ErrUnsupportedDistance, distance)
	}

	err := idx.probe(ctx)
	switch {
	case err == nil:
		stored, err := idx.storedDimension(ctx)
		if err != nil {
			return err
		}

		if stored > 0 && stored != dimension {
			return fmt.Errorf("%w: table %s stores %d, embedder produces %d",
				vector.ErrDimensionMismatch, idx.table, stored, dimension)
		}

	case errors.Is(err, vector.ErrCollectionNotFound):
		if err := idx.create(ctx, dimension); err != nil {
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

func (idx *pgvectorIndex) probe(ctx context.Context) error {
	var regclass *string
	if err := idx.pool.QueryRow(ctx, "SELECT to_regclass($1)::text", idx.table).Scan(&regclass); err != nil {
		return fmt.Errorf("%w: %w", vector.ErrIndexUnavailable, err)
	}

	if regclass == nil {
		return vector.ErrCollectionNotFound
	}

	return nil
}

// storedDimension reads the declared size of the embedding column; pgvector
// keeps it as the column type modifier.
func (idx *pgvectorIndex) storedDimension(ctx context.Context) (int, error) {
	var typmod int32

	err := idx.pool.QueryRow(ctx,
		"SELECT atttypmod FROM pg_attribute WHERE attrelid = to_regclass($1) AND attname = 'embedding'",
		idx.table,
	).Scan(&typmod)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", vector.ErrIndexUnavailable, err)
	}

	return int(typmod), nil
}

func (idx *pgvectorIndex) create(ctx context.Context, dimension int) error {
	statements := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id        BIGINT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			text      TEXT NOT NULL,
			metadata  JSONB NOT NULL DEFAULT '{}'
		)`, idx.table, dimension),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)",
			pgx.Identifier{idx.name + "_embedding_idx"}.Sanitize(), idx.table),
	}

	for _, stmt := range statements {
		if _, err := idx.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %w", vector.ErrIndexUnavailable, err)
		}
	}

	return nil
}

func (idx *pgvectorIndex) ensuredDimension() (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.dimension == 0 {
		return 0, vector.ErrCollectionNotReady
	}

	return idx.dimension, nil
}

// Upsert writes the whole batch in one transaction.
func (idx *pgvectorIndex) Upsert(ctx context.Context, points []vector.Point) error {
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

	stmt := fmt.Sprintf(`INSERT INTO %s (id, embedding, text, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET embedding = EXCLUDED.embedding, text = EXCLUDED.text, metadata = EXCLUDED.metadata`, idx.table)

	batch := &pgx.Batch{}
	for _, p := range points {
		metadata := p.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}

		batch.Queue(stmt, int64(p.ID), pgvector.NewVector(p.Vector), p.Text, metadata)
	}

	err = pgx.BeginFunc(ctx, idx.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})

	if err != nil {
		return fmt.Errorf("%w: %w", vector.ErrIndexUnavailable, err)
	}

	return nil
}

func (idx *pgvectorIndex) Search(ctx context.Context, query []float32, limit int) ([]vector.Result, error) {
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

	stmt := fmt.Sprintf(`SELECT id, text, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, idx.table)

	rows, err := idx.pool.Query(ctx, stmt, pgvector.NewVector(query), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	results := make([]vector.Result, 0, limit)
	for rows.Next() {
		var (
			id       int64
			result   vector.Result
			metadata map[string]string
			score    float64
		)

		if err := rows.Scan(&id, &result.Text, &metadata, &score); err != nil {
			return nil, err
		}

		result.ID = uint64(id)
		result.Metadata = metadata
		result.Score = float32(score)

		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", vector.ErrIndexUnavailable, err)
	}

	return results, nil
}

func (idx *pgvectorIndex) Close() error {
	idx.pool.Close()
	return nil
}

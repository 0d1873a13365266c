// Package postgres provides a driven.VectorStore backed by PostgreSQL with
// the pgvector extension. Similarity search uses an HNSW cosine index.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// DefaultTable is the table holding passages and embeddings.
const DefaultTable = "embeddings"

// Config holds configuration for the postgres store.
type Config struct {
	// URL is the connection string (required).
	URL string

	// Dimensions is the vector size of the embedding column (required).
	Dimensions int

	// Table overrides the table name (default: embeddings).
	Table string
}

// Store is a pgvector-backed vector store.
type Store struct {
	pool       *pgxpool.Pool
	table      string
	dimensions int
}

// NewStore connects, creates the schema if missing and checks that an
// existing table has the configured dimensions.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgres: database URL is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("postgres: dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}

	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: postgres: %w", domain.ErrStoreUnavailable, err)
	}

	s := &Store{
		pool:       pool,
		table:      pgx.Identifier{cfg.Table}.Sanitize(),
		dimensions: cfg.Dimensions,
	}
	if err := s.init(ctx, cfg.Table); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// init creates the table and index, then verifies the column size.
func (s *Store) init(ctx context.Context, name string) error {
	index := pgx.Identifier{name + "_embedding_index"}.Sanitize()
	schema := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS %[1]s (
			id varchar(191) PRIMARY KEY,
			source_url varchar(255) NOT NULL,
			content text NOT NULL,
			embedding vector(%[2]d) NOT NULL,
			seq bigserial
		);

		CREATE INDEX IF NOT EXISTS %[3]s ON %[1]s USING hnsw (embedding vector_cosine_ops);
	`, s.table, s.dimensions, index)
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: create schema: %w", err)
	}

	// A vector column's typmod is its dimension count.
	var stored int
	err := s.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = $1::regclass AND attname = 'embedding'
	`, s.table).Scan(&stored)
	if err != nil {
		return fmt.Errorf("postgres: read embedding column: %w", err)
	}
	if stored != s.dimensions {
		return fmt.Errorf("postgres: %w: table has %d, configured %d",
			domain.ErrDimensionMismatch, stored, s.dimensions)
	}
	return nil
}

// Insert appends rows in one transaction using a pipelined batch.
// A row whose ID already exists is left untouched.
func (s *Store) Insert(ctx context.Context, rows []domain.EmbeddedChunk) error {
	if len(rows) == 0 {
		return nil
	}
	for i, row := range rows {
		if len(row.Embedding) != s.dimensions {
			return fmt.Errorf("insert row %d: %w: got %d, want %d",
				i, domain.ErrDimensionMismatch, len(row.Embedding), s.dimensions)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	query := fmt.Sprintf(`
		INSERT INTO %s (id, source_url, content, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, s.table)

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query, row.ID, row.SourceURL, row.Content, pgvector.NewVector(row.Embedding))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// QueryTopK returns at most k rows with 1 - cosine distance >= minSimilarity.
func (s *Store) QueryTopK(
	ctx context.Context, vec []float32, k int, minSimilarity float64,
) ([]domain.EvidenceItem, error) {
	if len(vec) != s.dimensions {
		return nil, fmt.Errorf("query: %w: got %d, want %d", domain.ErrDimensionMismatch, len(vec), s.dimensions)
	}
	if k <= 0 {
		return []domain.EvidenceItem{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, source_url, content, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1, seq
		LIMIT $3
	`, s.table)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vec), minSimilarity, k)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.EvidenceItem, error) {
		var item domain.EvidenceItem
		err := row.Scan(&item.ID, &item.SourceURL, &item.Content, &item.Similarity)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan: %w", err)
	}
	if items == nil {
		items = []domain.EvidenceItem{}
	}
	return items, nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return n, nil
}

// Dimensions returns the vector size of the embedding column.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

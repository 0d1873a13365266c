package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/groundwork/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
	"github.com/custodia-labs/groundwork/internal/vecmath"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// dbFile is the database file name inside the data directory.
const dbFile = "vectors.db"

// metaDimensions is the store_meta key holding the vector size.
const metaDimensions = "dimensions"

// Store is a SQLite-backed vector store.
type Store struct {
	db   *sqlx.DB
	path string

	mu         sync.Mutex
	dimensions int
}

// embeddingRow is one row of the embeddings table.
type embeddingRow struct {
	ID        string `db:"id"`
	SourceURL string `db:"source_url"`
	Content   string `db:"content"`
	Embedding []byte `db:"embedding"`
}

// NewStore opens the store in dataDir, creating it if needed.
// If dataDir is empty, defaults to ~/.groundwork/data.
// A non-zero dimensions must match the size already stored; zero takes the
// stored size, or fixes it at the first insert.
func NewStore(dataDir string, dimensions int) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".groundwork", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)

	// Open database with WAL mode for better concurrency
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	stored, err := s.storedDimensions()
	if err != nil {
		db.Close()
		return nil, err
	}
	switch {
	case stored == 0:
		s.dimensions = dimensions
	case dimensions == 0 || dimensions == stored:
		s.dimensions = stored
	default:
		db.Close()
		return nil, fmt.Errorf("open %s: %w: store has %d, configured %d",
			dbPath, domain.ErrDimensionMismatch, stored, dimensions)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Dimensions returns the vector size of the store, or 0 if not yet fixed.
func (s *Store) Dimensions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dimensions
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	if err := s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_embeddings.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// storedDimensions reads the persisted vector size, 0 if none.
func (s *Store) storedDimensions() (int, error) {
	var value string
	err := s.db.Get(&value, "SELECT value FROM store_meta WHERE key = ?", metaDimensions)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading dimensions: %w", err)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parsing dimensions %q: %w", value, err)
	}
	return n, nil
}

// Insert appends rows in one transaction. A row whose ID already exists
// is left untouched.
func (s *Store) Insert(ctx context.Context, rows []domain.EmbeddedChunk) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dims := s.dimensions
	for i, row := range rows {
		if dims == 0 {
			dims = len(row.Embedding)
		}
		if len(row.Embedding) == 0 || len(row.Embedding) != dims {
			return fmt.Errorf("insert row %d: %w: got %d, want %d",
				i, domain.ErrDimensionMismatch, len(row.Embedding), dims)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if s.dimensions == 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO store_meta (key, value) VALUES (?, ?)", metaDimensions, strconv.Itoa(dims)); err != nil {
			return fmt.Errorf("saving dimensions: %w", err)
		}
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO embeddings (id, source_url, content, embedding)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.ID, row.SourceURL, row.Content, EncodeEmbedding(row.Embedding)); err != nil {
			return fmt.Errorf("inserting row %s: %w", row.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing insert: %w", err)
	}
	s.dimensions = dims
	return nil
}

// QueryTopK scans every row in insertion order and returns at most k with
// similarity >= minSimilarity.
func (s *Store) QueryTopK(
	ctx context.Context, vec []float32, k int, minSimilarity float64,
) ([]domain.EvidenceItem, error) {
	if dims := s.Dimensions(); dims > 0 && len(vec) != dims {
		return nil, fmt.Errorf("query: %w: got %d, want %d", domain.ErrDimensionMismatch, len(vec), dims)
	}

	var rows []embeddingRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT id, source_url, content, embedding FROM embeddings ORDER BY seq"); err != nil {
		return nil, fmt.Errorf("loading embeddings: %w", err)
	}

	vectors := make([][]float32, len(rows))
	for i := range rows {
		v, err := DecodeEmbedding(rows[i].Embedding)
		if err != nil {
			return nil, fmt.Errorf("decoding row %s: %w", rows[i].ID, err)
		}
		vectors[i] = v
	}

	scored, err := vecmath.TopK(vec, vectors, k, minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	items := make([]domain.EvidenceItem, len(scored))
	for i, sc := range scored {
		row := rows[sc.Index]
		items[i] = domain.EvidenceItem{
			ID:         row.ID,
			Content:    row.Content,
			Similarity: sc.Similarity,
			SourceURL:  row.SourceURL,
		}
	}
	return items, nil
}

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM embeddings"); err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return n, nil
}

// EncodeEmbedding encodes vec as little-endian IEEE 754 float32 values
// without a length prefix.
func EncodeEmbedding(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeEmbedding decodes a BLOB produced by EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

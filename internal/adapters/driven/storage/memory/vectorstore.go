package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
	"github.com/custodia-labs/groundwork/internal/vecmath"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
// Queries are a brute-force scan in insertion order.
type VectorStore struct {
	mu         sync.RWMutex
	dimensions int
	rows       []domain.EmbeddedChunk
	vectors    [][]float32
}

// NewVectorStore creates a new in-memory vector store. A zero dimension
// is fixed by the first insert.
func NewVectorStore(dimensions int) *VectorStore {
	return &VectorStore{dimensions: dimensions}
}

// Insert appends rows. Embeddings are copied.
func (s *VectorStore) Insert(ctx context.Context, rows []domain.EmbeddedChunk) error {
	if err := ctx.Err(); err != nil {
		return err
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
	s.dimensions = dims

	for _, row := range rows {
		row.Embedding = slices.Clone(row.Embedding)
		s.rows = append(s.rows, row)
		s.vectors = append(s.vectors, row.Embedding)
	}
	return nil
}

// QueryTopK returns at most k rows with similarity >= minSimilarity.
func (s *VectorStore) QueryTopK(
	ctx context.Context, vec []float32, k int, minSimilarity float64,
) ([]domain.EvidenceItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimensions > 0 && len(vec) != s.dimensions {
		return nil, fmt.Errorf("query: %w: got %d, want %d", domain.ErrDimensionMismatch, len(vec), s.dimensions)
	}

	scored, err := vecmath.TopK(vec, s.vectors, k, minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	items := make([]domain.EvidenceItem, len(scored))
	for i, sc := range scored {
		row := s.rows[sc.Index]
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
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows), nil
}

// Dimensions returns the dimensionality of the index, or 0 if not yet fixed.
func (s *VectorStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions
}

// Close releases resources.
func (s *VectorStore) Close() error {
	return nil
}

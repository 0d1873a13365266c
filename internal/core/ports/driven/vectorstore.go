package driven

import (
	"context"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// VectorStore persists embedded chunks and answers cosine similarity queries.
// All rows share one dimensionality; a mismatching insert or query returns
// domain.ErrDimensionMismatch.
type VectorStore interface {
	// Insert appends rows. Existing rows are never updated.
	Insert(ctx context.Context, rows []domain.EmbeddedChunk) error

	// QueryTopK returns at most k rows with similarity >= minSimilarity,
	// ordered by descending similarity with ties in insertion order.
	// Similarity is 1 - cosine distance.
	QueryTopK(ctx context.Context, vec []float32, k int, minSimilarity float64) ([]domain.EvidenceItem, error)

	// Count returns the number of stored rows.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

package driving

import (
	"context"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// Retriever finds evidence for a query.
type Retriever interface {
	// FindRelevant returns evidence above the configured floor, at most the
	// configured cap, ordered by descending similarity. An empty result is
	// a non-nil empty slice.
	FindRelevant(ctx context.Context, query string) ([]domain.EvidenceItem, error)

	// Search is FindRelevant with explicit options.
	Search(ctx context.Context, query string, opts domain.RetrievalOptions) ([]domain.EvidenceItem, error)
}

package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
	"github.com/custodia-labs/groundwork/internal/core/ports/driving"
	"github.com/custodia-labs/groundwork/internal/logger"
)

// Ensure Retriever implements the interface.
var _ driving.Retriever = (*Retriever)(nil)

// Retriever embeds a query and ranks stored passages by cosine similarity.
type Retriever struct {
	gateway *EmbeddingGateway
	store   driven.VectorStore
	opts    domain.RetrievalOptions
}

// NewRetriever creates a retriever. Zero options use the default floor and cap.
func NewRetriever(gateway *EmbeddingGateway, store driven.VectorStore, opts domain.RetrievalOptions) *Retriever {
	return &Retriever{
		gateway: gateway,
		store:   store,
		opts:    opts.Normalised(),
	}
}

// FindRelevant returns evidence using the configured floor and cap.
func (r *Retriever) FindRelevant(ctx context.Context, query string) ([]domain.EvidenceItem, error) {
	return r.Search(ctx, query, r.opts)
}

// Search returns evidence with similarity >= opts.MinSimilarity, at most
// opts.TopK items, ordered by descending similarity. Ties keep store order.
// No qualifying rows is not an error: the result is an empty slice.
func (r *Retriever) Search(ctx context.Context, query string, opts domain.RetrievalOptions) ([]domain.EvidenceItem, error) {
	logger.Section("Retrieval")

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	opts = opts.Normalised()
	logger.Debug("Query: %q (top %d, floor %.2f)", query, opts.TopK, opts.MinSimilarity)

	vec, err := r.gateway.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	items, err := r.store.QueryTopK(ctx, vec, opts.TopK, opts.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}

	ranked := rank(items, opts)
	logger.Debug("Retrieved %d of %d candidates", len(ranked), len(items))
	return ranked, nil
}

// rank applies the floor, orders stably by descending similarity and caps.
func rank(items []domain.EvidenceItem, opts domain.RetrievalOptions) []domain.EvidenceItem {
	out := make([]domain.EvidenceItem, 0, len(items))
	for _, item := range items {
		if item.Similarity >= opts.MinSimilarity {
			out = append(out, item)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.EvidenceItem) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})
	if len(out) > opts.TopK {
		out = out[:opts.TopK]
	}
	return out
}

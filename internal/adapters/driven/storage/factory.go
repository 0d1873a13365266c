// Package storage creates the configured vector store backend.
package storage

import (
	"context"
	"fmt"

	"github.com/custodia-labs/groundwork/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/groundwork/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/groundwork/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
)

// NewVectorStore opens the backend named by settings. embeddingDims is the
// embedder's vector size, used when settings.Dimensions is zero.
func NewVectorStore(ctx context.Context, settings domain.StoreSettings, embeddingDims int) (driven.VectorStore, error) {
	dims := settings.Dimensions
	if dims == 0 {
		dims = embeddingDims
	}

	switch settings.Backend {
	case domain.StoreBackendMemory:
		return memory.NewVectorStore(dims), nil

	case domain.StoreBackendSQLite, "":
		store, err := sqlite.NewStore(settings.Path, dims)
		if err != nil {
			return nil, fmt.Errorf("%w: sqlite: %w", domain.ErrStoreUnavailable, err)
		}
		return store, nil

	case domain.StoreBackendPostgres:
		store, err := postgres.NewStore(ctx, postgres.Config{URL: settings.DatabaseURL, Dimensions: dims})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("%w: unsupported store backend: %s", domain.ErrConfigInvalid, settings.Backend)
	}
}

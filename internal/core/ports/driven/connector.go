package driven

import (
	"context"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// Connector lists raw documents from a data source.
type Connector interface {
	// Type returns the connector type identifier.
	Type() string

	// Validate checks the source exists and is readable.
	// Returns nil if ready to list, error describing the problem otherwise.
	Validate(ctx context.Context) error

	// FullSync lists all documents from the source.
	// Returns channels for documents and errors; both are closed when done.
	// Per-file errors are sent on the error channel and listing continues.
	FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Skipped returns the files left out by exclusion rules during the
	// last FullSync. Only complete after both channels are closed.
	Skipped() []domain.SkippedFile

	// Close releases resources.
	Close() error
}

package driving

import (
	"context"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
)

// IngestService runs offline ingestion into the vector store.
type IngestService interface {
	// Ingest lists, chunks, embeds and stores every document from the
	// connector. Failed batches are recorded in the report and skipped.
	Ingest(ctx context.Context, connector driven.Connector) (*domain.IngestReport, error)
}

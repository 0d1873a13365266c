package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
	"github.com/custodia-labs/groundwork/internal/core/ports/driving"
	"github.com/custodia-labs/groundwork/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// Batch failure stages.
const (
	StageEmbed = "embed"
	StageStore = "store"
)

// IngestService coordinates offline ingestion: list, normalise, chunk,
// embed and store. Failed files and batches are recorded and skipped.
type IngestService struct {
	normaliser driven.Normaliser
	pipeline   driven.PostProcessorPipeline
	gateway    *EmbeddingGateway
	store      driven.VectorStore
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	normaliser driven.Normaliser,
	pipeline driven.PostProcessorPipeline,
	gateway *EmbeddingGateway,
	store driven.VectorStore,
) *IngestService {
	return &IngestService{
		normaliser: normaliser,
		pipeline:   pipeline,
		gateway:    gateway,
		store:      store,
	}
}

// ingestRun is the state of one Ingest call.
type ingestRun struct {
	report     *domain.IngestReport
	pending    []domain.Chunk
	batchIndex int
}

// Ingest lists every document from the connector and stores its chunks.
// The returned report is non-nil even when an error is returned.
func (s *IngestService) Ingest(ctx context.Context, connector driven.Connector) (*domain.IngestReport, error) {
	run := &ingestRun{
		report: &domain.IngestReport{
			Skipped:       []domain.SkippedFile{},
			Failed:        []domain.SkippedFile{},
			BatchFailures: []domain.BatchFailure{},
			StartedAt:     time.Now(),
		},
	}
	defer func() {
		run.report.Skipped = append(run.report.Skipped, connector.Skipped()...)
		run.report.FinishedAt = time.Now()
	}()

	if err := connector.Validate(ctx); err != nil {
		return run.report, fmt.Errorf("validate source: %w", err)
	}

	logger.Section("Ingestion")
	logger.Info("Ingesting with %s (%s)", connector.Type(), s.gateway.ModelName())

	docsCh, errsCh := connector.FullSync(ctx)
	if err := s.consume(ctx, run, docsCh, errsCh); err != nil {
		return run.report, err
	}
	s.flush(ctx, run, true)
	if err := ctx.Err(); err != nil {
		return run.report, err
	}

	r := run.report
	logger.Info("Ingest complete: %d files, %d chunks stored, %d batches failed",
		r.FilesProcessed, r.ChunksStored, len(r.BatchFailures))
	return r, nil
}

// consume drains the connector channels until both are closed.
// Errors carrying a path are per-file failures; any other error aborts.
func (s *IngestService) consume(
	ctx context.Context,
	run *ingestRun,
	docsCh <-chan domain.RawDocument,
	errsCh <-chan error,
) error {
	for docsCh != nil || errsCh != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			var pathErr *fs.PathError
			if !errors.As(err, &pathErr) {
				return fmt.Errorf("list documents: %w", err)
			}
			logger.Warn("Failed to read %s: %v", pathErr.Path, err)
			run.report.Failed = append(run.report.Failed, domain.SkippedFile{URI: pathErr.Path, Reason: err.Error()})

		case raw, ok := <-docsCh:
			if !ok {
				docsCh = nil
				continue
			}
			run.report.FilesSeen++
			logger.Debug("Processing: %s", raw.URI)
			if err := s.processOneDocument(ctx, run, &raw); err != nil {
				logger.Warn("Failed to process %s: %v", raw.URI, err)
				run.report.Failed = append(run.report.Failed, domain.SkippedFile{URI: raw.URI, Reason: err.Error()})
				continue
			}
			run.report.FilesProcessed++
			if len(run.pending) >= s.gateway.BatchSize() {
				s.flush(ctx, run, false)
			}
		}
	}
	return nil
}

// processOneDocument normalises and chunks one document into the pending batch.
func (s *IngestService) processOneDocument(ctx context.Context, run *ingestRun, raw *domain.RawDocument) error {
	result, err := s.normaliser.Normalise(ctx, raw)
	if err != nil {
		return fmt.Errorf("normalise: %w", err)
	}

	chunks, err := s.pipeline.Process(ctx, &result.Document)
	if err != nil {
		return fmt.Errorf("post-process: %w", err)
	}
	run.report.ChunksProduced += len(chunks)

	for _, chunk := range chunks {
		if Normalise(chunk.Content) == "" || chunk.IsEmpty() {
			run.report.ChunksDropped++
			continue
		}
		run.pending = append(run.pending, chunk)
	}
	return nil
}

// flush embeds and stores pending chunks, one planned batch at a time.
// Unless final, a trailing batch short of the batch size stays pending so
// that batches fill up across documents. A failing batch is recorded in the
// report and the run continues.
func (s *IngestService) flush(ctx context.Context, run *ingestRun, final bool) {
	if len(run.pending) == 0 {
		return
	}

	texts := make([]string, len(run.pending))
	for i := range run.pending {
		texts[i] = Normalise(run.pending[i].Content)
	}

	batches := s.gateway.Batches(texts)
	if last := len(batches) - 1; !final && last >= 0 && batches[last].Len() < s.gateway.BatchSize() {
		batches = batches[:last]
	}
	if len(batches) == 0 {
		return
	}

	pending := run.pending
	sent := batches[len(batches)-1].End
	run.pending = slices.Clone(pending[sent:])

	for _, batch := range batches {
		if ctx.Err() != nil {
			return
		}
		index := run.batchIndex
		run.batchIndex++
		run.report.Batches++
		run.report.Tokens += batch.Tokens

		if stage, err := s.storeBatch(ctx, pending[batch.Start:batch.End], texts[batch.Start:batch.End]); err != nil {
			logger.Warn("Batch %d (%d chunks) failed at %s: %v", index, batch.Len(), stage, err)
			run.report.BatchFailures = append(run.report.BatchFailures, domain.BatchFailure{
				Index: index,
				Size:  batch.Len(),
				Stage: stage,
				Err:   fmt.Errorf("%w: batch %d: %w", domain.ErrBatchFailed, index, err),
			})
			continue
		}
		run.report.ChunksStored += batch.Len()
		logger.Debug("Stored batch %d (%d chunks, %d tokens)", index, batch.Len(), batch.Tokens)
	}
}

// storeBatch embeds and inserts one batch. On failure it reports the stage that failed.
func (s *IngestService) storeBatch(ctx context.Context, chunks []domain.Chunk, texts []string) (string, error) {
	vectors, err := s.gateway.embed(ctx, texts)
	if err != nil {
		return StageEmbed, err
	}

	rows := make([]domain.EmbeddedChunk, len(chunks))
	for i := range chunks {
		id := chunks[i].ID
		if id == "" {
			id = uuid.NewString()
		}
		rows[i] = domain.EmbeddedChunk{
			ID:        id,
			SourceURL: chunks[i].SourceURL,
			Content:   texts[i],
			Embedding: vectors[i],
		}
	}

	if err := s.store.Insert(ctx, rows); err != nil {
		return StageStore, fmt.Errorf("insert rows: %w", err)
	}
	return "", nil
}

// Package chunker provides the header-aware chunking processor.
//
// Documents are segmented into heading and body sections. Each body
// section becomes one chunk carrying the breadcrumb of its enclosing
// H1-H3 headings. Bodies at or over the chunk size are split on
// paragraphs, and further on lines and words when a paragraph alone is
// too long.
package chunker

import (
	"context"

	"github.com/google/uuid"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// DefaultChunkSize is the body length threshold in characters.
const DefaultChunkSize = domain.DefaultChunkSize

// Processor splits document content into header-scoped chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize    int
	footerMarker string
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the body length threshold in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithFooterMarker sets the boilerplate marker cut from every body.
// An empty marker disables footer filtering.
func WithFooterMarker(marker string) Option {
	return func(p *Processor) {
		p.footerMarker = marker
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize:    DefaultChunkSize,
		footerMarker: domain.DefaultFooterMarker,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Content == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chunks := buildChunks(Segment(doc.Content), p.chunkSize, p.footerMarker)
	source := doc.Locator()
	for i := range chunks {
		chunks[i].ID = uuid.New().String()
		chunks[i].DocumentID = doc.ID
		chunks[i].SourceURL = source
		chunks[i].Metadata = map[string]any{"title": doc.Title}
	}

	return chunks, nil
}

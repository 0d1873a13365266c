// Package sanitizer provides the chunk sanitizing processor.
// It runs after the chunker so nothing unclean reaches the embedding
// provider or the vector store.
package sanitizer

import (
	"context"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/logger"
	"github.com/custodia-labs/groundwork/internal/sanitize"
)

// Processor sanitizes chunk headers and bodies and drops chunks left
// without body text.
type Processor struct{}

// New creates a sanitizer processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "sanitizer"
}

// Process returns the sanitized, non-empty chunks in their original order.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	out := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		c.Body = sanitize.String(c.Body)
		if c.Body == "" {
			logger.Debug("sanitizer: dropping empty chunk %d of %s", c.Position, doc.Locator())
			continue
		}

		headers := make([]string, 0, len(c.Headers))
		for _, h := range c.Headers {
			if h = sanitize.String(h); h != "" {
				headers = append(headers, h)
			}
		}
		c.Headers = headers
		c.Content = domain.ComposeContent(c.Headers, c.Body)
		out = append(out, c)
	}
	return out, nil
}

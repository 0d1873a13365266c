package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
	"github.com/custodia-labs/groundwork/internal/logger"
	"github.com/custodia-labs/groundwork/internal/sanitize"
)

// Embedding request limits.
const (
	// MaxBatchTexts is the number of texts sent per embedding request.
	MaxBatchTexts = 100

	// MaxTextTokens is the per-input limit of the embedding models.
	// Longer inputs are truncated by the provider.
	MaxTextTokens = 8191

	// MaxRequestTokens is the total token budget of one request.
	MaxRequestTokens = 300000
)

// Batch is a contiguous range of texts sent in one embedding request.
type Batch struct {
	Start  int
	End    int
	Tokens int
}

// Len returns the number of texts in the batch.
func (b Batch) Len() int {
	return b.End - b.Start
}

// EmbeddingGateway wraps an embedding service with input normalisation,
// request batching, pacing and result checks.
type EmbeddingGateway struct {
	embedder         driven.EmbeddingService
	counter          driven.TokenCounter
	limiter          *rate.Limiter
	batchSize        int
	maxRequestTokens int
}

// GatewayOption configures an EmbeddingGateway.
type GatewayOption func(*EmbeddingGateway)

// WithTokenCounter sets the counter used to budget requests.
// Without one, tokens are estimated at four characters each.
func WithTokenCounter(counter driven.TokenCounter) GatewayOption {
	return func(g *EmbeddingGateway) {
		g.counter = counter
	}
}

// WithRateLimit paces requests to rps per second. Zero or less disables pacing.
func WithRateLimit(rps float64) GatewayOption {
	return func(g *EmbeddingGateway) {
		if rps > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			g.limiter = nil
		}
	}
}

// WithBatchSize sets the number of texts per request.
func WithBatchSize(n int) GatewayOption {
	return func(g *EmbeddingGateway) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

// WithMaxRequestTokens sets the token budget of one request.
func WithMaxRequestTokens(n int) GatewayOption {
	return func(g *EmbeddingGateway) {
		if n > 0 {
			g.maxRequestTokens = n
		}
	}
}

// NewEmbeddingGateway creates a gateway over the given embedding service.
func NewEmbeddingGateway(embedder driven.EmbeddingService, opts ...GatewayOption) *EmbeddingGateway {
	g := &EmbeddingGateway{
		embedder:         embedder,
		batchSize:        MaxBatchTexts,
		maxRequestTokens: MaxRequestTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Normalise prepares text for embedding: literal backslash-n sequences
// left over from scraped markdown become spaces, then the text is sanitized.
func Normalise(text string) string {
	return sanitize.String(strings.ReplaceAll(text, `\n`, " "))
}

// ModelName returns the underlying model name.
func (g *EmbeddingGateway) ModelName() string {
	return g.embedder.ModelName()
}

// Dimensions returns the vector size of the underlying model.
func (g *EmbeddingGateway) Dimensions() int {
	return g.embedder.Dimensions()
}

// BatchSize returns the number of texts per request.
func (g *EmbeddingGateway) BatchSize() int {
	return g.batchSize
}

// Tokens returns the token count of an already normalised text.
func (g *EmbeddingGateway) Tokens(text string) int {
	if g.counter != nil {
		if n, err := g.counter.Count(text); err == nil {
			return n
		}
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}

// Batches partitions texts into consecutive requests. A batch closes when
// it holds BatchSize texts or the next text would exceed the request token
// budget. Texts are expected to be normalised.
func (g *EmbeddingGateway) Batches(texts []string) []Batch {
	var batches []Batch
	current := Batch{}
	for i, text := range texts {
		tokens := g.Tokens(text)
		if tokens > MaxTextTokens {
			logger.Warn("embedding input %d has %d tokens, the provider truncates at %d", i, tokens, MaxTextTokens)
			tokens = MaxTextTokens
		}
		full := current.Len() >= g.batchSize || current.Tokens+tokens > g.maxRequestTokens
		if current.Len() > 0 && full {
			batches = append(batches, current)
			current = Batch{Start: i}
		}
		current.End = i + 1
		current.Tokens += tokens
	}
	if current.Len() > 0 {
		batches = append(batches, current)
	}
	return batches
}

// EmbedOne embeds a single text.
func (g *EmbeddingGateway) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.embed(ctx, []string{Normalise(text)})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts, one request per planned batch. The result has
// the same length and order as texts. The first failing batch aborts the
// call with an error wrapping domain.ErrBatchFailed and the batch index.
func (g *EmbeddingGateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	normalised := make([]string, len(texts))
	for i, text := range texts {
		normalised[i] = Normalise(text)
	}

	out := make([][]float32, 0, len(texts))
	for i, batch := range g.Batches(normalised) {
		vectors, err := g.embed(ctx, normalised[batch.Start:batch.End])
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d: %w", domain.ErrBatchFailed, i, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// embed sends one request and checks the result shape.
func (g *EmbeddingGateway) embed(ctx context.Context, texts []string) ([][]float32, error) {
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("%w: embedding input %d is empty", domain.ErrInvalidInput, i)
		}
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limit: %w", err)
		}
	}

	vectors, err := g.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(vectors), len(texts))
	}

	dims := g.embedder.Dimensions()
	for i, v := range vectors {
		if len(v) == 0 || (dims > 0 && len(v) != dims) {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d",
				domain.ErrDimensionMismatch, i, len(v), dims)
		}
	}
	return vectors, nil
}

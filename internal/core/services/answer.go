package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
	"github.com/custodia-labs/groundwork/internal/core/ports/driving"
	"github.com/custodia-labs/groundwork/internal/logger"
)

// Ensure AnswerStreamer implements the interface.
var _ driving.AnswerService = (*AnswerStreamer)(nil)

// defaultAnswerSystemPrompt is the fallback prompt when no PromptStore is configured.
const defaultAnswerSystemPrompt = `You are a helpful assistant. You provide easy-to-understand, conversational answers using the resources you are given.
AVOID PHRASES LIKE 'documents provided' OR 'based on the resources'.
Use resource citations to support your response.
Use markdown to format your response.`

// AnswerStreamer derives a search query, retrieves evidence and streams a
// generated answer as an ordered event stream.
type AnswerStreamer struct {
	deriver     driven.QueryDeriver
	retriever   driving.Retriever
	generator   driven.AnswerGenerator
	promptStore driven.PromptStore
	timeout     time.Duration
	maxTokens   int
	temperature float64
}

// AnswerOption configures an AnswerStreamer.
type AnswerOption func(*AnswerStreamer)

// WithAnswerTimeout bounds a whole answer, from query derivation to the last delta.
func WithAnswerTimeout(d time.Duration) AnswerOption {
	return func(s *AnswerStreamer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxTokens bounds the generated output.
func WithMaxTokens(n int) AnswerOption {
	return func(s *AnswerStreamer) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithTemperature sets the generation temperature.
func WithTemperature(t float64) AnswerOption {
	return func(s *AnswerStreamer) {
		s.temperature = t
	}
}

// NewAnswerStreamer creates an answer streamer.
func NewAnswerStreamer(
	deriver driven.QueryDeriver,
	retriever driving.Retriever,
	generator driven.AnswerGenerator,
	opts ...AnswerOption,
) *AnswerStreamer {
	s := &AnswerStreamer{
		deriver:   deriver,
		retriever: retriever,
		generator: generator,
		timeout:   domain.DefaultAnswerTimeout,
		maxTokens: domain.DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPromptStore sets the prompt store for loading the answer system prompt.
// If not set, the streamer uses the built-in prompt.
func (s *AnswerStreamer) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// StreamAnswer returns the event stream for the conversation. The stream
// carries one ResourcesEvent, then text and citation events in generation
// order. Any failure, including the timeout, ends the stream with a single
// error fragment. Cancelling ctx stops generation and closes the stream.
func (s *AnswerStreamer) StreamAnswer(ctx context.Context, history []domain.Message) <-chan domain.Event {
	out := make(chan domain.Event)

	go func() {
		defer close(out)

		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		started := time.Now()
		err := s.run(runCtx, history, out)
		if err == nil {
			logger.Debug("Answer complete in %v", time.Since(started).Round(time.Millisecond))
			return
		}
		if ctx.Err() != nil {
			logger.Debug("Answer cancelled: %v", ctx.Err())
			return
		}

		logger.Warn("answer failed after %v: %v", time.Since(started).Round(time.Millisecond), err)
		select {
		case out <- domain.TextEvent{Text: domain.ErrorFragment, Err: err}:
		case <-ctx.Done():
		}
	}()

	return out
}

func (s *AnswerStreamer) run(ctx context.Context, history []domain.Message, out chan<- domain.Event) error {
	logger.Section("Answer")

	query, err := s.deriver.Derive(ctx, history)
	if err != nil {
		return fmt.Errorf("derive query: %w", err)
	}

	evidence, err := s.retriever.FindRelevant(ctx, query)
	if err != nil {
		return fmt.Errorf("retrieve evidence: %w", err)
	}
	if evidence == nil {
		evidence = []domain.EvidenceItem{}
	}
	if err := send(ctx, out, domain.ResourcesEvent{Resources: evidence}); err != nil {
		return err
	}

	documents, err := generationDocuments(evidence)
	if err != nil {
		return err
	}

	deltas, err := s.generator.Stream(ctx, driven.GenerationRequest{
		System:      loadPrompt(s.promptStore, driven.PromptAnswerSystem, defaultAnswerSystemPrompt),
		Messages:    chatHistory(history),
		Documents:   documents,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return fmt.Errorf("start generation: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delta, ok := <-deltas:
			if !ok {
				// A generator closes its stream when ctx ends.
				return ctx.Err()
			}
			if delta.Err != nil {
				return fmt.Errorf("generate answer: %w", delta.Err)
			}
			if delta.Text != "" {
				if err := send(ctx, out, domain.TextEvent{Text: delta.Text}); err != nil {
					return err
				}
			}
			if delta.Citation != nil {
				if err := send(ctx, out, domain.CitationEvent{Citation: *delta.Citation}); err != nil {
					return err
				}
			}
		}
	}
}

// send delivers one event unless ctx ends first.
func send(ctx context.Context, out chan<- domain.Event, ev domain.Event) error {
	select {
	case out <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// documentContext is the metadata shown to the model alongside each passage.
type documentContext struct {
	Similarity float64 `json:"similarity"`
	SourceURL  string  `json:"sourceUrl"`
}

// generationDocuments turns evidence into titled generator documents.
// Document order matches evidence order, so citation indices map back to it.
func generationDocuments(evidence []domain.EvidenceItem) ([]driven.GenerationDocument, error) {
	docs := make([]driven.GenerationDocument, len(evidence))
	for i, item := range evidence {
		meta, err := json.Marshal(documentContext{Similarity: item.Similarity, SourceURL: item.SourceURL})
		if err != nil {
			return nil, fmt.Errorf("marshal document context: %w", err)
		}
		docs[i] = driven.GenerationDocument{
			Title:   item.SourceURL,
			Text:    item.Content,
			Context: string(meta),
		}
	}
	return docs, nil
}

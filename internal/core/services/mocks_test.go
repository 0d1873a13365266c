package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Vectors come from vectorFor when set, otherwise a constant unit vector.
type mockEmbeddingService struct {
	mu        sync.Mutex
	dims      int
	vectorFor func(text string) []float32
	failCall  map[int]error
	calls     [][]string
	short     bool
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := len(m.calls)
	m.calls = append(m.calls, append([]string(nil), texts...))
	if err := m.failCall[call]; err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if m.vectorFor != nil {
			out = append(out, m.vectorFor(text))
			continue
		}
		v := make([]float32, m.Dimensions())
		v[0] = 1
		out = append(out, v)
	}
	if m.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return 3
}

func (m *mockEmbeddingService) ModelName() string          { return "mock-embed" }
func (m *mockEmbeddingService) Ping(context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error               { return nil }

func (m *mockEmbeddingService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockTokenCounter counts whitespace separated words.
type mockTokenCounter struct {
	err error
}

func (m mockTokenCounter) Count(text string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(strings.Fields(text)), nil
}

// mockVectorStore implements driven.VectorStore for testing.
type mockVectorStore struct {
	items     []domain.EvidenceItem
	queryErr  error
	insertErr map[int]error
	inserted  [][]domain.EmbeddedChunk
	lastK     int
	lastFloor float64
}

func (m *mockVectorStore) Insert(_ context.Context, rows []domain.EmbeddedChunk) error {
	call := len(m.inserted)
	m.inserted = append(m.inserted, rows)
	return m.insertErr[call]
}

func (m *mockVectorStore) QueryTopK(_ context.Context, _ []float32, k int, floor float64) ([]domain.EvidenceItem, error) {
	m.lastK, m.lastFloor = k, floor
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.items, nil
}

func (m *mockVectorStore) Count(context.Context) (int, error) {
	n := 0
	for _, rows := range m.inserted {
		n += len(rows)
	}
	return n, nil
}

func (m *mockVectorStore) Close() error { return nil }

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	reply    string
	err      error
	messages []driven.ChatMessage
	opts     driven.ChatOptions
}

func (m *mockLLMService) Generate(context.Context, string, driven.GenerateOptions) (string, error) {
	return m.reply, m.err
}

func (m *mockLLMService) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.messages = messages
	m.opts = opts
	return m.reply, m.err
}

func (m *mockLLMService) ModelName() string          { return "mock-llm" }
func (m *mockLLMService) Ping(context.Context) error { return nil }
func (m *mockLLMService) Close() error               { return nil }

// mockGenerator implements driven.AnswerGenerator for testing.
// It replays deltas, then blocks until ctx ends when hang is set.
type mockGenerator struct {
	deltas   []driven.GenerationDelta
	startErr error
	hang     bool
	req      driven.GenerationRequest
	stopped  chan struct{}
}

func (m *mockGenerator) Stream(ctx context.Context, req driven.GenerationRequest) (<-chan driven.GenerationDelta, error) {
	m.req = req
	if m.startErr != nil {
		return nil, m.startErr
	}
	out := make(chan driven.GenerationDelta)
	go func() {
		defer close(out)
		if m.stopped != nil {
			defer close(m.stopped)
		}
		for _, d := range m.deltas {
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
		if m.hang {
			<-ctx.Done()
		}
	}()
	return out, nil
}

func (m *mockGenerator) ModelName() string { return "mock-generator" }

// mockDeriver implements driven.QueryDeriver for testing.
type mockDeriver struct {
	query string
	err   error
}

func (m mockDeriver) Derive(context.Context, []domain.Message) (string, error) {
	return m.query, m.err
}

// mockRetriever implements driving.Retriever for testing.
type mockRetriever struct {
	items []domain.EvidenceItem
	err   error
	query string
}

func (m *mockRetriever) FindRelevant(ctx context.Context, query string) ([]domain.EvidenceItem, error) {
	return m.Search(ctx, query, domain.RetrievalOptions{})
}

func (m *mockRetriever) Search(_ context.Context, query string, _ domain.RetrievalOptions) ([]domain.EvidenceItem, error) {
	m.query = query
	return m.items, m.err
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
}

func (m mockPromptStore) Load(name string) (string, error) {
	if p, ok := m.prompts[name]; ok {
		return p, nil
	}
	return "", errors.New("prompt not found")
}

func (m mockPromptStore) Reload() {}

// mockConnector implements driven.Connector for testing.
type mockConnector struct {
	docs        []domain.RawDocument
	errs        []error
	validateErr error
	skipped     []domain.SkippedFile
}

func (m *mockConnector) Type() string { return "mock" }

func (m *mockConnector) Validate(context.Context) error { return m.validateErr }

func (m *mockConnector) FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error, len(m.errs))

	go func() {
		defer close(docs)
		defer close(errs)
		for _, err := range m.errs {
			errs <- err
		}
		for _, doc := range m.docs {
			select {
			case <-ctx.Done():
				return
			case docs <- doc:
			}
		}
	}()

	return docs, errs
}

func (m *mockConnector) Skipped() []domain.SkippedFile { return m.skipped }
func (m *mockConnector) Close() error                  { return nil }

// collect drains an event stream.
func collect(ch <-chan domain.Event) []domain.Event {
	var events []domain.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

package cli

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
)

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings    domain.AppSettings
	values      map[string]string
	validateErr error
	embedErr    error
	llmErr      error
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{
		settings: domain.DefaultAppSettings(),
		values:   make(map[string]string),
	}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if key == "unknown.key" {
		return domain.ErrConfigInvalid
	}
	m.values[key] = value
	return nil
}

func (m *mockSettingsService) Keys() []string {
	keys := []string{"llm.model", "retrieval.top_k"}
	sort.Strings(keys)
	return keys
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return m.embedErr }

func (m *mockSettingsService) ValidateLLMConfig() error { return m.llmErr }

// mockIngestService returns a fixed report.
type mockIngestService struct {
	report    *domain.IngestReport
	err       error
	connector driven.Connector
}

func (m *mockIngestService) Ingest(_ context.Context, connector driven.Connector) (*domain.IngestReport, error) {
	m.connector = connector
	return m.report, m.err
}

// mockConnector records the root it was created for.
type mockConnector struct {
	root   string
	closed bool
}

func (c *mockConnector) Type() string { return "mock" }

func (c *mockConnector) Validate(_ context.Context) error { return nil }

func (c *mockConnector) FullSync(_ context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error)
	close(docs)
	close(errs)
	return docs, errs
}

func (c *mockConnector) Skipped() []domain.SkippedFile { return nil }

func (c *mockConnector) Close() error {
	c.closed = true
	return nil
}

// mockRetriever returns fixed evidence and records the last call.
type mockRetriever struct {
	items     []domain.EvidenceItem
	err       error
	lastQuery string
	lastOpts  domain.RetrievalOptions
}

func (m *mockRetriever) FindRelevant(ctx context.Context, query string) ([]domain.EvidenceItem, error) {
	return m.Search(ctx, query, domain.DefaultRetrievalOptions())
}

func (m *mockRetriever) Search(_ context.Context, query string, opts domain.RetrievalOptions) ([]domain.EvidenceItem, error) {
	m.lastQuery = query
	m.lastOpts = opts
	return m.items, m.err
}

// mockAnswerService replays fixed events and records every conversation.
type mockAnswerService struct {
	mu      sync.Mutex
	events  []domain.Event
	history [][]domain.Message
}

func (m *mockAnswerService) StreamAnswer(_ context.Context, history []domain.Message) <-chan domain.Event {
	m.mu.Lock()
	m.history = append(m.history, history)
	m.mu.Unlock()

	out := make(chan domain.Event, len(m.events))
	for _, ev := range m.events {
		out <- ev
	}
	close(out)
	return out
}

// mockPromptStore serves prompts from a map.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", errors.New("missing prompt")
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	settings  *mockSettingsService
	ingest    *mockIngestService
	retriever *mockRetriever
	answer    *mockAnswerService
	prompts   *mockPromptStore
	connector *mockConnector
}

var current testServices

func sampleEvidence() []domain.EvidenceItem {
	return []domain.EvidenceItem{
		{ID: "1", Content: "Alpha is the first letter.", Similarity: 0.91, SourceURL: "https://example.com/alpha"},
		{ID: "2", Content: "Alpha again.", Similarity: 0.82, SourceURL: "https://example.com/alpha"},
		{ID: "3", Content: "Beta is second.", Similarity: 0.7, SourceURL: "https://example.com/beta"},
	}
}

func sampleAnswer() []domain.Event {
	return []domain.Event{
		domain.ResourcesEvent{Resources: sampleEvidence()},
		domain.TextEvent{Text: "Alpha comes first."},
		domain.CitationEvent{Citation: domain.Citation{Type: "char_location", CitedText: "Alpha", DocumentIndex: 0}},
	}
}

// setupTestServices installs mock services and resets command flags.
// The returned function restores an empty service set.
func setupTestServices() func() {
	current = testServices{
		settings: newMockSettingsService(),
		ingest: &mockIngestService{report: &domain.IngestReport{
			FilesSeen:      2,
			FilesProcessed: 2,
			ChunksProduced: 5,
			ChunksStored:   5,
			Batches:        1,
			Tokens:         120,
		}},
		retriever: &mockRetriever{items: sampleEvidence()},
		answer:    &mockAnswerService{events: sampleAnswer()},
		prompts: &mockPromptStore{prompts: map[string]string{
			driven.PromptSearchQuery:  "search prompt",
			driven.PromptAnswerSystem: "answer prompt",
		}},
	}

	SetServices(Services{
		Settings:  current.settings,
		Ingest:    current.ingest,
		Retriever: current.retriever,
		Answer:    current.answer,
		Prompts:   current.prompts,
		NewConnector: func(root string) driven.Connector {
			current.connector = &mockConnector{root: root}
			return current.connector
		},
	})

	return func() {
		SetServices(Services{})
		resetFlags()
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}
}

func resetFlags() {
	verbose = false
	ingestReportPath = ""
	searchLimit, searchMinSimilarity, searchJSON, searchDedupe = 0, 0, false, false
	askServer, askJSON, askInteractive = "", false, false
	serveAddr = ""
}

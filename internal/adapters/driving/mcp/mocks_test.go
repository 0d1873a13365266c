package mcp

import (
	"context"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// mockRetriever is a mock implementation of driving.Retriever.
type mockRetriever struct {
	items     []domain.EvidenceItem
	err       error
	lastQuery string
	lastOpts  domain.RetrievalOptions
}

func (m *mockRetriever) FindRelevant(ctx context.Context, query string) ([]domain.EvidenceItem, error) {
	return m.Search(ctx, query, domain.RetrievalOptions{})
}

func (m *mockRetriever) Search(_ context.Context, query string, opts domain.RetrievalOptions) ([]domain.EvidenceItem, error) {
	m.lastQuery = query
	m.lastOpts = opts
	return m.items, m.err
}

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	events  []domain.Event
	history []domain.Message
}

func (m *mockAnswerService) StreamAnswer(_ context.Context, history []domain.Message) <-chan domain.Event {
	m.history = history
	out := make(chan domain.Event, len(m.events))
	for _, ev := range m.events {
		out <- ev
	}
	close(out)
	return out
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings *domain.AppSettings
	err      error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) { return m.settings, m.err }

func (m *mockSettingsService) Save(_ *domain.AppSettings) error { return m.err }

func (m *mockSettingsService) Set(_, _ string) error { return m.err }

func (m *mockSettingsService) Keys() []string { return nil }

func (m *mockSettingsService) Validate() error { return m.err }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return m.err }

func (m *mockSettingsService) ValidateLLMConfig() error { return m.err }

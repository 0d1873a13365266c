package api

import (
	"context"
	"sync"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// mockAnswerService replays a fixed event list.
type mockAnswerService struct {
	mu      sync.Mutex
	events  []domain.Event
	history []domain.Message
}

func (m *mockAnswerService) StreamAnswer(ctx context.Context, history []domain.Message) <-chan domain.Event {
	m.mu.Lock()
	m.history = history
	m.mu.Unlock()

	out := make(chan domain.Event)
	go func() {
		defer close(out)
		for _, ev := range m.events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (m *mockAnswerService) received() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history
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
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

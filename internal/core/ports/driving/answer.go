package driving

import (
	"context"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// AnswerService streams grounded answers to a conversation.
type AnswerService interface {
	// StreamAnswer returns the ordered event stream for the conversation:
	// one ResourcesEvent, then TextEvent and CitationEvent in generation
	// order. On failure a single error TextEvent is the last event.
	// The channel is always closed.
	StreamAnswer(ctx context.Context, history []domain.Message) <-chan domain.Event
}

package driven

import (
	"context"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// QueryDeriver turns a conversation into the text used for retrieval.
type QueryDeriver interface {
	// Derive returns the search query for the conversation.
	// Returns domain.ErrNoUserMessage when history has no user turn.
	Derive(ctx context.Context, history []domain.Message) (string, error)
}

package driven

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// AnswerGenerator streams a grounded answer for a conversation.
type AnswerGenerator interface {
	// Stream starts generation. The returned channel yields deltas in
	// upstream order and is closed when generation ends. A delta with Err
	// set is terminal. Cancelling ctx stops the upstream request.
	Stream(ctx context.Context, req GenerationRequest) (<-chan GenerationDelta, error)

	// ModelName returns the name of the model being used.
	ModelName() string
}

// GenerationRequest is one answer generation.
type GenerationRequest struct {
	// System is the system prompt.
	System string

	// Messages is the conversation, oldest first.
	Messages []ChatMessage

	// Documents is the evidence the answer must be grounded on.
	Documents []GenerationDocument

	// MaxTokens bounds the output.
	MaxTokens int

	// Temperature controls randomness.
	Temperature float64
}

// GenerationDocument is one evidence passage passed to the generator.
type GenerationDocument struct {
	// Title identifies the passage, the source locator.
	Title string

	// Text is the passage content.
	Text string

	// Context is opaque metadata shown to the model, JSON encoded.
	Context string
}

// GenerationDelta is one item of a generation stream: text, a citation,
// or a terminal error.
type GenerationDelta struct {
	Text     string
	Citation *domain.Citation
	Err      error
}

// SystemWithDocuments returns the system prompt followed by the numbered
// documents, for providers that cannot take documents as separate blocks.
func (r GenerationRequest) SystemWithDocuments() string {
	if len(r.Documents) == 0 {
		return r.System
	}

	var b strings.Builder
	b.WriteString(r.System)
	if r.System != "" {
		b.WriteString("\n\n")
	}
	b.WriteString("Resources:")
	for i, doc := range r.Documents {
		fmt.Fprintf(&b, "\n\n[%d] %s", i+1, doc.Title)
		if doc.Context != "" {
			fmt.Fprintf(&b, "\n%s", doc.Context)
		}
		fmt.Fprintf(&b, "\n%s", doc.Text)
	}
	return b.String()
}

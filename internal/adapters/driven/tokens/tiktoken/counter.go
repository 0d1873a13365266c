// Package tiktoken counts tokens with OpenAI's BPE encodings.
package tiktoken

import (
	"fmt"

	tk "github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
)

// Ensure TokenCounter implements the interface.
var _ driven.TokenCounter = (*TokenCounter)(nil)

// DefaultEncoding is used for models tiktoken does not know.
const DefaultEncoding = "cl100k_base"

// TokenCounter counts tokens for one model's encoding.
type TokenCounter struct {
	enc   *tk.Tiktoken
	model string
}

// NewTokenCounter loads the encoding for model. Models without a known
// encoding, such as local Ollama models, use cl100k_base.
// Loading may download the BPE ranks on first use.
func NewTokenCounter(model string) (*TokenCounter, error) {
	enc, err := tk.EncodingForModel(model)
	if err != nil {
		enc, err = tk.GetEncoding(DefaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("load %s encoding: %w", DefaultEncoding, err)
		}
	}
	return &TokenCounter{enc: enc, model: model}, nil
}

// Count returns the number of tokens in text. Special tokens are
// counted as plain text.
func (c *TokenCounter) Count(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return len(c.enc.EncodeOrdinary(text)), nil
}

// Model returns the model the counter was created for.
func (c *TokenCounter) Model() string {
	return c.model
}

package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
	"github.com/custodia-labs/groundwork/internal/logger"
)

// Ensure derivers implement the interface.
var (
	_ driven.QueryDeriver = LatestMessageDeriver{}
	_ driven.QueryDeriver = (*LLMQueryDeriver)(nil)
)

// LatestMessageDeriver uses the latest user message as the search query.
type LatestMessageDeriver struct{}

// Derive returns the content of the last user turn.
func (LatestMessageDeriver) Derive(_ context.Context, history []domain.Message) (string, error) {
	latest, ok := domain.LatestUserMessage(history)
	if !ok {
		return "", domain.ErrNoUserMessage
	}
	return latest, nil
}

// defaultSearchQueryPrompt is the fallback prompt when no PromptStore is configured.
const defaultSearchQueryPrompt = `You are a research assistant. Based on the conversation, come up with a one-sentence search query to locate relevant resources.
Reply with a JSON object of the form {"searchQuery": "..."} and nothing else.`

// Query derivation sampling.
const (
	searchQueryMaxTokens   = 256
	searchQueryTemperature = 1.0
)

// LLMQueryDeriver asks a language model for a one-sentence search query.
// When the model fails or replies with nothing usable, the latest user
// message is used instead so retrieval still runs.
type LLMQueryDeriver struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
}

// NewLLMQueryDeriver creates a deriver backed by llm.
func NewLLMQueryDeriver(llm driven.LLMService) *LLMQueryDeriver {
	return &LLMQueryDeriver{llm: llm}
}

// SetPromptStore sets the prompt store for loading the search query prompt.
// If not set, the deriver uses the built-in prompt.
func (d *LLMQueryDeriver) SetPromptStore(store driven.PromptStore) {
	d.promptStore = store
}

// Derive returns the model's search query for the conversation.
func (d *LLMQueryDeriver) Derive(ctx context.Context, history []domain.Message) (string, error) {
	latest, ok := domain.LatestUserMessage(history)
	if !ok {
		return "", domain.ErrNoUserMessage
	}

	messages := make([]driven.ChatMessage, 0, len(history)+1)
	messages = append(messages, driven.ChatMessage{
		Role:    "system",
		Content: loadPrompt(d.promptStore, driven.PromptSearchQuery, defaultSearchQueryPrompt),
	})
	messages = append(messages, chatHistory(history)...)

	reply, err := d.llm.Chat(ctx, messages, driven.ChatOptions{
		MaxTokens:   searchQueryMaxTokens,
		Temperature: searchQueryTemperature,
		JSON:        true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Warn("search query generation failed, using latest message: %v", err)
		return latest, nil
	}

	query := parseSearchQuery(reply)
	if query == "" {
		logger.Warn("search query reply was empty, using latest message")
		return latest, nil
	}
	logger.Debug("Search query: %q", query)
	return query, nil
}

// parseSearchQuery extracts the query from a {"searchQuery": "..."} reply.
// A reply wrapped in prose is searched for its outermost object. A JSON reply
// without a usable searchQuery yields ""; only a reply that is not JSON at
// all is taken as the query itself.
func parseSearchQuery(reply string) string {
	reply = strings.TrimSpace(reply)
	if q, ok := decodeSearchQuery(reply); ok {
		return q
	}
	if start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}"); start >= 0 && end > start {
		if q, ok := decodeSearchQuery(reply[start : end+1]); ok {
			return q
		}
	}
	return strings.Trim(reply, "\"` \n")
}

// decodeSearchQuery reports whether s is a JSON object and, if so, its
// trimmed searchQuery field.
func decodeSearchQuery(s string) (string, bool) {
	var payload struct {
		SearchQuery string `json:"searchQuery"`
	}
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return "", false
	}
	return strings.TrimSpace(payload.SearchQuery), true
}

// chatHistory converts conversation turns into chat messages.
// Inline citation markers are stripped from assistant turns before resending.
func chatHistory(history []domain.Message) []driven.ChatMessage {
	out := make([]driven.ChatMessage, 0, len(history))
	for _, m := range history {
		if !m.Role.IsValid() {
			continue
		}
		content := m.Content
		if m.Role == domain.RoleAssistant {
			content = domain.StripInline(content)
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		out = append(out, driven.ChatMessage{Role: string(m.Role), Content: content})
	}
	return out
}

// loadPrompt loads a prompt from the store, falling back to the default if unavailable.
func loadPrompt(store driven.PromptStore, name, fallback string) string {
	if store == nil {
		return fallback
	}
	prompt, err := store.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}

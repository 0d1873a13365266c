// Package anthropic provides an LLM service adapter using Anthropic API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
	"github.com/custodia-labs/groundwork/internal/logger"
	"github.com/custodia-labs/groundwork/internal/sse"
)

// Ensure LLMService implements the interfaces.
var (
	_ driven.LLMService      = (*LLMService)(nil)
	_ driven.AnswerGenerator = (*LLMService)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 2048

	// AnthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic LLM service.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the LLM model to use (default: claude-3-5-haiku-latest).
	Model string

	// Timeout is the request timeout for non-streaming calls (default: 120s).
	// Streams are bounded by their context only.
	Timeout time.Duration
}

// LLMService provides LLM operations using Anthropic API.
type LLMService struct {
	client       *http.Client
	streamClient *http.Client
	baseURL      string
	apiKey       string
	model        string
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	System      string            `json:"system,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	StopSeqs    []string          `json:"stop_sequences,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
}

// messagesMessage is the Anthropic message format. Content is a list of blocks.
type messagesMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

// contentBlock is a text or document block.
type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Source    *documentSource `json:"source,omitempty"`
	Title     string          `json:"title,omitempty"`
	Context   string          `json:"context,omitempty"`
	Citations *citationConfig `json:"citations,omitempty"`
}

type documentSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type citationConfig struct {
	Enabled bool `json:"enabled"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// streamEvent is one frame of a streamed /v1/messages response.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type     string           `json:"type"`
		Text     string           `json:"text"`
		Citation *domain.Citation `json:"citation"`
	} `json:"delta"`
	Error *apiError `json:"error,omitempty"`
}

// NewLLMService creates a new Anthropic LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &LLMService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		streamClient: &http.Client{},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
	}, nil
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := s.newRequest("", []driven.ChatMessage{{Role: "user", Content: prompt}}, nil, opts.MaxTokens, opts.Temperature)
	req.StopSeqs = opts.StopWords
	return s.send(ctx, req)
}

// Chat conducts a multi-turn conversation. System messages are joined
// into the system prompt. JSON is requested through the prompt, since the
// API has no JSON reply mode.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	system, rest := splitSystem(messages)
	return s.send(ctx, s.newRequest(system, rest, nil, opts.MaxTokens, opts.Temperature))
}

// Stream generates an answer grounded on req.Documents. Documents are sent
// as citable text blocks ahead of the first user turn, so citation document
// indices follow req.Documents order.
func (s *LLMService) Stream(ctx context.Context, req driven.GenerationRequest) (<-chan driven.GenerationDelta, error) {
	system, rest := splitSystem(req.Messages)
	if req.System != "" {
		system = strings.TrimSpace(req.System + "\n\n" + system)
	}
	body := s.newRequest(system, rest, req.Documents, req.MaxTokens, req.Temperature)
	body.Stream = true

	resp, err := s.post(ctx, s.streamClient, body)
	if err != nil {
		return nil, err
	}

	out := make(chan driven.GenerationDelta)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		emit := func(d driven.GenerationDelta) bool {
			select {
			case out <- d:
				return true
			case <-ctx.Done():
				return false
			}
		}

		frames := sse.NewScanner(resp.Body)
		for {
			frame, err := frames.Next()
			if errors.Is(err, io.EOF) {
				emit(driven.GenerationDelta{Err: fmt.Errorf("anthropic: stream ended before message_stop")})
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					emit(driven.GenerationDelta{Err: fmt.Errorf("anthropic: read stream: %w", err)})
				}
				return
			}

			var ev streamEvent
			if err := json.Unmarshal([]byte(frame.Data), &ev); err != nil {
				logger.Warn("anthropic: dropping malformed %s frame: %v", frame.Event, err)
				continue
			}

			switch ev.Type {
			case "content_block_delta":
				switch ev.Delta.Type {
				case "text_delta":
					if ev.Delta.Text != "" && !emit(driven.GenerationDelta{Text: ev.Delta.Text}) {
						return
					}
				case "citations_delta":
					if ev.Delta.Citation != nil && !emit(driven.GenerationDelta{Citation: ev.Delta.Citation}) {
						return
					}
				}
			case "error":
				msg := "unknown error"
				if ev.Error != nil {
					msg = ev.Error.Message
				}
				emit(driven.GenerationDelta{Err: fmt.Errorf("anthropic error: %s", msg)})
				return
			case "message_stop":
				return
			}
		}
	}()

	return out, nil
}

// newRequest builds a messages request. Consecutive turns with the same
// role are merged, as the API requires alternating roles.
func (s *LLMService) newRequest(
	system string,
	messages []driven.ChatMessage,
	documents []driven.GenerationDocument,
	maxTokens int,
	temperature float64,
) messagesRequest {
	// Anthropic requires max_tokens to be set
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var apiMessages []messagesMessage
	for _, msg := range messages {
		block := contentBlock{Type: "text", Text: msg.Content}
		if n := len(apiMessages); n > 0 && apiMessages[n-1].Role == msg.Role {
			apiMessages[n-1].Content = append(apiMessages[n-1].Content, block)
			continue
		}
		apiMessages = append(apiMessages, messagesMessage{Role: msg.Role, Content: []contentBlock{block}})
	}

	if len(documents) > 0 {
		docs := documentBlocks(documents)
		if len(apiMessages) > 0 && apiMessages[0].Role == "user" {
			apiMessages[0].Content = append(docs, apiMessages[0].Content...)
		} else {
			apiMessages = append([]messagesMessage{{Role: "user", Content: docs}}, apiMessages...)
		}
	}

	req := messagesRequest{
		Model:     s.model,
		Messages:  apiMessages,
		MaxTokens: maxTokens,
		System:    system,
	}
	if temperature > 0 {
		req.Temperature = &temperature
	}
	return req
}

// documentBlocks converts evidence into citable plain-text documents.
func documentBlocks(documents []driven.GenerationDocument) []contentBlock {
	blocks := make([]contentBlock, len(documents))
	for i, doc := range documents {
		blocks[i] = contentBlock{
			Type: "document",
			Source: &documentSource{
				Type:      "text",
				MediaType: "text/plain",
				Data:      doc.Text,
			},
			Title:     doc.Title,
			Context:   doc.Context,
			Citations: &citationConfig{Enabled: true},
		}
	}
	return blocks
}

// splitSystem separates system messages from the conversation.
func splitSystem(messages []driven.ChatMessage) (string, []driven.ChatMessage) {
	var system []string
	rest := make([]driven.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		rest = append(rest, msg)
	}
	return strings.Join(system, "\n\n"), rest
}

// send performs a non-streaming request and joins the text blocks.
func (s *LLMService) send(ctx context.Context, body messagesRequest) (string, error) {
	resp, err := s.post(ctx, s.client, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if msgResp.Error != nil {
		return "", fmt.Errorf("anthropic error: %s", msgResp.Error.Message)
	}
	if len(msgResp.Content) == 0 {
		return "", fmt.Errorf("anthropic: no response content returned")
	}

	// Concatenate all text content blocks
	var result strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}

	return result.String(), nil
}

// post sends body to /v1/messages. A non-200 response is returned as an error.
func (s *LLMService) post(ctx context.Context, client *http.Client, body messagesRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	if body.Stream {
		req.Header.Set("Accept", sse.ContentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		var errResp messagesResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != nil {
			return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return resp, nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /v1/models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("anthropic: failed to create ping request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("anthropic: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("anthropic: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}

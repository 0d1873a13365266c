package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewLLMService(Config{APIKey: "sk-ant-test", BaseURL: server.URL})
	require.NoError(t, err)
	return svc
}

// sseBody writes each payload as one named event frame.
func sseBody(w http.ResponseWriter, frames ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, f := range frames {
		var probe struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal([]byte(f), &probe)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", probe.Type, f)
	}
}

func collect(t *testing.T, deltas <-chan driven.GenerationDelta) []driven.GenerationDelta {
	t.Helper()
	var out []driven.GenerationDelta
	for d := range deltas {
		out = append(out, d)
	}
	return out
}

func TestNewLLMService_RequiresAPIKey(t *testing.T) {
	_, err := NewLLMService(Config{})
	assert.Error(t, err)
}

func TestNewLLMService_Defaults(t *testing.T) {
	svc, err := NewLLMService(Config{APIKey: "sk-ant-test"})
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, DefaultBaseURL, svc.baseURL)
}

func TestChat_JoinsSystemAndText(t *testing.T) {
	var got messagesRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"searchQuery\":"},{"type":"text","text":"\"cats\"}"}]}`))
	})

	reply, err := svc.Chat(context.Background(), []driven.ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
		{Role: "user", Content: "again"},
	}, driven.ChatOptions{MaxTokens: 256, JSON: true})

	require.NoError(t, err)
	assert.Equal(t, `{"searchQuery":"cats"}`, reply)
	assert.Equal(t, "be brief", got.System)
	assert.Equal(t, 256, got.MaxTokens)
	assert.Nil(t, got.Temperature)
	require.Len(t, got.Messages, 1)
	assert.Len(t, got.Messages[0].Content, 2)
}

func TestGenerate_DefaultMaxTokens(t *testing.T) {
	var got messagesRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	})

	reply, err := svc.Generate(context.Background(), "prompt", driven.GenerateOptions{StopWords: []string{"END"}})

	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	assert.Equal(t, []string{"END"}, got.StopSeqs)
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"api error message", http.StatusBadRequest, `{"error":{"type":"invalid_request_error","message":"bad model"}}`, "bad model"},
		{"plain body", http.StatusInternalServerError, "boom", "status 500"},
		{"no content", http.StatusOK, `{"content":[]}`, "no response content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := svc.Chat(context.Background(), []driven.ChatMessage{{Role: "user", Content: "hi"}}, driven.ChatOptions{})

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewRequest_DocumentsLeadFirstUserTurn(t *testing.T) {
	svc, err := NewLLMService(Config{APIKey: "k"})
	require.NoError(t, err)

	req := svc.newRequest("sys", []driven.ChatMessage{
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"},
	}, []driven.GenerationDocument{
		{Title: "https://a", Text: "alpha", Context: `{"similarity":0.9}`},
		{Title: "https://b", Text: "beta"},
	}, 0, 0.5)

	require.Len(t, req.Messages, 3)
	first := req.Messages[0].Content
	require.Len(t, first, 3)
	assert.Equal(t, "document", first[0].Type)
	assert.Equal(t, "https://a", first[0].Title)
	assert.Equal(t, `{"similarity":0.9}`, first[0].Context)
	assert.Equal(t, "alpha", first[0].Source.Data)
	assert.Equal(t, "text/plain", first[0].Source.MediaType)
	assert.True(t, first[0].Citations.Enabled)
	assert.Equal(t, "https://b", first[1].Title)
	assert.Equal(t, "q1", first[2].Text)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.5, *req.Temperature, 1e-9)
}

func TestNewRequest_DocumentsBeforeAssistantOpening(t *testing.T) {
	svc, err := NewLLMService(Config{APIKey: "k"})
	require.NoError(t, err)

	req := svc.newRequest("", []driven.ChatMessage{
		{Role: "assistant", Content: "welcome"},
		{Role: "user", Content: "q"},
	}, []driven.GenerationDocument{{Title: "t", Text: "x"}}, 0, 0)

	require.Len(t, req.Messages, 3)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "document", req.Messages[0].Content[0].Type)
	assert.Equal(t, "assistant", req.Messages[1].Role)
}

func TestStream_TextAndCitations(t *testing.T) {
	var got messagesRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		sseBody(w,
			`{"type":"message_start","message":{}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Cats "}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"citations_delta","citation":{"type":"char_location","cited_text":"cats purr","document_index":0,"document_title":"https://a","start_char_index":0,"end_char_index":9}}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"purr."}}`,
			`{"type":"message_stop"}`,
		)
	})

	deltas, err := svc.Stream(context.Background(), driven.GenerationRequest{
		System:    "answer",
		Messages:  []driven.ChatMessage{{Role: "user", Content: "do cats purr?"}},
		Documents: []driven.GenerationDocument{{Title: "https://a", Text: "cats purr"}},
	})
	require.NoError(t, err)

	out := collect(t, deltas)
	require.Len(t, out, 3)
	assert.Equal(t, "Cats ", out[0].Text)
	require.NotNil(t, out[1].Citation)
	assert.Equal(t, domain.CitationCharLocation, out[1].Citation.Type)
	assert.Equal(t, "cats purr", out[1].Citation.CitedText)
	assert.Equal(t, 9, out[1].Citation.EndCharIndex)
	assert.Equal(t, "purr.", out[2].Text)

	assert.True(t, got.Stream)
	assert.Equal(t, "answer", got.System)
}

func TestStream_ErrorFrame(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		sseBody(w,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"partial"}}`,
			`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
		)
	})

	deltas, err := svc.Stream(context.Background(), driven.GenerationRequest{
		Messages: []driven.ChatMessage{{Role: "user", Content: "q"}},
	})
	require.NoError(t, err)

	out := collect(t, deltas)
	require.Len(t, out, 2)
	assert.Equal(t, "partial", out[0].Text)
	require.Error(t, out[1].Err)
	assert.Contains(t, out[1].Err.Error(), "Overloaded")
}

func TestStream_TruncatedIsError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		sseBody(w, `{"type":"content_block_delta","delta":{"type":"text_delta","text":"cut"}}`)
	})

	deltas, err := svc.Stream(context.Background(), driven.GenerationRequest{
		Messages: []driven.ChatMessage{{Role: "user", Content: "q"}},
	})
	require.NoError(t, err)

	out := collect(t, deltas)
	require.Len(t, out, 2)
	assert.Error(t, out[1].Err)
}

func TestStream_SkipsMalformedFrame(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: content_block_delta\ndata: {not json\n\n"))
		sseBody(w,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"fine"}}`,
			`{"type":"message_stop"}`,
		)
	})

	deltas, err := svc.Stream(context.Background(), driven.GenerationRequest{
		Messages: []driven.ChatMessage{{Role: "user", Content: "q"}},
	})
	require.NoError(t, err)

	out := collect(t, deltas)
	require.Len(t, out, 1)
	assert.Equal(t, "fine", out[0].Text)
}

func TestStream_RejectedRequest(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	})

	_, err := svc.Stream(context.Background(), driven.GenerationRequest{
		Messages: []driven.ChatMessage{{Role: "user", Content: "q"}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid x-api-key")
}

func TestStream_CancelClosesChannel(t *testing.T) {
	release := make(chan struct{})
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		sseBody(w, `{"type":"content_block_delta","delta":{"type":"text_delta","text":"one"}}`)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	deltas, err := svc.Stream(ctx, driven.GenerationRequest{
		Messages: []driven.ChatMessage{{Role: "user", Content: "q"}},
	})
	require.NoError(t, err)

	first := <-deltas
	assert.Equal(t, "one", first.Text)
	cancel()

	for d := range deltas {
		assert.NoError(t, d.Err)
	}
}

func TestPing(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		if r.Header.Get("x-api-key") != "sk-ant-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	assert.NoError(t, svc.Ping(context.Background()))

	svc.apiKey = "wrong"
	assert.Error(t, svc.Ping(context.Background()))
}

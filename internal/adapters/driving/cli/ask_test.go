package cli

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/sse"
)

func TestAskCmd_StreamsAnswerWithSources(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "ask", "what", "comes", "first?")

	require.NoError(t, err)
	assert.Contains(t, out, "Alpha comes first.")
	assert.Contains(t, out, "[1]")
	assert.Contains(t, out, "Sources")
	assert.Contains(t, out, "https://example.com/alpha")
	assert.Contains(t, out, "https://example.com/beta")
	assert.Equal(t, 1, strings.Count(out, "https://example.com/alpha"), "sources are listed once")

	require.Len(t, current.answer.history, 1)
	assert.Equal(t, []domain.Message{{Role: domain.RoleUser, Content: "what comes first?"}}, current.answer.history[0])
}

func TestAskCmd_CitationsNumberDedupedSources(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.answer.events = []domain.Event{
		domain.ResourcesEvent{Resources: sampleEvidence()},
		domain.TextEvent{Text: "Alpha again."},
		domain.CitationEvent{Citation: domain.Citation{Type: "char_location", CitedText: "Alpha", DocumentIndex: 1}},
		domain.TextEvent{Text: " Beta is second."},
		domain.CitationEvent{Citation: domain.Citation{Type: "char_location", CitedText: "Beta", DocumentIndex: 2}},
	}

	out, err := execute(t, "ask", "letters?")

	require.NoError(t, err)
	assert.Contains(t, out, "Alpha again.[1]")
	assert.Contains(t, out, "Beta is second.[2]")
	assert.NotContains(t, out, "[3]")
	assert.Contains(t, out, "  [1] ")
	assert.Contains(t, out, "  [2] ")
	assert.Equal(t, 1, strings.Count(out, "https://example.com/alpha"))
	assert.Contains(t, out, "https://example.com/beta")
}

func TestAskCmd_QuestionFromStdin(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("  piped question \n"))

	_, err := execute(t, "ask")

	require.NoError(t, err)
	require.Len(t, current.answer.history, 1)
	assert.Equal(t, "piped question", current.answer.history[0][0].Content)
}

func TestAskCmd_EmptyQuestion(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader(""))

	_, err := execute(t, "ask")

	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestAskCmd_JSON(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "ask", "--json", "q")

	require.NoError(t, err)
	var got domain.Answer
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Alpha comes first.", got.Text)
	assert.Len(t, got.Evidence, 3)
	require.Len(t, got.Citations, 1)
	assert.Equal(t, len("Alpha comes first."), got.Citations[0].Offset)
}

func TestAskCmd_FailedAnswer(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	current.answer.events = []domain.Event{
		domain.ResourcesEvent{Resources: []domain.EvidenceItem{}},
		domain.TextEvent{Text: "Partial "},
		domain.TextEvent{Text: domain.ErrorFragment, Err: errors.New("overloaded")},
	}

	out, err := execute(t, "ask", "q")

	assert.ErrorIs(t, err, errAnswerFailed)
	assert.Contains(t, out, domain.ErrorFragment)
	assert.Contains(t, out, "No sources found.")
}

func TestAskCmd_InteractiveKeepsHistory(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("first question\nsecond question\n"))

	_, err := execute(t, "ask", "--interactive")

	require.NoError(t, err)
	require.Len(t, current.answer.history, 2)
	second := current.answer.history[1]
	require.Len(t, second, 3)
	assert.Equal(t, domain.RoleUser, second[0].Role)
	assert.Equal(t, domain.RoleAssistant, second[1].Role)
	assert.Equal(t, "Alpha comes first.", second[1].Content)
	assert.Equal(t, "second question", second[2].Content)
}

func TestAskCmd_InteractiveExit(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	rootCmd.SetIn(strings.NewReader("exit\nnever asked\n"))

	_, err := execute(t, "ask", "-i")

	require.NoError(t, err)
	assert.Empty(t, current.answer.history)
}

func TestAskCmd_Server(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	var received struct {
		Messages []domain.Message `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", sse.ContentType)
		writer := sse.NewWriter(w)
		for _, ev := range sampleAnswer() {
			assert.NoError(t, writer.WriteEvent(ev))
		}
	}))
	defer srv.Close()

	out, err := execute(t, "ask", "--server", srv.URL+"/", "remote question")

	require.NoError(t, err)
	assert.Contains(t, out, "Alpha comes first.")
	require.Len(t, received.Messages, 1)
	assert.Equal(t, "remote question", received.Messages[0].Content)
	assert.Empty(t, current.answer.history, "local service is not used")
}

func TestAskCmd_ServerRejects(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid JSON request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := execute(t, "ask", "--server", srv.URL, "q")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestAskCmd_MissingService(t *testing.T) {
	defer SetServices(Services{})
	SetServices(Services{})

	_, err := execute(t, "ask", "q")

	assert.EqualError(t, err, "answer service not configured")
}

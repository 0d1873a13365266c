package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswer_Apply(t *testing.T) {
	c := Citation{Type: CitationCharLocation, CitedText: "q"}
	evidence := []EvidenceItem{{Content: "c", Similarity: 0.9, SourceURL: "/a"}}

	a := Fold([]Event{
		ResourcesEvent{Resources: evidence},
		TextEvent{Text: "Hello "},
		CitationEvent{Citation: c},
		TextEvent{Text: "world."},
	})

	assert.Equal(t, "Hello world.", a.Text)
	assert.Equal(t, evidence, a.Evidence)
	require.Len(t, a.Citations, 1)
	assert.Equal(t, 6, a.Citations[0].Offset)
	assert.Equal(t, c, a.Citations[0].Citation)
	assert.False(t, a.Failed)
}

func TestAnswer_ApplyDoesNotMutatePreviousValue(t *testing.T) {
	base := Answer{}.Apply(CitationEvent{Citation: Citation{CitedText: "one"}})

	left := base.Apply(CitationEvent{Citation: Citation{CitedText: "left"}})
	right := base.Apply(CitationEvent{Citation: Citation{CitedText: "right"}})

	assert.Len(t, base.Citations, 1)
	assert.Equal(t, "left", left.Citations[1].Citation.CitedText)
	assert.Equal(t, "right", right.Citations[1].Citation.CitedText)
}

func TestAnswer_FailureFragmentMarksFailed(t *testing.T) {
	a := Fold([]Event{
		ResourcesEvent{},
		TextEvent{Text: "Partial "},
		TextEvent{Text: ErrorFragment, Err: assert.AnError},
	})

	assert.True(t, a.Failed)
	assert.Equal(t, "Partial "+ErrorFragment, a.Text)
}

func TestAnswer_InlineRoundTrip(t *testing.T) {
	c1 := Citation{Type: CitationCharLocation, CitedText: "first", DocumentIndex: 0}
	c2 := Citation{Type: CitationCharLocation, CitedText: "second", DocumentIndex: 1}

	a := Fold([]Event{
		TextEvent{Text: "One."},
		CitationEvent{Citation: c1},
		TextEvent{Text: " Two."},
		CitationEvent{Citation: c2},
	})

	text, marks := ParseInline(a.Inline())

	assert.Equal(t, a.Text, text)
	assert.Equal(t, a.Citations, marks)
	assert.Equal(t, "One. Two.", StripInline(a.Inline()))
}

func TestAnswer_Message(t *testing.T) {
	a := Answer{Text: "hi", Evidence: []EvidenceItem{{SourceURL: "/a"}}}

	m := a.Message()

	assert.Equal(t, RoleAssistant, m.Role)
	assert.Equal(t, "hi", m.Content)
	assert.Equal(t, a.Evidence, m.Evidence)
}

func TestLatestUserMessage(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second"},
		{Role: RoleAssistant, Content: "partial"},
	}

	got, ok := LatestUserMessage(history)
	assert.True(t, ok)
	assert.Equal(t, "second", got)

	_, ok = LatestUserMessage([]Message{{Role: RoleAssistant, Content: "x"}})
	assert.False(t, ok)
}

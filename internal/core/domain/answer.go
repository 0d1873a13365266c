package domain

import (
	"slices"
	"strings"
)

// ErrorFragment is the user-visible text appended when an answer stream fails.
const ErrorFragment = "Sorry, something went wrong. Please try again."

// CitationMark positions a citation at a byte offset of the answer text.
type CitationMark struct {
	Offset   int      `json:"offset"`
	Citation Citation `json:"citation"`
}

// Answer accumulates an answer stream. It is a value: Apply returns a new
// Answer and never mutates the receiver's slices.
type Answer struct {
	Text      string         `json:"text"`
	Citations []CitationMark `json:"citations"`
	Evidence  []EvidenceItem `json:"resources"`
	Failed    bool           `json:"failed,omitempty"`
}

// Apply folds one event into the answer.
func (a Answer) Apply(ev Event) Answer {
	switch e := ev.(type) {
	case ResourcesEvent:
		a.Evidence = e.Resources
	case TextEvent:
		a.Text += e.Text
		if e.Err != nil || e.Text == ErrorFragment {
			a.Failed = true
		}
	case CitationEvent:
		a.Citations = append(slices.Clip(a.Citations), CitationMark{
			Offset:   len(a.Text),
			Citation: e.Citation,
		})
	}
	return a
}

// Fold applies every event of a finished stream in order.
func Fold(events []Event) Answer {
	var a Answer
	for _, ev := range events {
		a = a.Apply(ev)
	}
	return a
}

// Inline renders the text with inline citation markers at their offsets.
func (a Answer) Inline() string {
	if len(a.Citations) == 0 {
		return a.Text
	}
	var b strings.Builder
	last := 0
	for _, mark := range a.Citations {
		offset := min(max(mark.Offset, last), len(a.Text))
		b.WriteString(a.Text[last:offset])
		if marker, err := EncodeInline(mark.Citation); err == nil {
			b.WriteString(marker)
		}
		last = offset
	}
	b.WriteString(a.Text[last:])
	return b.String()
}

// Message converts the answer into an assistant turn for the history.
func (a Answer) Message() Message {
	return Message{
		Role:     RoleAssistant,
		Content:  a.Text,
		Evidence: a.Evidence,
	}
}

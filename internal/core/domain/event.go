package domain

import (
	"encoding/json"
	"fmt"
)

// EventType is the discriminator of a streamed answer frame.
type EventType string

// Event types carried on the answer stream.
const (
	EventResources EventType = "resources"
	EventText      EventType = "text"
	EventCitation  EventType = "citation"
)

// Event is one frame of an answer stream: ResourcesEvent, TextEvent or CitationEvent.
type Event interface {
	Type() EventType
}

// ResourcesEvent carries the full evidence set. Emitted at most once, before any text.
type ResourcesEvent struct {
	Resources []EvidenceItem
}

// TextEvent carries an answer fragment. Fragments concatenate to the answer text.
type TextEvent struct {
	Text string

	// Err is set on the terminal failure fragment. Never serialised.
	Err error
}

// CitationEvent carries a citation at its position in the text stream.
type CitationEvent struct {
	Citation Citation
}

// Type implements Event.
func (ResourcesEvent) Type() EventType { return EventResources }

// Type implements Event.
func (TextEvent) Type() EventType { return EventText }

// Type implements Event.
func (CitationEvent) Type() EventType { return EventCitation }

// MarshalJSON renders {"type":"resources","resources":[...]}.
// An empty evidence set is rendered as [] rather than null.
func (e ResourcesEvent) MarshalJSON() ([]byte, error) {
	resources := e.Resources
	if resources == nil {
		resources = []EvidenceItem{}
	}
	return json.Marshal(struct {
		Type      EventType      `json:"type"`
		Resources []EvidenceItem `json:"resources"`
	}{EventResources, resources})
}

// MarshalJSON renders {"type":"text","text":"..."}.
func (e TextEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type EventType `json:"type"`
		Text string    `json:"text"`
	}{EventText, e.Text})
}

// MarshalJSON renders {"type":"citation","citation":{...}}.
func (e CitationEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     EventType `json:"type"`
		Citation Citation  `json:"citation"`
	}{EventCitation, e.Citation})
}

// DecodeEvent parses a JSON frame by its type discriminator.
// Unknown types return ErrUnknownEvent so callers can skip them.
func DecodeEvent(data []byte) (Event, error) {
	var frame struct {
		Type      EventType       `json:"type"`
		Resources []EvidenceItem  `json:"resources"`
		Text      string          `json:"text"`
		Citation  json.RawMessage `json:"citation"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch frame.Type {
	case EventResources:
		if frame.Resources == nil {
			frame.Resources = []EvidenceItem{}
		}
		return ResourcesEvent{Resources: frame.Resources}, nil
	case EventText:
		return TextEvent{Text: frame.Text}, nil
	case EventCitation:
		var c Citation
		if len(frame.Citation) == 0 {
			return nil, fmt.Errorf("decode citation frame: %w: missing citation", ErrInvalidInput)
		}
		if err := json.Unmarshal(frame.Citation, &c); err != nil {
			return nil, fmt.Errorf("decode citation frame: %w", err)
		}
		return CitationEvent{Citation: c}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Type)
	}
}

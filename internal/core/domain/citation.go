package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// CitationCharLocation is the citation type for plain-text documents.
const CitationCharLocation = "char_location"

// Citation references a span of an evidence document from generated text.
type Citation struct {
	// Type is the location kind, normally "char_location".
	Type string `json:"type"`

	// CitedText is the quoted span.
	CitedText string `json:"cited_text"`

	// DocumentIndex indexes the evidence list given to the generator.
	DocumentIndex int `json:"document_index"`

	// DocumentTitle is the document title, the source locator. Nil when absent.
	DocumentTitle *string `json:"document_title"`

	// StartCharIndex and EndCharIndex bound the span in the document text.
	StartCharIndex int `json:"start_char_index"`
	EndCharIndex   int `json:"end_char_index"`
}

// Title returns the document title or an empty string.
func (c Citation) Title() string {
	if c.DocumentTitle == nil {
		return ""
	}
	return *c.DocumentTitle
}

// Inline citation markers let string-only transports carry citations at
// their position in the answer text. The payload is base64 of the JSON
// citation, so cited text containing marker syntax cannot break the tag.
const (
	inlineOpen  = `<cite data-parsed="`
	inlineClose = `"></cite>`
)

var inlinePattern = regexp.MustCompile(`<cite data-parsed="([A-Za-z0-9+/=]*)"></cite>`)

// EncodeInline renders a citation as an inline marker.
func EncodeInline(c Citation) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal citation: %w", err)
	}
	return inlineOpen + base64.StdEncoding.EncodeToString(data) + inlineClose, nil
}

// DecodeInline parses a single inline marker back into a citation.
func DecodeInline(marker string) (Citation, error) {
	m := inlinePattern.FindStringSubmatch(marker)
	if m == nil || m[0] != marker {
		return Citation{}, fmt.Errorf("%w: not a citation marker", ErrInvalidInput)
	}
	return decodePayload(m[1])
}

func decodePayload(payload string) (Citation, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Citation{}, fmt.Errorf("decode citation payload: %w", err)
	}
	var c Citation
	if err := json.Unmarshal(data, &c); err != nil {
		return Citation{}, fmt.Errorf("unmarshal citation: %w", err)
	}
	return c, nil
}

// StripInline removes every inline citation marker from text.
// Assistant turns are stripped before they are resent as history.
func StripInline(text string) string {
	if !strings.Contains(text, inlineOpen) {
		return text
	}
	return inlinePattern.ReplaceAllString(text, "")
}

// ParseInline splits text with inline markers into plain text and
// citation marks positioned at byte offsets of the plain text.
// Markers whose payload does not decode are kept as literal text.
func ParseInline(text string) (string, []CitationMark) {
	locs := inlinePattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text, nil
	}

	var b strings.Builder
	var marks []CitationMark
	last := 0
	for _, loc := range locs {
		c, err := decodePayload(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		b.WriteString(text[last:loc[0]])
		marks = append(marks, CitationMark{Offset: b.Len(), Citation: c})
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String(), marks
}

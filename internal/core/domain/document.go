package domain

import (
	"strings"
	"unicode/utf8"
)

// Document is a source text read once per ingestion run.
// It is never persisted itself; only its chunks are.
type Document struct {
	// ID is the unique identifier for the document within a run.
	ID string

	// URI is the file the document was read from.
	URI string

	// SourceURL is the locator carried into every chunk and citation.
	// Taken from the source_url front matter field, falling back to URI.
	SourceURL string

	// Title is the human-readable title.
	Title string

	// Content is the body text after front matter removal.
	Content string

	// Metadata contains remaining front matter fields.
	Metadata map[string]any
}

// Locator returns the source locator for chunks of this document.
func (d *Document) Locator() string {
	if d.SourceURL != "" {
		return d.SourceURL
	}
	return d.URI
}

// Section is a contiguous run of document text bounded by a header
// or by document start/end. Level 0 is body text, 1-3 are headings.
type Section struct {
	Level int
	Text  string
}

// IsHeader reports whether the section is a heading.
func (s Section) IsHeader() bool {
	return s.Level > 0
}

// MaxHeaderDepth is the number of heading levels tracked as context.
const MaxHeaderDepth = 3

// HeaderContext holds the most recently seen heading at each level.
type HeaderContext [MaxHeaderDepth]string

// Apply records a heading section. A heading clears every deeper level,
// so a new H1 resets H2 and H3 and a new H2 resets H3.
// Body sections and out-of-range levels are ignored.
func (h *HeaderContext) Apply(s Section) {
	if s.Level < 1 || s.Level > MaxHeaderDepth {
		return
	}
	h[s.Level-1] = s.Text
	for i := s.Level; i < MaxHeaderDepth; i++ {
		h[i] = ""
	}
}

// Prefix returns the non-empty headings in level order.
func (h HeaderContext) Prefix() []string {
	prefix := make([]string, 0, MaxHeaderDepth)
	for _, header := range h {
		if header != "" {
			prefix = append(prefix, header)
		}
	}
	return prefix
}

// Chunk is the retrieval unit: a body paragraph plus its header breadcrumb.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// SourceURL is the locator of the parent document.
	SourceURL string

	// Headers is the breadcrumb, outermost first.
	Headers []string

	// Body is the passage text without headers.
	Body string

	// Content is Headers and Body joined by newlines.
	// This is the text that is embedded and stored.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation, set by the embedding gateway.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// ComposeContent joins a breadcrumb and body into chunk content.
func ComposeContent(headers []string, body string) string {
	parts := make([]string, 0, len(headers)+1)
	parts = append(parts, headers...)
	if body != "" {
		parts = append(parts, body)
	}
	return strings.Join(parts, "\n")
}

// Size returns the body length in characters.
func (c *Chunk) Size() int {
	return utf8.RuneCountInString(c.Body)
}

// IsEmpty reports whether the chunk has no body text to embed.
func (c *Chunk) IsEmpty() bool {
	return strings.TrimSpace(c.Body) == ""
}

// EmbeddedChunk is a persisted row: an immutable chunk with its vector.
// Re-ingestion appends new rows; rows are never updated in place.
type EmbeddedChunk struct {
	ID        string
	SourceURL string
	Content   string
	Embedding []float32
}

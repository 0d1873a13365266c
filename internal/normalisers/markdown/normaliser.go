// Package markdown normalises front-matter-tagged markdown files.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Front matter keys with dedicated Document fields.
const (
	keySourceURL = "source_url"
	keyTitle     = "title"
)

// Normaliser handles Markdown documents.
//
// A leading YAML front matter block delimited by "---" lines is parsed:
// source_url becomes the document locator, title the title, and every
// other field is kept in metadata. The body is passed through unchanged
// so heading markers reach the chunker.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Normalise converts a markdown document to a normalised document.
// Chunking is handled by the PostProcessor pipeline.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	fields, body, err := splitFrontMatter(raw.Content)
	if err != nil {
		return nil, fmt.Errorf("parse front matter of %s: %w", raw.URI, err)
	}

	metadata := copyMetadata(raw.Metadata)
	for k, v := range fields {
		if k == keySourceURL || k == keyTitle {
			continue
		}
		metadata[k] = v
	}
	metadata["mime_type"] = raw.MIMEType
	metadata["format"] = "markdown"

	content := strings.TrimSpace(strings.ReplaceAll(body, "\r\n", "\n"))

	title := stringField(fields, keyTitle)
	if title == "" {
		title = extractMarkdownTitle(content, raw.URI)
	}

	doc := domain.Document{
		ID:        uuid.New().String(),
		URI:       raw.URI,
		SourceURL: stringField(fields, keySourceURL),
		Title:     title,
		Content:   content,
		Metadata:  metadata,
	}

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// splitFrontMatter separates a leading YAML block from the body.
// Content without front matter is returned whole with nil fields.
func splitFrontMatter(content []byte) (map[string]any, string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	text := strings.ReplaceAll(string(content), "\r\n", "\n")

	if !strings.HasPrefix(text, "---\n") {
		return nil, text, nil
	}

	rest := text[len("---\n"):]
	end, next := closingDelimiter(rest)
	if end < 0 {
		return nil, text, nil
	}

	fields := make(map[string]any)
	if err := yaml.Unmarshal([]byte(rest[:end]), &fields); err != nil {
		return nil, "", fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return fields, rest[next:], nil
}

// closingDelimiter finds the line closing the front matter block.
// Returns the block end and the body start, or -1 when unclosed.
func closingDelimiter(rest string) (int, int) {
	offset := 0
	for _, line := range strings.SplitAfter(rest, "\n") {
		trimmed := strings.TrimRight(line, "\n")
		if trimmed == "---" || trimmed == "..." {
			return offset, offset + len(line)
		}
		offset += len(line)
	}
	return -1, -1
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// extractMarkdownTitle extracts a title from the markdown content or falls back to filename.
func extractMarkdownTitle(content, uri string) string {
	// Try to find first H1 heading (# Title)
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}

	// Fall back to filename
	filename := filepath.Base(uri)
	ext := filepath.Ext(filename)
	if ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

// copyMetadata creates a shallow copy of metadata. Never returns nil.
func copyMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src)+2)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

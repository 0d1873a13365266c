package domain

// RawDocument represents opaque bytes read by a document lister.
// It is the lister's output before normalisation.
type RawDocument struct {
	// URI is the original location (file path).
	URI string

	// MIMEType is the content type (e.g., "text/markdown").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains lister-specific key-value pairs.
	Metadata map[string]any
}

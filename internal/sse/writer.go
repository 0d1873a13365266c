package sse

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// ContentType is the media type of an event stream.
const ContentType = "text/event-stream"

// Writer encodes domain events as SSE data frames.
type Writer struct {
	w io.Writer
}

// NewWriter creates a writer over w. When w has a Flush method, such as a
// *bufio.Writer or an http.Flusher, every event is flushed as it is written.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteEvent writes one "data: <JSON>\n\n" frame and flushes it.
func (w *Writer) WriteEvent(ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type(), err)
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write %s event: %w", ev.Type(), err)
	}
	return w.flush()
}

func (w *Writer) flush() error {
	switch f := w.w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case interface{ Flush() }:
		f.Flush()
	}
	return nil
}

package sse

import (
	"io"

	"github.com/custodia-labs/groundwork/internal/core/domain"
	"github.com/custodia-labs/groundwork/internal/logger"
)

// Reader decodes domain events from an answer stream.
type Reader struct {
	frames *Scanner
}

// NewReader creates a reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{frames: NewScanner(r)}
}

// Next returns the next event. Frames that are not valid JSON or carry an
// unknown type are logged and skipped. Returns io.EOF at the end of the stream.
func (r *Reader) Next() (domain.Event, error) {
	for {
		frame, err := r.frames.Next()
		if err != nil {
			return nil, err
		}

		ev, err := domain.DecodeEvent([]byte(frame.Data))
		if err != nil {
			logger.Warn("sse: dropping frame: %v", err)
			continue
		}
		return ev, nil
	}
}

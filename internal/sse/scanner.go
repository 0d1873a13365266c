package sse

import (
	"bufio"
	"io"
	"strings"
)

// maxFrameSize bounds a single line. Resource frames carry whole passages.
const maxFrameSize = 4 << 20

// Frame is one dispatched server-sent event.
type Frame struct {
	// Event is the "event:" field, empty for unnamed events.
	Event string

	// Data is the "data:" lines joined with newlines.
	Data string
}

// Scanner reads frames from an SSE body.
type Scanner struct {
	s *bufio.Scanner
}

// NewScanner creates a scanner over r.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &Scanner{s: s}
}

// Next returns the next frame with data. Comment lines, id and retry
// fields are ignored. Returns io.EOF when the body ends; a trailing frame
// without its blank line is still returned.
func (s *Scanner) Next() (Frame, error) {
	var frame Frame
	var data []string
	hasData := false

	for s.s.Scan() {
		line := strings.TrimSuffix(s.s.Text(), "\r")

		if line == "" {
			if hasData {
				frame.Data = strings.Join(data, "\n")
				return frame, nil
			}
			frame = Frame{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			frame.Event = value
		case "data":
			data = append(data, value)
			hasData = true
		}
	}

	if err := s.s.Err(); err != nil {
		return Frame{}, err
	}
	if hasData {
		frame.Data = strings.Join(data, "\n")
		return frame, nil
	}
	return Frame{}, io.EOF
}

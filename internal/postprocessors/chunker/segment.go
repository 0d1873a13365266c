package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/groundwork/internal/core/domain"
)

// headerPattern matches a level 1-3 markdown heading on a trimmed line.
var headerPattern = regexp.MustCompile(`^(#{1,3})\s+\S.*$`)

// Segment splits document text into ordered sections.
//
// A heading line closes the pending body and becomes its own section with
// the level given by its marker count. Blank lines close the pending body,
// so each paragraph is its own level 0 section. Other lines accumulate.
// Sections that are empty after trimming are discarded.
func Segment(text string) []domain.Section {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var sections []domain.Section
	var body []string

	flush := func() {
		if len(body) == 0 {
			return
		}
		if joined := strings.TrimSpace(strings.Join(body, "\n")); joined != "" {
			sections = append(sections, domain.Section{Level: 0, Text: joined})
		}
		body = body[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
		case headerPattern.MatchString(trimmed):
			flush()
			level := headerPattern.FindStringSubmatch(trimmed)[1]
			sections = append(sections, domain.Section{Level: len(level), Text: trimmed})
		default:
			body = append(body, strings.TrimRight(line, " \t"))
		}
	}
	flush()

	return sections
}

// FilterSection cuts body at the first occurrence of marker and returns
// the trimmed text before it. An empty marker leaves body trimmed only.
func FilterSection(body, marker string) string {
	if marker != "" {
		if i := strings.Index(body, marker); i >= 0 {
			body = body[:i]
		}
	}
	return strings.TrimSpace(body)
}

// BuildChunks turns sections into chunks using the default footer marker.
// See Processor for document-level chunking.
func BuildChunks(sections []domain.Section, maxSize int) []domain.Chunk {
	return buildChunks(sections, maxSize, domain.DefaultFooterMarker)
}

func buildChunks(sections []domain.Section, maxSize int, marker string) []domain.Chunk {
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}

	var ctx domain.HeaderContext
	var chunks []domain.Chunk

	emit := func(headers []string, body string) {
		chunks = append(chunks, domain.Chunk{
			Headers:  headers,
			Body:     body,
			Content:  domain.ComposeContent(headers, body),
			Position: len(chunks),
		})
	}

	for _, s := range sections {
		if s.IsHeader() {
			ctx.Apply(s)
			continue
		}

		prefix := ctx.Prefix()
		body := FilterSection(s.Text, marker)
		if utf8.RuneCountInString(body) < maxSize {
			emit(prefix, body)
			continue
		}

		for _, para := range strings.Split(body, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			for _, piece := range splitOversize(para, maxSize) {
				emit(prefix, piece)
			}
		}
	}

	return chunks
}

// splitOversize breaks text longer than maxSize runes on lines, then on
// words, then by hard cuts, packing pieces greedily up to maxSize.
func splitOversize(text string, maxSize int) []string {
	if utf8.RuneCountInString(text) <= maxSize {
		return []string{text}
	}
	if lines := strings.Split(text, "\n"); len(lines) > 1 {
		return pack(lines, "\n", maxSize)
	}
	if words := strings.Fields(text); len(words) > 1 {
		return pack(words, " ", maxSize)
	}
	return hardCut(text, maxSize)
}

func pack(parts []string, sep string, maxSize int) []string {
	var out []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
		curLen = 0
	}

	for _, part := range parts {
		n := utf8.RuneCountInString(part)
		if n > maxSize {
			flush()
			out = append(out, splitOversize(part, maxSize)...)
			continue
		}
		if curLen > 0 && curLen+len(sep)+n > maxSize {
			flush()
		}
		if curLen > 0 {
			cur.WriteString(sep)
			curLen += len(sep)
		}
		cur.WriteString(part)
		curLen += n
	}
	flush()

	return out
}

func hardCut(text string, maxSize int) []string {
	r := []rune(text)
	out := make([]string, 0, len(r)/maxSize+1)
	for len(r) > maxSize {
		out = append(out, string(r[:maxSize]))
		r = r[maxSize:]
	}
	if len(r) > 0 {
		out = append(out, string(r))
	}
	return out
}

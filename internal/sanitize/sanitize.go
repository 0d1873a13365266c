// Package sanitize strips characters that break embedding providers and
// databases from text before it is embedded or stored.
//
// Removed: NUL and the other C0 controls except tab, newline, vertical tab,
// form feed and carriage return; DEL and the C1 controls; the replacement
// character U+FFFD; and Unicode noncharacters. Ill-formed UTF-8 is replaced
// first so it is removed with U+FFFD. The result is trimmed.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Disallowed reports whether r is removed by String.
func Disallowed(r rune) bool {
	switch {
	case r <= 0x08:
		return true
	case r >= 0x0E && r <= 0x1F:
		return true
	case r >= 0x7F && r <= 0x9F:
		return true
	case r == unicode.ReplacementChar:
		return true
	case r >= 0xFDD0 && r <= 0xFDEF:
		return true
	case r&0xFFFE == 0xFFFE:
		return true
	default:
		return false
	}
}

var disallowed = runes.Predicate(Disallowed)

// String returns s without disallowed characters, trimmed of surrounding
// whitespace. String(String(s)) == String(s).
func String(s string) string {
	if clean(s) {
		return strings.TrimSpace(s)
	}
	t := transform.Chain(runes.ReplaceIllFormed(), runes.Remove(disallowed))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = strings.Map(func(r rune) rune {
			if Disallowed(r) {
				return -1
			}
			return r
		}, strings.ToValidUTF8(s, ""))
	}
	return strings.TrimSpace(out)
}

// Strings sanitizes every element of ss into a new slice.
func Strings(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = String(s)
	}
	return out
}

// clean reports whether s needs no removal. Invalid bytes decode as
// U+FFFD, which is disallowed.
func clean(s string) bool {
	for _, r := range s {
		if Disallowed(r) {
			return false
		}
	}
	return true
}

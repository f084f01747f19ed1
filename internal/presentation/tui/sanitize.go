package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Sanitize makes host-provided text safe to print in a table cell. Invalid
// UTF-8 is replaced, line breaks and tabs become spaces, and other control
// characters (ANSI escapes, NUL, BEL) are dropped.
func Sanitize(s string) string {
	// Fast path: if no control chars, return as is.
	clean := utf8.ValidString(s)
	if clean {
		for _, r := range s {
			if unicode.IsControl(r) {
				clean = false
				break
			}
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToValidUTF8(s, "�") {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			b.WriteRune(' ')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// truncate cuts s to at most limit runes, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

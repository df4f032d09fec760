package sanitize

import (
	"strings"
	"unicode"
)

// Text cleans a user-entered text field (title, username) before it enters
// the catalog: strips null bytes and control characters, collapses runs of
// whitespace and caps the length in bytes (without splitting a rune).
func Text(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\x00", "")

	result := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	result = strings.Join(strings.Fields(result), " ")

	return truncate(result, maxLen)
}

// Multiline is like Text but preserves line breaks, for description bodies.
func Multiline(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	result := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	return truncate(strings.TrimSpace(result), maxLen)
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	for len(string(runes)) > maxLen {
		runes = runes[:len(runes)-1]
	}
	return strings.TrimSpace(string(runes))
}

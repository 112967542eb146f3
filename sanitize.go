package netidentity

import (
	"strings"
	"unicode"
)

const defaultMaxValueLength = 256

// sanitizeValue trims s, drops control characters and caps it at maxLen
// runes. Header and self-report values are untrusted and end up in logs and
// ticket records.
func sanitizeValue(s string, maxLen int) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)

	if maxLen <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	return strings.TrimSpace(string(runes[:maxLen]))
}

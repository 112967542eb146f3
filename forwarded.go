package netidentity

import (
	"errors"
	"fmt"
	"strings"
)

var errMalformedForwarded = errors.New("malformed Forwarded header")

// forwardedTokens returns the for= values of an RFC 7239 Forwarded header in
// wire order. Elements without a for parameter are skipped. Obfuscated
// identifiers ("_hidden") and "unknown" are returned as-is and rejected later
// by the address shape check.
func forwardedTokens(value string) ([]string, error) {
	var tokens []string

	for _, element := range splitQuoted(value, ',') {
		var forValue string
		var seen bool

		for _, pair := range splitQuoted(element, ';') {
			key, raw, ok := strings.Cut(pair, "=")
			key = strings.TrimSpace(key)
			raw = strings.TrimSpace(raw)
			if !ok || key == "" || raw == "" {
				return nil, fmt.Errorf("%w: parameter %q", errMalformedForwarded, pair)
			}
			if !strings.EqualFold(key, "for") {
				continue
			}
			if seen {
				return nil, fmt.Errorf("%w: duplicate for in %q", errMalformedForwarded, element)
			}

			unquoted, err := unquoteForwarded(raw)
			if err != nil {
				return nil, err
			}
			forValue, seen = unquoted, true
		}

		if seen {
			tokens = append(tokens, forValue)
		}
	}

	if hasOpenQuote(value) {
		return nil, fmt.Errorf("%w: unterminated quoted string", errMalformedForwarded)
	}

	return tokens, nil
}

// splitQuoted splits s on sep, ignoring separators inside double-quoted
// strings. Empty segments are dropped.
func splitQuoted(s string, sep byte) []string {
	var parts []string
	inQuotes, escaped := false, false
	start := 0

	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case escaped:
			escaped = false
		case ch == '\\' && inQuotes:
			escaped = true
		case ch == '"':
			inQuotes = !inQuotes
		case ch == sep && !inQuotes:
			if part := strings.TrimSpace(s[start:i]); part != "" {
				parts = append(parts, part)
			}
			start = i + 1
		}
	}

	if part := strings.TrimSpace(s[start:]); part != "" {
		parts = append(parts, part)
	}

	return parts
}

func hasOpenQuote(s string) bool {
	inQuotes, escaped := false, false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\' && inQuotes:
			escaped = true
		case s[i] == '"':
			inQuotes = !inQuotes
		}
	}
	return inQuotes || escaped
}

// unquoteForwarded resolves an RFC 7230 quoted-string. Tokens that are not
// quoted are returned unchanged.
func unquoteForwarded(v string) (string, error) {
	if v[0] != '"' {
		return v, nil
	}
	if len(v) < 2 || v[len(v)-1] != '"' {
		return "", fmt.Errorf("%w: invalid quoted string %q", errMalformedForwarded, v)
	}

	var b strings.Builder
	b.Grow(len(v) - 2)
	escaped := false

	for i := 1; i < len(v)-1; i++ {
		ch := v[i]
		switch {
		case escaped:
			b.WriteByte(ch)
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '"':
			return "", fmt.Errorf("%w: unexpected quote in %q", errMalformedForwarded, v)
		default:
			b.WriteByte(ch)
		}
	}

	if escaped {
		return "", fmt.Errorf("%w: unterminated escape in %q", errMalformedForwarded, v)
	}

	return strings.TrimSpace(b.String()), nil
}

package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var errBadEscape = errors.New("malformed unicode escape")

// NormalizeCity returns the canonical form of a raw SIPSA city name:
// escaped unicode decoded, composed to NFC, cut at the first comma,
// trimmed and upper-cased. If decoding fails the raw string is only
// upper-cased. Empty input yields "", which callers treat as unroutable.
func NormalizeCity(raw string) string {
	city, err := canonicalCity(raw)
	if err != nil {
		return strings.ToUpper(raw)
	}
	return city
}

func canonicalCity(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	s := raw
	if strings.Contains(s, `\u`) || strings.Contains(s, `\U`) {
		decoded, err := decodeUnicodeEscapes(s)
		if err != nil {
			return "", fmt.Errorf("normalize city %q: %w", raw, err)
		}
		s = decoded
	}
	s = norm.NFC.String(s)
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	return strings.ToUpper(strings.TrimSpace(s)), nil
}

// decodeUnicodeEscapes replaces \uXXXX (including UTF-16 surrogate pairs),
// \UXXXXXXXX and \\ sequences with the characters they encode. Any other
// backslash is kept literally.
func decodeUnicodeEscapes(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			i++
			continue
		}

		switch s[i+1] {
		case '\\':
			b.WriteByte('\\')
			i += 2
		case 'u':
			r, n, err := readEscape(s[i:], 4)
			if err != nil {
				return "", err
			}
			i += n
			if utf16.IsSurrogate(r) {
				low, m, err := readEscape(s[i:], 4)
				if err != nil {
					return "", fmt.Errorf("%w: unpaired surrogate", errBadEscape)
				}
				r = utf16.DecodeRune(r, low)
				if r == utf8.RuneError {
					return "", fmt.Errorf("%w: invalid surrogate pair", errBadEscape)
				}
				i += m
			}
			b.WriteRune(r)
		case 'U':
			r, n, err := readEscape(s[i:], 8)
			if err != nil {
				return "", err
			}
			if !utf8.ValidRune(r) {
				return "", fmt.Errorf("%w: invalid code point", errBadEscape)
			}
			b.WriteRune(r)
			i += n
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String(), nil
}

// readEscape parses a backslash escape with the given number of hex digits
// at the start of s and returns the rune and the bytes consumed.
func readEscape(s string, digits int) (rune, int, error) {
	n := 2 + digits
	if len(s) < n || s[0] != '\\' || (s[1] != 'u' && s[1] != 'U') {
		return 0, 0, errBadEscape
	}
	v, err := strconv.ParseUint(s[2:n], 16, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", errBadEscape, s[:n])
	}
	return rune(v), n, nil
}

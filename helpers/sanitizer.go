package helpers

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeMetadataValue makes a string safe for storage in a blob user-metadata
// dictionary. Metadata travels in HTTP headers, so NUL bytes, invalid UTF-8
// sequences and control characters (including CR/LF) are stripped.
func SanitizeMetadataValue(s string) string {
	if isCleanMetadataValue(s) {
		return s
	}

	buf := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				continue // invalid byte
			}
		}
		if unicode.IsControl(r) {
			continue
		}
		buf = append(buf, r)
	}
	return strings.TrimSpace(string(buf))
}

func isCleanMetadataValue(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return s == strings.TrimSpace(s)
}

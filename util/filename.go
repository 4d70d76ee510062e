package util

import (
	"strings"
)

// Characters that are reserved in a path component on at least one common
// filesystem, including the path separators themselves.
const unsafeFilenameChars = `/\:*?"<>|`

const maxFilenameRunes = 150

// SanitizeFilename reduces s to a string that is safe to use as a single path
// component: reserved and control characters become spaces, runs of
// whitespace collapse to a single space, and the result is trimmed of
// surrounding spaces and dots.
func SanitizeFilename(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if r < 0x20 || strings.ContainsRune(unsafeFilenameChars, r) {
			return ' '
		}
		return r
	}, s)
	collapsed := strings.Join(strings.Fields(mapped), " ")
	return TruncateRunes(strings.Trim(collapsed, " ."), maxFilenameRunes)
}

// TruncateRunes shortens s to at most n runes, without splitting a rune and
// without leaving a trailing space or dot.
func TruncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimRight(string(runes[:n]), " .")
}

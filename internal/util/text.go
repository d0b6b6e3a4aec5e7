package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CollapseWhitespace folds runs of whitespace into single spaces and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// RuneLen is the length of s in characters.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

var nonWordRegex = regexp.MustCompile(`\W`)

// SanitizeIdentifier replaces every non-word character with an underscore.
func SanitizeIdentifier(s string) string {
	return nonWordRegex.ReplaceAllString(s, "_")
}

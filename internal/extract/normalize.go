package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxDescriptionLength bounds job_description, in characters.
const MaxDescriptionLength = 12000

var excessiveNewlines = regexp.MustCompile(`\n{3,}`)

// Normalize replaces non-breaking spaces with spaces, reduces runs of three or
// more newlines to a single blank line, and trims the result.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = excessiveNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Truncate cuts text to at most limit characters without splitting a UTF-8
// sequence.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}

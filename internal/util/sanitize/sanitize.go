// Package sanitize cleans text typed or pasted at interactive prompts.
//
// Values copied out of a browser (an account email, a file path) often carry
// characters that are invisible in a terminal:
//   - line endings (CRLF/CR)
//   - zero-width and other invisible Unicode characters
//   - runs of spaces or tabs
package sanitize

import (
	"regexp"
	"strings"
)

var (
	invisibleChars = strings.NewReplacer(
		"\u200B", "", // Zero-width space
		"\u200C", "", // Zero-width non-joiner
		"\u200D", "", // Zero-width joiner
		"\uFEFF", "", // Zero-width no-break space (BOM)
		"\u00AD", "", // Soft hyphen
		"\u2060", "", // Word joiner
		"\u180E", "", // Mongolian vowel separator
	)
	lineEndings = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")
	spaceRun    = regexp.MustCompile(`[ \t]+`)
)

// Line sanitizes one line of prompt input: line endings and whitespace runs
// collapse to a single space, invisible characters are dropped, and the
// result is trimmed.
func Line(s string) string {
	if s == "" {
		return s
	}
	s = lineEndings.Replace(s)
	s = invisibleChars.Replace(s)
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Field sanitizes a single-token value such as an email address: invisible
// characters and all whitespace are removed.
func Field(s string) string {
	if s == "" {
		return s
	}
	s = invisibleChars.Replace(s)
	return strings.Join(strings.Fields(s), "")
}

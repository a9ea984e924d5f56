package normalize

import (
	"regexp"
	"strings"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	phoneRegex      = regexp.MustCompile(`\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)
	emailRegex      = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// CleanText collapses runs of whitespace and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// ExtractPhone returns the first North American phone number in s.
func ExtractPhone(s string) string {
	return strings.TrimSpace(phoneRegex.FindString(s))
}

// ExtractEmail returns the first e-mail address in s, lowercased, with
// trailing sentence punctuation removed.
func ExtractEmail(s string) string {
	m := emailRegex.FindString(s)
	m = strings.TrimRight(m, ".")
	return strings.ToLower(m)
}

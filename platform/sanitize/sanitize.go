// Package sanitize cleans free text captured from public forms before it is stored.
package sanitize

import (
	"html"
	"regexp"
	"strings"
)

var (
	tag        = regexp.MustCompile(`<[^>]*>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// StripHTML drops markup, including markup smuggled in as entities.
func StripHTML(s string) string {
	s = tag.ReplaceAllString(s, "")
	s = tag.ReplaceAllString(html.UnescapeString(s), "")
	return strings.TrimSpace(s)
}

func Text(s string) string {
	return StripHTML(s)
}

// Name is Text with runs of whitespace collapsed to one space.
func Name(s string) string {
	return whitespace.ReplaceAllString(StripHTML(s), " ")
}

func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

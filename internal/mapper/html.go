package mapper

import (
	"html"
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// StripTags reduces remote rich text to plain text: markup removed,
// entities decoded, surrounding whitespace trimmed. Lossy by design — the
// plain content is preserved, the original markup is not.
func StripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}

// WrapText re-applies the minimal markup the remote step representation
// expects: an escaped paragraph, "-" when the text is empty.
func WrapText(s string) string {
	if strings.TrimSpace(s) == "" {
		return "<p>-</p>"
	}
	return "<p>" + html.EscapeString(s) + "</p>"
}

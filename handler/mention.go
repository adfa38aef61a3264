package handler

import (
	"regexp"
	"strings"
)

// Slack encodes an at-mention in message text as <@U12345> or
// <@U12345|display-name>.
var mentionPattern = regexp.MustCompile(`<@(U[A-Z0-9]+)(?:\|[^>]*)?>`)

// ExtractMention returns the user ID of the first mention token in the
// text, or "" when the text contains none.
func ExtractMention(text string) string {
	m := mentionPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// StripMention removes the first mention token from the text.
func StripMention(text string) string {
	loc := mentionPattern.FindStringIndex(text)
	if loc == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
}

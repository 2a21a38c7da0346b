package messages

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"travelmate/backend/internal/apperr"
)

// Content matching any of these is rejected outright rather than escaped.
var disallowedContent = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)<[^>]*\son\w+\s*=`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)<\s*(iframe|object|embed)\b`),
}

// ValidateContent trims content and checks it against the length limit and
// the disallowed patterns. It returns the trimmed content.
func ValidateContent(content string, maxLength int) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperr.InvalidInput("message cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxLength {
		return "", apperr.InvalidInput("message exceeds maximum length")
	}
	for _, re := range disallowedContent {
		if re.MatchString(content) {
			return "", apperr.InvalidInput("message contains disallowed content")
		}
	}
	return content, nil
}

// preview shortens content for the room listing.
func preview(content string, runes int) string {
	if utf8.RuneCountInString(content) <= runes {
		return content
	}
	r := []rune(content)
	return string(r[:runes]) + "…"
}

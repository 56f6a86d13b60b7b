package dedup

import (
	"regexp"
	"strings"
)

var (
	urlPattern        = regexp.MustCompile(`https?://\S+|www\.\S+`)
	disallowedPattern = regexp.MustCompile(`[^\w\s.,!?;:'"-]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Normalize produces the canonical comparison form of a mention text:
// lowercase, URLs stripped, characters outside word/basic punctuation removed,
// whitespace collapsed, trailing "," and "." trimmed. Idempotent.
func Normalize(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return ""
	}

	lowered = urlPattern.ReplaceAllString(lowered, " ")
	lowered = disallowedPattern.ReplaceAllString(lowered, " ")
	lowered = whitespacePattern.ReplaceAllString(lowered, " ")
	lowered = strings.TrimSpace(lowered)
	lowered = strings.TrimRight(lowered, ",.")
	return strings.TrimSpace(lowered)
}

package ai

import (
	"regexp"
	"strings"
)

var thinkSegment = regexp.MustCompile(`(?is)<think>.*?</think>`)

// StripThinking removes <think>...</think> reasoning segments and trims the result.
func StripThinking(s string) string {
	return strings.TrimSpace(thinkSegment.ReplaceAllString(s, ""))
}

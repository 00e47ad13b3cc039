// Package llmtext extracts structured payloads (JSON blobs, source code)
// from free-form LLM completions, which routinely wrap the payload in a
// fenced code block, prose, or both.
package llmtext

import (
	"regexp"
	"strings"
)

var jsonFencePattern = regexp.MustCompile("(?s)```json\\s*\\n(.*?)```")
var jsonSpanPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON pulls a JSON blob out of text: a fenced ```json ... ``` block
// takes priority, then an unfenced {...} span, then the raw text as-is.
func ExtractJSON(text string) string {
	if m := jsonFencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := jsonSpanPattern.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return strings.TrimSpace(text)
}

var codeFencePattern = regexp.MustCompile("(?s)```(?:javascript|js|typescript|ts)?\\s*\\n(.*?)```")

// ExtractCode pulls a source blob out of text: a fenced
// ```javascript|js|typescript|ts``` block takes priority, falling back to
// the raw text.
func ExtractCode(text string) string {
	if m := codeFencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

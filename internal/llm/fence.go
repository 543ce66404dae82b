package llm

import (
	"regexp"
	"strings"
)

var (
	leadingJSONFence = regexp.MustCompile("(?i)^```json\\s*")
	leadingFence     = regexp.MustCompile("^```\\s*")
	trailingFence    = regexp.MustCompile("```$")
)

// StripCodeFence removes a Markdown code fence wrapped around a model reply.
// JSON mode does not guarantee the model leaves the fence out.
func StripCodeFence(raw string) string {
	out := strings.TrimSpace(raw)
	out = leadingJSONFence.ReplaceAllString(out, "")
	out = leadingFence.ReplaceAllString(out, "")
	out = trailingFence.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

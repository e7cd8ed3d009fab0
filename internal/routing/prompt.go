package routing

import (
	_ "embed"
	"strings"
)

// DefaultPromptTemplate is the embedded fallback scoring prompt. Oracles use
// it whenever no template is configured, so a missing prompt file can never
// send an empty prompt (which would silently drop the item text).
//
//go:embed score_prompt.txt
var DefaultPromptTemplate string

// effectivePrompt substitutes the item text into the configured template,
// falling back to the embedded default when the template is empty.
func effectivePrompt(template, body string) string {
	if template == "" {
		template = DefaultPromptTemplate
	}
	return strings.ReplaceAll(template, "{{BODY}}", body)
}

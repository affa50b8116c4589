package ai

import (
	"strings"

	_ "embed"

	"github.com/spigell/sourcing-agent/internal/keywords"
)

//go:embed prompt.md
var promptTemplate string

const (
	// SystemInstruction is sent to every provider that supports a system role.
	SystemInstruction = "You are an expert AI assistant that helps extract structured information from text content about job candidates. " +
		"You must ONLY respond with a valid JSON object, with no explanations or additional text. Do not use markdown code blocks. " +
		"The entire response must be a valid JSON object that can be parsed directly."

	// Temperature keeps extraction close to deterministic.
	Temperature = 0.1
)

// BuildPrompt renders the extraction prompt for an already truncated content excerpt.
func BuildPrompt(content string, set keywords.Set) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Must have: {{MUST_HAVE}}\nShould have: {{SHOULD_HAVE}}\n\nContent:\n{{CONTENT}}\n\nJSON Response:"
	}

	prompt := strings.ReplaceAll(template, "{{MUST_HAVE}}", strings.Join(set.Required, ", "))
	prompt = strings.ReplaceAll(prompt, "{{SHOULD_HAVE}}", strings.Join(set.Optional, ", "))
	prompt = strings.ReplaceAll(prompt, "{{CONTENT}}", content)
	return prompt
}

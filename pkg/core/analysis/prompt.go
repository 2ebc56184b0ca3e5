package analysis

import (
	"errors"
	"strings"

	"policy_compass/pkg/core/prompt"
)

const ValidationMessage = "Please provide a prompt and select at least one country."

// ErrValidation is returned before any provider call when the input is incomplete.
var ErrValidation = errors.New(ValidationMessage)

// Normalize trims the topic and drops blank country names, keeping order.
func Normalize(topic string, countries []string) (string, []string) {
	out := make([]string, 0, len(countries))
	for _, c := range countries {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return strings.TrimSpace(topic), out
}

// Validate rejects an empty topic or an empty country list.
func Validate(topic string, countries []string) error {
	topic, countries = Normalize(topic, countries)
	if topic == "" || len(countries) == 0 {
		return ErrValidation
	}
	return nil
}

// BuildPrompt renders the comparison instruction from the global prompt registry.
func BuildPrompt(topic string, countries []string) (string, error) {
	return BuildPromptFrom(prompt.Get(), topic, countries)
}

// BuildPromptFrom renders the comparison instruction from a specific registry.
func BuildPromptFrom(reg *prompt.Registry, topic string, countries []string) (string, error) {
	pt, err := reg.GetPrompt(prompt.AnalysisPolicyComparison)
	if err != nil {
		return "", err
	}
	ctx := prompt.NewContext().
		Set("Topic", topic).
		Set("Countries", countries)
	return prompt.RenderUserPrompt(pt, ctx)
}

package chat

import (
	"fmt"
	"strings"

	"policy_compass/pkg/core/prompt"
	"policy_compass/pkg/models"
)

// DashboardContext renders the summary block of the chat context.
func DashboardContext(a *models.FullAnalysis) string {
	summary := a.DashboardSummary

	clauses := make([]string, len(summary.CommonClauses))
	for i, cc := range summary.CommonClauses {
		clauses[i] = cc.Clause
	}
	approaches := make([]string, len(summary.DivergentApproaches))
	for i, da := range summary.DivergentApproaches {
		approaches[i] = da.Approach
	}

	var sb strings.Builder
	sb.WriteString("**Dashboard Summary**\n")
	fmt.Fprintf(&sb, "Key Themes: %s\n", strings.Join(summary.KeyThemes, ", "))
	fmt.Fprintf(&sb, "Common Clauses: %s\n", strings.Join(clauses, ", "))
	fmt.Fprintf(&sb, "Divergent Approaches: %s\n", strings.Join(approaches, ", "))
	return sb.String()
}

// ContractContext renders one block per policy record, separated by a blank line.
func ContractContext(a *models.FullAnalysis) string {
	blocks := make([]string, len(a.Contracts))
	for i, c := range a.Contracts {
		blocks[i] = fmt.Sprintf("**Policy: %s (%s)**\nSummary (vs. Canada): %s\nSuggestions: %s\n",
			c.PolicyTitle, c.Country, c.Summary, c.Suggestions)
	}
	return strings.Join(blocks, "\n\n")
}

// BuildSystemInstruction embeds the whole analysis into the assistant's system prompt.
func BuildSystemInstruction(reg *prompt.Registry, a *models.FullAnalysis) (string, error) {
	if a == nil {
		return "", fmt.Errorf("analysis is nil")
	}
	pt, err := reg.GetPrompt(prompt.ChatPolicyAssistant)
	if err != nil {
		return "", err
	}
	ctx := prompt.NewContext().
		Set("DashboardContext", DashboardContext(a)).
		Set("ContractContext", ContractContext(a))
	return prompt.RenderSystemPrompt(pt, ctx)
}

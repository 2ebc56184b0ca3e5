package prompt

const (
	AnalysisPolicyComparison = "analysis.policy_comparison"
	ChatPolicyAssistant      = "chat.policy_assistant"
)

const policyComparisonTmpl = `
Analyze government policies related to "{{.Topic}}" for the following countries: {{join .Countries ", "}}.

Your task is to perform a comprehensive comparison and provide a detailed analysis in the specified JSON format.

**Instructions:**
1.  **Overall Dashboard Summary:**
    *   Identify 3-5 high-level **key themes** that emerge across all policies.
    *   Pinpoint the **most common clauses** or policy areas. For each, provide its name, a brief description, and its frequency as a percentage.
    *   Highlight significant **divergent approaches** where countries handle the same topic differently.
2.  **Individual Policy Analysis:**
    *   For each country, create a separate entry.
    *   Assign a unique 'id' starting from 0.
    *   Identify the 'country' and a descriptive 'policyTitle'.
    *   Provide a detailed 'summary' of its main provisions. **Crucially, for each summary, you MUST highlight notable differences from Canadian policies on the same topic.**
    *   Offer concrete 'suggestions' for improvement for each policy.

Please find the relevant, up-to-date policies and provide the full analysis in the specified JSON structure.
`

const policyAssistantTmpl = `You are an expert policy analysis assistant. Your knowledge base is strictly limited to the analysis provided below. Answer questions based ONLY on this context. Pay special attention to comparisons with Canadian policy. If the answer isn't in the context, state that clearly.

**CONTEXT:**
{{.DashboardContext}}

{{.ContractContext}}
`

func builtins() []*PromptTemplate {
	return []*PromptTemplate{
		{
			ID:             AnalysisPolicyComparison,
			Name:           "Comparative policy analysis",
			Category:       "analysis",
			Description:    "Asks for a dashboard summary plus one policy record per country, compared against Canada.",
			UserPromptTmpl: policyComparisonTmpl,
			Variables: []PromptVariable{
				{Name: "Topic", Type: "string", Description: "Free-text policy question", Required: true},
				{Name: "Countries", Type: "array", Description: "Country names to compare", Required: true},
			},
			Version: "1",
		},
		{
			ID:           ChatPolicyAssistant,
			Name:         "Policy follow-up assistant",
			Category:     "chat",
			Description:  "System instruction that restricts the chat to a generated analysis.",
			SystemPrompt: policyAssistantTmpl,
			Variables: []PromptVariable{
				{Name: "DashboardContext", Type: "string", Required: true},
				{Name: "ContractContext", Type: "string", Required: true},
			},
			Version: "1",
		},
	}
}

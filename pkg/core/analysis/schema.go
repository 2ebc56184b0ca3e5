package analysis

import "policy_compass/pkg/core/llm"

// ResponseSchema describes the JSON shape the analysis model must return.
func ResponseSchema() *llm.Schema {
	return &llm.Schema{
		Type: llm.TypeObject,
		Properties: map[string]*llm.Schema{
			"dashboardSummary": {
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"keyThemes": {
						Type:        llm.TypeArray,
						Items:       &llm.Schema{Type: llm.TypeString},
						Description: "Key themes identified across all policies.",
					},
					"commonClauses": {
						Type: llm.TypeArray,
						Items: &llm.Schema{
							Type: llm.TypeObject,
							Properties: map[string]*llm.Schema{
								"clause":      {Type: llm.TypeString, Description: "The name of the common clause/policy area."},
								"description": {Type: llm.TypeString, Description: "A brief description of the clause's purpose."},
								"frequency":   {Type: llm.TypeNumber, Description: "The percentage of countries sharing this clause/policy."},
							},
							Required: []string{"clause", "description", "frequency"},
						},
						Description: "Clauses or policy areas that appear frequently.",
					},
					"divergentApproaches": {
						Type: llm.TypeArray,
						Items: &llm.Schema{
							Type: llm.TypeObject,
							Properties: map[string]*llm.Schema{
								"approach":    {Type: llm.TypeString, Description: "The name of the divergent approach."},
								"description": {Type: llm.TypeString, Description: "A description of how this approach differs from others."},
								"examples": {
									Type:        llm.TypeArray,
									Items:       &llm.Schema{Type: llm.TypeString},
									Description: "Specific countries that use this approach.",
								},
							},
							Required: []string{"approach", "description", "examples"},
						},
						Description: "Different ways countries handle a similar topic.",
					},
				},
				Required: []string{"keyThemes", "commonClauses", "divergentApproaches"},
			},
			"contracts": {
				Type: llm.TypeArray,
				Items: &llm.Schema{
					Type: llm.TypeObject,
					Properties: map[string]*llm.Schema{
						"id":          {Type: llm.TypeInteger, Description: "A unique identifier for the policy, starting from 0."},
						"country":     {Type: llm.TypeString, Description: "The country associated with the policy."},
						"policyTitle": {Type: llm.TypeString, Description: "The official title or a descriptive name of the policy."},
						"summary":     {Type: llm.TypeString, Description: "A concise summary of the policy's key points, specifically highlighting notable differences from Canadian policies."},
						"suggestions": {Type: llm.TypeString, Description: "Actionable suggestions for improving or aligning the policy based on the comparative analysis."},
					},
					Required: []string{"id", "country", "policyTitle", "summary", "suggestions"},
				},
				Description: "An array of detailed analyses for each individual country's policy.",
			},
		},
		Required: []string{"dashboardSummary", "contracts"},
	}
}

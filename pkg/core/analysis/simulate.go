package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"policy_compass/pkg/core/llm"
	"policy_compass/pkg/models"
)

var promptSubject = regexp.MustCompile(`related to "(.*)" for the following countries: (.*)\.`)

// SimulationProvider answers with deterministic canned content so the service
// and CLI can run without an API key. Topic and countries are read back from
// the rendered comparison prompt.
func SimulationProvider() *llm.MockProvider {
	return &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (string, error) {
			topic, countries := "the requested topic", []string{"Canada"}
			if m := promptSubject.FindStringSubmatch(req.Prompt); m != nil {
				topic = m[1]
				countries = strings.Split(m[2], ", ")
			}
			data, err := json.Marshal(SimulatedAnalysis(topic, countries))
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
		ReplyFunc: func(ctx context.Context, system string, message string) (string, error) {
			return fmt.Sprintf("(simulated) The analysis context does not contain a model-generated answer to %q. Run without simulation for a real response.", message), nil
		},
	}
}

// SimulatedAnalysis builds a placeholder analysis with one record per country.
// Ids are assigned in reverse so callers exercise the id ordering.
func SimulatedAnalysis(topic string, countries []string) *models.FullAnalysis {
	a := &models.FullAnalysis{
		DashboardSummary: models.DashboardAnalysis{
			KeyThemes: []string{
				"Regulatory oversight of " + topic,
				"Public investment",
				"International alignment",
			},
			CommonClauses: []models.CommonClause{
				{Clause: "Reporting obligations", Description: "Periodic disclosure to a national regulator.", Frequency: 40},
				{Clause: "Independent oversight body", Description: "A dedicated authority supervises compliance.", Frequency: 85},
				{Clause: "Public consultation", Description: "Draft rules are opened for comment.", Frequency: 60},
			},
			DivergentApproaches: []models.DivergentApproach{
				{Approach: "Centralised enforcement", Description: "A single national agency enforces the policy.", Examples: firstN(countries, 2)},
			},
		},
		Contracts: make([]models.Contract, 0, len(countries)),
	}
	for i := len(countries) - 1; i >= 0; i-- {
		a.Contracts = append(a.Contracts, models.Contract{
			ID:          i,
			Country:     countries[i],
			PolicyTitle: fmt.Sprintf("%s national framework on %s", countries[i], topic),
			Summary:     fmt.Sprintf("Simulated summary for %s. Compared with Canada, the framework places more weight on central coordination.", countries[i]),
			Suggestions: "Publish measurable targets and review them annually.",
		})
	}
	return a
}

func firstN(s []string, n int) []string {
	if len(s) < n {
		n = len(s)
	}
	return append([]string(nil), s[:n]...)
}

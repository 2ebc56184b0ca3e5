// Package report renders a stored analysis as Markdown or standalone HTML.
package report

import (
	"errors"
	"fmt"
	"strings"

	"policy_compass/pkg/core/dashboard"
	"policy_compass/pkg/models"
)

var ErrNoAnalysis = errors.New("record has no analysis")

// Markdown renders the record as a GitHub-flavoured Markdown document.
func Markdown(rec *models.AnalysisRecord) (string, error) {
	if rec == nil || rec.Analysis == nil {
		return "", ErrNoAnalysis
	}
	a := rec.Analysis
	var b strings.Builder

	fmt.Fprintf(&b, "# Policy Comparison: %s\n\n", rec.Topic)
	fmt.Fprintf(&b, "**Countries:** %s\n\n", strings.Join(rec.Countries, ", "))
	if !rec.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "**Generated:** %s", rec.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
		if rec.Model != "" {
			fmt.Fprintf(&b, " (%s)", rec.Model)
		}
		b.WriteString("\n\n")
	}

	b.WriteString("## Key Themes\n\n")
	for _, theme := range a.DashboardSummary.KeyThemes {
		fmt.Fprintf(&b, "- %s\n", theme)
	}
	b.WriteString("\n")

	if clauses := dashboard.ClausesByFrequency(a); len(clauses) > 0 {
		b.WriteString("## Common Clauses\n\n")
		b.WriteString("| Clause | Frequency | Description |\n")
		b.WriteString("|---|---:|---|\n")
		for _, c := range clauses {
			fmt.Fprintf(&b, "| %s | %s%% | %s |\n", cell(c.Clause), formatFrequency(c.Frequency), cell(c.Description))
		}
		b.WriteString("\n")
	}

	if len(a.DashboardSummary.DivergentApproaches) > 0 {
		b.WriteString("## Divergent Approaches\n\n")
		for _, d := range a.DashboardSummary.DivergentApproaches {
			fmt.Fprintf(&b, "### %s\n\n%s\n\n", d.Approach, d.Description)
			if len(d.Examples) > 0 {
				fmt.Fprintf(&b, "Examples: %s\n\n", strings.Join(d.Examples, ", "))
			}
		}
	}

	b.WriteString("## Country Policies\n\n")
	for _, c := range dashboard.ContractsByID(a) {
		fmt.Fprintf(&b, "### %s: %s\n\n", c.Country, c.PolicyTitle)
		fmt.Fprintf(&b, "**Summary (vs. Canada):** %s\n\n", c.Summary)
		if c.Suggestions != "" {
			fmt.Fprintf(&b, "**Suggestions:** %s\n\n", c.Suggestions)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n", nil
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func formatFrequency(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.1f", f)
}

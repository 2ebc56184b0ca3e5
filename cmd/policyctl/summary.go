package main

import (
	"fmt"
	"io"
	"strings"

	"policy_compass/pkg/core/dashboard"
	"policy_compass/pkg/models"
)

const barWidth = 30

// printSummary writes the dashboard view: themes, a text bar chart of the
// common clauses and one line per country policy.
func printSummary(out io.Writer, a *models.FullAnalysis) {
	fmt.Fprintf(out, "key themes: %s\n\n", strings.Join(a.DashboardSummary.KeyThemes, ", "))

	fmt.Fprintln(out, "common clauses:")
	for _, bar := range dashboard.ChartBars(a) {
		n := int(bar.Width / 100 * barWidth)
		fmt.Fprintf(out, "  %-32s %s%s %5.1f%%\n",
			truncate(bar.Clause, 32), strings.Repeat("#", n), strings.Repeat(".", barWidth-n), bar.Frequency)
	}

	fmt.Fprintln(out, "\npolicies:")
	for _, c := range dashboard.ContractsByID(a) {
		fmt.Fprintf(out, "  [%d] %s: %s\n", c.ID, c.Country, c.PolicyTitle)
	}
}

// printContract writes the detail view for one country's policy.
func printContract(out io.Writer, c models.Contract) {
	fmt.Fprintf(out, "[%d] %s\n%s\n\n%s\n", c.ID, c.Country, c.PolicyTitle, c.Summary)
	if c.Suggestions != "" {
		fmt.Fprintf(out, "\nsuggestions: %s\n", c.Suggestions)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

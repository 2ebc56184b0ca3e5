package dashboard

import (
	"math"
	"sort"

	"policy_compass/pkg/core/analysis"
	"policy_compass/pkg/models"
)

// ChartBar is one row of the common-clause frequency chart.
type ChartBar struct {
	Clause      string  `json:"clause"`
	Description string  `json:"description"`
	Frequency   float64 `json:"frequency"`
	Width       float64 `json:"width"` // bar width in percent, clamped to 0..100
}

// ClausesByFrequency returns the common clauses ordered by descending
// frequency. The input is not modified; ties keep their original order.
func ClausesByFrequency(a *models.FullAnalysis) []models.CommonClause {
	if a == nil {
		return nil
	}
	out := append([]models.CommonClause(nil), a.DashboardSummary.CommonClauses...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Frequency > out[j].Frequency
	})
	return out
}

// ChartBars builds the bar chart rows for the common clauses.
func ChartBars(a *models.FullAnalysis) []ChartBar {
	clauses := ClausesByFrequency(a)
	bars := make([]ChartBar, len(clauses))
	for i, c := range clauses {
		bars[i] = ChartBar{
			Clause:      c.Clause,
			Description: c.Description,
			Frequency:   c.Frequency,
			Width:       math.Max(0, math.Min(100, c.Frequency)),
		}
	}
	return bars
}

// ContractsByID returns the policy records in display order.
func ContractsByID(a *models.FullAnalysis) []models.Contract {
	if a == nil {
		return nil
	}
	out := append([]models.Contract(nil), a.Contracts...)
	analysis.SortContracts(out)
	return out
}

// FindContract looks up a policy record by id.
func FindContract(a *models.FullAnalysis, id int) (models.Contract, bool) {
	if a == nil {
		return models.Contract{}, false
	}
	for _, c := range a.Contracts {
		if c.ID == id {
			return c, true
		}
	}
	return models.Contract{}, false
}

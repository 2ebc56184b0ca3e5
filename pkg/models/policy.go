package models

import (
	"time"
)

// Contract is the per-country policy record returned by the model.
type Contract struct {
	ID          int    `json:"id"`
	Country     string `json:"country"`
	PolicyTitle string `json:"policyTitle"`
	Summary     string `json:"summary"`
	Suggestions string `json:"suggestions,omitempty"`
}

type CommonClause struct {
	Clause      string  `json:"clause"`
	Description string  `json:"description"`
	Frequency   float64 `json:"frequency"` // percentage of countries sharing the clause
}

type DivergentApproach struct {
	Approach    string   `json:"approach"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
}

type DashboardAnalysis struct {
	KeyThemes           []string            `json:"keyThemes"`
	CommonClauses       []CommonClause      `json:"commonClauses"`
	DivergentApproaches []DivergentApproach `json:"divergentApproaches"`
}

// FullAnalysis is the complete comparative analysis for one topic.
type FullAnalysis struct {
	DashboardSummary DashboardAnalysis `json:"dashboardSummary"`
	Contracts        []Contract        `json:"contracts"`
}

// AnalysisRecord wraps a generated analysis with the request that produced it.
type AnalysisRecord struct {
	ID        string        `json:"id"`
	Topic     string        `json:"topic"`
	Countries []string      `json:"countries"`
	Model     string        `json:"model,omitempty"`
	Analysis  *FullAnalysis `json:"analysis"`
	CreatedAt time.Time     `json:"created_at"`
}

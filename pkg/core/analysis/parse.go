package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"

	"policy_compass/pkg/core/utils"
	"policy_compass/pkg/models"
)

// ErrIncompleteResponse marks model output that decoded but lacks the
// fields every analysis must carry.
var ErrIncompleteResponse = errors.New("incomplete analysis response")

var (
	requiredTopLevel = []string{"dashboardSummary", "contracts"}
	requiredContract = []string{"id", "country", "policyTitle", "summary"}
)

// Parse decodes model output into a FullAnalysis and orders contracts by id.
// Syntax is repaired where possible, but the result must be an object holding
// both dashboardSummary and contracts, and every contract its identifying fields.
func Parse(text string) (*models.FullAnalysis, error) {
	var raw map[string]json.RawMessage
	clean, err := utils.SmartParse(text, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	if err := checkShape(raw); err != nil {
		return nil, err
	}

	var result models.FullAnalysis
	if err := json.Unmarshal([]byte(clean), &result); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}
	SortContracts(result.Contracts)
	return &result, nil
}

func checkShape(raw map[string]json.RawMessage) error {
	if raw == nil {
		return fmt.Errorf("%w: not a JSON object", ErrIncompleteResponse)
	}
	if missing := missingKeys(raw, requiredTopLevel); len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrIncompleteResponse, missing)
	}

	var summary map[string]json.RawMessage
	if err := json.Unmarshal(raw["dashboardSummary"], &summary); err != nil {
		return fmt.Errorf("%w: dashboardSummary: %v", ErrIncompleteResponse, err)
	}

	var contracts []map[string]json.RawMessage
	if err := json.Unmarshal(raw["contracts"], &contracts); err != nil {
		return fmt.Errorf("%w: contracts: %v", ErrIncompleteResponse, err)
	}
	for i, c := range contracts {
		if missing := missingKeys(c, requiredContract); len(missing) > 0 {
			return fmt.Errorf("%w: contract %d missing %v", ErrIncompleteResponse, i, missing)
		}
	}
	return nil
}

func missingKeys(obj map[string]json.RawMessage, keys []string) []string {
	var missing []string
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			missing = append(missing, k)
		}
	}
	return missing
}

// SortContracts orders contracts ascending by id, in place. Equal ids keep their order.
func SortContracts(contracts []models.Contract) {
	sort.SliceStable(contracts, func(i, j int) bool {
		return contracts[i].ID < contracts[j].ID
	})
}

// Clone returns a deep copy so shared results can be handed to several callers.
func Clone(a *models.FullAnalysis) *models.FullAnalysis {
	if a == nil {
		return nil
	}
	out := &models.FullAnalysis{
		DashboardSummary: models.DashboardAnalysis{
			KeyThemes:     slices.Clone(a.DashboardSummary.KeyThemes),
			CommonClauses: slices.Clone(a.DashboardSummary.CommonClauses),
		},
		Contracts: slices.Clone(a.Contracts),
	}
	if a.DashboardSummary.DivergentApproaches != nil {
		out.DashboardSummary.DivergentApproaches = make([]models.DivergentApproach, len(a.DashboardSummary.DivergentApproaches))
		for i, da := range a.DashboardSummary.DivergentApproaches {
			da.Examples = slices.Clone(da.Examples)
			out.DashboardSummary.DivergentApproaches[i] = da
		}
	}
	return out
}

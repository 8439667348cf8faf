package jobs

import (
	"presale-backend/internal/estimate"
)

// ComputeEstimates fills in every task's expected hours from its PERT
// triple and recomputes totals. The model's own expected values, if any,
// are discarded. Increment must be positive.
func ComputeEstimates(result *AnalysisResult, increment float64) error {
	byRole := make(map[string]float64)
	var total float64
	for ei := range result.Epics {
		for ti := range result.Epics[ei].Tasks {
			task := &result.Epics[ei].Tasks[ti]
			expected, err := estimate.Expected(
				task.Hours.Optimistic,
				task.Hours.MostLikely,
				task.Hours.Pessimistic,
				increment,
			)
			if err != nil {
				return err
			}
			task.Hours.Expected = expected
			total += expected
			byRole[task.Role] += expected
		}
	}
	for role, hours := range byRole {
		byRole[role] = estimate.RoundHours(hours)
	}
	result.Totals = Totals{
		ExpectedHours: estimate.RoundHours(total),
		ByRole:        byRole,
	}
	return nil
}

package dto

import "github.com/GanizaniSitara/controls-ux/internal/domain/fitness"

// FitnessResultDTO is the wire form of a fitness result.
type FitnessResultDTO struct {
	ID                string  `json:"id"`
	FunctionID        string  `json:"function_id"`
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	RuleID            string  `json:"rule_id"`
	PassingCount      int     `json:"passing_count"`
	WarningCount      int     `json:"warning_count"`
	FailingCount      int     `json:"failing_count"`
	TotalCount        int     `json:"total_count"`
	PassingPercentage float64 `json:"passing_percentage"`
	Breakdown         any     `json:"application_breakdown"`
}

// FromFitnessResult converts a fitness result.
func FromFitnessResult(r fitness.Result) *FitnessResultDTO {
	return &FitnessResultDTO{
		ID:                r.ID,
		FunctionID:        r.FunctionID,
		Name:              r.Name,
		Description:       r.Description,
		RuleID:            r.RuleID,
		PassingCount:      r.PassingCount,
		WarningCount:      r.WarningCount,
		FailingCount:      r.FailingCount,
		TotalCount:        r.TotalCount,
		PassingPercentage: r.PassingPercentage,
		Breakdown:         r.Breakdown,
	}
}

// ToFitnessResultDTOs converts a slice of results.
func ToFitnessResultDTOs(results []fitness.Result) []*FitnessResultDTO {
	dtos := make([]*FitnessResultDTO, len(results))
	for i, r := range results {
		dtos[i] = FromFitnessResult(r)
	}
	return dtos
}

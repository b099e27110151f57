package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/GanizaniSitara/controls-ux/internal/application/dto"
	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
)

func TestRenderFitnessReport(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	meta := entity.CacheMetadata{
		LastUpdate:      &updated,
		Size:            3,
		FailedProviders: []string{"security_v1"},
	}
	results := []*dto.FitnessResultDTO{
		{FunctionID: "governance_path_compliance", Name: "Governance Path Compliance",
			PassingCount: 2, WarningCount: 1, TotalCount: 3, PassingPercentage: 66.67},
		{FunctionID: "cost_optimization", Name: "Cost Optimization Opportunities",
			PassingCount: 3, TotalCount: 3, PassingPercentage: 100},
	}

	out := RenderFitnessReport("fallback", meta, results)

	assert.Contains(t, out, "Controls fitness report")
	assert.Contains(t, out, "source fallback")
	assert.Contains(t, out, "3 applications")
	assert.Contains(t, out, "2026-03-01 12:00:00Z")
	assert.Contains(t, out, "failed providers: security_v1")
	assert.Contains(t, out, "Governance Path Compliance")
	assert.Contains(t, out, " 66.7%")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "2 pass")
	assert.Contains(t, out, "1 warn")
}

func TestRenderFitnessReport_Empty(t *testing.T) {
	out := RenderFitnessReport("live", entity.CacheMetadata{}, nil)
	assert.Contains(t, out, "no fitness results")
}

func TestColoredBar(t *testing.T) {
	tests := []struct {
		pct    float64
		filled int
	}{
		{0, 0},
		{50, 10},
		{100, 20},
		{150, 20},
		{-5, 0},
	}
	for _, tt := range tests {
		bar := coloredBar(tt.pct, barWidth)
		assert.Equal(t, tt.filled, strings.Count(bar, "█"), "pct %v", tt.pct)
		assert.Equal(t, barWidth-tt.filled, strings.Count(bar, "░"), "pct %v", tt.pct)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestCheckMinimum(t *testing.T) {
	results := []*dto.FitnessResultDTO{
		{FunctionID: "a", TotalCount: 4, PassingPercentage: 75},
		{FunctionID: "b", TotalCount: 4, PassingPercentage: 25},
		{FunctionID: "empty", TotalCount: 0, PassingPercentage: 0},
	}

	assert.NoError(t, checkMinimum(results, 0))
	assert.NoError(t, checkMinimum(results, 20))

	err := checkMinimum(results, 50)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "b (25.0%)")
		assert.NotContains(t, err.Error(), "a (")
		assert.NotContains(t, err.Error(), "empty")
	}
}

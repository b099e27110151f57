package rule

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func healthyRecord() valueobject.FieldMap {
	return valueobject.FieldMap{
		FieldVulnerabilityCount: int64(1),
		FieldPatchCompliance:    99.5,
		FieldAccessReviewStatus: "completed",
		FieldLintScore:          int64(80),
		FieldTestCoverage:       75.0,
		FieldComplexityScore:    int64(10),
		FieldUptimePercentage:   99.9,
		FieldChangeFailureRate:  1.0,
		FieldDocCoverage:        95.0,
		FieldLastUpdated:        "2026-09-18",
		FieldCostTrend:          "stable",
		FieldUnusedResources:    int64(1),
	}
}

func withFields(base valueobject.FieldMap, overrides valueobject.FieldMap) valueobject.FieldMap {
	out := base.Clone()
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func single(record valueobject.FieldMap) entity.RawSnapshot {
	return entity.RawSnapshot{"p": valueobject.ProviderData{"app1": record}}
}

func TestGovernancePath_HaltAcrossProviders(t *testing.T) {
	raw := entity.RawSnapshot{
		"provider_a": valueobject.ProviderData{"app1": {"VulnerabilityCount": int64(12)}},
		"provider_b": valueobject.ProviderData{"app1": {"LintScore": int64(80)}},
	}

	verdicts, err := NewGovernancePathRule(logger.New("error"), fixedClock).Apply(raw)
	require.NoError(t, err)
	require.Len(t, verdicts, 1)

	assert.Equal(t, valueobject.VerdictFail, verdicts["app1"].Kind)
	assert.Equal(t, "HALT (VulnerabilityCount (12) >= 10)", verdicts["app1"].String())
}

func TestGovernancePath_HaltPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		record valueobject.FieldMap
		want   string
	}{
		{
			name:   "first predicate wins over later ones",
			record: withFields(healthyRecord(), valueobject.FieldMap{FieldVulnerabilityCount: int64(15), FieldPatchCompliance: 50.0}),
			want:   "HALT (VulnerabilityCount (15) >= 10)",
		},
		{
			name:   "patch compliance before access review",
			record: withFields(healthyRecord(), valueobject.FieldMap{FieldPatchCompliance: 90.0, FieldAccessReviewStatus: "overdue"}),
			want:   "HALT (PatchCompliance (90.0%) < 95%)",
		},
		{
			name:   "access review",
			record: withFields(healthyRecord(), valueobject.FieldMap{FieldAccessReviewStatus: "overdue"}),
			want:   "HALT (AccessReviewStatus is 'overdue' (not 'completed'))",
		},
		{
			name:   "lint score",
			record: withFields(healthyRecord(), valueobject.FieldMap{FieldLintScore: int64(55)}),
			want:   "HALT (LintScore (55) < 60)",
		},
		{
			name:   "test coverage",
			record: withFields(healthyRecord(), valueobject.FieldMap{FieldTestCoverage: 35.5}),
			want:   "HALT (TestCoverage (35.5%) < 40%)",
		},
		{
			name:   "complexity",
			record: withFields(healthyRecord(), valueobject.FieldMap{FieldComplexityScore: int64(30)}),
			want:   "HALT (ComplexityScore (30) > 25)",
		},
		{
			name:   "uptime",
			record: withFields(healthyRecord(), valueobject.FieldMap{FieldUptimePercentage: 90.0}),
			want:   "HALT (UptimePercentage (90.0%) < 95%)",
		},
		{
			name:   "change failure rate",
			record: withFields(healthyRecord(), valueobject.FieldMap{FieldChangeFailureRate: 6.0}),
			want:   "HALT (ChangeFailureRate (6.0%) > 5%)",
		},
		{
			name: "cost increase with increasing trend",
			record: withFields(healthyRecord(), valueobject.FieldMap{
				FieldMonthlyCostIncrease: 20.0,
				FieldCostTrend:           "increasing",
			}),
			want: "HALT (MonthlyCostIncrease (20.0%) > 15% AND CostTrend is 'increasing')",
		},
	}

	rule := NewGovernancePathRule(logger.New("error"), fixedClock)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdicts, err := rule.Apply(single(tt.record))
			require.NoError(t, err)
			assert.Equal(t, tt.want, verdicts["app1"].String())
		})
	}
}

func TestGovernancePath_FastPath(t *testing.T) {
	verdicts, err := NewGovernancePathRule(logger.New("error"), fixedClock).Apply(single(healthyRecord()))
	require.NoError(t, err)

	assert.Equal(t, valueobject.Pass(LabelFastPath), verdicts["app1"])
	assert.Equal(t, "Fast Path", verdicts["app1"].String())
}

func TestGovernancePath_SlowPathListsEveryFailedCheck(t *testing.T) {
	record := withFields(healthyRecord(), valueobject.FieldMap{
		FieldTestCoverage: 55.0,
		FieldLastUpdated:  "2025-01-01T08:00:00Z",
	})

	verdicts, err := NewGovernancePathRule(logger.New("error"), fixedClock).Apply(single(record))
	require.NoError(t, err)

	assert.Equal(t, valueobject.VerdictWarning, verdicts["app1"].Kind)
	assert.Equal(t,
		"Slow Path (Reason: TestCoverage (55.0%) < 60%; LastUpdated (2025-01-01) > 12 months ago)",
		verdicts["app1"].String())
}

func TestGovernancePath_MissingNumericDataNeverHalts(t *testing.T) {
	raw := single(valueobject.FieldMap{FieldLintScore: int64(80), FieldAccessReviewStatus: "completed"})

	verdicts, err := NewGovernancePathRule(logger.New("error"), fixedClock).Apply(raw)
	require.NoError(t, err)

	verdict := verdicts["app1"]
	assert.Equal(t, valueobject.VerdictWarning, verdict.Kind)
	assert.True(t, strings.HasPrefix(verdict.Reason, "Reason: VulnerabilityCount (100) > 3; PatchCompliance (0.0%) < 98%"))
	assert.Contains(t, verdict.Reason, "LastUpdated date missing or invalid")
	assert.Contains(t, verdict.Reason, "CostTrend is 'increasing'")
	assert.True(t, strings.HasSuffix(verdict.Reason, "UnusedResources (100) > 2"))
}

func TestGovernancePath_MissingAccessReviewHalts(t *testing.T) {
	tests := []struct {
		name   string
		record valueobject.FieldMap
	}{
		{"only code quality fields", valueobject.FieldMap{FieldLintScore: int64(80), FieldTestCoverage: 70.0}},
		{"otherwise healthy", func() valueobject.FieldMap {
			r := healthyRecord()
			delete(r, FieldAccessReviewStatus)
			return r
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdicts, err := NewGovernancePathRule(logger.New("error"), fixedClock).Apply(single(tt.record))
			require.NoError(t, err)

			assert.Equal(t, valueobject.VerdictFail, verdicts["app1"].Kind)
			assert.Equal(t, "HALT (AccessReviewStatus is 'error' (not 'completed'))", verdicts["app1"].String())
		})
	}
}

func TestGovernancePath_LenientCoercion(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("warn", &buf)

	record := withFields(healthyRecord(), valueobject.FieldMap{
		FieldPatchCompliance:    "97.5 %",
		FieldVulnerabilityCount: "twelve",
	})

	verdicts, err := NewGovernancePathRule(log, fixedClock).Apply(single(record))
	require.NoError(t, err)

	// Unreadable vulnerability count cannot trip a HALT but still blocks the fast path.
	assert.Equal(t,
		"Slow Path (Reason: VulnerabilityCount (100) > 3; PatchCompliance (97.5%) < 98%)",
		verdicts["app1"].String())
	assert.Contains(t, buf.String(), "Field coercion failed, using default")
	assert.Contains(t, buf.String(), "field=VulnerabilityCount")
}

func TestGovernancePath_Idempotent(t *testing.T) {
	raw := entity.RawSnapshot{
		"a": valueobject.ProviderData{"app1": healthyRecord(), "app2": {FieldLintScore: int64(10)}},
		"b": valueobject.ProviderData{"app3": {FieldUptimePercentage: "99.1"}},
	}
	rule := NewGovernancePathRule(logger.New("error"), fixedClock)

	first, err := rule.Apply(raw)
	require.NoError(t, err)
	second, err := rule.Apply(raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

package fitness

import (
	"math"
	"sort"

	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/service"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// Provider ids read by the raw-data fitness functions.
const (
	ProviderCodeQuality           = "code_quality_v1"
	ProviderOperationalExcellence = "operational_excellence_v1"
	ProviderCostOptimization      = "cost_optimization_v1"
	ProviderSecurity              = "security_v1"
)

type healthFactor struct {
	name     string
	provider string
	weight   float64
	score    func(record valueobject.FieldMap) (float64, bool)
}

var healthFactors = []healthFactor{
	{
		name:     "quality",
		provider: ProviderCodeQuality,
		weight:   0.30,
		score: func(r valueobject.FieldMap) (float64, bool) {
			return numericField(r, "MaintainabilityIndex")
		},
	},
	{
		name:     "operations",
		provider: ProviderOperationalExcellence,
		weight:   0.30,
		score: func(r valueobject.FieldMap) (float64, bool) {
			return numericField(r, "UptimePercent", "UptimePercentage")
		},
	},
	{
		name:     "security",
		provider: ProviderSecurity,
		weight:   0.25,
		score: func(r valueobject.FieldMap) (float64, bool) {
			vulns, ok := numericField(r, "VulnerabilityCount")
			if !ok {
				return 0, false
			}
			return math.Max(0, 100-math.Trunc(vulns)*10), true
		},
	},
	{
		name:     "cost_efficiency",
		provider: ProviderCostOptimization,
		weight:   0.15,
		score: func(r valueobject.FieldMap) (float64, bool) {
			cost, ok := numericField(r, "MonthlyCost")
			if !ok {
				return 0, false
			}
			return math.Max(0, 100-cost/1000), true
		},
	},
}

// ApplicationHealthScore scores every application 0-100 from quality, uptime,
// vulnerabilities and cost across four providers. The score is the weighted mean
// of the factors the application has data for.
type ApplicationHealthScore struct{}

func NewApplicationHealthScore() *ApplicationHealthScore {
	return &ApplicationHealthScore{}
}

func (f *ApplicationHealthScore) Metadata() Metadata {
	return Metadata{
		ID:          "application_health_score",
		Name:        "Application Health Score",
		Description: "Overall health score based on quality, operations, and cost efficiency",
		RuleID:      "cross_provider_health",
	}
}

// AppHealthScore is the per-application detail of the health breakdown.
type AppHealthScore struct {
	OverallScore     float64            `json:"overall_score"`
	Breakdown        map[string]float64 `json:"breakdown"`
	FactorsAvailable int                `json:"factors_available"`
}

// HealthBreakdown is the breakdown payload of ApplicationHealthScore.
type HealthBreakdown struct {
	Categories     map[string][]string       `json:"categories"`
	DetailedScores map[string]AppHealthScore `json:"detailed_scores"`
	Statistics     map[string]float64        `json:"statistics"`
}

func (f *ApplicationHealthScore) Calculate(_ entity.RuleResultSet, data *Accessor) (*Result, error) {
	providers := make([]string, 0, len(healthFactors))
	for _, factor := range healthFactors {
		providers = append(providers, factor.provider)
	}
	apps := data.AppsWithData(providers...)

	categories := map[string][]string{
		"excellent":       {},
		"good":            {},
		"needs_attention": {},
		"critical":        {},
	}
	scores := make(map[string]AppHealthScore, len(apps))

	appIDs := make([]string, 0, len(apps))
	for appID := range apps {
		appIDs = append(appIDs, appID)
	}
	sort.Strings(appIDs)

	for _, appID := range appIDs {
		records := apps[appID]

		var weighted, weights float64
		breakdown := make(map[string]float64)
		for _, factor := range healthFactors {
			score, ok := factor.score(records[factor.provider])
			if !ok {
				continue
			}
			weighted += score * factor.weight
			weights += factor.weight
			breakdown[factor.name] = score
		}
		if len(breakdown) == 0 {
			continue
		}

		overall := weighted / weights
		scores[appID] = AppHealthScore{
			OverallScore:     Round2(overall),
			Breakdown:        breakdown,
			FactorsAvailable: len(breakdown),
		}

		category := healthCategory(overall)
		categories[category] = append(categories[category], appID)
	}

	passing := len(categories["excellent"]) + len(categories["good"])
	warning := len(categories["needs_attention"])
	failing := len(categories["critical"])
	if passing+warning+failing == 0 {
		return nil, nil
	}

	avgCoverage, err := data.Aggregate(ProviderCodeQuality, "TestCoverage", service.AggregateAvg)
	if err != nil {
		return nil, err
	}
	totalCost, err := data.Aggregate(ProviderCostOptimization, "MonthlyCost", service.AggregateSum)
	if err != nil {
		return nil, err
	}

	return NewResult(f.Metadata(), passing, warning, failing, HealthBreakdown{
		Categories:     categories,
		DetailedScores: scores,
		Statistics: map[string]float64{
			"average_test_coverage": Round2(avgCoverage),
			"total_monthly_cost":    Round2(totalCost),
		},
	}), nil
}

func healthCategory(score float64) string {
	switch {
	case score >= 85:
		return "excellent"
	case score >= 70:
		return "good"
	case score >= 50:
		return "needs_attention"
	default:
		return "critical"
	}
}

// numericField returns the first of fields present in record that coerces to a number.
func numericField(record valueobject.FieldMap, fields ...string) (float64, bool) {
	for _, field := range fields {
		value, ok := record[field]
		if !ok {
			continue
		}
		f, err := service.CoerceFloat(field, value)
		if err != nil {
			continue
		}
		return f, true
	}
	return 0, false
}

package fitness

import (
	"sort"

	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/service"
)

const (
	// Share of a reviewed application's monthly cost assumed recoverable.
	potentialSavingsRate  = 0.3
	defaultResponseTimeMS = 1000.0
	defaultUptimePercent  = 99.0
)

// CostOptimization ranks applications of the cost provider by monthly cost and a
// cost-efficiency score derived from response time and uptime.
type CostOptimization struct{}

func NewCostOptimization() *CostOptimization {
	return &CostOptimization{}
}

func (f *CostOptimization) Metadata() Metadata {
	return Metadata{
		ID:          "cost_optimization",
		Name:        "Cost Optimization Opportunities",
		Description: "Identifies applications with potential cost optimization opportunities",
		RuleID:      "cost_analysis",
	}
}

// CostEntry is one application in the cost breakdown.
type CostEntry struct {
	AppID               string  `json:"app_id"`
	MonthlyCost         float64 `json:"monthly_cost"`
	CostEfficiencyScore float64 `json:"cost_efficiency_score"`
	Reason              string  `json:"reason,omitempty"`
}

// CostStatistics aggregates the cost provider.
type CostStatistics struct {
	TotalMonthlyCost   float64        `json:"total_monthly_cost"`
	AverageMonthlyCost float64        `json:"average_monthly_cost"`
	MaxMonthlyCost     float64        `json:"max_monthly_cost"`
	CostDistribution   map[string]int `json:"cost_distribution"`
	PotentialSavings   float64        `json:"potential_savings"`
}

// CostBreakdown is the breakdown payload of CostOptimization.
type CostBreakdown struct {
	Optimized   []CostEntry    `json:"optimized"`
	Acceptable  []CostEntry    `json:"acceptable"`
	NeedsReview []CostEntry    `json:"needs_review"`
	Statistics  CostStatistics `json:"statistics"`
}

func (f *CostOptimization) Calculate(_ entity.RuleResultSet, data *Accessor) (*Result, error) {
	costData := data.ProviderData(ProviderCostOptimization)
	if len(costData) == 0 {
		return nil, nil
	}

	breakdown := CostBreakdown{
		Optimized:   []CostEntry{},
		Acceptable:  []CostEntry{},
		NeedsReview: []CostEntry{},
	}

	var savings float64
	for _, appID := range costData.AppIDs() {
		cost, _ := numericField(costData[appID], "MonthlyCost")
		responseTime := data.FloatValue(appID, ProviderCostOptimization+".AvgResponseTime", defaultResponseTimeMS)
		uptime := data.FloatValue(appID, ProviderOperationalExcellence+".UptimePercent", defaultUptimePercent)

		efficiency := costEfficiency(cost, responseTime, uptime)
		entry := CostEntry{
			AppID:               appID,
			MonthlyCost:         cost,
			CostEfficiencyScore: Round2(efficiency),
		}

		switch {
		case cost < 10000 && efficiency > 50:
			breakdown.Optimized = append(breakdown.Optimized, entry)
		case cost < 50000 && efficiency > 10:
			breakdown.Acceptable = append(breakdown.Acceptable, entry)
		default:
			entry.Reason = "Poor efficiency"
			if cost >= 50000 {
				entry.Reason = "High cost"
			}
			savings += cost * potentialSavingsRate
			breakdown.NeedsReview = append(breakdown.NeedsReview, entry)
		}
	}

	stats, err := costStatistics(data)
	if err != nil {
		return nil, err
	}
	stats.PotentialSavings = Round2(savings)
	breakdown.Statistics = stats

	sort.SliceStable(breakdown.NeedsReview, func(i, j int) bool {
		return breakdown.NeedsReview[i].MonthlyCost > breakdown.NeedsReview[j].MonthlyCost
	})

	return NewResult(f.Metadata(), len(breakdown.Optimized), len(breakdown.Acceptable), len(breakdown.NeedsReview), breakdown), nil
}

// costEfficiency rewards low cost, fast responses and high uptime.
func costEfficiency(cost, responseTimeMS, uptime float64) float64 {
	if responseTimeMS <= 0 {
		return 0
	}
	return (1000 / responseTimeMS) * (10000 / (cost + 1)) * (uptime / 100)
}

func costStatistics(data *Accessor) (CostStatistics, error) {
	var stats CostStatistics
	var err error
	if stats.TotalMonthlyCost, err = data.Aggregate(ProviderCostOptimization, "MonthlyCost", service.AggregateSum); err != nil {
		return stats, err
	}
	if stats.AverageMonthlyCost, err = data.Aggregate(ProviderCostOptimization, "MonthlyCost", service.AggregateAvg); err != nil {
		return stats, err
	}
	if stats.MaxMonthlyCost, err = data.Aggregate(ProviderCostOptimization, "MonthlyCost", service.AggregateMax); err != nil {
		return stats, err
	}
	stats.TotalMonthlyCost = Round2(stats.TotalMonthlyCost)
	stats.AverageMonthlyCost = Round2(stats.AverageMonthlyCost)
	stats.MaxMonthlyCost = Round2(stats.MaxMonthlyCost)

	stats.CostDistribution = data.CountBy(ProviderCostOptimization, "MonthlyCost", costRange)
	return stats, nil
}

func costRange(value any) string {
	cost, err := service.CoerceFloat("MonthlyCost", value)
	switch {
	case err != nil:
		return "unknown"
	case cost < 10000:
		return "low"
	case cost < 50000:
		return "medium"
	case cost < 100000:
		return "high"
	default:
		return "very_high"
	}
}

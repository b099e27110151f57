package rule

import (
	"fmt"
	"strings"
	"time"

	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/service"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

// TechDebtPriorityRuleID identifies the tech debt priority in rule results.
const TechDebtPriorityRuleID = "tech_debt_priority"

const (
	LabelHighPriority   = "High Priority"
	LabelMediumPriority = "Medium Priority"
	LabelLowPriority    = "Low Priority"
)

const staleDocumentationAge = 270 * 24 * time.Hour

// deploymentFrequencyRank orders release cadences; unknown values rank lowest.
var deploymentFrequencyRank = map[string]int{
	"multiple_times_a_day": 6,
	"daily":                5,
	"weekly":               4,
	"bi_weekly":            3,
	"monthly":              2,
	"quarterly":            1,
	"yearly":               0,
	"ad_hoc":               -1,
	"unknown":              -2,
}

// DeploymentFrequencyRank converts a cadence such as "Bi-Weekly" to its rank.
func DeploymentFrequencyRank(freq string) int {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(freq)), "-", "_")
	if rank, ok := deploymentFrequencyRank[key]; ok {
		return rank
	}
	return deploymentFrequencyRank["unknown"]
}

// TechDebtPriorityRule ranks where technical debt investment is most needed.
// Missing fields default to healthy values so absent data never raises a priority.
type TechDebtPriorityRule struct {
	logger *logger.Logger
	now    func() time.Time
}

// NewTechDebtPriorityRule creates the rule. now may be nil.
func NewTechDebtPriorityRule(log *logger.Logger, now func() time.Time) *TechDebtPriorityRule {
	if now == nil {
		now = time.Now
	}
	return &TechDebtPriorityRule{logger: log, now: now}
}

func (r *TechDebtPriorityRule) ID() string {
	return TechDebtPriorityRuleID
}

// Apply evaluates every application in raw.
func (r *TechDebtPriorityRule) Apply(raw entity.RawSnapshot) (map[string]valueobject.Verdict, error) {
	view := service.Consolidate(raw)
	now := r.now().UTC()
	results := make(map[string]valueobject.Verdict, len(view.AppIDs()))

	for _, appID := range view.AppIDs() {
		fields := service.NewFieldReader(view.Lookup(appID), coercionLogger(r.logger, r.ID(), appID))

		if reason, ok := r.highPriority(fields); ok {
			results[appID] = valueobject.Fail(LabelHighPriority, reason)
			continue
		}
		if reasons := r.mediumPriority(fields, now); len(reasons) > 0 {
			results[appID] = valueobject.Warning(LabelMediumPriority, strings.Join(reasons, "; "))
			continue
		}
		results[appID] = valueobject.Pass(LabelLowPriority)
	}

	r.logger.Debug("Tech debt priority evaluated", "apps", len(results))
	return results, nil
}

func (r *TechDebtPriorityRule) highPriority(f service.FieldReader) (string, bool) {
	maintainability := f.Int(FieldMaintainabilityIndex, 100)
	complexity := f.Int(FieldComplexityScore, 0)
	if maintainability < 75 && complexity > 8 {
		return fmt.Sprintf("Code Quality (MaintainabilityIndex=%d, ComplexityScore=%d)", maintainability, complexity), true
	}

	cost := f.Float(FieldMonthlyCost, 0.0)
	failRate := f.Float(FieldChangeFailureRate, 0.0)
	uptime := f.Float(FieldUptimePercentage, 100.0)
	if cost > 40000 && (failRate > 1.0 || uptime < 99.0) {
		var b strings.Builder
		b.WriteString("Financial Impact (MonthlyCost=$" + money(cost))
		if failRate > 1.0 {
			b.WriteString(", ChangeFailureRate=" + num(failRate) + "%")
		}
		if uptime < 99.0 {
			b.WriteString(", UptimePercentage=" + num(uptime) + "%")
		}
		b.WriteString(")")
		return b.String(), true
	}

	coverage := f.Float(FieldTestCoverage, 100.0)
	sustainability := (100 - coverage) * float64(complexity)
	if sustainability > 300 {
		return fmt.Sprintf("Sustainability Factor ( (100-%s) * %d = %.1f > 300 )", num(coverage), complexity, sustainability), true
	}

	return "", false
}

func (r *TechDebtPriorityRule) mediumPriority(f service.FieldReader, now time.Time) []string {
	var reasons []string

	docCoverage := f.Float(FieldDocCoverage, 0.0)
	if updated, ok := f.Date(FieldLastUpdated); ok {
		if updated.Before(now.Add(-staleDocumentationAge)) && docCoverage > 90.0 {
			reasons = append(reasons, fmt.Sprintf("Documentation (Outdated: %s, Coverage: %s%%)", updated.Format("2006-01-02"), num(docCoverage)))
		}
	}

	maintainability := f.Int(FieldMaintainabilityIndex, 100)
	complexity := f.Int(FieldComplexityScore, 0)
	maintainabilityBand := maintainability >= 65 && maintainability < 75
	complexityBand := complexity >= 8 && complexity <= 15
	if maintainabilityBand || complexityBand {
		var parts []string
		if maintainabilityBand {
			parts = append(parts, fmt.Sprintf("MaintainabilityIndex=%d", maintainability))
		}
		if complexityBand {
			parts = append(parts, fmt.Sprintf("ComplexityScore=%d", complexity))
		}
		reasons = append(reasons, "Technical Indicators ("+strings.Join(parts, ", ")+")")
	}

	frequency := f.String(FieldDeploymentFrequency, "unknown")
	failRate := f.Float(FieldChangeFailureRate, 0.0)
	if DeploymentFrequencyRank(frequency) < deploymentFrequencyRank["weekly"] && failRate > 0.5 {
		reasons = append(reasons, fmt.Sprintf("Operational Impact (DeploymentFrequency='%s', ChangeFailureRate=%s%%)", frequency, num(failRate)))
	}

	return reasons
}

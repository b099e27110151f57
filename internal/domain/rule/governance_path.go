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

// GovernancePathRuleID identifies the governance path decision in rule results.
const GovernancePathRuleID = "governance_path_decision"

const (
	LabelHalt     = "HALT"
	LabelFastPath = "Fast Path"
	LabelSlowPath = "Slow Path"
)

// Field names shared by the rules and fitness functions.
const (
	FieldVulnerabilityCount   = "VulnerabilityCount"
	FieldPatchCompliance      = "PatchCompliance"
	FieldAccessReviewStatus   = "AccessReviewStatus"
	FieldLintScore            = "LintScore"
	FieldTestCoverage         = "TestCoverage"
	FieldComplexityScore      = "ComplexityScore"
	FieldUptimePercentage     = "UptimePercentage"
	FieldChangeFailureRate    = "ChangeFailureRate"
	FieldMonthlyCostIncrease  = "MonthlyCostIncreasePercent"
	FieldCostTrend            = "CostTrend"
	FieldDocCoverage          = "DocCoverage"
	FieldLastUpdated          = "LastUpdated"
	FieldUnusedResources      = "UnusedResources"
	FieldMaintainabilityIndex = "MaintainabilityIndex"
	FieldMonthlyCost          = "MonthlyCost"
	FieldDeploymentFrequency  = "DeploymentFrequency"
	FieldAvgResponseTime      = "AvgResponseTime"
)

const (
	accessReviewCompleted        = "completed"
	accessReviewMissing          = "error"
	costTrendIncreasing          = "increasing"
	documentationFreshnessWindow = 365 * 24 * time.Hour
)

// GovernancePathRule routes each application to HALT, Fast Path or Slow Path.
//
// HALT predicates run in a fixed order and the first match wins. Numeric defaults for
// missing fields never trip a HALT, but an application without a recorded access
// review halts. Fast-path predicates all run; their defaults treat missing data as
// not proven healthy, so incomplete records land on the Slow Path.
type GovernancePathRule struct {
	logger *logger.Logger
	now    func() time.Time
}

// NewGovernancePathRule creates the rule. now may be nil.
func NewGovernancePathRule(log *logger.Logger, now func() time.Time) *GovernancePathRule {
	if now == nil {
		now = time.Now
	}
	return &GovernancePathRule{logger: log, now: now}
}

func (r *GovernancePathRule) ID() string {
	return GovernancePathRuleID
}

// Apply evaluates every application in raw.
func (r *GovernancePathRule) Apply(raw entity.RawSnapshot) (map[string]valueobject.Verdict, error) {
	view := service.Consolidate(raw)
	now := r.now().UTC()
	results := make(map[string]valueobject.Verdict, len(view.AppIDs()))

	for _, appID := range view.AppIDs() {
		fields := service.NewFieldReader(view.Lookup(appID), coercionLogger(r.logger, r.ID(), appID))

		if reason, halted := r.haltReason(fields); halted {
			results[appID] = valueobject.Fail(LabelHalt, reason)
			continue
		}

		failed := r.fastPathFailures(fields, now)
		if len(failed) == 0 {
			results[appID] = valueobject.Pass(LabelFastPath)
			continue
		}
		results[appID] = valueobject.Warning(LabelSlowPath, "Reason: "+strings.Join(failed, "; "))
	}

	r.logger.Debug("Governance path evaluated", "apps", len(results))
	return results, nil
}

func (r *GovernancePathRule) haltReason(f service.FieldReader) (string, bool) {
	if v := f.Int(FieldVulnerabilityCount, -1); v >= 10 {
		return fmt.Sprintf("VulnerabilityCount (%d) >= 10", v), true
	}
	if v := f.Float(FieldPatchCompliance, 101.0); v < 95.0 {
		return fmt.Sprintf("PatchCompliance (%s%%) < 95%%", num(v)), true
	}
	if v := f.String(FieldAccessReviewStatus, accessReviewMissing); v != accessReviewCompleted {
		return fmt.Sprintf("AccessReviewStatus is '%s' (not 'completed')", v), true
	}
	if v := f.Int(FieldLintScore, 101); v < 60 {
		return fmt.Sprintf("LintScore (%d) < 60", v), true
	}
	if v := f.Float(FieldTestCoverage, 101.0); v < 40.0 {
		return fmt.Sprintf("TestCoverage (%s%%) < 40%%", num(v)), true
	}
	if v := f.Int(FieldComplexityScore, -1); v > 25 {
		return fmt.Sprintf("ComplexityScore (%d) > 25", v), true
	}
	if v := f.Float(FieldUptimePercentage, 101.0); v < 95.0 {
		return fmt.Sprintf("UptimePercentage (%s%%) < 95%%", num(v)), true
	}
	if v := f.Float(FieldChangeFailureRate, -1.0); v > 5.0 {
		return fmt.Sprintf("ChangeFailureRate (%s%%) > 5%%", num(v)), true
	}
	increase := f.Float(FieldMonthlyCostIncrease, -1.0)
	if increase > 15.0 && f.String(FieldCostTrend, "stable") == costTrendIncreasing {
		return fmt.Sprintf("MonthlyCostIncrease (%s%%) > 15%% AND CostTrend is 'increasing'", num(increase)), true
	}
	return "", false
}

func (r *GovernancePathRule) fastPathFailures(f service.FieldReader, now time.Time) []string {
	var failed []string

	if v := f.Int(FieldVulnerabilityCount, 100); v > 3 {
		failed = append(failed, fmt.Sprintf("VulnerabilityCount (%d) > 3", v))
	}
	if v := f.Float(FieldPatchCompliance, 0.0); v < 98.0 {
		failed = append(failed, fmt.Sprintf("PatchCompliance (%s%%) < 98%%", num(v)))
	}
	if v := f.Int(FieldLintScore, 0); v < 75 {
		failed = append(failed, fmt.Sprintf("LintScore (%d) < 75", v))
	}
	if v := f.Float(FieldTestCoverage, 0.0); v < 60.0 {
		failed = append(failed, fmt.Sprintf("TestCoverage (%s%%) < 60%%", num(v)))
	}
	if v := f.Int(FieldComplexityScore, 100); v > 12 {
		failed = append(failed, fmt.Sprintf("ComplexityScore (%d) > 12", v))
	}
	if v := f.Float(FieldUptimePercentage, 0.0); v < 98.0 {
		failed = append(failed, fmt.Sprintf("UptimePercentage (%s%%) < 98%%", num(v)))
	}
	if v := f.Float(FieldChangeFailureRate, 100.0); v > 2.0 {
		failed = append(failed, fmt.Sprintf("ChangeFailureRate (%s%%) > 2%%", num(v)))
	}
	if v := f.Float(FieldDocCoverage, 0.0); v < 90.0 {
		failed = append(failed, fmt.Sprintf("DocCoverage (%s%%) < 90%%", num(v)))
	}
	if updated, ok := f.Date(FieldLastUpdated); !ok {
		failed = append(failed, "LastUpdated date missing or invalid")
	} else if updated.Before(now.Add(-documentationFreshnessWindow)) {
		failed = append(failed, fmt.Sprintf("LastUpdated (%s) > 12 months ago", updated.Format("2006-01-02")))
	}
	if v := f.String(FieldCostTrend, costTrendIncreasing); v != "stable" && v != "decreasing" {
		failed = append(failed, fmt.Sprintf("CostTrend is '%s'", v))
	}
	if v := f.Int(FieldUnusedResources, 100); v > 2 {
		failed = append(failed, fmt.Sprintf("UnusedResources (%d) > 2", v))
	}

	return failed
}

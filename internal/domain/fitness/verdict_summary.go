package fitness

import (
	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/rule"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// VerdictSummary counts one rule's verdicts by kind: pass, warning and fail.
// Unknown verdicts are not counted. The breakdown is the rule's app -> verdict map.
type VerdictSummary struct {
	meta Metadata
}

// NewVerdictSummary summarises the rule named in meta.RuleID.
func NewVerdictSummary(meta Metadata) *VerdictSummary {
	return &VerdictSummary{meta: meta}
}

// NewGovernancePathCompliance counts Fast Path / Slow Path / HALT decisions.
func NewGovernancePathCompliance() *VerdictSummary {
	return NewVerdictSummary(Metadata{
		ID:          "governance_path_compliance",
		Name:        "Governance Path Compliance",
		Description: "Evaluates applications for governance approval path based on security, quality, and operational metrics",
		RuleID:      rule.GovernancePathRuleID,
	})
}

// NewTechnicalDebtManagement counts Low / Medium / High priority decisions.
func NewTechnicalDebtManagement() *VerdictSummary {
	return NewVerdictSummary(Metadata{
		ID:          "technical_debt_management",
		Name:        "Technical Debt Management",
		Description: "Prioritizes applications for technical debt reduction based on code quality, sustainability, and operational impact",
		RuleID:      rule.TechDebtPriorityRuleID,
	})
}

func (f *VerdictSummary) Metadata() Metadata {
	return f.meta
}

func (f *VerdictSummary) Calculate(results entity.RuleResultSet, _ *Accessor) (*Result, error) {
	result, ok := results[f.meta.RuleID]
	if !ok || result.Failed() {
		return nil, nil
	}

	var passing, warning, failing int
	for _, verdict := range result.Verdicts {
		switch verdict.Kind {
		case valueobject.VerdictPass:
			passing++
		case valueobject.VerdictWarning:
			warning++
		case valueobject.VerdictFail:
			failing++
		}
	}

	return NewResult(f.meta, passing, warning, failing, result.Strings()), nil
}

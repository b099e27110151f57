package entity

import (
	"encoding/json"
	"sort"

	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// RuleResult is the output of one rule: either a verdict per application or an error marker.
type RuleResult struct {
	Verdicts map[string]valueobject.Verdict
	Error    string
}

// NewRuleResult wraps per-application verdicts.
func NewRuleResult(verdicts map[string]valueobject.Verdict) RuleResult {
	if verdicts == nil {
		verdicts = make(map[string]valueobject.Verdict)
	}
	return RuleResult{Verdicts: verdicts}
}

// NewRuleError builds the marker recorded for a rule that failed.
func NewRuleError(message string) RuleResult {
	return RuleResult{Error: "Rule execution failed: " + message}
}

// Failed reports whether the rule produced an error marker.
func (r RuleResult) Failed() bool {
	return r.Error != ""
}

// AppIDs returns the evaluated application ids in sorted order.
func (r RuleResult) AppIDs() []string {
	ids := make([]string, 0, len(r.Verdicts))
	for id := range r.Verdicts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Strings returns the descriptive form of every verdict.
func (r RuleResult) Strings() map[string]string {
	out := make(map[string]string, len(r.Verdicts))
	for appID, verdict := range r.Verdicts {
		out[appID] = verdict.String()
	}
	return out
}

// MarshalJSON renders {"app": "verdict"} or {"error": "..."}.
func (r RuleResult) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(map[string]string{"error": r.Error})
	}
	return json.Marshal(r.Strings())
}

// RuleResultSet maps rule id to that rule's result.
type RuleResultSet map[string]RuleResult

// RuleIDs returns the rule ids in sorted order.
func (s RuleResultSet) RuleIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ForApp collects each successful rule's verdict for one application.
func (s RuleResultSet) ForApp(appID string) map[string]valueobject.Verdict {
	out := make(map[string]valueobject.Verdict)
	for ruleID, result := range s {
		if result.Failed() {
			continue
		}
		if verdict, ok := result.Verdicts[appID]; ok {
			out[ruleID] = verdict
		}
	}
	return out
}

package valueobject

import (
	"encoding/json"
	"fmt"
)

// VerdictKind classifies a rule outcome for one application.
type VerdictKind string

const (
	VerdictPass    VerdictKind = "pass"
	VerdictWarning VerdictKind = "warning"
	VerdictFail    VerdictKind = "fail"
	VerdictUnknown VerdictKind = "unknown"
)

// Validate checks the verdict kind.
func (k VerdictKind) Validate() error {
	switch k {
	case VerdictPass, VerdictWarning, VerdictFail, VerdictUnknown:
		return nil
	default:
		return fmt.Errorf("invalid verdict kind %q", string(k))
	}
}

// Verdict is a rule's categorical outcome for one application (Value Object).
type Verdict struct {
	Kind   VerdictKind
	Label  string
	Reason string
}

// Pass builds a passing verdict.
func Pass(label string) Verdict {
	return Verdict{Kind: VerdictPass, Label: label}
}

// Warning builds a warning verdict with a reason.
func Warning(label, reason string) Verdict {
	return Verdict{Kind: VerdictWarning, Label: label, Reason: reason}
}

// Fail builds a failing verdict with a reason.
func Fail(label, reason string) Verdict {
	return Verdict{Kind: VerdictFail, Label: label, Reason: reason}
}

// Unknown builds a verdict for an application that could not be judged.
func Unknown(reason string) Verdict {
	return Verdict{Kind: VerdictUnknown, Label: "Unknown", Reason: reason}
}

// String renders the descriptive form, e.g. "HALT (VulnerabilityCount (12) >= 10)".
func (v Verdict) String() string {
	if v.Reason == "" {
		return v.Label
	}
	return v.Label + " (" + v.Reason + ")"
}

// MarshalJSON serializes the verdict as its descriptive string.
func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

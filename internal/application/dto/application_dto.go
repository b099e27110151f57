package dto

import "github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"

// ApplicationDetailDTO shows one application's raw data per provider and verdict per rule.
type ApplicationDetailDTO struct {
	AppID       string                          `json:"app_id"`
	RawData     map[string]valueobject.FieldMap `json:"raw_data"`
	RuleResults map[string]string               `json:"rule_results"`
	Source      string                          `json:"source"`
}

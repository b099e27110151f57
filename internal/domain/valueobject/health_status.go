package valueobject

import "errors"

// HealthStatus describes the freshness and usability of the cached snapshot.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthCaution  HealthStatus = "caution"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
	HealthUnknown  HealthStatus = "unknown"
)

// Validate checks the status value.
func (s HealthStatus) Validate() error {
	switch s {
	case HealthHealthy, HealthCaution, HealthWarning, HealthCritical, HealthUnknown:
		return nil
	default:
		return errors.New("invalid health status")
	}
}

func (s HealthStatus) String() string {
	return string(s)
}

// AllHealthStatuses returns every status from best to worst.
func AllHealthStatuses() []HealthStatus {
	return []HealthStatus{HealthHealthy, HealthCaution, HealthWarning, HealthCritical, HealthUnknown}
}

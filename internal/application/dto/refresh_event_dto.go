package dto

import "time"

// Refresh event types.
const (
	EventSnapshotRefreshed = "snapshot_refreshed"
	EventRefreshFailed     = "refresh_failed"
)

// RefreshEventDTO announces a committed refresh cycle to brokers and live clients.
type RefreshEventDTO struct {
	Type            string    `json:"type"`
	SnapshotID      string    `json:"snapshot_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Applications    int       `json:"applications"`
	Providers       []string  `json:"providers"`
	FailedProviders []string  `json:"failed_providers,omitempty"`
	UpdateCount     int       `json:"update_count"`
	ErrorCount      int       `json:"error_count"`
	Error           string    `json:"error,omitempty"`
	DurationMS      int64     `json:"duration_ms"`
}

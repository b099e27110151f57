package port

import (
	"context"
	"time"
)

// RefreshStats summarises one refresh cycle for metric sinks.
type RefreshStats struct {
	SnapshotID      string
	CompletedAt     time.Time
	Duration        time.Duration
	ProvidersLoaded int
	ProvidersFailed int
	Applications    int
	RulesEvaluated  int
	RulesFailed     int
	Success         bool
}

// MetricsPublisher records refresh cycle statistics in an observability backend.
type MetricsPublisher interface {
	// PublishRefresh records the outcome of one cycle. Implementations may buffer.
	PublishRefresh(ctx context.Context, stats RefreshStats) error

	// Flush forces buffered data out. Called on shutdown.
	Flush(ctx context.Context) error
}

package port

import (
	"context"
)

// Subjects published on every committed refresh cycle.
const (
	SubjectSnapshotRefreshed = "controls.snapshot.refreshed"
	SubjectRefreshFailed     = "controls.snapshot.failed"
)

// EventPublisher sends refresh events to a message broker.
type EventPublisher interface {
	// PublishEvent publishes event to subject. The event is JSON encoded by the implementation.
	PublishEvent(ctx context.Context, subject string, event interface{}) error

	Close() error
}

package port

import "context"

// ResourceStats is a point-in-time reading of process and host resource usage.
type ResourceStats struct {
	RSSBytes            uint64
	CPUPercent          float64
	SystemMemoryPercent float64
	SystemMemoryUsed    uint64
	SystemMemoryTotal   uint64
	Goroutines          int
}

// ResourceCollector reads resource usage for the liveness heartbeat.
type ResourceCollector interface {
	Collect(ctx context.Context) (ResourceStats, error)
}

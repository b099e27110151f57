package aggregation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

const (
	DefaultRefreshInterval   = 5 * time.Minute
	DefaultHeartbeatInterval = 60 * time.Second

	collectTimeout = 5 * time.Second
)

// Scheduler refreshes the cache periodically and logs a heartbeat.
type Scheduler struct {
	cache     *Cache
	collector port.ResourceCollector

	refreshInterval   time.Duration
	heartbeatInterval time.Duration
	logger            *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a scheduler. collector may be nil, then the heartbeat
// reports only cache state.
func NewScheduler(
	cache *Cache,
	collector port.ResourceCollector,
	refreshInterval time.Duration,
	heartbeatInterval time.Duration,
	log *logger.Logger,
) *Scheduler {
	if refreshInterval <= 0 {
		refreshInterval = DefaultRefreshInterval
	}
	if heartbeatInterval <= 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}
	return &Scheduler{
		cache:             cache,
		collector:         collector,
		refreshInterval:   refreshInterval,
		heartbeatInterval: heartbeatInterval,
		logger:            log,
	}
}

// Start performs one synchronous refresh and starts the background loops.
// A failed initial refresh is logged; the loops start regardless.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	if err := s.cache.Refresh(ctx); err != nil {
		s.logger.Error("Initial cache refresh failed", err)
	}

	s.wg.Add(2)
	go s.loop(loopCtx, "refresh", s.refreshInterval, s.refreshTick)
	go s.loop(loopCtx, "heartbeat", s.heartbeatInterval, s.heartbeatTick)

	s.logger.Info("Scheduler started",
		"refresh_interval", s.refreshInterval.String(),
		"heartbeat_interval", s.heartbeatInterval.String(),
	)
	return nil
}

// Stop cancels the loops and waits for them. A refresh cycle already in flight
// runs to completion and commits before Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.cache.WaitIdle()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, tick func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.safeTick(ctx, name, tick)
		}
	}
}

func (s *Scheduler) safeTick(ctx context.Context, name string, tick func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduler tick panicked", fmt.Errorf("%v", r), "loop", name)
		}
	}()
	tick(ctx)
}

func (s *Scheduler) refreshTick(ctx context.Context) {
	if err := s.cache.Refresh(ctx); err != nil {
		s.logger.Error("Scheduled cache refresh failed", err)
	}
}

func (s *Scheduler) heartbeatTick(ctx context.Context) {
	meta := s.cache.Metadata()
	args := []interface{}{
		"update_count", meta.UpdateCount,
		"error_count", meta.ErrorCount,
		"applications", meta.Size,
	}
	if age, ok := meta.Age(time.Now()); ok {
		args = append(args, "cache_age_s", int(age.Seconds()))
	}

	if s.collector != nil {
		collectCtx, cancel := context.WithTimeout(ctx, collectTimeout)
		stats, err := s.collector.Collect(collectCtx)
		cancel()
		if err != nil {
			s.logger.Warn("Failed to collect process stats", "error", err.Error())
		} else {
			args = append(args,
				"rss_mb", fmt.Sprintf("%.1f", float64(stats.RSSBytes)/(1024*1024)),
				"cpu_percent", fmt.Sprintf("%.1f", stats.CPUPercent),
				"system_memory_percent", fmt.Sprintf("%.1f", stats.SystemMemoryPercent),
				"goroutines", stats.Goroutines,
			)
		}
	}

	s.logger.Info("Heartbeat", args...)
}

package aggregation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/GanizaniSitara/controls-ux/internal/application/dto"
	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/application/usecase"
	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
	"github.com/GanizaniSitara/controls-ux/pkg/logger"
)

var (
	// ErrCacheUnavailable means neither the live cache nor the fallback store has data.
	ErrCacheUnavailable = errors.New("no data available")
	// ErrApplicationNotFound means the served snapshot has no record for the application.
	ErrApplicationNotFound = errors.New("application not found")
)

// MessageAllProvidersFailed is recorded as the last error when no provider loaded.
const MessageAllProvidersFailed = "all providers failed to load"

const (
	refreshKey      = "refresh"
	sideEffectLimit = 5 * time.Second
)

// Source tells readers where a served snapshot came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
	SourceNone     Source = "none"
)

// Builder produces the data of one refresh cycle.
type Builder interface {
	Execute(ctx context.Context) (*usecase.BuildSnapshotResult, error)
}

// Config holds the cache timing policy. StalenessThreshold must be shorter than
// RefreshInterval: the scheduler refreshes on its interval and reads only refresh
// when a scheduled cycle is overdue.
type Config struct {
	RefreshInterval    time.Duration
	StalenessThreshold time.Duration
}

// View is a snapshot as served to a reader.
type View struct {
	Snapshot *entity.CacheSnapshot
	Source   Source
}

// Cache owns the current snapshot. The lock guards only the pointer swap and the
// cycle bookkeeping; loads and rule evaluation run before it is taken.
type Cache struct {
	mu          sync.RWMutex
	current     *entity.CacheSnapshot
	lastAttempt time.Time
	generation  uint64

	group    singleflight.Group
	cycle    sync.Mutex
	builder  Builder
	fallback port.FallbackStore

	events   port.EventPublisher
	notifier port.NotificationService
	metrics  []port.MetricsPublisher
	ruleIDs  func() []string

	config Config
	logger *logger.Logger
	now    func() time.Time
}

// Option configures optional collaborators.
type Option func(*Cache)

// WithEventPublisher publishes refresh events to a broker.
func WithEventPublisher(p port.EventPublisher) Option {
	return func(c *Cache) { c.events = p }
}

// WithNotifier pushes refresh events to live clients.
func WithNotifier(n port.NotificationService) Option {
	return func(c *Cache) { c.notifier = n }
}

// WithMetricsPublisher records refresh statistics. May be given more than once.
func WithMetricsPublisher(p port.MetricsPublisher) Option {
	return func(c *Cache) {
		if p != nil {
			c.metrics = append(c.metrics, p)
		}
	}
}

// WithRuleIDs reports the registered rule ids in health output.
func WithRuleIDs(ids func() []string) Option {
	return func(c *Cache) { c.ruleIDs = ids }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates an empty cache.
func NewCache(builder Builder, fallback port.FallbackStore, config Config, log *logger.Logger, opts ...Option) *Cache {
	c := &Cache{
		builder:  builder,
		fallback: fallback,
		config:   config,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WaitIdle blocks until the refresh cycle running at call time, if any, has
// committed and finished its side effects.
func (c *Cache) WaitIdle() {
	c.cycle.Lock()
	c.cycle.Unlock()
}

// Current returns the published snapshot without triggering a refresh. It may be nil.
func (c *Cache) Current() *entity.CacheSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Metadata returns the refresh bookkeeping of the published snapshot.
func (c *Cache) Metadata() entity.CacheMetadata {
	if current := c.Current(); current != nil {
		return current.Metadata()
	}
	return entity.CacheMetadata{}
}

// Refresh runs one cycle. Concurrent callers share a single in-flight cycle.
// The cycle itself is not cancelled by ctx; a caller whose ctx ends stops waiting.
func (c *Cache) Refresh(ctx context.Context) error {
	return c.refreshUnless(ctx, nil)
}

// refreshUnless joins or starts the shared cycle. A cycle started here is skipped
// when skip reports true once the flight is owned.
func (c *Cache) refreshUnless(ctx context.Context, skip func() bool) error {
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		if skip != nil && skip() {
			return nil, nil
		}
		return nil, c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) refresh(ctx context.Context) error {
	c.cycle.Lock()
	defer c.cycle.Unlock()

	c.logger.Info("Cache refresh started")

	result, err := c.builder.Execute(ctx)
	if err != nil {
		meta := c.commitFailure(err)
		c.logger.Error("Cache refresh failed, keeping previous snapshot", err, "error_count", meta.ErrorCount)
		c.afterRefresh(ctx, nil, meta, err)
		return fmt.Errorf("refresh cycle: %w", err)
	}

	snapshot := c.commit(result)
	meta := snapshot.Metadata()

	if result.AllProvidersFailed() {
		c.logger.Warn("Cache refresh completed without data",
			"failed_providers", len(result.FailedProviders),
			"error_count", meta.ErrorCount,
		)
		c.afterRefresh(ctx, snapshot, meta, errors.New(MessageAllProvidersFailed))
		return nil
	}

	c.logger.Info("Cache refresh completed",
		"snapshot_id", snapshot.ID(),
		"providers", len(result.LoadedProviders),
		"failed_providers", len(result.FailedProviders),
		"applications", meta.Size,
		"rules", len(result.RuleResults),
		"duration_ms", result.Duration.Milliseconds(),
	)

	if snapshot.Usable() && c.fallback != nil {
		saveCtx, cancel := context.WithTimeout(ctx, sideEffectLimit)
		if err := c.fallback.Save(saveCtx, snapshot); err != nil {
			c.logger.Error("Failed to update fallback store", err)
		}
		cancel()
	}

	c.afterRefresh(ctx, snapshot, meta, nil)
	return nil
}

// commit builds the new snapshot and swaps it in. Metadata is derived from the
// previous snapshot under the write lock so concurrent commits cannot lose counts.
func (c *Cache) commit(result *usecase.BuildSnapshotResult) *entity.CacheSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta := entity.CacheMetadata{}
	if c.current != nil {
		meta = c.current.Metadata()
	}
	meta.FailedProviders = result.FailedProviders
	meta.RefreshDuration = result.Duration
	meta.Size = len(result.Raw.AppIDs())

	if result.AllProvidersFailed() {
		meta.LastError = MessageAllProvidersFailed
		meta.ErrorCount++
	} else {
		now := c.now()
		meta.LastUpdate = &now
		meta.UpdateCount++
		meta.LastError = ""
	}

	snapshot := entity.NewCacheSnapshot(result.Raw, result.RuleResults, meta)
	c.current = snapshot
	c.lastAttempt = c.now()
	c.generation++
	return snapshot
}

// commitFailure keeps the previous data and records the error.
func (c *Cache) commitFailure(err error) entity.CacheMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta := entity.CacheMetadata{}
	if c.current != nil {
		meta = c.current.Metadata()
	}
	meta.LastError = err.Error()
	meta.ErrorCount++

	if c.current != nil {
		prev := c.current
		c.current = entity.ReconstructCacheSnapshot(prev.ID(), prev.Raw(), prev.RuleResults(), meta, prev.CreatedAt())
	} else {
		c.current = entity.EmptyCacheSnapshot(meta)
	}
	c.lastAttempt = c.now()
	c.generation++
	return meta
}

func (c *Cache) afterRefresh(ctx context.Context, snapshot *entity.CacheSnapshot, meta entity.CacheMetadata, cycleErr error) {
	event := &dto.RefreshEventDTO{
		Type:            dto.EventSnapshotRefreshed,
		Timestamp:       c.now().UTC(),
		FailedProviders: meta.FailedProviders,
		UpdateCount:     meta.UpdateCount,
		ErrorCount:      meta.ErrorCount,
		DurationMS:      meta.RefreshDuration.Milliseconds(),
		Providers:       []string{},
	}
	subject := port.SubjectSnapshotRefreshed
	if cycleErr != nil {
		event.Type = dto.EventRefreshFailed
		event.Error = cycleErr.Error()
		subject = port.SubjectRefreshFailed
	}
	if snapshot != nil {
		event.SnapshotID = snapshot.ID()
		event.Applications = meta.Size
		event.Providers = snapshot.Raw().ProviderIDs()
	}

	sideCtx, cancel := context.WithTimeout(ctx, sideEffectLimit)
	defer cancel()

	if c.events != nil {
		if err := c.events.PublishEvent(sideCtx, subject, event); err != nil {
			c.logger.Warn("Failed to publish refresh event", "subject", subject, "error", err.Error())
		}
	}
	if c.notifier != nil {
		c.notifier.Broadcast(event)
	}

	stats := port.RefreshStats{
		CompletedAt:     c.now(),
		Duration:        meta.RefreshDuration,
		ProvidersLoaded: len(event.Providers),
		ProvidersFailed: len(meta.FailedProviders),
		Applications:    event.Applications,
		Success:         cycleErr == nil,
		SnapshotID:      event.SnapshotID,
	}
	if snapshot != nil {
		stats.RulesEvaluated = len(snapshot.RuleResults())
		for _, result := range snapshot.RuleResults() {
			if result.Failed() {
				stats.RulesFailed++
			}
		}
	}
	for _, publisher := range c.metrics {
		if err := publisher.PublishRefresh(sideCtx, stats); err != nil {
			c.logger.Warn("Failed to publish refresh stats", "error", err.Error())
		}
	}
}

// needsRefresh reports an empty cache or one whose last cycle is older than the
// staleness threshold, together with the commit generation it judged.
func (c *Cache) needsRefresh() (bool, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return true, c.generation
	}
	return c.now().Sub(c.lastAttempt) > c.config.StalenessThreshold, c.generation
}

func (c *Cache) committedSince(generation uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation != generation
}

// ensureFresh refreshes synchronously when needed. A reader that judged the cache
// stale does not start another cycle once any cycle has committed since. Failures
// are logged; the reader then gets whatever is available.
func (c *Cache) ensureFresh(ctx context.Context) {
	stale, generation := c.needsRefresh()
	if !stale {
		return
	}
	c.refreshAfter(ctx, generation)
}

func (c *Cache) refreshAfter(ctx context.Context, generation uint64) {
	c.logger.Info("Cache needs refresh on read")
	err := c.refreshUnless(ctx, func() bool { return c.committedSince(generation) })
	if err != nil {
		c.logger.Warn("Read-path refresh failed", "error", err.Error())
	}
}

// GetSnapshot returns the live snapshot, or the fallback snapshot when the live one
// holds no data. With neither, it returns an empty snapshot and ErrCacheUnavailable.
func (c *Cache) GetSnapshot(ctx context.Context) (*View, error) {
	c.ensureFresh(ctx)
	return c.read(ctx)
}

func (c *Cache) read(ctx context.Context) (*View, error) {
	current := c.Current()
	if current.Usable() {
		return &View{Snapshot: current, Source: SourceLive}, nil
	}

	if c.fallback != nil {
		snapshot, err := c.fallback.Load(ctx)
		switch {
		case err == nil && snapshot.Usable():
			c.logger.Warn("Serving fallback snapshot", "snapshot_id", snapshot.ID())
			return &View{Snapshot: snapshot, Source: SourceFallback}, nil
		case err != nil && !errors.Is(err, port.ErrNotFound):
			c.logger.Error("Failed to read fallback store", err)
		}
	}

	c.logger.Warn("No data available in cache or fallback store")
	return &View{Snapshot: entity.EmptyCacheSnapshot(c.Metadata()), Source: SourceNone}, ErrCacheUnavailable
}

// ApplicationDetail is one application's raw records and verdicts.
type ApplicationDetail struct {
	AppID      string
	Raw        map[string]valueobject.FieldMap
	Verdicts   map[string]valueobject.Verdict
	RuleErrors map[string]string
	Source     Source
}

// GetApplicationDetail returns the detail of one application from the served snapshot.
func (c *Cache) GetApplicationDetail(ctx context.Context, appID string) (*ApplicationDetail, error) {
	view, err := c.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	raw := view.Snapshot.Raw().ForApp(appID)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrApplicationNotFound, appID)
	}

	detail := &ApplicationDetail{
		AppID:      appID,
		Raw:        raw,
		Verdicts:   view.Snapshot.RuleResults().ForApp(appID),
		RuleErrors: make(map[string]string),
		Source:     view.Source,
	}
	for ruleID, result := range view.Snapshot.RuleResults() {
		if result.Failed() {
			detail.RuleErrors[ruleID] = result.Error
		}
	}
	return detail, nil
}

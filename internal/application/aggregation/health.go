package aggregation

import (
	"context"
	"time"

	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// Health summarizes freshness and usability of the served snapshot.
type Health struct {
	Status       valueobject.HealthStatus
	Message      string
	Source       Source
	Age          *time.Duration
	Metadata     entity.CacheMetadata
	Providers    []string
	Rules        []string
	Applications int
	CheckedAt    time.Time
}

// GetHealth reports the cache status. It refreshes on read like GetSnapshot.
func (c *Cache) GetHealth(ctx context.Context) *Health {
	view, err := c.GetSnapshot(ctx)
	now := c.now()

	meta := c.Metadata()
	health := &Health{
		Source:    view.Source,
		Metadata:  meta,
		Providers: view.Snapshot.Raw().ProviderIDs(),
		CheckedAt: now,
	}
	if c.ruleIDs != nil {
		health.Rules = c.ruleIDs()
	} else {
		health.Rules = view.Snapshot.RuleResults().RuleIDs()
	}
	health.Applications = len(view.Snapshot.AppIDs())

	if age, ok := meta.Age(now); ok {
		health.Age = &age
	}

	health.Status, health.Message = c.classify(err, view.Source, meta, health.Age)
	return health
}

func (c *Cache) classify(readErr error, source Source, meta entity.CacheMetadata, age *time.Duration) (valueobject.HealthStatus, string) {
	switch {
	case readErr != nil || source == SourceNone:
		return valueobject.HealthUnknown, ErrCacheUnavailable.Error()
	case source == SourceFallback:
		msg := "serving fallback snapshot"
		if meta.LastError != "" {
			msg += ": " + meta.LastError
		}
		return valueobject.HealthCritical, msg
	case meta.LastError != "":
		return valueobject.HealthWarning, "last refresh failed: " + meta.LastError
	case age == nil:
		return valueobject.HealthWarning, "no successful refresh recorded"
	case *age > c.config.RefreshInterval:
		return valueobject.HealthWarning, "cache is older than the refresh interval"
	case *age > c.config.StalenessThreshold:
		return valueobject.HealthCaution, "cache is older than the staleness threshold"
	default:
		return valueobject.HealthHealthy, "cache is fresh"
	}
}

package entity

import (
	"time"

	"github.com/google/uuid"
)

// CacheMetadata describes the refresh history of the aggregation cache.
type CacheMetadata struct {
	LastUpdate      *time.Time
	UpdateCount     int
	LastError       string
	ErrorCount      int
	Size            int
	FailedProviders []string
	RefreshDuration time.Duration
}

// Age returns how long ago the last successful refresh completed.
func (m CacheMetadata) Age(now time.Time) (time.Duration, bool) {
	if m.LastUpdate == nil {
		return 0, false
	}
	return now.Sub(*m.LastUpdate), true
}

// CacheSnapshot is the published result of one refresh cycle (Aggregate Root).
// All fields are fixed at construction; readers share the same instance.
type CacheSnapshot struct {
	id          string
	raw         RawSnapshot
	ruleResults RuleResultSet
	metadata    CacheMetadata
	createdAt   time.Time
}

// NewCacheSnapshot builds a snapshot with a fresh id (Factory Method).
func NewCacheSnapshot(raw RawSnapshot, ruleResults RuleResultSet, metadata CacheMetadata) *CacheSnapshot {
	return ReconstructCacheSnapshot(uuid.New().String(), raw, ruleResults, metadata, time.Now())
}

// ReconstructCacheSnapshot restores a snapshot read back from a fallback store.
func ReconstructCacheSnapshot(
	id string,
	raw RawSnapshot,
	ruleResults RuleResultSet,
	metadata CacheMetadata,
	createdAt time.Time,
) *CacheSnapshot {
	if raw == nil {
		raw = RawSnapshot{}
	}
	if ruleResults == nil {
		ruleResults = RuleResultSet{}
	}
	return &CacheSnapshot{
		id:          id,
		raw:         raw,
		ruleResults: ruleResults,
		metadata:    metadata,
		createdAt:   createdAt,
	}
}

// EmptyCacheSnapshot is returned when neither the live cache nor the fallback store holds data.
func EmptyCacheSnapshot(metadata CacheMetadata) *CacheSnapshot {
	return ReconstructCacheSnapshot("", RawSnapshot{}, RuleResultSet{}, metadata, time.Time{})
}

func (s *CacheSnapshot) ID() string {
	return s.id
}

func (s *CacheSnapshot) Raw() RawSnapshot {
	return s.raw
}

func (s *CacheSnapshot) RuleResults() RuleResultSet {
	return s.ruleResults
}

func (s *CacheSnapshot) Metadata() CacheMetadata {
	return s.metadata
}

func (s *CacheSnapshot) CreatedAt() time.Time {
	return s.createdAt
}

// Usable reports whether the snapshot carries data from at least one provider.
func (s *CacheSnapshot) Usable() bool {
	return s != nil && len(s.raw) > 0
}

// AppIDs returns every application id present in the raw data.
func (s *CacheSnapshot) AppIDs() []string {
	return s.raw.AppIDs()
}

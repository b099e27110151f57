package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// MetadataDTO is the wire form of entity.CacheMetadata.
type MetadataDTO struct {
	LastUpdate        *time.Time `json:"last_update"`
	UpdateCount       int        `json:"update_count"`
	LastError         *string    `json:"last_error"`
	ErrorCount        int        `json:"error_count"`
	Size              int        `json:"size"`
	FailedProviders   []string   `json:"failed_providers,omitempty"`
	RefreshDurationMS int64      `json:"refresh_duration_ms"`
}

// FromMetadata converts cache metadata to its DTO.
func FromMetadata(m entity.CacheMetadata) MetadataDTO {
	dto := MetadataDTO{
		LastUpdate:        m.LastUpdate,
		UpdateCount:       m.UpdateCount,
		ErrorCount:        m.ErrorCount,
		Size:              m.Size,
		FailedProviders:   m.FailedProviders,
		RefreshDurationMS: m.RefreshDuration.Milliseconds(),
	}
	if m.LastError != "" {
		lastError := m.LastError
		dto.LastError = &lastError
	}
	return dto
}

// ToEntity converts the DTO back to cache metadata.
func (m MetadataDTO) ToEntity() entity.CacheMetadata {
	meta := entity.CacheMetadata{
		LastUpdate:      m.LastUpdate,
		UpdateCount:     m.UpdateCount,
		ErrorCount:      m.ErrorCount,
		Size:            m.Size,
		FailedProviders: m.FailedProviders,
		RefreshDuration: time.Duration(m.RefreshDurationMS) * time.Millisecond,
	}
	if m.LastError != nil {
		meta.LastError = *m.LastError
	}
	return meta
}

// SnapshotDTO is the read-API view of a snapshot. Rule results render as
// descriptive verdict strings.
type SnapshotDTO struct {
	ID          string               `json:"id"`
	Source      string               `json:"source"`
	Status      string               `json:"status"`
	RawData     entity.RawSnapshot   `json:"raw_data"`
	RuleResults entity.RuleResultSet `json:"rule_results"`
	Metadata    MetadataDTO          `json:"metadata"`
}

// NewSnapshotDTO builds the read view.
func NewSnapshotDTO(snapshot *entity.CacheSnapshot, source, status string) *SnapshotDTO {
	return &SnapshotDTO{
		ID:          snapshot.ID(),
		Source:      source,
		Status:      status,
		RawData:     snapshot.Raw(),
		RuleResults: snapshot.RuleResults(),
		Metadata:    FromMetadata(snapshot.Metadata()),
	}
}

// VerdictRecord keeps the verdict kind so stored snapshots round-trip.
type VerdictRecord struct {
	Kind   string `json:"kind"`
	Label  string `json:"label"`
	Reason string `json:"reason,omitempty"`
}

// RuleResultRecord is the stored form of one rule's result.
type RuleResultRecord struct {
	Verdicts map[string]VerdictRecord `json:"verdicts,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// SnapshotRecord is the persisted form of a snapshot used by fallback stores.
type SnapshotRecord struct {
	ID          string                      `json:"id"`
	CreatedAt   time.Time                   `json:"created_at"`
	Raw         entity.RawSnapshot          `json:"raw"`
	RuleResults map[string]RuleResultRecord `json:"rule_results"`
	Metadata    MetadataDTO                 `json:"metadata"`
}

// NewSnapshotRecord converts a snapshot for storage.
func NewSnapshotRecord(snapshot *entity.CacheSnapshot) *SnapshotRecord {
	results := make(map[string]RuleResultRecord, len(snapshot.RuleResults()))
	for ruleID, result := range snapshot.RuleResults() {
		if result.Failed() {
			results[ruleID] = RuleResultRecord{Error: result.Error}
			continue
		}
		verdicts := make(map[string]VerdictRecord, len(result.Verdicts))
		for appID, v := range result.Verdicts {
			verdicts[appID] = VerdictRecord{Kind: string(v.Kind), Label: v.Label, Reason: v.Reason}
		}
		results[ruleID] = RuleResultRecord{Verdicts: verdicts}
	}

	return &SnapshotRecord{
		ID:          snapshot.ID(),
		CreatedAt:   snapshot.CreatedAt(),
		Raw:         snapshot.Raw(),
		RuleResults: results,
		Metadata:    FromMetadata(snapshot.Metadata()),
	}
}

// ToEntity restores the snapshot.
func (r *SnapshotRecord) ToEntity() (*entity.CacheSnapshot, error) {
	raw := make(entity.RawSnapshot, len(r.Raw))
	for providerID, data := range r.Raw {
		restored := make(valueobject.ProviderData, len(data))
		for appID, record := range data {
			fields := make(valueobject.FieldMap, len(record))
			for field, value := range record {
				fields[field] = valueobject.NormalizeScalar(value)
			}
			restored[appID] = fields
		}
		raw[providerID] = restored
	}

	results := make(entity.RuleResultSet, len(r.RuleResults))
	for ruleID, record := range r.RuleResults {
		if record.Error != "" {
			results[ruleID] = entity.RuleResult{Error: record.Error}
			continue
		}
		verdicts := make(map[string]valueobject.Verdict, len(record.Verdicts))
		for appID, v := range record.Verdicts {
			kind := valueobject.VerdictKind(v.Kind)
			if err := kind.Validate(); err != nil {
				return nil, fmt.Errorf("rule %s app %s: %w", ruleID, appID, err)
			}
			verdicts[appID] = valueobject.Verdict{Kind: kind, Label: v.Label, Reason: v.Reason}
		}
		results[ruleID] = entity.NewRuleResult(verdicts)
	}

	return entity.ReconstructCacheSnapshot(r.ID, raw, results, r.Metadata.ToEntity(), r.CreatedAt), nil
}

// EncodeSnapshot serializes a snapshot for a fallback store.
func EncodeSnapshot(snapshot *entity.CacheSnapshot) ([]byte, error) {
	data, err := json.Marshal(NewSnapshotRecord(snapshot))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses data written by EncodeSnapshot. Integral numbers come back as int64.
func DecodeSnapshot(data []byte) (*entity.CacheSnapshot, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var record SnapshotRecord
	if err := decoder.Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return record.ToEntity()
}

package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

func TestSnapshotEncoding_PreservesVerdictKindsAndScalars(t *testing.T) {
	updated := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	raw := entity.RawSnapshot{
		"security_v1": valueobject.ProviderData{
			"app1": {"VulnerabilityCount": int64(12), "PatchCompliance": 97.5, "Owner": "team-a", "Archived": false, "Notes": nil},
		},
	}
	results := entity.RuleResultSet{
		"governance_path_decision": entity.NewRuleResult(map[string]valueobject.Verdict{
			"app1": valueobject.Fail("HALT", "VulnerabilityCount (12) >= 10"),
		}),
		"broken": entity.NewRuleError("boom"),
	}
	original := entity.NewCacheSnapshot(raw, results, entity.CacheMetadata{
		LastUpdate:      &updated,
		UpdateCount:     3,
		LastError:       "provider x failed",
		ErrorCount:      1,
		Size:            1,
		RefreshDuration: 1500 * time.Millisecond,
	})

	data, err := EncodeSnapshot(original)
	require.NoError(t, err)

	restored, err := DecodeSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, original.ID(), restored.ID())
	assert.Equal(t, original.Raw(), restored.Raw())
	assert.Equal(t, original.RuleResults(), restored.RuleResults())
	assert.Equal(t, original.Metadata(), restored.Metadata())
	assert.True(t, original.CreatedAt().Equal(restored.CreatedAt()))
}

func TestDecodeSnapshot_RejectsUnknownVerdictKind(t *testing.T) {
	data := []byte(`{"id":"x","raw":{},"rule_results":{"r":{"verdicts":{"a":{"kind":"maybe","label":"?"}}}},"metadata":{}}`)

	_, err := DecodeSnapshot(data)
	assert.Error(t, err)
}

func TestMetadataDTO_NullLastError(t *testing.T) {
	data, err := json.Marshal(FromMetadata(entity.CacheMetadata{}))
	require.NoError(t, err)

	assert.JSONEq(t, `{"last_update":null,"update_count":0,"last_error":null,"error_count":0,"size":0,"refresh_duration_ms":0}`, string(data))
}

func TestNewSnapshotDTO_RendersVerdictStrings(t *testing.T) {
	snapshot := entity.NewCacheSnapshot(
		entity.RawSnapshot{"p": valueobject.ProviderData{"app1": {"x": int64(1)}}},
		entity.RuleResultSet{"r": entity.NewRuleResult(map[string]valueobject.Verdict{"app1": valueobject.Pass("Fast Path")})},
		entity.CacheMetadata{},
	)

	data, err := json.Marshal(NewSnapshotDTO(snapshot, "live", "healthy"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]any{"r": map[string]any{"app1": "Fast Path"}}, decoded["rule_results"])
	assert.Equal(t, "live", decoded["source"])
}

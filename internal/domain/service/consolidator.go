package service

import (
	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// ConsolidatedView is a read-only, per-application merge of a RawSnapshot.
// Records are merged on demand; nothing is cached.
type ConsolidatedView struct {
	raw       entity.RawSnapshot
	providers []string
	appIDs    []string
	index     map[string]struct{}
}

// Consolidate derives the application id universe and a merging lookup from raw data.
// Providers are applied in raw.ProviderIDs() order: later providers overwrite
// fields of the same name.
func Consolidate(raw entity.RawSnapshot) ConsolidatedView {
	appIDs := raw.AppIDs()
	index := make(map[string]struct{}, len(appIDs))
	for _, id := range appIDs {
		index[id] = struct{}{}
	}

	return ConsolidatedView{
		raw:       raw,
		providers: raw.ProviderIDs(),
		appIDs:    appIDs,
		index:     index,
	}
}

// AppIDs returns the sorted set of application ids.
func (v ConsolidatedView) AppIDs() []string {
	out := make([]string, len(v.appIDs))
	copy(out, v.appIDs)
	return out
}

// Contains reports whether any provider has a record for the application.
func (v ConsolidatedView) Contains(appID string) bool {
	_, ok := v.index[appID]
	return ok
}

// Lookup returns a fresh map with the application's fields merged across providers.
// Unknown applications yield an empty map.
func (v ConsolidatedView) Lookup(appID string) valueobject.FieldMap {
	merged := make(valueobject.FieldMap)
	if !v.Contains(appID) {
		return merged
	}

	for _, providerID := range v.providers {
		record, ok := v.raw[providerID][appID]
		if !ok {
			continue
		}
		for field, value := range record {
			merged[field] = value
		}
	}

	return merged
}

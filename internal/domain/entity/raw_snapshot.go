package entity

import (
	"sort"

	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// RawSnapshot holds the as-loaded data of one refresh cycle: provider id -> app id -> fields.
// It is built once per cycle and never modified afterwards.
type RawSnapshot map[string]valueobject.ProviderData

// ProviderIDs returns the provider ids in their fixed iteration order (lexical).
// Consolidation applies providers in this order, so later ids win on field clashes.
func (r RawSnapshot) ProviderIDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AppIDs returns the sorted union of application ids across all providers.
func (r RawSnapshot) AppIDs() []string {
	seen := make(map[string]struct{})
	for _, data := range r {
		for appID := range data {
			seen[appID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Record returns one provider's record for an application.
func (r RawSnapshot) Record(providerID, appID string) (valueobject.FieldMap, bool) {
	data, ok := r[providerID]
	if !ok {
		return nil, false
	}
	record, ok := data[appID]
	return record, ok
}

// ForApp returns every provider's record for an application, keyed by provider id.
func (r RawSnapshot) ForApp(appID string) map[string]valueobject.FieldMap {
	out := make(map[string]valueobject.FieldMap)
	for providerID, data := range r {
		if record, ok := data[appID]; ok {
			out[providerID] = record
		}
	}
	return out
}

package fitness

import (
	"errors"
	"strings"

	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
	"github.com/GanizaniSitara/controls-ux/internal/domain/service"
	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// Accessor is a read-only view over a CacheSnapshot for functions that need raw
// per-provider data. Every map it returns is a copy.
type Accessor struct {
	raw        entity.RawSnapshot
	results    entity.RuleResultSet
	aggregator *service.NumericAggregator
}

// NewAccessor wraps snapshot. A nil snapshot behaves as an empty one.
func NewAccessor(snapshot *entity.CacheSnapshot) *Accessor {
	a := &Accessor{
		raw:        entity.RawSnapshot{},
		results:    entity.RuleResultSet{},
		aggregator: service.NewNumericAggregator(),
	}
	if snapshot != nil {
		a.raw = snapshot.Raw()
		a.results = snapshot.RuleResults()
	}
	return a
}

// ProviderIDs lists the providers present in the snapshot.
func (a *Accessor) ProviderIDs() []string {
	return a.raw.ProviderIDs()
}

// ProviderData returns app id -> record for one provider. Unknown providers yield an empty map.
func (a *Accessor) ProviderData(providerID string) valueobject.ProviderData {
	data := a.raw[providerID]
	out := make(valueobject.ProviderData, len(data))
	for appID, record := range data {
		out[appID] = record.Clone()
	}
	return out
}

// AppData returns provider id -> record for one application.
func (a *Accessor) AppData(appID string) map[string]valueobject.FieldMap {
	out := a.raw.ForApp(appID)
	for providerID, record := range out {
		out[providerID] = record.Clone()
	}
	return out
}

// ProviderAppData returns one provider's record for one application.
func (a *Accessor) ProviderAppData(providerID, appID string) (valueobject.FieldMap, bool) {
	record, ok := a.raw.Record(providerID, appID)
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

// MergedAppData returns the consolidated record of one application.
func (a *Accessor) MergedAppData(appID string) valueobject.FieldMap {
	return service.Consolidate(a.raw).Lookup(appID)
}

// FieldValue resolves "provider.Field" for an application, returning def when the
// provider, the application or the field is missing. Everything after the first dot
// is the field name.
func (a *Accessor) FieldValue(appID, path string, def any) any {
	providerID, field, ok := strings.Cut(path, ".")
	if !ok || providerID == "" || field == "" {
		return def
	}
	record, ok := a.raw.Record(providerID, appID)
	if !ok {
		return def
	}
	value, ok := record[field]
	if !ok {
		return def
	}
	return value
}

// FloatValue is FieldValue coerced to a number; def is used on a miss or a coercion failure.
func (a *Accessor) FloatValue(appID, path string, def float64) float64 {
	value := a.FieldValue(appID, path, nil)
	if value == nil {
		return def
	}
	f, err := service.CoerceFloat(path, value)
	if err != nil {
		return def
	}
	return f
}

// AppIDs returns every application id across all providers.
func (a *Accessor) AppIDs() []string {
	return a.raw.AppIDs()
}

// AppsWithData returns, for every application that appears in at least one of the
// given providers, its records from those providers.
func (a *Accessor) AppsWithData(providers ...string) map[string]map[string]valueobject.FieldMap {
	out := make(map[string]map[string]valueobject.FieldMap)
	for _, providerID := range providers {
		for appID, record := range a.raw[providerID] {
			if out[appID] == nil {
				out[appID] = make(map[string]valueobject.FieldMap)
			}
			out[appID][providerID] = record.Clone()
		}
	}
	return out
}

// RuleResult returns the stored result of one rule.
func (a *Accessor) RuleResult(ruleID string) (entity.RuleResult, bool) {
	result, ok := a.results[ruleID]
	return result, ok
}

// CountBy classifies the field value of every application that has the field and
// counts applications per category.
func (a *Accessor) CountBy(providerID, field string, classify func(value any) string) map[string]int {
	counts := make(map[string]int)
	for _, record := range a.raw[providerID] {
		value, ok := record[field]
		if !ok {
			continue
		}
		counts[classify(value)]++
	}
	return counts
}

// Aggregate applies op to the numeric values of field across one provider.
// Values that do not coerce to a number are skipped; no values at all yields 0.
func (a *Accessor) Aggregate(providerID, field string, op service.AggregateOp) (float64, error) {
	if err := op.Validate(); err != nil {
		return 0, err
	}

	var values []float64
	for _, record := range a.raw[providerID] {
		value, ok := record[field]
		if !ok {
			continue
		}
		f, err := service.CoerceFloat(field, value)
		if err != nil {
			continue
		}
		values = append(values, f)
	}

	result, err := a.aggregator.Apply(op, values)
	if errors.Is(err, service.ErrNoValues) {
		return 0, nil
	}
	return result, err
}

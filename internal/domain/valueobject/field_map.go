package valueobject

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FieldMap is one application's record from one provider.
// Values are limited to string, float64, int64, bool and nil.
type FieldMap map[string]any

// ProviderData maps application id to that application's record.
type ProviderData map[string]FieldMap

// Clone returns a shallow copy of the field map.
func (f FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// AppIDs returns the application ids of the provider data in sorted order.
func (d ProviderData) AppIDs() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Filter keeps only the requested application ids. An empty filter returns d unchanged.
func (d ProviderData) Filter(appIDs []string) ProviderData {
	if len(appIDs) == 0 {
		return d
	}
	out := make(ProviderData, len(appIDs))
	for _, id := range appIDs {
		if record, ok := d[id]; ok {
			out[id] = record
		}
	}
	return out
}

// NormalizeScalar converts driver and decoder values into the FieldMap value set.
func NormalizeScalar(v any) any {
	switch value := v.(type) {
	case nil:
		return nil
	case string:
		return value
	case []byte:
		return string(value)
	case bool:
		return value
	case float64:
		if math.IsNaN(value) {
			return nil
		}
		return value
	case float32:
		return NormalizeScalar(float64(value))
	case int:
		return int64(value)
	case int8:
		return int64(value)
	case int16:
		return int64(value)
	case int32:
		return int64(value)
	case int64:
		return value
	case uint:
		return int64(value)
	case uint8:
		return int64(value)
	case uint16:
		return int64(value)
	case uint32:
		return int64(value)
	case uint64:
		return int64(value)
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return i
		}
		if f, err := value.Float64(); err == nil {
			return f
		}
		return value.String()
	case time.Time:
		return value.Format(time.RFC3339)
	default:
		return fmt.Sprint(value)
	}
}

// ParseScalar infers a scalar from a text cell: empty -> nil, integers, floats,
// true/false, everything else stays a string.
func ParseScalar(cell string) any {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

// CanonicalAppID turns a first-column value into the canonical application id.
// Integral numbers lose their fractional part so 101 and 101.0 name the same app.
func CanonicalAppID(v any) (string, bool) {
	switch value := NormalizeScalar(v).(type) {
	case nil:
		return "", false
	case string:
		id := strings.TrimSpace(value)
		if isDecimalText(id) {
			if f, err := strconv.ParseFloat(id, 64); err == nil {
				id = formatNumericID(f)
			}
		}
		return id, id != ""
	case int64:
		return strconv.FormatInt(value, 10), true
	case float64:
		return formatNumericID(value), true
	case bool:
		return strconv.FormatBool(value), true
	default:
		id := strings.TrimSpace(fmt.Sprint(value))
		return id, id != ""
	}
}

// formatNumericID renders integral values without a fraction and everything else
// in the shortest exact decimal form, so 101, 101.0 and "101.00" share one id.
func formatNumericID(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e18 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// isDecimalText matches an optionally signed number with exactly one decimal
// point, such as "101.0" or "-2.50". Plain digit strings keep their leading zeros.
func isDecimalText(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	whole, frac, found := strings.Cut(s, ".")
	if !found || (whole == "" && frac == "") {
		return false
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

package service

import (
	"errors"
	"time"

	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// FieldReader reads typed values from one record with a caller-chosen default per read.
// Missing fields fall back silently; fields that fail coercion fall back and are
// reported through the callback.
type FieldReader struct {
	record    valueobject.FieldMap
	onCoerced func(*CoercionError)
}

// NewFieldReader creates a reader. onCoerced may be nil.
func NewFieldReader(record valueobject.FieldMap, onCoerced func(*CoercionError)) FieldReader {
	return FieldReader{record: record, onCoerced: onCoerced}
}

// Float returns the field as float64 or def.
func (r FieldReader) Float(field string, def float64) float64 {
	v, err := CoerceFloat(field, r.record[field])
	if err != nil {
		r.report(err)
		return def
	}
	return v
}

// Int returns the field truncated to int64 or def.
func (r FieldReader) Int(field string, def int64) int64 {
	v, err := CoerceInt(field, r.record[field])
	if err != nil {
		r.report(err)
		return def
	}
	return v
}

// String returns the field as text or def.
func (r FieldReader) String(field, def string) string {
	v, err := CoerceString(field, r.record[field])
	if err != nil {
		r.report(err)
		return def
	}
	return v
}

// Date returns the date part of the field; ok is false when missing or unparsable.
func (r FieldReader) Date(field string) (time.Time, bool) {
	v, err := CoerceDate(field, r.record[field])
	if err != nil {
		r.report(err)
		return time.Time{}, false
	}
	return v, true
}

// Has reports whether the field is present and non-null.
func (r FieldReader) Has(field string) bool {
	v, ok := r.record[field]
	return ok && v != nil
}

func (r FieldReader) report(err error) {
	var ce *CoercionError
	if r.onCoerced != nil && errors.As(err, &ce) {
		r.onCoerced(ce)
	}
}

package service

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

// ErrMissingField is returned when a field is absent or null.
var ErrMissingField = errors.New("field is missing")

// CoercionError reports a field that is present but cannot be read as the requested type.
type CoercionError struct {
	Field  string
	Value  any
	Target string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot convert field %s value %v to %s", e.Field, e.Value, e.Target)
}

// CoerceFloat reads a number leniently: "$46,889.00", "12 %" and "1,200" all parse.
// Text containing letters is rejected.
func CoerceFloat(field string, value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, ErrMissingField
	case float64:
		if math.IsNaN(v) {
			return 0, ErrMissingField
		}
		return v, nil
	case int64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return parseNumeric(field, v)
	default:
		normalized := valueobject.NormalizeScalar(value)
		if _, same := normalized.(string); !same {
			return CoerceFloat(field, normalized)
		}
		return 0, &CoercionError{Field: field, Value: value, Target: "number"}
	}
}

// CoerceInt reads a number leniently and truncates it toward zero.
func CoerceInt(field string, value any) (int64, error) {
	f, err := CoerceFloat(field, value)
	if err != nil {
		var ce *CoercionError
		if errors.As(err, &ce) {
			ce.Target = "integer"
		}
		return 0, err
	}
	return int64(f), nil
}

// CoerceString renders a scalar as text. Integral floats keep their ".0".
func CoerceString(field string, value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", ErrMissingField
	case string:
		return v, nil
	case float64:
		return FormatNumber(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case bool:
		if v {
			return "True", nil
		}
		return "False", nil
	default:
		return fmt.Sprint(valueobject.NormalizeScalar(value)), nil
	}
}

// CoerceDate parses the date part of an ISO-8601 value ("2024-01-20", "2024-01-20 10:00:00",
// "2024-01-20T10:00:00Z").
func CoerceDate(field string, value any) (time.Time, error) {
	text, err := CoerceString(field, value)
	if err != nil {
		return time.Time{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, ErrMissingField
	}
	if i := strings.IndexAny(text, " T"); i > 0 {
		text = text[:i]
	}
	date, err := time.Parse("2006-01-02", text)
	if err != nil {
		return time.Time{}, &CoercionError{Field: field, Value: value, Target: "date"}
	}
	return date, nil
}

// FormatNumber prints a float the way report strings expect: integral values keep
// one decimal ("55.0"), others use the shortest exact form ("94.5").
func FormatNumber(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func parseNumeric(field, raw string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', '%', ' ', '\t':
			return -1
		}
		return r
	}, raw)
	if cleaned == "" {
		return 0, ErrMissingField
	}
	for _, r := range cleaned {
		if unicode.IsLetter(r) {
			return 0, &CoercionError{Field: field, Value: raw, Target: "number"}
		}
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, &CoercionError{Field: field, Value: raw, Target: "number"}
	}
	return f, nil
}

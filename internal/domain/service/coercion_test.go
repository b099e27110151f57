package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GanizaniSitara/controls-ux/internal/domain/valueobject"
)

func TestCoerceFloat(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    float64
		wantErr error
	}{
		{name: "float", value: 94.5, want: 94.5},
		{name: "int", value: int64(12), want: 12},
		{name: "plain int", value: 7, want: 7},
		{name: "currency", value: "$46,889.00", want: 46889},
		{name: "percent with space", value: "97.5 %", want: 97.5},
		{name: "thousands", value: "1,200", want: 1200},
		{name: "bool", value: true, want: 1},
		{name: "nil", value: nil, wantErr: ErrMissingField},
		{name: "blank", value: "  ", wantErr: ErrMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CoerceFloat("Field", tt.value)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCoerceFloat_LettersFail(t *testing.T) {
	_, err := CoerceFloat("VulnerabilityCount", "twelve")

	var ce *CoercionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "VulnerabilityCount", ce.Field)
	assert.Equal(t, "number", ce.Target)
}

func TestCoerceInt(t *testing.T) {
	got, err := CoerceInt("LintScore", "79.9")
	require.NoError(t, err)
	assert.Equal(t, int64(79), got)

	_, err = CoerceInt("LintScore", "n/a")
	var ce *CoercionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "integer", ce.Target)
}

func TestCoerceString(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{value: "weekly", want: "weekly"},
		{value: 55.0, want: "55.0"},
		{value: 94.25, want: "94.25"},
		{value: int64(3), want: "3"},
		{value: false, want: "False"},
	}
	for _, tt := range tests {
		got, err := CoerceString("Field", tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestCoerceDate(t *testing.T) {
	want := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-01-20", "2024-01-20 10:00:00", "2024-01-20T10:00:00Z"} {
		got, err := CoerceDate("LastUpdated", in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	_, err := CoerceDate("LastUpdated", "20/01/2024")
	var ce *CoercionError
	assert.True(t, errors.As(err, &ce))

	_, err = CoerceDate("LastUpdated", nil)
	assert.True(t, errors.Is(err, ErrMissingField))
}

func TestFieldReader_Defaults(t *testing.T) {
	var reported []string
	reader := NewFieldReader(valueobject.FieldMap{
		"Good":  "42",
		"Bad":   "forty-two",
		"Empty": nil,
	}, func(err *CoercionError) {
		reported = append(reported, err.Field)
	})

	assert.Equal(t, int64(42), reader.Int("Good", -1))
	assert.Equal(t, int64(-1), reader.Int("Bad", -1))
	assert.Equal(t, 3.5, reader.Float("Missing", 3.5))
	assert.Equal(t, "x", reader.String("Empty", "x"))
	assert.True(t, reader.Has("Good"))
	assert.False(t, reader.Has("Empty"))

	// Only coercion failures are reported, not missing fields.
	assert.Equal(t, []string{"Bad"}, reported)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "55.0", FormatNumber(55))
	assert.Equal(t, "0.6", FormatNumber(0.6))
	assert.Equal(t, "-3.0", FormatNumber(-3))
}

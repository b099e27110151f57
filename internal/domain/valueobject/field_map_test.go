package valueobject

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestCanonicalAppID(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   string
		wantOK bool
	}{
		{name: "trimmed string", in: "  app-1 ", want: "app-1", wantOK: true},
		{name: "integer", in: 101, want: "101", wantOK: true},
		{name: "integral float", in: 101.0, want: "101", wantOK: true},
		{name: "integral float text", in: "101.0", want: "101", wantOK: true},
		{name: "fractional float", in: 1.5, want: "1.5", wantOK: true},
		{name: "fractional text matches float", in: "101.50", want: "101.5", wantOK: true},
		{name: "negative fractional text", in: "-2.250", want: "-2.25", wantOK: true},
		{name: "huge integral text keeps magnitude", in: "99999999999999999999.0", want: "100000000000000000000", wantOK: true},
		{name: "huge integral float keeps magnitude", in: 1e20, want: "100000000000000000000", wantOK: true},
		{name: "leading zeros kept", in: "007", want: "007", wantOK: true},
		{name: "exponent text untouched", in: "1e3", want: "1e3", wantOK: true},
		{name: "dotted name untouched", in: "svc.billing", want: "svc.billing", wantOK: true},
		{name: "version-like text untouched", in: "1.2.3", want: "1.2.3", wantOK: true},
		{name: "json number", in: json.Number("42"), want: "42", wantOK: true},
		{name: "bytes", in: []byte("APP7"), want: "APP7", wantOK: true},
		{name: "nil", in: nil, wantOK: false},
		{name: "blank", in: "   ", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CanonicalAppID(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("CanonicalAppID(%v) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Fatalf("CanonicalAppID(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalAppID_TextAndNumberAgree(t *testing.T) {
	pairs := []struct {
		text   string
		number float64
	}{
		{"101.0", 101},
		{"101.50", 101.5},
		{"0.25", 0.25},
		{"99999999999999999999.0", 99999999999999999999.0},
	}
	for _, p := range pairs {
		fromText, _ := CanonicalAppID(p.text)
		fromNumber, _ := CanonicalAppID(p.number)
		if fromText != fromNumber {
			t.Errorf("CanonicalAppID(%q) = %q but CanonicalAppID(%v) = %q", p.text, fromText, p.number, fromNumber)
		}
	}
}

func TestParseScalar(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", nil},
		{"  ", nil},
		{"12", int64(12)},
		{"94.5", 94.5},
		{"true", true},
		{"FALSE", false},
		{"weekly", "weekly"},
		{"$1,200", "$1,200"},
	}
	for _, tt := range tests {
		if got := ParseScalar(tt.in); got != tt.want {
			t.Fatalf("ParseScalar(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeScalar(t *testing.T) {
	if got := NormalizeScalar(int32(5)); got != int64(5) {
		t.Fatalf("int32 -> %#v", got)
	}
	if got := NormalizeScalar(math.NaN()); got != nil {
		t.Fatalf("NaN -> %#v", got)
	}
	if got := NormalizeScalar(json.Number("2.5")); got != 2.5 {
		t.Fatalf("json.Number -> %#v", got)
	}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := NormalizeScalar(ts); got != "2024-01-02T03:04:05Z" {
		t.Fatalf("time -> %#v", got)
	}
}

func TestProviderData_Filter(t *testing.T) {
	data := ProviderData{"a": {"x": int64(1)}, "b": {"x": int64(2)}}

	if got := data.Filter(nil); len(got) != 2 {
		t.Fatalf("empty filter should keep everything, got %d", len(got))
	}
	got := data.Filter([]string{"b", "missing"})
	if len(got) != 1 || got["b"]["x"] != int64(2) {
		t.Fatalf("unexpected filter result: %#v", got)
	}
}

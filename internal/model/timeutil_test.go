package model

import (
	"testing"
	"time"
)

func TestParseTimestamp_EpochSeconds(t *testing.T) {
	got, ok := ParseTimestamp(int64(1700000000))
	if !ok {
		t.Fatal("expected ok=true")
	}
	want := time.Unix(1700000000, 0).UTC()
	if !got.Equal(want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestParseTimestamp_EpochMillis(t *testing.T) {
	got, ok := ParseTimestamp(int64(1700000000123))
	if !ok {
		t.Fatal("expected ok=true")
	}
	want := time.UnixMilli(1700000000123).UTC()
	if !got.Equal(want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestParseTimestamp_FloatSeconds(t *testing.T) {
	got, ok := ParseTimestamp(1700000000.5)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if got.Nanosecond() == 0 {
		t.Errorf("expected fractional part to survive, got %v", got)
	}
}

func TestParseTimestamp_Strings(t *testing.T) {
	cases := []string{
		"2024-01-15T10:30:00Z",
		"2024-01-15T10:30:00.123456Z",
		"2024-01-15T10:30:00",
		"2024-01-15 10:30:00",
		"2024-01-15",
	}
	for _, c := range cases {
		t.Run(c, func(t *testing.T) {
			got, ok := ParseTimestamp(c)
			if !ok {
				t.Fatalf("expected to parse %q", c)
			}
			if got.Year() != 2024 {
				t.Errorf("got %v", got)
			}
		})
	}
}

func TestParseTimestamp_Missing(t *testing.T) {
	cases := []any{nil, "", "not a timestamp", float64(0)}
	for _, c := range cases {
		if _, ok := ParseTimestamp(c); ok {
			t.Errorf("expected ok=false for %#v", c)
		}
	}
}

package jobs

import (
	"testing"
	"time"
)

func TestParseDateVariants(t *testing.T) {
	t.Parallel()
	want := time.Date(2030, time.March, 5, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		raw  string
	}{
		{name: "slash", raw: "05/03/2030"},
		{name: "dash", raw: "05-03-2030"},
		{name: "abbrev month", raw: "05 Mar 2030"},
		{name: "fallback single digit day", raw: "5 Mar 2030"},
		{name: "surrounding whitespace", raw: "  05/03/2030  "},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.raw, DefaultFormats)
			if !ok {
				t.Fatalf("ParseDate(%q) failed", tt.raw)
			}
			if !got.Equal(want) {
				t.Fatalf("ParseDate(%q) = %v, want %v", tt.raw, got, want)
			}
		})
	}
}

func TestParseDateInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "soon", "2030-03-05T10:00", "32/13/2030"} {
		if _, ok := ParseDate(raw, DefaultFormats); ok {
			t.Fatalf("ParseDate(%q) unexpectedly succeeded", raw)
		}
	}
}

func TestDateOnly(t *testing.T) {
	t.Parallel()
	in := time.Date(2030, time.March, 5, 23, 59, 1, 0, time.FixedZone("IST", 5*3600+1800))
	got := DateOnly(in)
	if got.Hour() != 0 || got.Minute() != 0 || got.Location() != time.UTC {
		t.Fatalf("DateOnly = %v", got)
	}
	if got.Day() != 5 || got.Month() != time.March {
		t.Fatalf("DateOnly changed the calendar date: %v", got)
	}
}

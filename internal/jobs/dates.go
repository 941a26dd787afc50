package jobs

import (
	"strings"
	"time"
)

// DefaultFormats are the accepted last-date layouts (day-first, as the
// sheet is maintained in Indian date order).
var DefaultFormats = []string{"02/01/2006", "02-01-2006", "02 Jan 2006"}

// fallbackFormat is tried after all configured layouts fail; it covers
// hand-typed abbreviated month names like "5 Mar 2026".
const fallbackFormat = "2 Jan 2006"

// DefaultOutputFormat is the layout used when rendering dates to chats.
const DefaultOutputFormat = "02/01/2006"

// ParseDate parses a last-date string against the configured layouts in
// order, first match wins. Returns false when nothing matches; callers
// decide whether that fails open (expiry) or falls back to raw text
// (rendering).
func ParseDate(s string, formats []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(fallbackFormat, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// DateOnly truncates t to a calendar date in UTC so date comparisons are
// unaffected by clock time or zone.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

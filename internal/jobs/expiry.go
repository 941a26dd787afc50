package jobs

import (
	"sort"
	"time"
)

// Row pairs a record with its 1-indexed position in the sheet (header row
// included, so data rows start at index 2).
type Row struct {
	Index  int
	Record Record
}

// Records strips the positional indices.
func Records(rows []Row) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Record)
	}
	return out
}

// ExpiredIndices returns the sheet indices of rows whose last-date parses
// and is strictly before today, sorted highest first so an index-addressed
// deletion API does not shift rows that are still pending deletion.
// Unparseable dates fail open: the row is kept.
func ExpiredIndices(rows []Row, formats []string, today time.Time) []int {
	day := DateOnly(today)
	var expired []int
	for _, r := range rows {
		ld, ok := ParseDate(r.Record.LastDate, formats)
		if !ok {
			continue
		}
		if DateOnly(ld).Before(day) {
			expired = append(expired, r.Index)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(expired)))
	return expired
}

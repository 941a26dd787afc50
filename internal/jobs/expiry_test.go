package jobs

import (
	"reflect"
	"testing"
	"time"
)

func TestExpiredIndices(t *testing.T) {
	t.Parallel()
	today := time.Date(2030, time.June, 15, 10, 30, 0, 0, time.UTC)
	rows := []Row{
		{Index: 2, Record: Record{Title: "old", LastDate: "14/06/2030"}},      // yesterday: expired
		{Index: 3, Record: Record{Title: "today", LastDate: "15/06/2030"}},    // today: kept
		{Index: 4, Record: Record{Title: "future", LastDate: "01/01/2031"}},   // kept
		{Index: 5, Record: Record{Title: "garbled", LastDate: "see notice"}},  // unparseable: fail open
		{Index: 6, Record: Record{Title: "older", LastDate: "01/01/2029"}},    // expired
		{Index: 7, Record: Record{Title: "blank", LastDate: ""}},              // fail open
	}

	got := ExpiredIndices(rows, DefaultFormats, today)
	// Highest first so deletions don't shift pending indices.
	want := []int{6, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExpiredIndices = %v, want %v", got, want)
	}
}

func TestExpiredIndicesNoneExpired(t *testing.T) {
	t.Parallel()
	today := time.Date(2030, time.June, 15, 0, 0, 0, 0, time.UTC)
	rows := []Row{
		{Index: 2, Record: Record{LastDate: "15/06/2030"}},
		{Index: 3, Record: Record{LastDate: "16/06/2030"}},
	}
	if got := ExpiredIndices(rows, DefaultFormats, today); len(got) != 0 {
		t.Fatalf("expected no expired rows, got %v", got)
	}
}

func TestRecords(t *testing.T) {
	t.Parallel()
	rows := []Row{
		{Index: 2, Record: Record{Title: "a"}},
		{Index: 3, Record: Record{Title: "b"}},
	}
	recs := Records(rows)
	if len(recs) != 2 || recs[0].Title != "a" || recs[1].Title != "b" {
		t.Fatalf("Records = %+v", recs)
	}
}

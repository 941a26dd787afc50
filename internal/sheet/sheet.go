// Package sheet is the spreadsheet collaborator: the source of truth for
// the active job listing. The reconciler only depends on Source so tests
// can run against an in-memory fake.
package sheet

import (
	"context"
	"time"

	"jobalertbot/internal/jobs"
)

// Source is the external listing contract.
//
// Rows are 1-indexed sheet positions with the header at row 1, so the
// first data row has Index 2.
type Source interface {
	// ReadRows returns the current listing, normalized.
	ReadRows(ctx context.Context) ([]jobs.Row, error)

	// RemoveExpired deletes rows whose last-date precedes today and
	// returns the refreshed view. Unparseable dates are kept.
	RemoveExpired(ctx context.Context, rows []jobs.Row, today time.Time) ([]jobs.Row, error)

	// AppendJobs inserts records that are not already present under the
	// (title, last-date) identity. Returns how many rows were added.
	AppendJobs(ctx context.Context, recs []jobs.Record) (int, error)
}

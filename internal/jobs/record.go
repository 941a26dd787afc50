// Package jobs holds the job-listing data model: the fixed sheet schema,
// record normalization, identity keys and expiry selection.
package jobs

import "strings"

// Sheet column headers. This is the complete recognized schema; normalization
// matches incoming keys against it case-insensitively.
const (
	HeaderTitle         = "Job Title"
	HeaderLastDate      = "Last Date"
	HeaderAgeLimit      = "Age Limit"
	HeaderQualification = "Qualification"
	HeaderExperience    = "Experience"
	HeaderApplyLink     = "Apply Link"
	HeaderSource        = "Source"
)

// Headers lists the schema in sheet column order.
var Headers = []string{
	HeaderTitle,
	HeaderLastDate,
	HeaderAgeLimit,
	HeaderQualification,
	HeaderExperience,
	HeaderApplyLink,
	HeaderSource,
}

// DefaultSource is the grouping bucket for rows with an empty Source column.
const DefaultSource = "General"

// Record is a canonicalized job listing. Every field is always present;
// missing input columns become empty strings.
type Record struct {
	Title         string
	LastDate      string
	AgeLimit      string
	Qualification string
	Experience    string
	ApplyLink     string
	Source        string
}

// Normalize canonicalizes a raw sheet row into a Record. Keys are matched
// against the schema case-insensitively after trimming; unrecognized keys
// are dropped and absent ones map to the empty string, so the result is
// always total over the schema.
func Normalize(raw map[string]string) Record {
	get := func(header string) string {
		want := strings.ToLower(header)
		for k, v := range raw {
			if strings.ToLower(strings.TrimSpace(k)) == want {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}
	return Record{
		Title:         get(HeaderTitle),
		LastDate:      get(HeaderLastDate),
		AgeLimit:      get(HeaderAgeLimit),
		Qualification: get(HeaderQualification),
		Experience:    get(HeaderExperience),
		ApplyLink:     get(HeaderApplyLink),
		Source:        get(HeaderSource),
	}
}

// ID derives the stable identity key for a job. Records sharing a title
// (case-insensitive) and last-date collide on purpose: a changed last-date
// is a new job, never an update in place.
func ID(title, lastDate string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + strings.TrimSpace(lastDate)
}

// ID returns the record's identity key.
func (r Record) ID() string { return ID(r.Title, r.LastDate) }

// SourceOrDefault returns the grouping bucket for the record.
func (r Record) SourceOrDefault() string {
	if s := strings.TrimSpace(r.Source); s != "" {
		return s
	}
	return DefaultSource
}

// Group is the per-source slice of active records, in discovery order.
type Group struct {
	Source  string
	Records []Record
	IDs     []string
}

// GroupBySource buckets records by source, preserving both the order in
// which sources are first seen and the row order within each source.
func GroupBySource(records []Record) []Group {
	idx := map[string]int{}
	var groups []Group
	for _, r := range records {
		src := r.SourceOrDefault()
		i, ok := idx[src]
		if !ok {
			i = len(groups)
			idx[src] = i
			groups = append(groups, Group{Source: src})
		}
		groups[i].Records = append(groups[i].Records, r)
		groups[i].IDs = append(groups[i].IDs, r.ID())
	}
	return groups
}

package completeness

import (
	"slices"
	"time"

	"monfill/internal/snapshot"
)

// DefaultHours is the canonical set of daily time slots.
var DefaultHours = []int{0, 8, 16}

// DateStatus is the per-date result of a completeness check.
type DateStatus struct {
	Date     time.Time `json:"date"`
	Existing []int     `json:"existing_hours"`
	Missing  []int     `json:"missing_hours"`
}

// Complete reports whether no hour is missing on this date.
func (d DateStatus) Complete() bool {
	return len(d.Missing) == 0
}

// Gap is one absent (date, hour) slot.
type Gap struct {
	Date time.Time `json:"date"`
	Hour int       `json:"hour"`
}

// Report is the outcome of a completeness check over one run.
type Report struct {
	Dates       []DateStatus `json:"dates"`
	AllComplete bool         `json:"all_complete"`
}

// Gaps flattens the report into (date, hour) pairs in chronological order.
func (r Report) Gaps() []Gap {
	var gaps []Gap
	for _, d := range r.Dates {
		for _, h := range d.Missing {
			gaps = append(gaps, Gap{Date: d.Date, Hour: h})
		}
	}
	return gaps
}

// MissingCount returns the total number of absent slots.
func (r Report) MissingCount() int {
	n := 0
	for _, d := range r.Dates {
		n += len(d.Missing)
	}
	return n
}

// Options tunes the checker.
type Options struct {
	// Hours is the canonical hour set; DefaultHours when empty.
	Hours []int
	// IncludeEmptyDates also reports dates between the first and last observed date
	// that have no snapshot at all.
	IncludeEmptyDates bool
}

// Check computes, per calendar date, which canonical hours are present and absent.
// An empty index is vacuously complete.
func Check(ix *snapshot.Index, opts Options) Report {
	hours := canonicalHours(opts.Hours)
	report := Report{AllComplete: true}
	if ix == nil || ix.Len() == 0 {
		return report
	}

	dates := ix.Dates()
	if opts.IncludeEmptyDates {
		dates = fillDateRange(dates)
	}

	for _, d := range dates {
		present := ix.Hours(d)
		status := DateStatus{Date: d, Existing: []int{}, Missing: []int{}}
		for _, h := range hours {
			if slices.Contains(present, h) {
				status.Existing = append(status.Existing, h)
			} else {
				status.Missing = append(status.Missing, h)
			}
		}
		if !status.Complete() {
			report.AllComplete = false
		}
		report.Dates = append(report.Dates, status)
	}
	return report
}

func canonicalHours(hours []int) []int {
	if len(hours) == 0 {
		hours = DefaultHours
	}
	out := slices.Clone(hours)
	slices.Sort(out)
	return slices.Compact(out)
}

func fillDateRange(dates []time.Time) []time.Time {
	if len(dates) < 2 {
		return dates
	}
	var out []time.Time
	for d := dates[0]; !d.After(dates[len(dates)-1]); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

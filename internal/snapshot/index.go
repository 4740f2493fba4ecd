package snapshot

import (
	"slices"
	"time"
)

// Index groups a run's snapshots by calendar date and hour. It holds references only.
type Index struct {
	sorted []*Snapshot
	byDate map[time.Time]map[int][]*Snapshot
	dates  []time.Time
}

// NewIndex builds an index over snaps. The input slice is not modified.
func NewIndex(snaps []*Snapshot) *Index {
	ix := &Index{
		sorted: slices.Clone(snaps),
		byDate: make(map[time.Time]map[int][]*Snapshot),
	}
	SortChronological(ix.sorted)

	for _, s := range ix.sorted {
		d := s.ID.Date
		hours, ok := ix.byDate[d]
		if !ok {
			hours = make(map[int][]*Snapshot)
			ix.byDate[d] = hours
			ix.dates = append(ix.dates, d)
		}
		hours[s.ID.Hour] = append(hours[s.ID.Hour], s)
	}
	slices.SortFunc(ix.dates, func(a, b time.Time) int { return a.Compare(b) })
	return ix
}

// Len returns the number of indexed snapshots.
func (ix *Index) Len() int {
	return len(ix.sorted)
}

// Sorted returns the snapshots in chronological order.
func (ix *Index) Sorted() []*Snapshot {
	return ix.sorted
}

// Dates returns the distinct calendar dates in ascending order.
func (ix *Index) Dates() []time.Time {
	return ix.dates
}

// Hours returns the distinct hours present on date, ascending.
func (ix *Index) Hours(date time.Time) []int {
	hours := ix.byDate[DateOf(date)]
	out := make([]int, 0, len(hours))
	for h := range hours {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// At returns the snapshots at (date, hour).
func (ix *Index) At(date time.Time, hour int) []*Snapshot {
	return ix.byDate[DateOf(date)][hour]
}

// OnDate returns every snapshot of date in chronological order.
func (ix *Index) OnDate(date time.Time) []*Snapshot {
	var out []*Snapshot
	for _, h := range ix.Hours(date) {
		out = append(out, ix.byDate[DateOf(date)][h]...)
	}
	return out
}

// Projects returns the distinct project names, sorted.
func (ix *Index) Projects() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range ix.sorted {
		if !seen[s.ID.Project] {
			seen[s.ID.Project] = true
			out = append(out, s.ID.Project)
		}
	}
	slices.Sort(out)
	return out
}

// GroupByProject splits snaps by project, each group in chronological order.
func GroupByProject(snaps []*Snapshot) map[string][]*Snapshot {
	groups := make(map[string][]*Snapshot)
	for _, s := range snaps {
		groups[s.ID.Project] = append(groups[s.ID.Project], s)
	}
	for _, g := range groups {
		SortChronological(g)
	}
	return groups
}

package snapshot

import (
	"cmp"
	"slices"
	"time"
)

// MissingPeriod is a maximal run of consecutive snapshots in which the listed points
// have at least one blank slot (or no row at all).
type MissingPeriod struct {
	Start   time.Time   `json:"start"`
	End     time.Time   `json:"end"`
	Points  []string    `json:"points"`
	Missing []time.Time `json:"missing"`

	// Before and After are the nearest fully valid timestamps around the run; nil at sequence edges.
	Before *time.Time `json:"before,omitempty"`
	After  *time.Time `json:"after,omitempty"`

	// StartIndex, EndIndex, BeforeIndex and AfterIndex are positions in the sequence the
	// period was detected on; BeforeIndex/AfterIndex are -1 when absent.
	StartIndex  int `json:"-"`
	EndIndex    int `json:"-"`
	BeforeIndex int `json:"-"`
	AfterIndex  int `json:"-"`
}

// Contains reports whether sequence position i falls inside the period.
func (p MissingPeriod) Contains(i int) bool {
	return i >= p.StartIndex && i <= p.EndIndex
}

// Position returns how far t sits between Before and After, in [0,1]. ok is false when
// either bound is missing.
func (p MissingPeriod) Position(t time.Time) (float64, bool) {
	if p.Before == nil || p.After == nil {
		return 0, false
	}
	span := p.After.Sub(*p.Before)
	if span <= 0 {
		return 0, false
	}
	return float64(t.Sub(*p.Before)) / float64(span), true
}

// DetectMissingPeriods scans a chronologically sorted sequence and returns the periods
// per point, merged across points that share the same run boundaries.
func DetectMissingPeriods(seq []*Snapshot) []MissingPeriod {
	byPoint := DetectMissingPeriodsByPoint(seq)

	type span struct{ start, end int }
	merged := make(map[span]*MissingPeriod)
	var order []span

	points := make([]string, 0, len(byPoint))
	for name := range byPoint {
		points = append(points, name)
	}
	slices.Sort(points)

	for _, name := range points {
		for _, p := range byPoint[name] {
			k := span{p.StartIndex, p.EndIndex}
			if m, ok := merged[k]; ok {
				m.Points = append(m.Points, name)
				continue
			}
			cp := p
			cp.Points = []string{name}
			merged[k] = &cp
			order = append(order, k)
		}
	}

	out := make([]MissingPeriod, 0, len(order))
	for _, k := range order {
		out = append(out, *merged[k])
	}
	slices.SortStableFunc(out, func(a, b MissingPeriod) int {
		if c := cmp.Compare(a.StartIndex, b.StartIndex); c != 0 {
			return c
		}
		return cmp.Compare(a.EndIndex, b.EndIndex)
	})
	return out
}

// DetectMissingPeriodsByPoint returns, per point name, its missing runs in sequence order.
func DetectMissingPeriodsByPoint(seq []*Snapshot) map[string][]MissingPeriod {
	names := pointUniverse(seq)
	out := make(map[string][]MissingPeriod)

	for _, name := range names {
		start := -1
		for i := 0; i <= len(seq); i++ {
			missing := false
			if i < len(seq) {
				r := seq[i].Row(name)
				missing = r == nil || r.BlankCount() > 0
			}
			switch {
			case missing && start < 0:
				start = i
			case !missing && start >= 0:
				out[name] = append(out[name], newPeriod(seq, name, start, i-1))
				start = -1
			}
		}
	}
	return out
}

func newPeriod(seq []*Snapshot, name string, start, end int) MissingPeriod {
	p := MissingPeriod{
		Start:       seq[start].Time(),
		End:         seq[end].Time(),
		Points:      []string{name},
		StartIndex:  start,
		EndIndex:    end,
		BeforeIndex: -1,
		AfterIndex:  -1,
	}
	for i := start; i <= end; i++ {
		p.Missing = append(p.Missing, seq[i].Time())
	}
	if start > 0 {
		t := seq[start-1].Time()
		p.Before = &t
		p.BeforeIndex = start - 1
	}
	if end+1 < len(seq) {
		t := seq[end+1].Time()
		p.After = &t
		p.AfterIndex = end + 1
	}
	return p
}

// pointUniverse returns every point name seen in seq, ordered by first position then name.
func pointUniverse(seq []*Snapshot) []string {
	pos := make(map[string]int)
	for _, s := range seq {
		for _, r := range s.Rows {
			if p, ok := pos[r.Name]; !ok || r.Position < p {
				pos[r.Name] = r.Position
			}
		}
	}
	names := make([]string, 0, len(pos))
	for n := range pos {
		names = append(names, n)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(pos[a], pos[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return names
}

// PointOrder returns the deterministic point ordering used for adjacent-point lookups.
func PointOrder(seq []*Snapshot) []string {
	return pointUniverse(seq)
}

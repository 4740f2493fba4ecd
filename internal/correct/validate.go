package correct

import (
	"math"
	"sort"

	"monfill/internal/snapshot"
	"monfill/internal/stats"
)

// InvalidGroup summarizes the invariant violations of one point on one axis.
type InvalidGroup struct {
	Point        string  `json:"point"`
	Axis         string  `json:"axis"`
	Violations   int     `json:"violations"`
	MaxDeviation float64 `json:"max_deviation"`
	FirstFile    string  `json:"first_file"`
}

// Drift is an XmR signal raised on the change series of one point and axis.
type Drift struct {
	Point  string       `json:"point"`
	Axis   string       `json:"axis"`
	Signal stats.Signal `json:"signal"`
}

// Validation is the read-only consistency report of a processed sequence.
type Validation struct {
	Checked int            `json:"checked"`
	Invalid []InvalidGroup `json:"invalid"`
	Drifts  []Drift        `json:"drifts,omitempty"`
}

// Valid reports whether every checked pair satisfied the invariant.
func (v Validation) Valid() bool {
	return len(v.Invalid) == 0
}

// Validate checks cumulative[t] = cumulative[t-1] + change[t] within tolerance for every
// adjacent pair without modifying seq. seq must be sorted chronologically.
func (c *Corrector) Validate(seq []*snapshot.Snapshot) Validation {
	var v Validation
	groups := make(map[string]*InvalidGroup)
	type series struct {
		values []float64
		files  []string
	}
	changes := make(map[string]*series)
	var order []string

	groupKey := func(point string, axis snapshot.Axis) string {
		return point + "|" + string(axis)
	}

	for i, cur := range seq {
		for _, row := range cur.Rows {
			for _, pair := range c.pairs {
				key := groupKey(row.Name, pair.Axis)
				if ch, ok := row.Get(pair.ChangeIdx); ok {
					s, seen := changes[key]
					if !seen {
						s = &series{}
						changes[key] = s
						order = append(order, key)
					}
					s.values = append(s.values, ch)
					s.files = append(s.files, cur.FileName())
				}

				if i == 0 {
					continue
				}
				prevRow := seq[i-1].Row(row.Name)
				if prevRow == nil {
					continue
				}
				prevCum, okP := prevRow.Get(pair.CumulIdx)
				cum, okC := row.Get(pair.CumulIdx)
				ch, okCh := row.Get(pair.ChangeIdx)
				if !okP || !okC || !okCh {
					continue
				}
				v.Checked++

				dev := math.Abs(cum - (prevCum + ch))
				if dev <= c.opts.Tolerance {
					continue
				}
				g, seen := groups[key]
				if !seen {
					g = &InvalidGroup{Point: row.Name, Axis: string(pair.Axis), FirstFile: cur.FileName()}
					groups[key] = g
				}
				g.Violations++
				g.MaxDeviation = math.Max(g.MaxDeviation, dev)
			}
		}
	}

	for _, g := range groups {
		v.Invalid = append(v.Invalid, *g)
	}
	sort.Slice(v.Invalid, func(i, j int) bool {
		if v.Invalid[i].Point != v.Invalid[j].Point {
			return v.Invalid[i].Point < v.Invalid[j].Point
		}
		return v.Invalid[i].Axis < v.Invalid[j].Axis
	})

	for _, key := range order {
		s := changes[key]
		if len(s.values) < 3 {
			continue
		}
		res := stats.CalculateXmR(s.values, s.files)
		if res.AmR == 0 {
			continue
		}
		g := splitKey(key)
		for _, sig := range res.Signals {
			v.Drifts = append(v.Drifts, Drift{Point: g[0], Axis: g[1], Signal: sig})
		}
	}

	return v
}

func splitKey(key string) [2]string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '|' {
			return [2]string{key[:i], key[i+1:]}
		}
	}
	return [2]string{key, ""}
}

package audit

import (
	"fmt"
	"strconv"
)

// Kind classifies what a correction changed.
type Kind string

const (
	// CumulativeRecomputed means the cumulative value was rebuilt as previous + change.
	CumulativeRecomputed Kind = "cumulative_recomputed"
	// CumulativeBlended means the recomputation was too far off and the step was halved.
	CumulativeBlended Kind = "cumulative_blended"
	// ChangeOverwritten means the change value was replaced by the cumulative delta.
	ChangeOverwritten Kind = "change_overwritten"
)

// Correction is one append-only audit entry describing a cell-level repair.
type Correction struct {
	RunID     string   `json:"run_id,omitempty"`
	Project   string   `json:"project"`
	File      string   `json:"file"`
	Point     string   `json:"point"`
	Axis      string   `json:"axis"`
	Slot      string   `json:"slot"`
	Position  int      `json:"position"`
	Kind      Kind     `json:"kind"`
	Original  *float64 `json:"original"`
	Corrected float64  `json:"corrected"`
	Reason    string   `json:"reason"`
}

// OriginalString renders the original value, or "absent".
func (c Correction) OriginalString() string {
	if c.Original == nil {
		return "absent"
	}
	return strconv.FormatFloat(*c.Original, 'f', 4, 64)
}

func (c Correction) String() string {
	return fmt.Sprintf("%s %s/%s (row %d) %s: %s -> %.4f (%s)",
		c.File, c.Point, c.Slot, c.Position, c.Kind, c.OriginalString(), c.Corrected, c.Reason)
}

// Sink persists corrections of one run.
type Sink interface {
	Write(runID string, records []Correction) error
}

// Summary counts corrections per kind.
func Summary(records []Correction) map[Kind]int {
	out := make(map[Kind]int)
	for _, r := range records {
		out[r.Kind]++
	}
	return out
}

// Float returns a pointer to v, for the Original field.
func Float(v float64) *float64 {
	return &v
}

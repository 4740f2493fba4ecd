package snapshot

import (
	"fmt"
	"strings"
)

// Band is the semantic group a slot belongs to.
type Band string

const (
	// Change is the current-period change of one axis.
	Change Band = "change"
	// Cumulative is the running total of all period changes of one axis.
	Cumulative Band = "cumulative"
	// Daily is the per-day change rate of one axis.
	Daily Band = "daily"
)

// Axis is the spatial axis a slot measures.
type Axis string

const (
	AxisX Axis = "X"
	AxisY Axis = "Y"
	AxisZ Axis = "Z"
)

// SlotSpec describes one numeric column of the measurement table.
type SlotSpec struct {
	Band    Band    `json:"band"`
	Axis    Axis    `json:"axis"`
	Default float64 `json:"default,omitempty"`
}

// Name returns a short label such as "cumulative-X".
func (s SlotSpec) Name() string {
	return fmt.Sprintf("%s-%s", s.Band, s.Axis)
}

// Layout is the configured schema of every snapshot in a run: where the table lives
// in the workbook and which band/axis each slot position carries.
type Layout struct {
	Sheet            string     `json:"sheet,omitempty"`
	NameColumn       string     `json:"name_column"`
	FirstValueColumn string     `json:"first_value_column"`
	FirstRow         int        `json:"first_row"`
	RowCount         int        `json:"row_count"`
	Slots            []SlotSpec `json:"slots"`
}

// AxisPair binds the change slot and the cumulative slot of the same axis.
type AxisPair struct {
	Axis       Axis
	ChangeIdx  int
	CumulIdx   int
	ChangeName string
	CumulName  string
}

// DefaultLayout returns the six-slot schema: change X/Y/Z followed by cumulative X/Y/Z.
func DefaultLayout() Layout {
	return Layout{
		NameColumn:       "A",
		FirstValueColumn: "B",
		FirstRow:         2,
		RowCount:         60,
		Slots: []SlotSpec{
			{Band: Change, Axis: AxisX},
			{Band: Change, Axis: AxisY},
			{Band: Change, Axis: AxisZ},
			{Band: Cumulative, Axis: AxisX},
			{Band: Cumulative, Axis: AxisY},
			{Band: Cumulative, Axis: AxisZ},
		},
	}
}

// Width returns the number of slots per row.
func (l Layout) Width() int {
	return len(l.Slots)
}

// SlotsInBand returns the slot positions that belong to band, in layout order.
func (l Layout) SlotsInBand(band Band) []int {
	var idx []int
	for i, s := range l.Slots {
		if s.Band == band {
			idx = append(idx, i)
		}
	}
	return idx
}

// AxisPairs returns every axis that has both a change and a cumulative slot.
func (l Layout) AxisPairs() []AxisPair {
	changeByAxis := make(map[Axis]int)
	for i, s := range l.Slots {
		if s.Band == Change {
			if _, seen := changeByAxis[s.Axis]; !seen {
				changeByAxis[s.Axis] = i
			}
		}
	}

	var pairs []AxisPair
	for i, s := range l.Slots {
		if s.Band != Cumulative {
			continue
		}
		ci, ok := changeByAxis[s.Axis]
		if !ok {
			continue
		}
		pairs = append(pairs, AxisPair{
			Axis:       s.Axis,
			ChangeIdx:  ci,
			CumulIdx:   i,
			ChangeName: l.Slots[ci].Name(),
			CumulName:  s.Name(),
		})
	}
	return pairs
}

// Validate checks the structural consistency of the layout.
func (l Layout) Validate() error {
	if strings.TrimSpace(l.NameColumn) == "" {
		return fmt.Errorf("layout: name column is required")
	}
	if strings.TrimSpace(l.FirstValueColumn) == "" {
		return fmt.Errorf("layout: first value column is required")
	}
	if l.FirstRow < 1 {
		return fmt.Errorf("layout: first row must be >= 1, got %d", l.FirstRow)
	}
	if l.RowCount < 1 {
		return fmt.Errorf("layout: row count must be >= 1, got %d", l.RowCount)
	}
	if len(l.Slots) == 0 {
		return fmt.Errorf("layout: at least one slot is required")
	}
	seen := make(map[string]bool)
	for i, s := range l.Slots {
		switch s.Band {
		case Change, Cumulative, Daily:
		default:
			return fmt.Errorf("layout: slot %d has unknown band %q", i, s.Band)
		}
		switch s.Axis {
		case AxisX, AxisY, AxisZ:
		default:
			return fmt.Errorf("layout: slot %d has unknown axis %q", i, s.Axis)
		}
		if seen[s.Name()] {
			return fmt.Errorf("layout: duplicate slot %s", s.Name())
		}
		seen[s.Name()] = true
	}
	if len(l.SlotsInBand(Cumulative)) > 0 && len(l.AxisPairs()) == 0 {
		return fmt.Errorf("layout: cumulative slots have no matching change slot")
	}
	return nil
}

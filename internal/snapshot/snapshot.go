package snapshot

import (
	"cmp"
	"slices"
	"time"
)

// Provenance distinguishes snapshots read from disk from synthesized placeholders.
type Provenance string

const (
	Original   Provenance = "original"
	Supplement Provenance = "supplement"
)

// Slot is one optional numeric field of a MeasurementRow.
type Slot struct {
	Value float64
	Set   bool
}

// Row is one monitored point within a Snapshot.
type Row struct {
	// Name is the point identifier, unique within a snapshot.
	Name string
	// Position is the 1-based index of the row within the layout region; the first
	// table row (Layout.FirstRow on the sheet) is position 1.
	Position int
	Slots    []Slot
}

// NewRow creates a row with width blank slots.
func NewRow(name string, position, width int) *Row {
	return &Row{
		Name:     name,
		Position: position,
		Slots:    make([]Slot, width),
	}
}

// Get returns the value at slot i and whether it is present.
func (r *Row) Get(i int) (float64, bool) {
	if i < 0 || i >= len(r.Slots) {
		return 0, false
	}
	s := r.Slots[i]
	return s.Value, s.Set
}

// Set stores v at slot i.
func (r *Row) Set(i int, v float64) {
	r.Slots[i] = Slot{Value: v, Set: true}
}

// Clear blanks slot i.
func (r *Row) Clear(i int) {
	r.Slots[i] = Slot{}
}

// IsBlank reports whether slot i holds no value.
func (r *Row) IsBlank(i int) bool {
	return i >= 0 && i < len(r.Slots) && !r.Slots[i].Set
}

// BlankCount returns the number of blank slots in the row.
func (r *Row) BlankCount() int {
	n := 0
	for _, s := range r.Slots {
		if !s.Set {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	return &Row{
		Name:     r.Name,
		Position: r.Position,
		Slots:    slices.Clone(r.Slots),
	}
}

// AdjustmentParameters configures the jitter applied to a supplement snapshot.
type AdjustmentParameters struct {
	// Range is the maximum relative perturbation (0.05 = +/-5%).
	Range float64 `json:"range"`
	// Seed makes the perturbation reproducible.
	Seed int64 `json:"seed"`
	// Minimum is the smallest absolute perturbation applied to a non-zero draw.
	Minimum float64 `json:"minimum"`
	// CorrelationWeight in [0,1] is the share of the perturbation common to all axes of a point.
	CorrelationWeight float64 `json:"correlation_weight"`
}

// Snapshot is one observation event of one project.
type Snapshot struct {
	ID         Identity
	Path       string
	Rows       []*Row
	Provenance Provenance

	// Source and Adjust are only set on supplements.
	Source *Snapshot
	Adjust *AdjustmentParameters

	byName map[string]*Row
}

// New creates an original snapshot with no rows.
func New(id Identity, path string) *Snapshot {
	return &Snapshot{
		ID:         id,
		Path:       path,
		Provenance: Original,
	}
}

// Time returns the observation timestamp (date + hour).
func (s *Snapshot) Time() time.Time {
	return s.ID.Time()
}

// IsSupplement reports whether the snapshot was synthesized.
func (s *Snapshot) IsSupplement() bool {
	return s.Provenance == Supplement
}

// FileName returns the canonical file name, falling back to the base of Path.
func (s *Snapshot) FileName() string {
	if s.Path != "" {
		return baseName(s.Path)
	}
	return GenerateName(s.ID, ".xlsx")
}

// AddRow appends a row and indexes it by name.
func (s *Snapshot) AddRow(r *Row) {
	s.Rows = append(s.Rows, r)
	if s.byName != nil {
		s.byName[r.Name] = r
	}
}

// Row returns the row for point name, or nil.
func (s *Snapshot) Row(name string) *Row {
	if s.byName == nil || len(s.byName) != len(s.Rows) {
		s.reindex()
	}
	return s.byName[name]
}

func (s *Snapshot) reindex() {
	s.byName = make(map[string]*Row, len(s.Rows))
	for _, r := range s.Rows {
		s.byName[r.Name] = r
	}
}

// PointNames returns the point names in row order.
func (s *Snapshot) PointNames() []string {
	names := make([]string, len(s.Rows))
	for i, r := range s.Rows {
		names[i] = r.Name
	}
	return names
}

// BlankCount returns the number of blank slots across all rows.
func (s *Snapshot) BlankCount() int {
	n := 0
	for _, r := range s.Rows {
		n += r.BlankCount()
	}
	return n
}

// CloneAs returns a structural copy of s under a new identity, marked as a supplement of s.
func (s *Snapshot) CloneAs(id Identity, params AdjustmentParameters) *Snapshot {
	c := &Snapshot{
		ID:         id,
		Provenance: Supplement,
		Source:     s,
		Adjust:     &params,
		Rows:       make([]*Row, len(s.Rows)),
	}
	for i, r := range s.Rows {
		c.Rows[i] = r.Clone()
	}
	return c
}

// SortChronological orders snapshots by timestamp, then project, then originals before supplements.
func SortChronological(snaps []*Snapshot) {
	slices.SortStableFunc(snaps, func(a, b *Snapshot) int {
		if c := a.Time().Compare(b.Time()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ID.Project, b.ID.Project); c != 0 {
			return c
		}
		return cmp.Compare(provenanceRank(a.Provenance), provenanceRank(b.Provenance))
	})
}

func provenanceRank(p Provenance) int {
	if p == Original {
		return 0
	}
	return 1
}

package impute

import (
	"fmt"
	"strings"

	"monfill/internal/snapshot"

	"gonum.org/v1/gonum/stat"
)

// Strategy names.
const (
	NeighborAverage = "neighbor-average"
	SameDayAverage  = "same-day-average"
	NearestNeighbor = "nearest-neighbor"
	HistoricalMean  = "historical-mean"
	AdjacentPoint   = "adjacent-point"
	SchemaDefault   = "schema-default"
	LinearInTime    = "linear"
)

// Context is the read-only view a strategy sees for one blank slot.
type Context struct {
	Seq    []*snapshot.Snapshot
	Index  int
	Point  string
	Slot   int
	Layout snapshot.Layout
	Cache  *ValueCache

	// Periods holds the missing runs of Point, detected before the scan.
	Periods []snapshot.MissingPeriod
	// Order is the deterministic point ordering used by the adjacent-point strategy.
	Order    []string
	orderPos map[string]int

	scanned   bool
	before    float64
	after     float64
	hasBefore bool
	hasAfter  bool
}

// Strategy is one step of the imputation fallback chain.
type Strategy struct {
	Name  string
	Apply func(*Context) (float64, bool)
}

// DefaultChain returns the six-step fallback chain in order.
func DefaultChain() []Strategy {
	return []Strategy{
		{Name: NeighborAverage, Apply: neighborAverage},
		{Name: SameDayAverage, Apply: sameDayAverage},
		{Name: NearestNeighbor, Apply: nearestNeighbor},
		{Name: HistoricalMean, Apply: historicalMean},
		{Name: AdjacentPoint, Apply: adjacentPoint},
		{Name: SchemaDefault, Apply: schemaDefault},
	}
}

var registry = map[string]func(*Context) (float64, bool){
	NeighborAverage: neighborAverage,
	SameDayAverage:  sameDayAverage,
	NearestNeighbor: nearestNeighbor,
	HistoricalMean:  historicalMean,
	AdjacentPoint:   adjacentPoint,
	SchemaDefault:   schemaDefault,
	LinearInTime:    linearInTime,
}

// ChainByNames builds a chain from strategy names. An empty list yields DefaultChain.
func ChainByNames(names []string) ([]Strategy, error) {
	if len(names) == 0 {
		return DefaultChain(), nil
	}
	chain := make([]Strategy, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		fn, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown imputation strategy %q", name)
		}
		chain = append(chain, Strategy{Name: name, Apply: fn})
	}
	return chain, nil
}

// value returns the currently materialized value of (Point, Slot) in snapshot j.
func (c *Context) value(j int) (float64, bool) {
	r := c.Seq[j].Row(c.Point)
	if r == nil {
		return 0, false
	}
	return r.Get(c.Slot)
}

func (c *Context) scanNeighbors() {
	if c.scanned {
		return
	}
	c.scanned = true
	for j := c.Index - 1; j >= 0; j-- {
		if v, ok := c.value(j); ok {
			c.before, c.hasBefore = v, true
			break
		}
	}
	for j := c.Index + 1; j < len(c.Seq); j++ {
		if v, ok := c.value(j); ok {
			c.after, c.hasAfter = v, true
			break
		}
	}
}

// Neighbors returns the nearest earlier and later values of (Point, Slot).
func (c *Context) Neighbors() (before, after float64, hasBefore, hasAfter bool) {
	c.scanNeighbors()
	return c.before, c.after, c.hasBefore, c.hasAfter
}

func neighborAverage(c *Context) (float64, bool) {
	b, a, hb, ha := c.Neighbors()
	if hb && ha {
		return (b + a) / 2, true
	}
	return 0, false
}

func sameDayAverage(c *Context) (float64, bool) {
	date := c.Seq[c.Index].ID.Date
	var vals []float64
	for j := c.Index - 1; j >= 0 && c.Seq[j].ID.Date.Equal(date); j-- {
		if v, ok := c.value(j); ok {
			vals = append(vals, v)
		}
	}
	for j := c.Index + 1; j < len(c.Seq) && c.Seq[j].ID.Date.Equal(date); j++ {
		if v, ok := c.value(j); ok {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	return stat.Mean(vals, nil), true
}

func nearestNeighbor(c *Context) (float64, bool) {
	b, a, hb, ha := c.Neighbors()
	switch {
	case hb:
		return b, true
	case ha:
		return a, true
	}
	return 0, false
}

func historicalMean(c *Context) (float64, bool) {
	if c.Cache == nil {
		return 0, false
	}
	return c.Cache.Mean(c.Point, c.Slot)
}

func adjacentPoint(c *Context) (float64, bool) {
	if c.Cache == nil || len(c.Order) == 0 {
		return 0, false
	}
	if c.orderPos == nil {
		c.orderPos = make(map[string]int, len(c.Order))
		for i, n := range c.Order {
			c.orderPos[n] = i
		}
	}
	pos, ok := c.orderPos[c.Point]
	if !ok {
		return 0, false
	}

	var vals []float64
	if pos > 0 {
		vals = append(vals, c.Cache.Values(c.Order[pos-1], c.Slot)...)
	}
	if pos+1 < len(c.Order) {
		vals = append(vals, c.Cache.Values(c.Order[pos+1], c.Slot)...)
	}
	if len(vals) == 0 {
		return 0, false
	}
	return stat.Mean(vals, nil), true
}

func schemaDefault(c *Context) (float64, bool) {
	return slotDefault(c.Layout, c.Slot), true
}

// linearInTime interpolates between the valid snapshots bounding the point's missing run,
// weighted by elapsed time.
func linearInTime(c *Context) (float64, bool) {
	for _, p := range c.Periods {
		if !p.Contains(c.Index) {
			continue
		}
		if p.BeforeIndex < 0 || p.AfterIndex < 0 {
			return 0, false
		}
		b, okB := c.value(p.BeforeIndex)
		a, okA := c.value(p.AfterIndex)
		if !okB || !okA {
			return 0, false
		}
		w, ok := p.Position(c.Seq[c.Index].Time())
		if !ok {
			return 0, false
		}
		return b + w*(a-b), true
	}
	return 0, false
}

// slotDefault is the fallback constant of a slot: zero for change bands, the configured
// default otherwise.
func slotDefault(layout snapshot.Layout, slot int) float64 {
	if slot < 0 || slot >= len(layout.Slots) {
		return 0
	}
	spec := layout.Slots[slot]
	if spec.Band == snapshot.Change {
		return 0
	}
	return spec.Default
}

package impute

import (
	"monfill/internal/snapshot"

	"gonum.org/v1/gonum/stat"
)

type cacheKey struct {
	point string
	slot  int
}

// ValueCache holds every observed value per (point, slot) for one run, plus the
// processing markers of the scan. It is built once and read many times.
type ValueCache struct {
	values    map[cacheKey][]float64
	means     map[cacheKey]float64
	processed map[string]bool
}

// NewValueCache collects the non-blank values of the original snapshots in seq. When seq
// holds no originals, every snapshot contributes.
func NewValueCache(seq []*snapshot.Snapshot) *ValueCache {
	c := &ValueCache{
		values:    make(map[cacheKey][]float64),
		means:     make(map[cacheKey]float64),
		processed: make(map[string]bool),
	}

	hasOriginal := false
	for _, s := range seq {
		if !s.IsSupplement() {
			hasOriginal = true
			break
		}
	}

	for _, s := range seq {
		if hasOriginal && s.IsSupplement() {
			continue
		}
		for _, r := range s.Rows {
			for i, slot := range r.Slots {
				if !slot.Set {
					continue
				}
				k := cacheKey{r.Name, i}
				c.values[k] = append(c.values[k], slot.Value)
			}
		}
	}

	for k, vals := range c.values {
		c.means[k] = stat.Mean(vals, nil)
	}
	return c
}

// Values returns the observed history of (point, slot).
func (c *ValueCache) Values(point string, slot int) []float64 {
	return c.values[cacheKey{point, slot}]
}

// Mean returns the historical average of (point, slot).
func (c *ValueCache) Mean(point string, slot int) (float64, bool) {
	m, ok := c.means[cacheKey{point, slot}]
	return m, ok
}

// Len returns the number of (point, slot) keys with history.
func (c *ValueCache) Len() int {
	return len(c.values)
}

// MarkProcessed records that the scan has visited s.
func (c *ValueCache) MarkProcessed(s *snapshot.Snapshot) {
	c.processed[processedKey(s)] = true
}

// IsProcessed reports whether the scan has visited s.
func (c *ValueCache) IsProcessed(s *snapshot.Snapshot) bool {
	return c.processed[processedKey(s)]
}

func processedKey(s *snapshot.Snapshot) string {
	return s.ID.Key() + "|" + string(s.Provenance)
}

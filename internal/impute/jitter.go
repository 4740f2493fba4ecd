package impute

import (
	"math"
	"math/rand"

	"monfill/internal/snapshot"
)

// Jitterer perturbs the values of a supplement snapshot with a generator seeded from its
// AdjustmentParameters, so the same supplement always receives the same perturbation.
type Jitterer struct {
	params snapshot.AdjustmentParameters
	rng    *rand.Rand
}

// NewJitterer creates a Jitterer for params.
func NewJitterer(params snapshot.AdjustmentParameters) *Jitterer {
	return &Jitterer{
		params: params,
		rng:    rand.New(rand.NewSource(params.Seed)),
	}
}

// Apply perturbs every non-blank slot of s and returns the number of slots changed.
// Each row draws one shared component and one component per slot; CorrelationWeight
// blends them so the axes of a point move together.
func (j *Jitterer) Apply(s *snapshot.Snapshot) int {
	w := math.Min(math.Max(j.params.CorrelationWeight, 0), 1)
	changed := 0

	for _, r := range s.Rows {
		shared := j.draw()
		for i := range r.Slots {
			// Draw even for blanks to keep the stream aligned with slot positions.
			own := j.draw()
			if !r.Slots[i].Set {
				continue
			}
			u := w*shared + (1-w)*own
			v := r.Slots[i].Value
			delta := v * j.params.Range * u
			if math.Abs(delta) < j.params.Minimum {
				delta = math.Copysign(j.params.Minimum, u)
			}
			if delta == 0 {
				continue
			}
			r.Set(i, v+delta)
			changed++
		}
	}
	return changed
}

// draw returns a uniform value in [-1, 1).
func (j *Jitterer) draw() float64 {
	return j.rng.Float64()*2 - 1
}

// Jitter applies the supplement's own adjustment parameters. Originals and supplements
// without parameters are left untouched.
func Jitter(s *snapshot.Snapshot) int {
	if !s.IsSupplement() || s.Adjust == nil {
		return 0
	}
	return NewJitterer(*s.Adjust).Apply(s)
}

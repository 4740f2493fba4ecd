package impute

import (
	"fmt"
	"math"
	"slices"

	"monfill/internal/snapshot"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// IntegrityError reports a slot that is not a finite number after imputation.
// It is fatal for the run.
type IntegrityError struct {
	File  string
	Point string
	Slot  string
	Value float64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("non-finite value %v in %s point %s slot %s", e.Value, e.File, e.Point, e.Slot)
}

// Options configures an Engine.
type Options struct {
	// Chain is the fallback strategy list; DefaultChain when nil.
	Chain []Strategy
	// Workers bounds the parallel default-fill sweep; 4 when <= 0.
	Workers int
	// DisableJitter skips the supplement perturbation pass.
	DisableJitter bool
}

// Result summarizes one imputation run.
type Result struct {
	Filled     map[string]int           `json:"filled_by_strategy"`
	Total      int                      `json:"total_filled"`
	Forced     int                      `json:"forced_fills"`
	Jittered   int                      `json:"jittered_slots"`
	Snapshots  int                      `json:"snapshots"`
	Supplement int                      `json:"supplements"`
	Periods    []snapshot.MissingPeriod `json:"missing_periods"`
}

// Engine fills every blank slot of a chronologically ordered snapshot sequence.
type Engine struct {
	layout  snapshot.Layout
	chain   []Strategy
	workers int
	jitter  bool
}

// NewEngine creates an Engine for layout.
func NewEngine(layout snapshot.Layout, opts Options) *Engine {
	chain := opts.Chain
	if len(chain) == 0 {
		chain = DefaultChain()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		layout:  layout,
		chain:   chain,
		workers: workers,
		jitter:  !opts.DisableJitter,
	}
}

// Chain returns the strategy names in order.
func (e *Engine) Chain() []string {
	names := make([]string, len(e.chain))
	for i, s := range e.chain {
		names[i] = s.Name
	}
	return names
}

// Run sorts seq chronologically in place and fills it in a single sequential pass, so
// later snapshots see values imputed for earlier ones. Supplements are jittered right
// after their own blanks are filled. A parallel sweep then forces any remaining blank to
// its schema default and rejects non-finite values.
func (e *Engine) Run(seq []*snapshot.Snapshot) (Result, error) {
	res := Result{Filled: make(map[string]int)}
	if len(seq) == 0 {
		return res, nil
	}

	// 1. Order and shape
	snapshot.SortChronological(seq)
	width := e.layout.Width()
	for _, s := range seq {
		for _, r := range s.Rows {
			if len(r.Slots) < width {
				r.Slots = append(r.Slots, make([]snapshot.Slot, width-len(r.Slots))...)
			}
		}
	}

	// 2. Run-scoped state
	cache := NewValueCache(seq)
	byPoint := snapshot.DetectMissingPeriodsByPoint(seq)
	res.Periods = snapshot.DetectMissingPeriods(seq)
	order := snapshot.PointOrder(seq)

	log.Debug().
		Int("snapshots", len(seq)).
		Int("cacheKeys", cache.Len()).
		Int("missingPeriods", len(res.Periods)).
		Strs("chain", e.Chain()).
		Msg("Imputation scan starting")

	// 3. Sequential scan
	for i, s := range seq {
		res.Snapshots++
		filled := 0
		for _, r := range s.Rows {
			for slot := 0; slot < width; slot++ {
				if !r.IsBlank(slot) {
					continue
				}
				ctx := &Context{
					Seq:     seq,
					Index:   i,
					Point:   r.Name,
					Slot:    slot,
					Layout:  e.layout,
					Cache:   cache,
					Periods: byPoint[r.Name],
					Order:   order,
				}
				if name, v, ok := e.apply(ctx); ok {
					r.Set(slot, v)
					res.Filled[name]++
					res.Total++
					filled++
				}
			}
		}

		if s.IsSupplement() {
			res.Supplement++
			if e.jitter {
				res.Jittered += Jitter(s)
			}
		}
		cache.MarkProcessed(s)

		if filled > 0 {
			log.Debug().Str("file", s.FileName()).Int("filled", filled).Msg("Snapshot imputed")
		}
	}

	// 4. Integrity sweep
	forced, err := e.sweep(seq)
	res.Forced = forced
	if err != nil {
		return res, err
	}
	if forced > 0 {
		log.Warn().Int("forced", forced).Msg("Slots forced to schema default after the strategy chain")
	}
	return res, nil
}

func (e *Engine) apply(ctx *Context) (string, float64, bool) {
	for _, s := range e.chain {
		v, ok := s.Apply(ctx)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		return s.Name, v, true
	}
	return "", 0, false
}

// sweep forces remaining blanks to their defaults and checks every slot is finite.
// Snapshots are independent here, so the work fans out across workers.
func (e *Engine) sweep(seq []*snapshot.Snapshot) (int, error) {
	forced := make([]int, len(seq))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, s := range seq {
		g.Go(func() error {
			for _, r := range s.Rows {
				for slot := range r.Slots {
					if r.IsBlank(slot) {
						r.Set(slot, slotDefault(e.layout, slot))
						forced[i]++
						continue
					}
					v, _ := r.Get(slot)
					if math.IsNaN(v) || math.IsInf(v, 0) {
						return &IntegrityError{
							File:  s.FileName(),
							Point: r.Name,
							Slot:  e.slotName(slot),
							Value: v,
						}
					}
				}
			}
			return nil
		})
	}
	err := g.Wait()

	total := 0
	for _, n := range forced {
		total += n
	}
	return total, err
}

func (e *Engine) slotName(slot int) string {
	if slot < len(e.layout.Slots) {
		return e.layout.Slots[slot].Name()
	}
	return fmt.Sprintf("slot-%d", slot)
}

// StrategyNames returns the names of every registered strategy, sorted.
func StrategyNames() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

package correct

import (
	"fmt"
	"math"
	"time"

	"monfill/internal/audit"
	"monfill/internal/snapshot"

	"github.com/rs/zerolog/log"
)

// Options are the thresholds of the corrector.
type Options struct {
	// Threshold is the cumulative step above which the cumulative value is suspect.
	Threshold float64
	// Tolerance is the allowed gap between a change value and the cumulative delta.
	Tolerance float64
	// BlendMultiplier times Threshold bounds how far a recomputation may move the
	// cumulative value before the blend fallback is used.
	BlendMultiplier float64
	// BlendFactor is the share of the observed step kept by the blend fallback.
	BlendFactor float64
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		Threshold:       5.0,
		Tolerance:       0.01,
		BlendMultiplier: 2.0,
		BlendFactor:     0.5,
	}
}

// Corrector enforces cumulative[t] = cumulative[t-1] + change[t] per point and axis.
type Corrector struct {
	layout snapshot.Layout
	pairs  []snapshot.AxisPair
	opts   Options
}

// New creates a Corrector. Zero blend settings fall back to the defaults.
func New(layout snapshot.Layout, opts Options) *Corrector {
	def := DefaultOptions()
	if opts.BlendMultiplier <= 0 {
		opts.BlendMultiplier = def.BlendMultiplier
	}
	if opts.BlendFactor <= 0 {
		opts.BlendFactor = def.BlendFactor
	}
	return &Corrector{
		layout: layout,
		pairs:  layout.AxisPairs(),
		opts:   opts,
	}
}

// Options returns the effective options.
func (c *Corrector) Options() Options {
	return c.opts
}

// Correct walks seq in chronological order (seq must already be sorted and free of
// blanks) and repairs each adjacent pair. blocked lists timestamps of files that could
// not be read; a pair spanning one of them is skipped, and the next snapshot starts a
// new chain. The returned corrections are in the order they were applied.
func (c *Corrector) Correct(seq []*snapshot.Snapshot, blocked []time.Time) []audit.Correction {
	var out []audit.Correction

	for i := 1; i < len(seq); i++ {
		prev, cur := seq[i-1], seq[i]
		if t, ok := spansBlocked(prev, cur, blocked); ok {
			log.Warn().
				Str("file", cur.FileName()).
				Time("blocked", t).
				Msg("Predecessor unavailable, skipping cumulative correction for this step")
			continue
		}

		for _, row := range cur.Rows {
			prevRow := prev.Row(row.Name)
			if prevRow == nil {
				log.Debug().Str("file", cur.FileName()).Str("point", row.Name).Msg("Point has no predecessor row")
				continue
			}
			for _, pair := range c.pairs {
				out = append(out, c.correctStep(cur, prevRow, row, pair)...)
			}
		}
	}

	if len(out) > 0 {
		summary := audit.Summary(out)
		log.Info().
			Int("recomputed", summary[audit.CumulativeRecomputed]).
			Int("blended", summary[audit.CumulativeBlended]).
			Int("changeOverwritten", summary[audit.ChangeOverwritten]).
			Msg("Cumulative corrections applied")
	}
	return out
}

func (c *Corrector) correctStep(cur *snapshot.Snapshot, prevRow, row *snapshot.Row, pair snapshot.AxisPair) []audit.Correction {
	prevCum, okP := prevRow.Get(pair.CumulIdx)
	cum, okC := row.Get(pair.CumulIdx)
	change, okCh := row.Get(pair.ChangeIdx)
	if !okP || !okC {
		log.Debug().Str("file", cur.FileName()).Str("point", row.Name).Str("axis", string(pair.Axis)).
			Msg("Cumulative value blank, step skipped")
		return nil
	}

	var out []audit.Correction
	record := func(slot string, kind audit.Kind, original *float64, corrected float64, reason string) {
		out = append(out, audit.Correction{
			Project:   cur.ID.Project,
			File:      cur.FileName(),
			Point:     row.Name,
			Axis:      string(pair.Axis),
			Slot:      slot,
			Position:  row.Position,
			Kind:      kind,
			Original:  original,
			Corrected: corrected,
			Reason:    reason,
		})
	}

	// 1. Suspect cumulative step
	step := cum - prevCum
	if math.Abs(step) > c.opts.Threshold && okCh {
		recomputed := prevCum + change
		adjustment := recomputed - cum
		limit := c.opts.BlendMultiplier * c.opts.Threshold

		switch {
		case math.Abs(adjustment) > limit:
			blended := prevCum + c.opts.BlendFactor*step
			record(pair.CumulName, audit.CumulativeBlended, audit.Float(cum), blended,
				fmt.Sprintf("cumulative step %.4f exceeds threshold %.4f and recomputation moves it by %.4f (> %.4f); step scaled by %.2f",
					step, c.opts.Threshold, adjustment, limit, c.opts.BlendFactor))
			row.Set(pair.CumulIdx, blended)
			cum = blended
		case math.Abs(adjustment) > c.opts.Tolerance:
			record(pair.CumulName, audit.CumulativeRecomputed, audit.Float(cum), recomputed,
				fmt.Sprintf("cumulative step %.4f exceeds threshold %.4f; recomputed as previous cumulative plus change",
					step, c.opts.Threshold))
			row.Set(pair.CumulIdx, recomputed)
			cum = recomputed
		}
	}

	// 2. Change value against the authoritative cumulative delta
	expected := cum - prevCum
	if !okCh || math.Abs(change-expected) > c.opts.Tolerance {
		var original *float64
		if okCh {
			original = audit.Float(change)
		}
		record(pair.ChangeName, audit.ChangeOverwritten, original, expected,
			"change slot overwritten to satisfy cumulative invariant")
		row.Set(pair.ChangeIdx, expected)
	}
	return out
}

func spansBlocked(prev, cur *snapshot.Snapshot, blocked []time.Time) (time.Time, bool) {
	for _, t := range blocked {
		if t.After(prev.Time()) && t.Before(cur.Time()) {
			return t, true
		}
	}
	return time.Time{}, false
}

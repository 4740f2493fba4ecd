package supplement

import (
	"cmp"
	"path/filepath"
	"time"

	"monfill/internal/completeness"
	"monfill/internal/snapshot"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
)

// Rule names the preference rule that selected a supplement's source.
type Rule string

const (
	SameDateNearestHour Rule = "same-date-nearest-hour"
	SameHourNearestDate Rule = "same-hour-nearest-date"
	GlobalNearest       Rule = "global-nearest"
)

// Defaults are the run-wide jitter settings every plan starts from.
type Defaults struct {
	Range             float64
	Minimum           float64
	CorrelationWeight float64
	RunSeed           int64
}

// Plan describes one placeholder snapshot to synthesize.
type Plan struct {
	Target   snapshot.Identity
	Source   *snapshot.Snapshot
	Rule     Rule
	Params   snapshot.AdjustmentParameters
	FileName string
}

// Synthesizer turns completeness gaps into supplement snapshots.
type Synthesizer struct {
	defaults Defaults
}

// New creates a Synthesizer.
func New(defaults Defaults) *Synthesizer {
	return &Synthesizer{defaults: defaults}
}

// DeriveSeed returns the jitter seed for a supplement cloned from source into hour.
// It depends only on the source identity, the target hour and the run seed.
func DeriveSeed(source snapshot.Identity, hour int, runSeed int64) int64 {
	h := int64(xxhash.Sum64String(source.Key()) >> 1)
	return h + int64(hour) + runSeed
}

// Plan selects a source for every gap in report. Gaps with no candidate are skipped and logged.
func (s *Synthesizer) Plan(ix *snapshot.Index, report completeness.Report) []Plan {
	var plans []Plan
	for _, gap := range report.Gaps() {
		src, rule, ok := SelectSource(ix, gap.Date, gap.Hour)
		if !ok {
			log.Warn().
				Time("date", gap.Date).
				Int("hour", gap.Hour).
				Msg("No source snapshot available, skipping supplement")
			continue
		}

		target := snapshot.NewIdentity(gap.Date, gap.Hour, src.ID.Project)
		ext := filepath.Ext(src.Path)
		if ext == "" {
			ext = ".xlsx"
		}
		plan := Plan{
			Target: target,
			Source: src,
			Rule:   rule,
			Params: snapshot.AdjustmentParameters{
				Range:             s.defaults.Range,
				Seed:              DeriveSeed(src.ID, gap.Hour, s.defaults.RunSeed),
				Minimum:           s.defaults.Minimum,
				CorrelationWeight: s.defaults.CorrelationWeight,
			},
			FileName: snapshot.GenerateName(target, ext),
		}
		log.Debug().
			Str("target", plan.FileName).
			Str("source", src.FileName()).
			Str("rule", string(rule)).
			Int64("seed", plan.Params.Seed).
			Msg("Planned supplement")
		plans = append(plans, plan)
	}
	return plans
}

// Build materializes each plan as a structural clone of its source.
func (s *Synthesizer) Build(plans []Plan) []*snapshot.Snapshot {
	out := make([]*snapshot.Snapshot, 0, len(plans))
	for _, p := range plans {
		sup := p.Source.CloneAs(p.Target, p.Params)
		if p.Source.Path != "" {
			sup.Path = filepath.Join(filepath.Dir(p.Source.Path), p.FileName)
		}
		out = append(out, sup)
	}
	return out
}

// Synthesize plans and builds supplements in one step.
func (s *Synthesizer) Synthesize(ix *snapshot.Index, report completeness.Report) ([]Plan, []*snapshot.Snapshot) {
	plans := s.Plan(ix, report)
	return plans, s.Build(plans)
}

// SelectSource picks the snapshot to clone for (date, hour): the same-date snapshot with
// the closest hour, else the same hour on the nearest other date, else the globally nearest
// snapshot by (day distance, hour distance). Ties resolve to the earlier snapshot.
func SelectSource(ix *snapshot.Index, date time.Time, hour int) (*snapshot.Snapshot, Rule, bool) {
	if ix == nil || ix.Len() == 0 {
		return nil, "", false
	}
	date = snapshot.DateOf(date)

	// 1. Same date, nearest hour
	if best := nearest(originals(ix.OnDate(date)), func(c *snapshot.Snapshot) [2]int {
		return [2]int{absInt(c.ID.Hour - hour), 0}
	}); best != nil {
		return best, SameDateNearestHour, true
	}

	// 2. Same hour, nearest date
	var sameHour []*snapshot.Snapshot
	for _, d := range ix.Dates() {
		sameHour = append(sameHour, originals(ix.At(d, hour))...)
	}
	if best := nearest(sameHour, func(c *snapshot.Snapshot) [2]int {
		return [2]int{snapshot.DaysBetween(c.ID.Date, date), 0}
	}); best != nil {
		return best, SameHourNearestDate, true
	}

	// 3. Global nearest
	if best := nearest(originals(ix.Sorted()), func(c *snapshot.Snapshot) [2]int {
		return [2]int{snapshot.DaysBetween(c.ID.Date, date), absInt(c.ID.Hour - hour)}
	}); best != nil {
		return best, GlobalNearest, true
	}
	return nil, "", false
}

func nearest(cands []*snapshot.Snapshot, distance func(*snapshot.Snapshot) [2]int) *snapshot.Snapshot {
	var best *snapshot.Snapshot
	var bestDist [2]int
	for _, c := range cands {
		d := distance(c)
		if best == nil {
			best, bestDist = c, d
			continue
		}
		order := cmp.Compare(d[0], bestDist[0])
		if order == 0 {
			order = cmp.Compare(d[1], bestDist[1])
		}
		if order < 0 || (order == 0 && c.Time().Before(best.Time())) {
			best, bestDist = c, d
		}
	}
	return best
}

func originals(snaps []*snapshot.Snapshot) []*snapshot.Snapshot {
	out := make([]*snapshot.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if !s.IsSupplement() {
			out = append(out, s)
		}
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

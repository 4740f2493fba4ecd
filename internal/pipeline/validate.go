package pipeline

import (
	"context"
	"sort"

	"monfill/internal/compare"
	"monfill/internal/correct"
	"monfill/internal/snapshot"

	"github.com/rs/zerolog/log"
)

// ProjectValidation is the read-only check result of one project.
type ProjectValidation struct {
	Project    string             `json:"project"`
	Snapshots  int                `json:"snapshots"`
	Validation correct.Validation `json:"validation"`
}

// ValidationSummary is the outcome of validate-processed.
type ValidationSummary struct {
	Projects []ProjectValidation `json:"projects"`
	Skipped  []string            `json:"skipped"`
}

// Valid reports whether every project passed.
func (v ValidationSummary) Valid() bool {
	for _, p := range v.Projects {
		if !p.Validation.Valid() {
			return false
		}
	}
	return true
}

// ValidateProcessed checks the cumulative invariant of every project in dir without
// modifying anything.
func (p *Processor) ValidateProcessed(ctx context.Context, dir string) (*ValidationSummary, error) {
	in, err := p.load(ctx, dir)
	if err != nil {
		return nil, err
	}

	t := p.settings.Thresholds
	corrector := correct.New(p.settings.Layout, correct.Options{
		Threshold:       t.CumulativeAdjustment,
		Tolerance:       t.ColumnValidation,
		BlendMultiplier: t.BlendMultiplier,
		BlendFactor:     t.BlendFactor,
	})

	groups := snapshot.GroupByProject(in.snapshots)
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &ValidationSummary{Skipped: in.skipped}
	for _, name := range names {
		seq := groups[name]
		snapshot.SortChronological(seq)
		v := corrector.Validate(seq)
		log.Info().
			Str("project", name).
			Int("checked", v.Checked).
			Int("invalid", len(v.Invalid)).
			Int("drifts", len(v.Drifts)).
			Msg("Validation finished")
		out.Projects = append(out.Projects, ProjectValidation{Project: name, Snapshots: len(seq), Validation: v})
	}
	return out, nil
}

// Compare runs the diff engine between an original and a processed directory.
func (p *Processor) Compare(ctx context.Context, originalDir, processedDir string, tolerance float64) (compare.Result, error) {
	return compare.Dirs(ctx, originalDir, processedDir, p.reader, p.settings.Layout, compare.Options{
		Tolerance: tolerance,
		Hours:     p.settings.Hours,
		Workers:   p.settings.Workers,
	})
}

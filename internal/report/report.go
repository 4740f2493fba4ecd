package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"monfill/internal/audit"
	"monfill/internal/completeness"
	"monfill/internal/correct"
	"monfill/internal/impute"
	"monfill/internal/snapshot"
	"monfill/internal/supplement"
)

// FileName is the report written into the output directory.
const FileName = "report.md"

// Project is everything the report shows for one project.
type Project struct {
	Name         string
	Completeness completeness.Report
	Plans        []supplement.Plan
	Imputation   impute.Result
	Chain        []string
	Corrections  []audit.Correction
	Series       []Series
	Written      int
}

// Run is one processing run.
type Run struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Input    string
	Output   string
	Projects []Project
	Skipped  []string
}

// Markdown renders the run report.
func Markdown(run Run) string {
	var sb strings.Builder

	sb.WriteString("# Monitoring data processing report\n\n")
	sb.WriteString(fmt.Sprintf("- Run: `%s`\n", run.ID))
	sb.WriteString(fmt.Sprintf("- Started: %s\n", run.Started.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("- Duration: %s\n", run.Finished.Sub(run.Started).Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("- Input: `%s`\n", run.Input))
	sb.WriteString(fmt.Sprintf("- Output: `%s`\n", run.Output))
	if len(run.Skipped) > 0 {
		sb.WriteString(fmt.Sprintf("- Skipped files: %d\n", len(run.Skipped)))
		for _, s := range run.Skipped {
			sb.WriteString(fmt.Sprintf("  - %s\n", s))
		}
	}

	for _, p := range run.Projects {
		writeProject(&sb, p)
	}
	return sb.String()
}

func writeProject(sb *strings.Builder, p Project) {
	sb.WriteString(fmt.Sprintf("\n## %s\n\n", p.Name))

	// 1. Completeness
	sb.WriteString("### Completeness\n\n")
	if p.Completeness.AllComplete {
		sb.WriteString("All canonical time slots are present.\n")
	} else {
		sb.WriteString("| Date | Existing | Missing |\n|---|---|---|\n")
		for _, d := range p.Completeness.Dates {
			if d.Complete() {
				continue
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", d.Date.Format("2006-01-02"), joinInts(d.Existing), joinInts(d.Missing)))
		}
	}

	// 2. Supplements
	if len(p.Plans) > 0 {
		sb.WriteString("\n### Supplements\n\n| File | Source | Rule | Seed |\n|---|---|---|---|\n")
		for _, pl := range p.Plans {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d |\n", pl.FileName, pl.Source.FileName(), pl.Rule, pl.Params.Seed))
		}
	}

	// 3. Imputation
	im := p.Imputation
	sb.WriteString("\n### Imputation\n\n")
	sb.WriteString(fmt.Sprintf("%d snapshots (%d supplements), %d cells filled, %d forced to default, %d jittered, %d missing periods.\n\n",
		im.Snapshots, im.Supplement, im.Total, im.Forced, im.Jittered, len(im.Periods)))
	if len(im.Filled) > 0 {
		sb.WriteString("| Strategy | Cells |\n|---|---|\n")
		for _, name := range p.Chain {
			if n := im.Filled[name]; n > 0 {
				sb.WriteString(fmt.Sprintf("| %s | %d |\n", name, n))
			}
		}
		if chart := StrategyChart(im.Filled, p.Chain); chart != "" {
			sb.WriteString("\n" + chart + "\n")
		}
	}

	// 4. Corrections
	sb.WriteString("\n### Corrections\n\n")
	if len(p.Corrections) == 0 {
		sb.WriteString("No corrections were needed.\n")
	} else {
		summary := audit.Summary(p.Corrections)
		sb.WriteString("| Kind | Count |\n|---|---|\n")
		for _, k := range []audit.Kind{audit.CumulativeRecomputed, audit.CumulativeBlended, audit.ChangeOverwritten} {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", k, summary[k]))
		}
	}
	for _, s := range p.Series {
		if chart := CorrectionChart(s); chart != "" {
			sb.WriteString("\n" + chart + "\n")
		}
	}

	sb.WriteString(fmt.Sprintf("\n%d files written.\n", p.Written))
}

// Write saves the report into dir and returns its path.
func Write(dir string, run Run) (string, error) {
	path := filepath.Join(dir, FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(Markdown(run)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to finalize report: %w", err)
	}
	return path, nil
}

// BuildSeries reconstructs the raw and corrected cumulative history of the limit most
// corrected point/axis pairs of seq.
func BuildSeries(seq []*snapshot.Snapshot, records []audit.Correction, layout snapshot.Layout, limit int) []Series {
	type key struct{ point, axis string }
	counts := make(map[key]int)
	originals := make(map[string]float64)
	for _, r := range records {
		if r.Kind == audit.ChangeOverwritten || r.Original == nil {
			continue
		}
		counts[key{r.Point, r.Axis}]++
		originals[r.File+"|"+r.Point+"|"+r.Axis] = *r.Original
	}

	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		if keys[i].point != keys[j].point {
			return keys[i].point < keys[j].point
		}
		return keys[i].axis < keys[j].axis
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	cumIdx := make(map[string]int)
	for _, pair := range layout.AxisPairs() {
		cumIdx[string(pair.Axis)] = pair.CumulIdx
	}

	var out []Series
	for _, k := range keys {
		idx, ok := cumIdx[k.axis]
		if !ok {
			continue
		}
		s := Series{Point: k.point, Axis: k.axis}
		for _, snap := range seq {
			row := snap.Row(k.point)
			if row == nil {
				continue
			}
			v, ok := row.Get(idx)
			if !ok {
				continue
			}
			before := v
			if o, ok := originals[snap.FileName()+"|"+k.point+"|"+k.axis]; ok {
				before = o
			}
			s.Labels = append(s.Labels, fmt.Sprintf("%s %02d", snap.ID.Date.Format("01-02"), snap.ID.Hour))
			s.Before = append(s.Before, before)
			s.After = append(s.After, v)
		}
		out = append(out, s)
	}
	return out
}

// Validation renders the read-only consistency check of one project.
func Validation(project string, v correct.Validation) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", project))
	sb.WriteString(fmt.Sprintf("%d pairs checked, %d invalid groups, %d drift signals.\n", v.Checked, len(v.Invalid), len(v.Drifts)))

	if len(v.Invalid) > 0 {
		sb.WriteString("\n| Point | Axis | Violations | Max deviation | First file |\n|---|---|---|---|---|\n")
		for _, g := range v.Invalid {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.4f | %s |\n", g.Point, g.Axis, g.Violations, g.MaxDeviation, g.FirstFile))
		}
	}
	if len(v.Drifts) > 0 {
		sb.WriteString("\n| Point | Axis | Signal | File | Detail |\n|---|---|---|---|---|\n")
		for _, d := range v.Drifts {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n", d.Point, d.Axis, d.Signal.Kind, d.Signal.File, d.Signal.Describe()))
		}
	}
	return sb.String()
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

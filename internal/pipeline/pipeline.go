package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"monfill/internal/audit"
	"monfill/internal/completeness"
	"monfill/internal/config"
	"monfill/internal/correct"
	"monfill/internal/impute"
	"monfill/internal/metrics"
	"monfill/internal/report"
	"monfill/internal/snapshot"
	"monfill/internal/supplement"
	"monfill/internal/workbook"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Settings are the run parameters of a Processor.
type Settings struct {
	Layout            snapshot.Layout
	Hours             []int
	Strategies        []string
	Thresholds        config.Thresholds
	IncludeEmptyDates bool
	DisableJitter     bool
	Workers           int
	AuditDB           string
	MetricsFile       string
	// ChartSeries is the number of most-corrected series charted per project.
	ChartSeries int
}

// SettingsFrom maps the application configuration onto run settings.
func SettingsFrom(cfg *config.AppConfig) Settings {
	return Settings{
		Layout:      cfg.Layout,
		Hours:       cfg.Hours,
		Strategies:  cfg.Strategies,
		Thresholds:  cfg.Thresholds,
		Workers:     cfg.CompareWorkers,
		AuditDB:     cfg.AuditDB,
		MetricsFile: cfg.MetricsFile,
		ChartSeries: 3,
	}
}

// Processor runs the three entry modes over snapshot directories.
type Processor struct {
	settings Settings
	reader   workbook.Reader
	writer   workbook.Writer
	confirm  Confirmer
	metrics  *metrics.Collector
	chain    []impute.Strategy

	newRunID func() string
	now      func() time.Time
}

// New creates a Processor. A nil confirmer declines every question.
func New(settings Settings, reader workbook.Reader, writer workbook.Writer, confirm Confirmer) (*Processor, error) {
	if err := settings.Layout.Validate(); err != nil {
		return nil, err
	}
	chain, err := impute.ChainByNames(settings.Strategies)
	if err != nil {
		return nil, err
	}
	if settings.Workers < 1 {
		settings.Workers = 4
	}
	if len(settings.Hours) == 0 {
		settings.Hours = completeness.DefaultHours
	}
	if confirm == nil {
		confirm = NeverConfirm
	}
	return &Processor{
		settings: settings,
		reader:   reader,
		writer:   writer,
		confirm:  confirm,
		metrics:  metrics.NewCollector(),
		chain:    chain,
		newRunID: func() string { return uuid.New().String() },
		now:      time.Now,
	}, nil
}

// Metrics returns the collector of this processor.
func (p *Processor) Metrics() *metrics.Collector {
	return p.metrics
}

// Summary is the outcome of a processing run.
type Summary struct {
	RunID       string
	Projects    []report.Project
	Corrections []audit.Correction
	Skipped     []string
	ReportPath  string
	Written     int
}

// projectRun is the in-memory result of one project before anything is persisted.
type projectRun struct {
	name        string
	seq         []*snapshot.Snapshot
	plans       []supplement.Plan
	report      completeness.Report
	imputation  impute.Result
	corrections []audit.Correction
}

// Process runs completeness check, supplement synthesis, imputation and correction for every
// project found in inputDir and writes the results into outputDir. Nothing is written when
// any project fails with an IntegrityError or the run is cancelled.
func (p *Processor) Process(ctx context.Context, inputDir, outputDir string) (*Summary, error) {
	start := p.now()
	runID := p.newRunID()
	log.Info().Str("run", runID).Str("input", inputDir).Str("output", outputDir).Msg("Processing started")

	// 1. Discover and load
	in, err := p.load(ctx, inputDir)
	if err != nil {
		return nil, err
	}

	// 2. Compute every project in memory
	groups := snapshot.GroupByProject(in.snapshots)
	projects := make([]string, 0, len(groups))
	for name := range groups {
		projects = append(projects, name)
	}
	sort.Strings(projects)

	var runs []*projectRun
	for _, name := range projects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run, err := p.processProject(name, groups[name], in)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	// 3. Persist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, &workbook.FileError{Path: outputDir, Op: "create", Err: err}
	}

	summary := &Summary{RunID: runID, Skipped: in.skipped}
	for _, run := range runs {
		written, failed := p.writeProject(ctx, run, outputDir)
		summary.Written += written
		summary.Skipped = append(summary.Skipped, failed...)

		for i := range run.corrections {
			run.corrections[i].RunID = runID
		}
		summary.Corrections = append(summary.Corrections, run.corrections...)
		summary.Projects = append(summary.Projects, report.Project{
			Name:         run.name,
			Completeness: run.report,
			Plans:        run.plans,
			Imputation:   run.imputation,
			Chain:        chainNames(p.chain),
			Corrections:  run.corrections,
			Series:       report.BuildSeries(run.seq, run.corrections, p.settings.Layout, p.settings.ChartSeries),
			Written:      written,
		})
	}

	// 4. Audit, metrics and report
	if err := p.persistAudit(runID, outputDir, summary.Corrections); err != nil {
		return summary, err
	}

	end := p.now()
	p.metrics.ObserveRun(start, end)
	if p.settings.MetricsFile != "" {
		if err := p.metrics.WriteTextfile(p.settings.MetricsFile); err != nil {
			log.Warn().Err(err).Str("path", p.settings.MetricsFile).Msg("Failed to write metrics textfile")
		}
	}

	path, err := report.Write(outputDir, report.Run{
		ID:       runID,
		Started:  start,
		Finished: end,
		Input:    inputDir,
		Output:   outputDir,
		Projects: summary.Projects,
		Skipped:  summary.Skipped,
	})
	if err != nil {
		return summary, err
	}
	summary.ReportPath = path

	log.Info().
		Str("run", runID).
		Int("projects", len(summary.Projects)).
		Int("written", summary.Written).
		Int("corrections", len(summary.Corrections)).
		Int("skipped", len(summary.Skipped)).
		Dur("duration", end.Sub(start)).
		Msg("Processing finished")
	return summary, nil
}

func (p *Processor) processProject(name string, snaps []*snapshot.Snapshot, in *loaded) (*projectRun, error) {
	logger := log.With().Str("project", name).Logger()

	// 1. Row count agreement
	if lo, hi := rowCountRange(snaps); lo != hi {
		q := fmt.Sprintf("Project %s: snapshots disagree on the number of points (%d to %d). Continue?", name, lo, hi)
		if !p.confirm.Confirm(q) {
			return nil, fmt.Errorf("project %s: %w", name, ErrCancelled)
		}
		logger.Warn().Int("min", lo).Int("max", hi).Msg("Continuing with mismatched point counts")
	}

	// 2. Completeness
	ix := snapshot.NewIndex(snaps)
	rep := completeness.Check(ix, completeness.Options{
		Hours:             p.settings.Hours,
		IncludeEmptyDates: p.settings.IncludeEmptyDates,
	})
	logger.Info().Int("dates", len(rep.Dates)).Int("missing", rep.MissingCount()).Bool("complete", rep.AllComplete).
		Msg("Completeness checked")

	// 3. Supplements, never for slots whose file exists but is unreadable
	t := p.settings.Thresholds
	synth := supplement.New(supplement.Defaults{
		Range:             t.AdjustmentRange,
		Minimum:           t.MinimumAdjustment,
		CorrelationWeight: t.CorrelationWeight,
		RunSeed:           t.RandomSeed,
	})
	var plans []supplement.Plan
	for _, pl := range synth.Plan(ix, rep) {
		if in.blockedKeys[pl.Target.Key()] {
			logger.Warn().Str("target", pl.FileName).Msg("Slot has an unreadable file, no supplement created")
			continue
		}
		plans = append(plans, pl)
		p.metrics.SupplementsCreated.WithLabelValues(name, string(pl.Rule)).Inc()
	}
	supplements := synth.Build(plans)

	// 4. Imputation
	seq := make([]*snapshot.Snapshot, 0, ix.Len()+len(supplements))
	seq = append(seq, ix.Sorted()...)
	seq = append(seq, supplements...)
	engine := impute.NewEngine(p.settings.Layout, impute.Options{
		Chain:         p.chain,
		Workers:       p.settings.Workers,
		DisableJitter: p.settings.DisableJitter,
	})
	res, err := engine.Run(seq)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", name, err)
	}
	for strategy, n := range res.Filled {
		p.metrics.CellsImputed.WithLabelValues(name, strategy).Add(float64(n))
	}
	p.metrics.ForcedFills.WithLabelValues(name).Add(float64(res.Forced))

	// 5. Correction
	corrector := correct.New(p.settings.Layout, correct.Options{
		Threshold:       t.CumulativeAdjustment,
		Tolerance:       t.ColumnValidation,
		BlendMultiplier: t.BlendMultiplier,
		BlendFactor:     t.BlendFactor,
	})
	corrections := corrector.Correct(seq, in.blocked[name])
	for _, c := range corrections {
		p.metrics.Corrections.WithLabelValues(name, string(c.Kind)).Inc()
	}

	return &projectRun{
		name:        name,
		seq:         seq,
		plans:       plans,
		report:      rep,
		imputation:  res,
		corrections: corrections,
	}, nil
}

// writeProject writes every snapshot of run; failures are per file.
func (p *Processor) writeProject(ctx context.Context, run *projectRun, outputDir string) (int, []string) {
	var (
		mu      sync.Mutex
		written int
		failed  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.settings.Workers)
	for _, s := range run.seq {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			name := s.FileName()
			if err := p.writer.Write(s, filepath.Join(outputDir, name)); err != nil {
				log.Error().Err(err).Str("file", name).Msg("Failed to write snapshot")
				mu.Lock()
				failed = append(failed, name+": "+err.Error())
				mu.Unlock()
				return nil
			}
			mu.Lock()
			written++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(failed)
	return written, failed
}

func (p *Processor) persistAudit(runID, outputDir string, records []audit.Correction) error {
	sinks := []audit.Sink{audit.NewJSONLog(outputDir)}
	if p.settings.AuditDB != "" {
		store, err := audit.OpenSQLite(p.settings.AuditDB)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close audit database")
			}
		}()
		sinks = append(sinks, store)
	}
	for _, sink := range sinks {
		if err := sink.Write(runID, records); err != nil {
			return fmt.Errorf("failed to persist corrections: %w", err)
		}
	}
	return nil
}

func rowCountRange(snaps []*snapshot.Snapshot) (int, int) {
	if len(snaps) == 0 {
		return 0, 0
	}
	lo, hi := len(snaps[0].Rows), len(snaps[0].Rows)
	for _, s := range snaps[1:] {
		lo = min(lo, len(s.Rows))
		hi = max(hi, len(s.Rows))
	}
	return lo, hi
}

func chainNames(chain []impute.Strategy) []string {
	names := make([]string, len(chain))
	for i, s := range chain {
		names[i] = s.Name
	}
	return names
}

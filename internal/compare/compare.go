package compare

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"

	"monfill/internal/snapshot"
	"monfill/internal/workbook"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Options control a comparison run.
type Options struct {
	// Tolerance above which a difference is significant.
	Tolerance float64
	// Hours is the canonical hour set used to parse file names.
	Hours []int
	// Workers bounds concurrent workbook loads.
	Workers int
}

// CellDiff is one numeric difference between an original and a processed cell.
type CellDiff struct {
	Point       string  `json:"point"`
	Position    int     `json:"position"`
	Slot        string  `json:"slot"`
	Original    float64 `json:"original"`
	Processed   float64 `json:"processed"`
	Delta       float64 `json:"delta"`
	Significant bool    `json:"significant"`
	// Blank marks an original value that is missing from the processed cell. Such a
	// difference is always significant and Processed and Delta are zero.
	Blank bool `json:"blank,omitempty"`
}

// FileDiff holds the differences of one matched pair of snapshots.
type FileDiff struct {
	Key           string     `json:"key"`
	OriginalFile  string     `json:"original_file"`
	ProcessedFile string     `json:"processed_file"`
	Diffs         []CellDiff `json:"diffs"`
	Significant   int        `json:"significant"`
	// MissingPoints lists points of the original absent from the processed snapshot.
	MissingPoints []string `json:"missing_points,omitempty"`
}

// LoadError is a per-file failure that did not abort the batch.
type LoadError struct {
	Path string `json:"path"`
	Side string `json:"side"`
	Err  error  `json:"-"`
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Side, e.Path, e.Err)
}

// Result is the outcome of comparing two snapshot sets.
type Result struct {
	Files              []FileDiff  `json:"files"`
	MissingInProcessed []string    `json:"missing_in_processed"`
	ProcessedOnly      []string    `json:"processed_only"`
	LoadErrors         []LoadError `json:"load_errors"`
	Matched            int         `json:"matched"`
	DiffCells          int         `json:"diff_cells"`
	SignificantCells   int         `json:"significant_cells"`
}

// Clean reports whether no cell differs and nothing is missing.
func (r Result) Clean() bool {
	return r.DiffCells == 0 && len(r.MissingInProcessed) == 0
}

// Snapshots compares one matched pair. Only slots set in the original are compared; a
// processed blank in such a slot is reported as a significant Blank difference.
func Snapshots(orig, proc *snapshot.Snapshot, layout snapshot.Layout, tolerance float64) FileDiff {
	fd := FileDiff{
		Key:           orig.ID.Key(),
		OriginalFile:  orig.FileName(),
		ProcessedFile: proc.FileName(),
	}

	for _, row := range orig.Rows {
		other := proc.Row(row.Name)
		if other == nil {
			fd.MissingPoints = append(fd.MissingPoints, row.Name)
			continue
		}
		for i := range row.Slots {
			o, ok := row.Get(i)
			if !ok {
				continue
			}
			p, set := other.Get(i)
			if !set {
				fd.Significant++
				fd.Diffs = append(fd.Diffs, CellDiff{
					Point:       row.Name,
					Position:    row.Position,
					Slot:        slotName(layout, i),
					Original:    o,
					Significant: true,
					Blank:       true,
				})
				continue
			}
			delta := math.Abs(p - o)
			if delta == 0 {
				continue
			}
			d := CellDiff{
				Point:       row.Name,
				Position:    row.Position,
				Slot:        slotName(layout, i),
				Original:    o,
				Processed:   p,
				Delta:       delta,
				Significant: delta > tolerance,
			}
			if d.Significant {
				fd.Significant++
			}
			fd.Diffs = append(fd.Diffs, d)
		}
	}
	return fd
}

func slotName(layout snapshot.Layout, i int) string {
	if i < len(layout.Slots) {
		return layout.Slots[i].Name()
	}
	return fmt.Sprintf("slot-%d", i)
}

// Sets matches originals to processed snapshots by identity key and compares each pair.
func Sets(orig, proc []*snapshot.Snapshot, layout snapshot.Layout, tolerance float64) Result {
	var res Result

	byKey := make(map[string]*snapshot.Snapshot, len(proc))
	for _, p := range proc {
		byKey[p.ID.Key()] = p
	}
	seen := make(map[string]bool, len(orig))

	sorted := append([]*snapshot.Snapshot(nil), orig...)
	snapshot.SortChronological(sorted)
	for _, o := range sorted {
		key := o.ID.Key()
		seen[key] = true
		p, ok := byKey[key]
		if !ok {
			res.MissingInProcessed = append(res.MissingInProcessed, o.FileName())
			continue
		}
		res.Matched++
		fd := Snapshots(o, p, layout, tolerance)
		res.DiffCells += len(fd.Diffs)
		res.SignificantCells += fd.Significant
		if len(fd.Diffs) > 0 || len(fd.MissingPoints) > 0 {
			res.Files = append(res.Files, fd)
		}
	}

	for _, p := range proc {
		if !seen[p.ID.Key()] {
			res.ProcessedOnly = append(res.ProcessedOnly, p.FileName())
		}
	}
	sort.Strings(res.ProcessedOnly)
	return res
}

// Dirs loads every snapshot workbook of origDir and procDir and compares them.
// Unparseable names are skipped and unreadable files are reported in LoadErrors.
func Dirs(ctx context.Context, origDir, procDir string, reader workbook.Reader, layout snapshot.Layout, opts Options) (Result, error) {
	orig, origErrs, err := load(ctx, origDir, "original", reader, opts)
	if err != nil {
		return Result{}, err
	}
	proc, procErrs, err := load(ctx, procDir, "processed", reader, opts)
	if err != nil {
		return Result{}, err
	}

	res := Sets(orig, proc, layout, opts.Tolerance)
	res.LoadErrors = append(origErrs, procErrs...)

	log.Info().
		Int("matched", res.Matched).
		Int("diffCells", res.DiffCells).
		Int("significant", res.SignificantCells).
		Int("missing", len(res.MissingInProcessed)).
		Int("loadErrors", len(res.LoadErrors)).
		Msg("Comparison finished")
	return res, nil
}

func load(ctx context.Context, dir, side string, reader workbook.Reader, opts Options) ([]*snapshot.Snapshot, []LoadError, error) {
	files, err := workbook.ListFiles(dir)
	if err != nil {
		return nil, nil, err
	}

	type job struct {
		path string
		id   snapshot.Identity
	}
	var jobs []job
	for _, path := range files {
		id, _, err := snapshot.ParseName(filepath.Base(path), opts.Hours)
		if err != nil {
			log.Warn().Err(err).Str("side", side).Msg("Skipping file with unrecognized name")
			continue
		}
		jobs = append(jobs, job{path: path, id: id})
	}

	var (
		mu      sync.Mutex
		snaps   = make([]*snapshot.Snapshot, len(jobs))
		loadErr []LoadError
	)
	g, ctx := errgroup.WithContext(ctx)
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := reader.Read(j.path, j.id)
			if err != nil {
				log.Warn().Err(err).Str("side", side).Str("file", filepath.Base(j.path)).Msg("Failed to load workbook")
				mu.Lock()
				loadErr = append(loadErr, LoadError{Path: j.path, Side: side, Err: err})
				mu.Unlock()
				return nil
			}
			snaps[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := snaps[:0]
	for _, s := range snaps {
		if s != nil {
			out = append(out, s)
		}
	}
	sort.Slice(loadErr, func(a, b int) bool { return loadErr[a].Path < loadErr[b].Path })
	return out, loadErr, nil
}

package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"monfill/internal/snapshot"
	"monfill/internal/workbook"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// loaded is the readable content of one input directory.
type loaded struct {
	snapshots []*snapshot.Snapshot
	// blocked holds, per project, the timestamps of files that exist but could not be read.
	blocked map[string][]time.Time
	// blockedKeys holds the identity keys of those files.
	blockedKeys map[string]bool
	skipped     []string
}

func (l *loaded) block(id snapshot.Identity) {
	l.blocked[id.Project] = append(l.blocked[id.Project], id.Time())
	l.blockedKeys[id.Key()] = true
}

// load discovers and reads every snapshot workbook in dir. Unparseable names and unreadable
// files are skipped; the returned error is only set for a missing directory or cancellation.
func (p *Processor) load(ctx context.Context, dir string) (*loaded, error) {
	files, err := workbook.ListFiles(dir)
	if err != nil {
		return nil, err
	}

	out := &loaded{
		blocked:     make(map[string][]time.Time),
		blockedKeys: make(map[string]bool),
	}

	type job struct {
		path string
		id   snapshot.Identity
	}
	var jobs []job
	seen := make(map[string]string)
	for _, path := range files {
		name := filepath.Base(path)
		id, _, err := snapshot.ParseName(name, p.settings.Hours)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping file with unrecognized name")
			out.skipped = append(out.skipped, name+": "+err.Error())
			p.metrics.SnapshotsFailed.WithLabelValues("parse").Inc()
			continue
		}
		if prev, dup := seen[id.Key()]; dup {
			log.Warn().Str("file", name).Str("kept", prev).Msg("Duplicate snapshot identity, skipping")
			out.skipped = append(out.skipped, name+": duplicate of "+prev)
			p.metrics.SnapshotsFailed.WithLabelValues("duplicate").Inc()
			continue
		}
		seen[id.Key()] = name
		jobs = append(jobs, job{path: path, id: id})
	}

	var mu sync.Mutex
	snaps := make([]*snapshot.Snapshot, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.settings.Workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := p.reader.Read(j.path, j.id)
			if err != nil {
				var fe *workbook.FileError
				reason := "io"
				if errors.As(err, &fe) && fe.Locked() {
					reason = "locked"
				}
				log.Error().Err(err).Str("file", filepath.Base(j.path)).Msg("Failed to read snapshot")
				mu.Lock()
				out.block(j.id)
				out.skipped = append(out.skipped, filepath.Base(j.path)+": "+err.Error())
				mu.Unlock()
				p.metrics.SnapshotsFailed.WithLabelValues(reason).Inc()
				return nil
			}
			snaps[i] = s
			p.metrics.SnapshotsLoaded.WithLabelValues(j.id.Project).Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, s := range snaps {
		if s != nil {
			out.snapshots = append(out.snapshots, s)
		}
	}
	sort.Strings(out.skipped)
	for project := range out.blocked {
		sort.Slice(out.blocked[project], func(a, b int) bool {
			return out.blocked[project][a].Before(out.blocked[project][b])
		})
	}

	log.Info().
		Str("dir", dir).
		Int("loaded", len(out.snapshots)).
		Int("skipped", len(out.skipped)).
		Msg("Snapshots discovered")
	return out, nil
}

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()
	c.CellsImputed.WithLabelValues("SiteA", "neighbor-average").Add(3)
	c.CellsImputed.WithLabelValues("SiteA", "schema-default").Inc()
	c.Corrections.WithLabelValues("SiteA", "cumulative_blended").Inc()

	if got := testutil.ToFloat64(c.CellsImputed.WithLabelValues("SiteA", "neighbor-average")); got != 3 {
		t.Errorf("Expected 3, got %v", got)
	}
	if got := testutil.CollectAndCount(c.CellsImputed); got != 2 {
		t.Errorf("Expected 2 series, got %d", got)
	}

	expected := `
# HELP monfill_corrections_total Cumulative consistency corrections by kind
# TYPE monfill_corrections_total counter
monfill_corrections_total{kind="cumulative_blended",project="SiteA"} 1
`
	if err := testutil.CollectAndCompare(c.Corrections, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected metrics: %v", err)
	}
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	a.ForcedFills.WithLabelValues("SiteA").Inc()
	if got := testutil.CollectAndCount(b.ForcedFills); got != 0 {
		t.Errorf("Expected separate registries, got %d series", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.SnapshotsLoaded.WithLabelValues("SiteA").Add(12)
	start := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	c.ObserveRun(start, start.Add(2*time.Second))

	path := filepath.Join(t.TempDir(), "textfile", "monfill.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`monfill_snapshots_loaded_total{project="SiteA"} 12`,
		"monfill_run_duration_seconds_count 1",
		"monfill_last_run_timestamp_seconds",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in textfile, got:\n%s", want, out)
		}
	}
}

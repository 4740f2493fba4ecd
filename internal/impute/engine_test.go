package impute

import (
	"errors"
	"math"
	"testing"
	"time"

	"monfill/internal/snapshot"
)

// oneSlot is a minimal layout with a single change slot.
func oneSlot() snapshot.Layout {
	l := snapshot.DefaultLayout()
	l.Slots = []snapshot.SlotSpec{{Band: snapshot.Change, Axis: snapshot.AxisX}}
	return l
}

func ts(d, hour int) snapshot.Identity {
	return snapshot.NewIdentity(time.Date(2024, 7, d, 0, 0, 0, 0, time.UTC), hour, "SiteA")
}

// series builds one snapshot per identity with a single point P1 holding vals[i] (nil = blank).
func series(ids []snapshot.Identity, vals ...any) []*snapshot.Snapshot {
	seq := make([]*snapshot.Snapshot, len(ids))
	for i, id := range ids {
		s := snapshot.New(id, "")
		r := snapshot.NewRow("P1", 1, 1)
		if f, ok := vals[i].(float64); ok {
			r.Set(0, f)
		}
		s.AddRow(r)
		seq[i] = s
	}
	return seq
}

func valueOf(t *testing.T, s *snapshot.Snapshot, point string, slot int) float64 {
	t.Helper()
	r := s.Row(point)
	if r == nil {
		t.Fatalf("point %s missing in %s", point, s.ID)
	}
	v, ok := r.Get(slot)
	if !ok {
		t.Fatalf("slot %d of %s still blank in %s", slot, point, s.ID)
	}
	return v
}

func TestRun_NeighborAverageIsExactMean(t *testing.T) {
	seq := series([]snapshot.Identity{ts(1, 16), ts(2, 8), ts(3, 0)}, 3.3, nil, 7.9)
	res, err := NewEngine(oneSlot(), Options{}).Run(seq)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := valueOf(t, seq[1], "P1", 0), (3.3+7.9)/2; got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if res.Filled[NeighborAverage] != 1 || res.Total != 1 {
		t.Errorf("Unexpected fill stats %+v", res.Filled)
	}
}

func TestRun_SequentialDependency(t *testing.T) {
	seq := series([]snapshot.Identity{ts(1, 0), ts(1, 8), ts(1, 16), ts(2, 0)}, 10.0, nil, nil, 40.0)
	if _, err := NewEngine(oneSlot(), Options{}).Run(seq); err != nil {
		t.Fatal(err)
	}
	if got := valueOf(t, seq[1], "P1", 0); got != 25 {
		t.Errorf("Expected 25 at t1, got %v", got)
	}
	// t2 reads the value imputed for t1 as its earlier neighbor.
	if got := valueOf(t, seq[2], "P1", 0); got != 32.5 {
		t.Errorf("Expected 32.5 at t2, got %v", got)
	}
}

func TestRun_SameDayAverage(t *testing.T) {
	seq := series([]snapshot.Identity{ts(1, 0), ts(1, 8), ts(1, 16)}, 10.0, 14.0, nil)
	res, err := NewEngine(oneSlot(), Options{}).Run(seq)
	if err != nil {
		t.Fatal(err)
	}
	if got := valueOf(t, seq[2], "P1", 0); got != 12 {
		t.Errorf("Expected same-day mean 12, got %v", got)
	}
	if res.Filled[SameDayAverage] != 1 {
		t.Errorf("Expected same-day strategy, got %+v", res.Filled)
	}
}

func TestRun_NearestNeighbor(t *testing.T) {
	seq := series([]snapshot.Identity{ts(1, 16), ts(2, 0)}, 5.0, nil)
	res, err := NewEngine(oneSlot(), Options{}).Run(seq)
	if err != nil {
		t.Fatal(err)
	}
	if got := valueOf(t, seq[1], "P1", 0); got != 5 {
		t.Errorf("Expected 5, got %v", got)
	}
	if res.Filled[NearestNeighbor] != 1 {
		t.Errorf("Expected nearest-neighbor strategy, got %+v", res.Filled)
	}
}

func TestRun_AdjacentPointAndDefault(t *testing.T) {
	layout := snapshot.DefaultLayout()
	layout.Slots = []snapshot.SlotSpec{
		{Band: snapshot.Change, Axis: snapshot.AxisX},
		{Band: snapshot.Cumulative, Axis: snapshot.AxisX, Default: 7},
	}

	var seq []*snapshot.Snapshot
	for _, id := range []snapshot.Identity{ts(1, 0), ts(1, 8)} {
		s := snapshot.New(id, "")
		p1 := snapshot.NewRow("P1", 1, 2)
		p1.Set(0, 2)
		p2 := snapshot.NewRow("P2", 2, 2) // never observed
		p3 := snapshot.NewRow("P3", 3, 2)
		p3.Set(0, 4)
		s.AddRow(p1)
		s.AddRow(p2)
		s.AddRow(p3)
		seq = append(seq, s)
	}

	res, err := NewEngine(layout, Options{}).Run(seq)
	if err != nil {
		t.Fatal(err)
	}
	if got := valueOf(t, seq[0], "P2", 0); got != 3 {
		t.Errorf("Expected adjacent-point mean 3, got %v", got)
	}
	// P1 and P3 cumulative slots are blank everywhere too, so every point falls through to the default.
	if got := valueOf(t, seq[1], "P2", 1); got != 7 {
		t.Errorf("Expected schema default 7, got %v", got)
	}
	if res.Filled[SchemaDefault] == 0 {
		t.Errorf("Expected schema-default fills, got %+v", res.Filled)
	}
}

func TestRun_NoBlankRemains(t *testing.T) {
	layout := snapshot.DefaultLayout()
	ids := []snapshot.Identity{ts(1, 0), ts(1, 8), ts(1, 16), ts(2, 0), ts(2, 8)}
	var seq []*snapshot.Snapshot
	for i, id := range ids {
		s := snapshot.New(id, "")
		for p := 0; p < 4; p++ {
			r := snapshot.NewRow(string(rune('A'+p)), p+1, layout.Width())
			for slot := 0; slot < layout.Width(); slot++ {
				if (i+p+slot)%3 != 0 {
					r.Set(slot, float64(i*10+slot))
				}
			}
			s.AddRow(r)
		}
		seq = append(seq, s)
	}

	if _, err := NewEngine(layout, Options{}).Run(seq); err != nil {
		t.Fatal(err)
	}
	for _, s := range seq {
		if n := s.BlankCount(); n != 0 {
			t.Errorf("%s still has %d blanks", s.ID, n)
		}
	}
}

func TestRun_ForcedFillsWithShortChain(t *testing.T) {
	chain, err := ChainByNames([]string{NeighborAverage})
	if err != nil {
		t.Fatal(err)
	}
	seq := series([]snapshot.Identity{ts(1, 0), ts(1, 8)}, 1.0, nil)
	res, err := NewEngine(oneSlot(), Options{Chain: chain}).Run(seq)
	if err != nil {
		t.Fatal(err)
	}
	if res.Forced != 1 {
		t.Errorf("Expected 1 forced fill, got %d", res.Forced)
	}
	if got := valueOf(t, seq[1], "P1", 0); got != 0 {
		t.Errorf("Expected change default 0, got %v", got)
	}
}

func TestRun_IntegrityError(t *testing.T) {
	seq := series([]snapshot.Identity{ts(1, 0), ts(1, 8)}, 1.0, 2.0)
	seq[1].Rows[0].Set(0, math.Inf(1))

	_, err := NewEngine(oneSlot(), Options{}).Run(seq)
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("Expected IntegrityError, got %v", err)
	}
	if ie.Point != "P1" || ie.Slot != "change-X" {
		t.Errorf("Unexpected error detail %+v", ie)
	}
}

func TestRun_SortsInput(t *testing.T) {
	seq := series([]snapshot.Identity{ts(2, 0), ts(1, 0), ts(1, 8)}, 30.0, 10.0, nil)
	if _, err := NewEngine(oneSlot(), Options{}).Run(seq); err != nil {
		t.Fatal(err)
	}
	if seq[0].ID != ts(1, 0) {
		t.Fatal("Expected the sequence to be sorted chronologically")
	}
	if got := valueOf(t, seq[1], "P1", 0); got != 20 {
		t.Errorf("Expected 20, got %v", got)
	}
}

func TestRun_Empty(t *testing.T) {
	res, err := NewEngine(oneSlot(), Options{}).Run(nil)
	if err != nil || res.Total != 0 {
		t.Errorf("Expected empty result, got %+v / %v", res, err)
	}
}

func TestChainByNames(t *testing.T) {
	chain, err := ChainByNames(nil)
	if err != nil || len(chain) != 6 {
		t.Fatalf("Expected default chain of 6, got %d (%v)", len(chain), err)
	}
	if chain[0].Name != NeighborAverage || chain[5].Name != SchemaDefault {
		t.Errorf("Unexpected default order %s..%s", chain[0].Name, chain[5].Name)
	}
	if _, err := ChainByNames([]string{"median"}); err == nil {
		t.Error("Expected unknown strategy error")
	}
	chain, err = ChainByNames([]string{" linear ", SchemaDefault})
	if err != nil || chain[0].Name != LinearInTime {
		t.Errorf("Expected trimmed names, got %v (%v)", chain, err)
	}
}

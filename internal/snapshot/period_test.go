package snapshot

import (
	"slices"
	"testing"
	"time"
)

func TestDetectMissingPeriods(t *testing.T) {
	seq := []*Snapshot{
		snap(1, 0, row("P1", 1, 1.0, 1.0), row("P2", 2, 1.0, 1.0)),
		snap(1, 8, row("P1", 1, nil, 1.0), row("P2", 2, 1.0, nil)),
		snap(1, 16, row("P1", 1, nil, nil), row("P2", 2, nil, 1.0)),
		snap(2, 0, row("P1", 1, 2.0, 2.0), row("P2", 2, 2.0, 2.0)),
		snap(2, 8, row("P1", 1, 2.0, nil)),
	}

	periods := DetectMissingPeriods(seq)
	if len(periods) != 2 {
		t.Fatalf("Expected 2 periods, got %d: %+v", len(periods), periods)
	}

	first := periods[0]
	if !slices.Equal(first.Points, []string{"P1", "P2"}) {
		t.Errorf("Expected merged points [P1 P2], got %v", first.Points)
	}
	if first.StartIndex != 1 || first.EndIndex != 2 {
		t.Errorf("Expected run 1..2, got %d..%d", first.StartIndex, first.EndIndex)
	}
	if len(first.Missing) != 2 {
		t.Errorf("Expected 2 missing timestamps, got %d", len(first.Missing))
	}
	if first.Before == nil || !first.Before.Equal(seq[0].Time()) {
		t.Errorf("Expected Before at %v, got %v", seq[0].Time(), first.Before)
	}
	if first.After == nil || !first.After.Equal(seq[3].Time()) {
		t.Errorf("Expected After at %v, got %v", seq[3].Time(), first.After)
	}

	// P2 has no row in the last snapshot and P1 has a blank: both end at the boundary.
	last := periods[1]
	if last.After != nil || last.AfterIndex != -1 {
		t.Error("Expected a trailing period without After bound")
	}
	if !slices.Equal(last.Points, []string{"P1", "P2"}) {
		t.Errorf("Expected [P1 P2], got %v", last.Points)
	}
}

func TestMissingPeriod_Position(t *testing.T) {
	before := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	after := before.Add(16 * time.Hour)
	p := MissingPeriod{Before: &before, After: &after}

	pos, ok := p.Position(before.Add(8 * time.Hour))
	if !ok || pos != 0.5 {
		t.Errorf("Expected 0.5, got %v (ok=%v)", pos, ok)
	}

	if _, ok := (MissingPeriod{Before: &before}).Position(before); ok {
		t.Error("Expected no position without After bound")
	}
}

func TestPointOrder(t *testing.T) {
	seq := []*Snapshot{
		snap(1, 0, row("B", 2, 1.0), row("A", 3, 1.0)),
		snap(1, 8, row("C", 1, 1.0)),
	}
	if got := PointOrder(seq); !slices.Equal(got, []string{"C", "B", "A"}) {
		t.Errorf("Expected positional order [C B A], got %v", got)
	}
}

package engine

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"monfill/internal/snapshot"
	"monfill/internal/workbook"
)

type GeneratorConfig struct {
	Scenario string // "mild", "chaos" or "drift"
	Project  string
	Points   int
	Days     int
	Hours    []int
	Start    time.Time
	Seed     int64
	Layout   snapshot.Layout
}

// Damage counts what the generator broke on purpose.
type Damage struct {
	DroppedSnapshots int
	BlankCells       int
	BrokenChains     int
}

type scenario struct {
	dropRate  float64 // share of snapshots removed
	blankRate float64 // share of cells left blank
	breakRate float64 // share of cumulative cells shifted without a matching change
	stepScale float64
	trend     float64
}

func scenarioFor(name string) scenario {
	switch name {
	case "chaos":
		return scenario{dropRate: 0.2, blankRate: 0.08, breakRate: 0.04, stepScale: 1.5}
	case "drift":
		return scenario{dropRate: 0.05, blankRate: 0.02, stepScale: 0.5, trend: 0.05}
	default:
		return scenario{dropRate: 0.05, blankRate: 0.02, stepScale: 0.5}
	}
}

// Generate builds a chronological series of snapshots whose cumulative slots follow their
// change slots exactly, then removes snapshots, blanks cells and breaks chains according
// to the scenario.
func Generate(cfg GeneratorConfig) ([]*snapshot.Snapshot, Damage) {
	if cfg.Start.IsZero() {
		cfg.Start = snapshot.DateOf(time.Now()).AddDate(0, 0, -cfg.Days)
	}
	if len(cfg.Hours) == 0 {
		cfg.Hours = []int{0, 8, 16}
	}
	if cfg.Project == "" {
		cfg.Project = "MOCK"
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	sc := scenarioFor(cfg.Scenario)
	pairs := cfg.Layout.AxisPairs()
	width := cfg.Layout.Width()

	// 1. Starting cumulative values per point and axis
	cumul := make([][]float64, cfg.Points)
	for p := range cumul {
		cumul[p] = make([]float64, len(pairs))
		for a := range pairs {
			cumul[p][a] = math.Round(rng.Float64()*200) / 10
		}
	}

	var out []*snapshot.Snapshot
	var dmg Damage
	step := 0
	for d := 0; d < cfg.Days; d++ {
		date := cfg.Start.AddDate(0, 0, d)
		for _, h := range cfg.Hours {
			step++
			// 2. Advance every chain, even for snapshots that will be dropped
			changes := make([][]float64, cfg.Points)
			for p := range changes {
				changes[p] = make([]float64, len(pairs))
				for a := range pairs {
					delta := (rng.Float64()*2-1)*sc.stepScale + sc.trend*float64(p%3)
					changes[p][a] = math.Round(delta*100) / 100
					cumul[p][a] = math.Round((cumul[p][a]+changes[p][a])*100) / 100
				}
			}

			if step > 1 && rng.Float64() < sc.dropRate {
				dmg.DroppedSnapshots++
				continue
			}

			id := snapshot.NewIdentity(date, h, cfg.Project)
			s := snapshot.New(id, "")
			for p := 0; p < cfg.Points; p++ {
				row := snapshot.NewRow(fmt.Sprintf("P%02d", p+1), p+1, width)
				for a, pair := range pairs {
					row.Set(pair.ChangeIdx, changes[p][a])
					row.Set(pair.CumulIdx, cumul[p][a])
				}
				for i, spec := range cfg.Layout.Slots {
					if spec.Band == snapshot.Daily {
						row.Set(i, 0)
					}
				}

				// 3. Damage
				for a, pair := range pairs {
					if sc.breakRate > 0 && rng.Float64() < sc.breakRate {
						v, _ := row.Get(pair.CumulIdx)
						row.Set(pair.CumulIdx, v+jump(rng, cumul[p][a]))
						dmg.BrokenChains++
					}
				}
				for i := 0; i < width; i++ {
					if rng.Float64() < sc.blankRate {
						row.Clear(i)
						dmg.BlankCells++
					}
				}
				s.AddRow(row)
			}
			out = append(out, s)
		}
	}
	return out, dmg
}

// jump returns a signed offset well above the configured correction threshold.
func jump(rng *rand.Rand, base float64) float64 {
	mag := 10 + weibullSample(rng, 0.8, 12.0) + math.Abs(base)*0.1
	if rng.Intn(2) == 0 {
		mag = -mag
	}
	return math.Round(mag*100) / 100
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Save writes every snapshot as a workbook into outDir.
func Save(outDir string, layout snapshot.Layout, snaps []*snapshot.Snapshot) error {
	x, err := workbook.NewExcel(layout)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		if err := x.Write(s, filepath.Join(outDir, s.FileName())); err != nil {
			return err
		}
	}
	return nil
}

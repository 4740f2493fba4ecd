package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"monfill/cmd/mockgen/engine"
	"monfill/internal/config"
	"monfill/internal/snapshot"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, chaos, drift")
	outDir := flag.String("out", "./.cache/mock", "Output directory for mock workbooks")
	project := flag.String("project", "MOCK", "Project name embedded in file names")
	days := flag.Int("days", 14, "Number of days to generate")
	points := flag.Int("points", 20, "Monitoring points per snapshot")
	hours := flag.String("hours", "0,8,16", "Comma-separated snapshot hours")
	seed := flag.Int64("seed", 1, "Random seed")
	layoutFile := flag.String("layout", "", "Optional layout JSON file")
	flag.Parse()

	layout := snapshot.DefaultLayout()
	if *layoutFile != "" {
		l, err := config.LoadLayout(*layoutFile)
		if err != nil {
			fmt.Printf("Failed to load layout: %v\n", err)
			os.Exit(1)
		}
		layout = l
	}
	hs, err := config.ParseHours(*hours)
	if err != nil {
		fmt.Printf("Invalid hours: %v\n", err)
		os.Exit(1)
	}

	cfg := engine.GeneratorConfig{
		Scenario: *scenario,
		Project:  *project,
		Points:   *points,
		Days:     *days,
		Hours:    hs,
		Start:    snapshot.DateOf(time.Now()).AddDate(0, 0, -*days),
		Seed:     *seed,
		Layout:   layout,
	}

	fmt.Printf("Generating scenario '%s' (%d days, %d points) to %s...\n", cfg.Scenario, cfg.Days, cfg.Points, *outDir)

	snaps, dmg := engine.Generate(cfg)
	if err := engine.Save(*outDir, layout, snaps); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done. %d snapshots written, %d dropped, %d blank cells, %d broken chains.\n",
		len(snaps), dmg.DroppedSnapshots, dmg.BlankCells, dmg.BrokenChains)
}

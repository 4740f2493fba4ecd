package commands

import (
	"fmt"
	"os"

	"monfill/internal/audit"
	"monfill/internal/impute"
	"monfill/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	assumeYes         bool
	includeEmptyDates bool
	noJitter          bool
	strategies        []string
)

var processCmd = &cobra.Command{
	Use:   "process [input-dir] [output-dir]",
	Short: "Fill missing snapshots and blank cells, then repair cumulative values",
	Long: `Fill missing snapshots and blank cells, then repair cumulative values.
The input directory defaults to DATA_PATH and the output directory to <input>/processed.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := pipeline.SettingsFrom(cfg)
		settings.IncludeEmptyDates = includeEmptyDates
		settings.DisableJitter = noJitter
		if len(strategies) > 0 {
			settings.Strategies = strategies
		}

		p, err := newProcessor(settings, promptConfirmer(os.Stdin, cmd.ErrOrStderr(), assumeYes))
		if err != nil {
			return err
		}

		input, output := resolveDirs(args, cfg.DataPath)
		sum, err := p.Process(cmd.Context(), input, output)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run %s\n", sum.RunID)
		for _, proj := range sum.Projects {
			counts := audit.Summary(proj.Corrections)
			fmt.Fprintf(out, "  %-20s %3d supplements  %5d cells filled  %3d forced  %4d recomputed  %4d blended  %4d change fixes\n",
				proj.Name, len(proj.Plans), proj.Imputation.Total, proj.Imputation.Forced,
				counts[audit.CumulativeRecomputed], counts[audit.CumulativeBlended], counts[audit.ChangeOverwritten])
		}
		fmt.Fprintf(out, "%d files written, %d skipped\n", sum.Written, len(sum.Skipped))
		for _, s := range sum.Skipped {
			fmt.Fprintf(out, "  skipped: %s\n", s)
		}
		fmt.Fprintf(out, "Report: %s\n", sum.ReportPath)
		return nil
	},
}

func init() {
	processCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to confirmation prompts")
	processCmd.Flags().BoolVar(&includeEmptyDates, "include-empty-dates", false, "also synthesize dates with no snapshot at all")
	processCmd.Flags().BoolVar(&noJitter, "no-jitter", false, "do not perturb supplement snapshots")
	processCmd.Flags().StringSliceVar(&strategies, "strategies", nil,
		fmt.Sprintf("imputation chain override, any of %v", impute.StrategyNames()))
}

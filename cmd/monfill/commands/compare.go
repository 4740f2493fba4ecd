package commands

import (
	"monfill/internal/compare"
	"monfill/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	tolerance float64
	detailed  bool
	maxDiffs  int
)

var compareCmd = &cobra.Command{
	Use:   "compare [original-dir] [processed-dir]",
	Short: "Report cell differences between original and processed snapshots",
	Long: `Report cell differences between original and processed snapshots.
The original directory defaults to DATA_PATH and the processed one to <original>/processed.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProcessor(pipeline.SettingsFrom(cfg), nil)
		if err != nil {
			return err
		}

		original, processed := resolveDirs(args, cfg.DataPath)
		res, err := p.Compare(cmd.Context(), original, processed, tolerance)
		if err != nil {
			return err
		}
		return compare.Render(cmd.OutOrStdout(), res, detailed, maxDiffs)
	},
}

func init() {
	compareCmd.Flags().Float64VarP(&tolerance, "tolerance", "t", 0.01, "difference above which a cell is significant")
	compareCmd.Flags().BoolVarP(&detailed, "detailed", "d", false, "list individual cell differences")
	compareCmd.Flags().IntVarP(&maxDiffs, "max-diffs", "n", 10, "differences listed per file with --detailed (0 = all)")
}

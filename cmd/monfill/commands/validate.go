package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"monfill/internal/pipeline"
	"monfill/internal/report"

	"github.com/spf13/cobra"
)

var errValidationFailed = errors.New("cumulative consistency check failed")

var validateJSON bool

var validateCmd = &cobra.Command{
	Use:   "validate-processed [dir]",
	Short: "Check that cumulative values match their period changes, without modifying files",
	Long: `Check that cumulative values match their period changes, without modifying files.
The directory defaults to DATA_PATH/processed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProcessor(pipeline.SettingsFrom(cfg), nil)
		if err != nil {
			return err
		}

		dir := filepath.Join(cfg.DataPath, ProcessedDir)
		if len(args) == 1 {
			dir = args[0]
		}
		sum, err := p.ValidateProcessed(cmd.Context(), dir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if validateJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(sum); err != nil {
				return err
			}
		} else {
			for _, proj := range sum.Projects {
				fmt.Fprintln(out, report.Validation(proj.Project, proj.Validation))
			}
			for _, s := range sum.Skipped {
				fmt.Fprintf(out, "skipped: %s\n", s)
			}
		}

		if !sum.Valid() {
			return errValidationFailed
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print the result as JSON")
}

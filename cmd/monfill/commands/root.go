package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"monfill/internal/config"
	"monfill/internal/logging"
	"monfill/internal/pipeline"
	"monfill/internal/workbook"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "monfill",
	Short: "monfill completes and reconciles monitoring snapshot workbooks",
	Long: `monfill fills missing time slots and blank cells in periodic monitoring snapshots,
repairs cumulative values that disagree with their period changes, and audits the result
against the original files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := logging.AttachFile(cfg.LogDir); err != nil {
			return err
		}

		log.Debug().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("dataPath", cfg.DataPath).
			Str("logDir", cfg.LogDir).
			Ints("hours", cfg.Hours).
			Int("slots", cfg.Layout.Width()).
			Msg("monfill starting")
		return nil
	},
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.AddCommand(processCmd, validateCmd, compareCmd, schemaCmd)
}

// ProcessedDir is the output folder used when no output directory is given.
const ProcessedDir = "processed"

// resolveDirs fills missing directory arguments from DATA_PATH: the input defaults to
// dataPath and the processed directory to <input>/processed.
func resolveDirs(args []string, dataPath string) (input, processed string) {
	input = dataPath
	if len(args) > 0 {
		input = args[0]
	}
	processed = filepath.Join(input, ProcessedDir)
	if len(args) > 1 {
		processed = args[1]
	}
	return input, processed
}

// newProcessor wires the configured workbook adapter into a pipeline processor.
func newProcessor(settings pipeline.Settings, confirm pipeline.Confirmer) (*pipeline.Processor, error) {
	x, err := workbook.NewExcel(settings.Layout)
	if err != nil {
		return nil, err
	}
	return pipeline.New(settings, x, x, confirm)
}

// promptConfirmer asks on the terminal. Without a terminal it answers assumeYes.
func promptConfirmer(in *os.File, out io.Writer, assumeYes bool) pipeline.Confirmer {
	return pipeline.ConfirmFunc(func(question string) bool {
		if assumeYes {
			log.Info().Str("question", question).Msg("Confirmed by --yes")
			return true
		}
		if !isatty.IsTerminal(in.Fd()) && !isatty.IsCygwinTerminal(in.Fd()) {
			log.Warn().Str("question", question).Msg("No terminal to confirm, declining (use --yes to accept)")
			return false
		}
		return ask(bufio.NewReader(in), out, question)
	})
}

func ask(r *bufio.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the name of the rotating log file inside the log directory.
const FileName = "monfill.log"

// Init sets the global level and a console logger on stderr. The rotating file sink is
// added by AttachFile once the configuration, and with it the log directory, is known.
func Init(verbose bool) {
	// 1. Determine log level
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	// 2. Console-only logger until the log directory is resolved
	log.Logger = zerolog.New(ConsoleWriter(os.Stderr)).
		With().
		Timestamp().
		Logger()
}

// AttachFile adds a rotating file sink in logDir to the global logger.
func AttachFile(logDir string) error {
	fileWriter, err := FileWriter(logDir)
	if err != nil {
		return err
	}

	multi := zerolog.MultiLevelWriter(io.Writer(ConsoleWriter(os.Stderr)), fileWriter)
	log.Logger = zerolog.New(multi).
		With().
		Timestamp().
		Logger()
	return nil
}

// ConsoleWriter returns a human-readable writer; color is enabled only on a terminal.
func ConsoleWriter(out *os.File) zerolog.ConsoleWriter {
	isTerminal := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal,
	}
}

// FileWriter creates logDir, checks that it is writable and returns a rotating writer into it.
func FileWriter(logDir string) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %q: %w", logDir, err)
	}

	testFile := filepath.Join(logDir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return nil, fmt.Errorf("log directory %q is not writable: %w", logDir, err)
	}
	_ = os.Remove(testFile)

	return &lumberjack.Logger{
		Filename:   filepath.Join(logDir, FileName),
		MaxSize:    16, // megabytes
		MaxBackups: 8,
		MaxAge:     90, // days
		Compress:   true,
	}, nil
}

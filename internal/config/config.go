package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"monfill/internal/snapshot"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Thresholds are the numeric knobs of imputation and correction.
type Thresholds struct {
	CumulativeAdjustment float64
	ColumnValidation     float64
	AdjustmentRange      float64
	MinimumAdjustment    float64
	CorrelationWeight    float64
	BlendMultiplier      float64
	BlendFactor          float64
	RandomSeed           int64
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DataPath       string
	LogDir         string
	Thresholds     Thresholds
	Hours          []int
	Strategies     []string
	Layout         snapshot.Layout
	LayoutFile     string
	AuditDB        string
	MetricsFile    string
	CompareWorkers int
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve data paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}
	logDir := getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs"))

	// 4. Numeric settings
	cfg := &AppConfig{
		DataPath: dataPath,
		LogDir:   logDir,
		Thresholds: Thresholds{
			CumulativeAdjustment: getEnvFloat("CUMULATIVE_ADJUSTMENT_THRESHOLD", 5.0),
			ColumnValidation:     getEnvFloat("COLUMN_VALIDATION_TOLERANCE", 0.01),
			AdjustmentRange:      getEnvFloat("ADJUSTMENT_RANGE", 0.05),
			MinimumAdjustment:    getEnvFloat("MINIMUM_ADJUSTMENT", 0.01),
			CorrelationWeight:    getEnvFloat("CORRELATION_WEIGHT", 0.7),
			BlendMultiplier:      getEnvFloat("BLEND_MULTIPLIER", 2.0),
			BlendFactor:          getEnvFloat("BLEND_FACTOR", 0.5),
			RandomSeed:           getEnvInt64("RANDOM_SEED", 42),
		},
		Strategies:     splitList(getEnv("IMPUTE_STRATEGIES", "")),
		LayoutFile:     getEnv("LAYOUT_FILE", ""),
		AuditDB:        getEnv("AUDIT_DB", ""),
		MetricsFile:    getEnv("METRICS_FILE", ""),
		CompareWorkers: int(getEnvInt64("COMPARE_WORKERS", 4)),
		Layout:         snapshot.DefaultLayout(),
	}

	hours, err := ParseHours(getEnv("CANONICAL_HOURS", "0,8,16"))
	if err != nil {
		return nil, fmt.Errorf("CANONICAL_HOURS: %w", err)
	}
	cfg.Hours = hours

	// 5. Optional layout file
	if cfg.LayoutFile != "" {
		layout, err := LoadLayout(cfg.LayoutFile)
		if err != nil {
			return nil, err
		}
		cfg.Layout = layout
		log.Debug().Str("path", cfg.LayoutFile).Int("slots", layout.Width()).Msg("Loaded layout file")
	}

	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *AppConfig) Validate() error {
	t := c.Thresholds
	checks := []struct {
		name  string
		value float64
	}{
		{"CUMULATIVE_ADJUSTMENT_THRESHOLD", t.CumulativeAdjustment},
		{"COLUMN_VALIDATION_TOLERANCE", t.ColumnValidation},
		{"ADJUSTMENT_RANGE", t.AdjustmentRange},
		{"MINIMUM_ADJUSTMENT", t.MinimumAdjustment},
		{"BLEND_MULTIPLIER", t.BlendMultiplier},
		{"BLEND_FACTOR", t.BlendFactor},
	}
	for _, ch := range checks {
		if ch.value < 0 {
			return fmt.Errorf("%s must not be negative, got %v", ch.name, ch.value)
		}
	}
	if t.CorrelationWeight < 0 || t.CorrelationWeight > 1 {
		return fmt.Errorf("CORRELATION_WEIGHT must be within [0,1], got %v", t.CorrelationWeight)
	}
	if t.BlendFactor > 1 {
		return fmt.Errorf("BLEND_FACTOR must be within [0,1], got %v", t.BlendFactor)
	}
	if len(c.Hours) == 0 {
		return fmt.Errorf("CANONICAL_HOURS must not be empty")
	}
	for _, h := range c.Hours {
		if h < 0 || h > 23 {
			return fmt.Errorf("CANONICAL_HOURS: hour %d out of range 0..23", h)
		}
	}
	if c.CompareWorkers < 1 {
		return fmt.Errorf("COMPARE_WORKERS must be >= 1, got %d", c.CompareWorkers)
	}
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if len(c.Layout.SlotsInBand(snapshot.Cumulative)) == 0 {
		log.Warn().Msg("Layout has no cumulative slots, consistency correction will be a no-op")
	}
	return nil
}

// ParseHours parses a comma separated list of hours, sorted and de-duplicated.
func ParseHours(s string) ([]int, error) {
	seen := make(map[int]bool)
	var hours []int
	for _, part := range splitList(s) {
		h, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid hour %q", part)
		}
		if !seen[h] {
			seen[h] = true
			hours = append(hours, h)
		}
	}
	slices.Sort(hours)
	return hours, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
		log.Warn().Str("key", key).Str("value", value).Float64("default", fallback).Msg("Invalid number, using default")
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return i
		}
		log.Warn().Str("key", key).Str("value", value).Int64("default", fallback).Msg("Invalid integer, using default")
	}
	return fallback
}

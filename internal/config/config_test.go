package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"monfill/internal/snapshot"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATA_PATH", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Thresholds.CumulativeAdjustment != 5.0 || cfg.Thresholds.ColumnValidation != 0.01 {
		t.Errorf("Unexpected thresholds %+v", cfg.Thresholds)
	}
	if cfg.Thresholds.RandomSeed != 42 || cfg.CompareWorkers != 4 {
		t.Errorf("Expected seed 42 and 4 workers, got %d / %d", cfg.Thresholds.RandomSeed, cfg.CompareWorkers)
	}
	if len(cfg.Hours) != 3 || cfg.Hours[1] != 8 {
		t.Errorf("Expected hours [0 8 16], got %v", cfg.Hours)
	}
	if cfg.Layout.Width() != 6 {
		t.Errorf("Expected default layout with 6 slots, got %d", cfg.Layout.Width())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestLoad_Paths(t *testing.T) {
	t.Chdir(t.TempDir())
	data := t.TempDir()
	t.Setenv("DATA_PATH", data)
	t.Setenv("LOGS_FOLDER", "")
	if err := os.Unsetenv("LOGS_FOLDER"); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataPath != data {
		t.Errorf("Expected data path %s, got %s", data, cfg.DataPath)
	}
	if cfg.LogDir != filepath.Join(data, "logs") {
		t.Errorf("Expected log dir below data path, got %s", cfg.LogDir)
	}

	custom := t.TempDir()
	t.Setenv("LOGS_FOLDER", custom)
	cfg, err = Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogDir != custom {
		t.Errorf("Expected LOGS_FOLDER %s, got %s", custom, cfg.LogDir)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("CUMULATIVE_ADJUSTMENT_THRESHOLD", "2.5")
	t.Setenv("COLUMN_VALIDATION_TOLERANCE", "oops")
	t.Setenv("CANONICAL_HOURS", "16, 4,4")
	t.Setenv("IMPUTE_STRATEGIES", "neighbor-average, linear")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Thresholds.CumulativeAdjustment != 2.5 {
		t.Errorf("Expected 2.5, got %v", cfg.Thresholds.CumulativeAdjustment)
	}
	if cfg.Thresholds.ColumnValidation != 0.01 {
		t.Errorf("Expected fallback 0.01 for invalid value, got %v", cfg.Thresholds.ColumnValidation)
	}
	if len(cfg.Hours) != 2 || cfg.Hours[0] != 4 || cfg.Hours[1] != 16 {
		t.Errorf("Expected [4 16], got %v", cfg.Hours)
	}
	if len(cfg.Strategies) != 2 || cfg.Strategies[1] != "linear" {
		t.Errorf("Expected 2 strategies, got %v", cfg.Strategies)
	}
}

func TestValidate(t *testing.T) {
	base := func() *AppConfig {
		return &AppConfig{
			Thresholds: Thresholds{
				CumulativeAdjustment: 5, ColumnValidation: 0.01, AdjustmentRange: 0.05,
				MinimumAdjustment: 0.01, CorrelationWeight: 0.7, BlendMultiplier: 2, BlendFactor: 0.5,
			},
			Hours:          []int{0, 8, 16},
			Layout:         snapshot.DefaultLayout(),
			CompareWorkers: 1,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *AppConfig)
		errMsg string
	}{
		{"Valid", func(c *AppConfig) {}, ""},
		{"NegativeThreshold", func(c *AppConfig) { c.Thresholds.CumulativeAdjustment = -1 }, "CUMULATIVE_ADJUSTMENT_THRESHOLD"},
		{"Weight", func(c *AppConfig) { c.Thresholds.CorrelationWeight = 1.5 }, "CORRELATION_WEIGHT"},
		{"NoHours", func(c *AppConfig) { c.Hours = nil }, "must not be empty"},
		{"HourRange", func(c *AppConfig) { c.Hours = []int{24} }, "out of range"},
		{"Workers", func(c *AppConfig) { c.CompareWorkers = 0 }, "COMPARE_WORKERS"},
		{"Layout", func(c *AppConfig) { c.Layout.Slots = nil }, "at least one slot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestParseHours_Invalid(t *testing.T) {
	if _, err := ParseHours("0,eight"); err == nil {
		t.Error("Expected error for non-numeric hour")
	}
}

func TestParseLayout(t *testing.T) {
	valid := `{
		"sheet": "Data",
		"name_column": "A",
		"first_value_column": "C",
		"first_row": 3,
		"row_count": 40,
		"slots": [
			{"band": "change", "axis": "X"},
			{"band": "cumulative", "axis": "X"},
			{"band": "daily", "axis": "X", "default": 0.5}
		]
	}`
	layout, err := ParseLayout([]byte(valid))
	if err != nil {
		t.Fatalf("Expected valid layout, got %v", err)
	}
	if layout.Sheet != "Data" || layout.Width() != 3 || layout.Slots[2].Default != 0.5 {
		t.Errorf("Unexpected layout %+v", layout)
	}

	invalid := map[string]string{
		"UnknownBand": `{"name_column":"A","first_value_column":"B","first_row":1,"row_count":1,"slots":[{"band":"weekly","axis":"X"}]}`,
		"MissingRows": `{"name_column":"A","first_value_column":"B","first_row":1,"slots":[{"band":"change","axis":"X"}]}`,
		"ZeroRow":     `{"name_column":"A","first_value_column":"B","first_row":0,"row_count":1,"slots":[{"band":"change","axis":"X"}]}`,
		"NotJSON":     `{`,
	}
	for name, doc := range invalid {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseLayout([]byte(doc)); err == nil {
				t.Errorf("Expected %s to be rejected", name)
			}
		})
	}
}

func TestLayoutSchema_Serializes(t *testing.T) {
	schema, err := LayoutSchema()
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(schema)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"cumulative"`) {
		t.Errorf("Expected band enum in schema, got %s", data)
	}
}

func TestLoad_LayoutFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "layout.json")
	doc := `{"name_column":"A","first_value_column":"B","first_row":2,"row_count":5,"slots":[{"band":"change","axis":"Z"},{"band":"cumulative","axis":"Z"}]}`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATA_PATH", dir)
	t.Setenv("LAYOUT_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Layout.RowCount != 5 || len(cfg.Layout.AxisPairs()) != 1 {
		t.Errorf("Unexpected layout %+v", cfg.Layout)
	}
}

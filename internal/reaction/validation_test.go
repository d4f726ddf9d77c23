package reaction

import (
	"strings"
	"testing"
	"time"
)

func validChartConfig() ChartConfig {
	return ChartConfig{
		Name:           "titration",
		MaxRowIndex:    9,
		FadeDurationMs: 500,
		DropSpeed:      10,
		Types:          []string{"A", "B", "C"},
		Counts:         map[string]int{"A": 5, "B": 4},
	}
}

func TestValidateChartConfig_ValidConfig(t *testing.T) {
	if err := ValidateChartConfig(validChartConfig()); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestValidateChartConfig_Issues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ChartConfig)
		want   string
	}{
		{"missing name", func(c *ChartConfig) { c.Name = "" }, "chart name is required"},
		{"no types", func(c *ChartConfig) { c.Types = nil; c.Counts = nil }, "at least one molecule type"},
		{"empty type", func(c *ChartConfig) { c.Types = append(c.Types, "") }, "index 3: name is required"},
		{"duplicate type", func(c *ChartConfig) { c.Types = append(c.Types, "A") }, "duplicate molecule type: A"},
		{"negative row index", func(c *ChartConfig) { c.MaxRowIndex = -1; c.Counts = nil }, "max row index must be >= 0"},
		{"negative fade", func(c *ChartConfig) { c.FadeDurationMs = -5 }, "fade_duration_ms must be >= 0"},
		{"zero drop speed", func(c *ChartConfig) { c.DropSpeed = 0 }, "drop speed must be > 0"},
		{"unknown count", func(c *ChartConfig) { c.Counts["Z"] = 1 }, "unknown molecule type 'Z'"},
		{"count above capacity", func(c *ChartConfig) { c.Counts["A"] = 11 }, "count for 'A' must be between 0 and 10"},
		{"negative count", func(c *ChartConfig) { c.Counts["B"] = -1 }, "count for 'B' must be between 0 and 10"},
		{"empty notifier", func(c *ChartConfig) { c.Notifiers = []string{""} }, "notifier at index 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validChartConfig()
			tt.mutate(&cfg)
			err := ValidateChartConfig(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestValidateChartConfig_CollectsAllIssues(t *testing.T) {
	err := ValidateChartConfig(ChartConfig{DropSpeed: -1, Types: []string{"A", "A"}})
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("Expected *ValidationError, got %T", err)
	}
	if len(verr.Issues) != 3 {
		t.Errorf("Expected 3 issues, got %v", verr.Issues)
	}
	if !strings.HasPrefix(verr.Error(), "chart validation errors: ") {
		t.Errorf("Expected joined message, got %q", verr.Error())
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{}
	if err.Error() != "invalid chart: unknown validation error" {
		t.Errorf("Unexpected empty message: %q", err.Error())
	}
	err.Add("one")
	if err.Error() != "one" {
		t.Errorf("Expected single issue message, got %q", err.Error())
	}
	if !err.HasIssues() {
		t.Error("Expected HasIssues to be true")
	}
}

func TestBuildChartFromConfig(t *testing.T) {
	cfg, err := BuildChartFromConfig(validChartConfig())
	if err != nil {
		t.Fatalf("Failed to build chart: %v", err)
	}
	if cfg.Capacity() != 10 {
		t.Errorf("Expected capacity 10, got %d", cfg.Capacity())
	}
	if cfg.FadeDuration != 500*time.Millisecond {
		t.Errorf("Expected fade 500ms, got %v", cfg.FadeDuration)
	}
	if len(cfg.Types) != 3 || cfg.Types[2] != "C" {
		t.Errorf("Expected types A,B,C, got %v", cfg.Types)
	}
	if cfg.Counts["A"] != 5 || cfg.Counts["B"] != 4 {
		t.Errorf("Expected counts carried over, got %v", cfg.Counts)
	}

	if _, err := BuildChartFromConfig(ChartConfig{}); err == nil {
		t.Error("Expected error for empty config")
	}
}

func TestChartConfigFrom(t *testing.T) {
	src := validChartConfig()
	src.Notifiers = []string{"hook"}
	cfg, err := BuildChartFromConfig(src)
	if err != nil {
		t.Fatalf("Failed to build chart: %v", err)
	}
	back := ChartConfigFrom(src.Name, cfg, src.Notifiers)
	if back.Name != src.Name || back.MaxRowIndex != 9 || back.FadeDurationMs != 500 || back.DropSpeed != 10 {
		t.Errorf("Unexpected config %+v", back)
	}
	if back.Counts["A"] != 5 || len(back.Notifiers) != 1 {
		t.Errorf("Expected counts and notifiers, got %+v", back)
	}
}

func TestConfig_WithCountsCopies(t *testing.T) {
	cfg, _ := BuildChartFromConfig(validChartConfig())
	counts := map[MoleculeType]int{"C": 3}
	next := cfg.WithCounts(counts)
	counts["C"] = 9
	if next.Counts["C"] != 3 {
		t.Errorf("Expected WithCounts to copy the map, got %d", next.Counts["C"])
	}
	if cfg.Counts["C"] != 0 {
		t.Errorf("Expected original untouched, got %v", cfg.Counts)
	}
}

package reaction

import (
	"maps"
	"time"
)

// Config holds a scheduler's parameters. Every type owns one column whose
// capacity is MaxRowIndex + 1.
type Config struct {
	Types        []MoleculeType
	MaxRowIndex  int
	FadeDuration time.Duration
	// DropSpeed is in rows per second.
	DropSpeed float64
	// Counts are the initial live counts, stacked from row 0.
	Counts map[MoleculeType]int
}

// Capacity is the number of molecules a column can hold.
func (c Config) Capacity() int {
	return c.MaxRowIndex + 1
}

// WithCounts returns a copy of c with different initial counts.
func (c Config) WithCounts(counts map[MoleculeType]int) Config {
	out := c
	out.Types = append([]MoleculeType(nil), c.Types...)
	out.Counts = maps.Clone(counts)
	return out
}

// ChartConfig is the JSON description of a chart.
type ChartConfig struct {
	Name           string         `json:"name"`
	MaxRowIndex    int            `json:"max_row_index"`
	FadeDurationMs int64          `json:"fade_duration_ms"`
	DropSpeed      float64        `json:"drop_speed"`
	Types          []string       `json:"types"`
	Counts         map[string]int `json:"counts,omitempty"`
	// Notifiers lists notifier IDs that receive this chart's events.
	Notifiers []string `json:"notifiers,omitempty"`
}

func (cfg ChartConfig) schedulerConfig() Config {
	types := make([]MoleculeType, len(cfg.Types))
	for i, t := range cfg.Types {
		types[i] = MoleculeType(t)
	}
	counts := make(map[MoleculeType]int, len(cfg.Counts))
	for t, n := range cfg.Counts {
		counts[MoleculeType(t)] = n
	}
	return Config{
		Types:        types,
		MaxRowIndex:  cfg.MaxRowIndex,
		FadeDuration: time.Duration(cfg.FadeDurationMs) * time.Millisecond,
		DropSpeed:    cfg.DropSpeed,
		Counts:       counts,
	}
}

// BuildChartFromConfig validates cfg and converts it to scheduler parameters.
func BuildChartFromConfig(cfg ChartConfig) (Config, error) {
	if err := ValidateChartConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg.schedulerConfig(), nil
}

// ChartConfigFrom converts scheduler parameters back to their JSON form.
func ChartConfigFrom(name string, c Config, notifiers []string) ChartConfig {
	types := make([]string, len(c.Types))
	for i, t := range c.Types {
		types[i] = string(t)
	}
	counts := make(map[string]int, len(c.Counts))
	for t, n := range c.Counts {
		counts[string(t)] = n
	}
	return ChartConfig{
		Name:           name,
		MaxRowIndex:    c.MaxRowIndex,
		FadeDurationMs: c.FadeDuration.Milliseconds(),
		DropSpeed:      c.DropSpeed,
		Types:          types,
		Counts:         counts,
		Notifiers:      append([]string(nil), notifiers...),
	}
}

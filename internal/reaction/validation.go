package reaction

import (
	"fmt"
	"strings"
)

// ValidationError collects multiple validation issues
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid chart: unknown validation error"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0]
	}
	return "chart validation errors: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(issue string) {
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) Addf(format string, v ...any) {
	e.Add(fmt.Sprintf(format, v...))
}

func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

// Validate checks the scheduler parameters and initial counts.
func (c Config) Validate() error {
	err := &ValidationError{}
	c.validateInto(err)
	if err.HasIssues() {
		return err
	}
	return nil
}

func (c Config) validateInto(err *ValidationError) {
	if len(c.Types) == 0 {
		err.Add("at least one molecule type is required")
	}
	known := make(map[MoleculeType]bool, len(c.Types))
	for i, t := range c.Types {
		if t == "" {
			err.Addf("molecule type at index %d: name is required", i)
			continue
		}
		if known[t] {
			err.Add("duplicate molecule type: " + string(t))
		}
		known[t] = true
	}

	if c.MaxRowIndex < 0 {
		err.Addf("max row index must be >= 0, got %d", c.MaxRowIndex)
	}
	if c.FadeDuration < 0 {
		err.Addf("fade duration must be >= 0, got %s", c.FadeDuration)
	}
	if !(c.DropSpeed > 0) {
		err.Addf("drop speed must be > 0 rows per second, got %g", c.DropSpeed)
	}

	for t, n := range c.Counts {
		if !known[t] {
			err.Add("count given for unknown molecule type '" + string(t) + "'")
			continue
		}
		if n < 0 || (c.MaxRowIndex >= 0 && n > c.Capacity()) {
			err.Addf("count for '%s' must be between 0 and %d, got %d", t, max(c.Capacity(), 0), n)
		}
	}
}

// ValidateChartConfig performs comprehensive validation of a ChartConfig
func ValidateChartConfig(cfg ChartConfig) error {
	err := &ValidationError{}

	if cfg.Name == "" {
		err.Add("chart name is required")
	}

	for i, id := range cfg.Notifiers {
		if id == "" {
			err.Addf("notifier at index %d: notifier ID is required", i)
		}
	}

	if cfg.FadeDurationMs < 0 {
		err.Addf("fade_duration_ms must be >= 0, got %d", cfg.FadeDurationMs)
	}
	sched := cfg.schedulerConfig()
	sched.FadeDuration = max(sched.FadeDuration, 0)
	sched.validateInto(err)

	if err.HasIssues() {
		return err
	}
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/daniacca/molgrid/internal/reaction"
)

// Scenario is a chart plus a timeline of operations.
type Scenario struct {
	Chart reaction.ChartConfig `json:"chart"`
	Steps []Step               `json:"steps"`
	// UntilMs, when set, is how long the run lasts. Otherwise it lasts until
	// every sequence has finished.
	UntilMs int64 `json:"until_ms,omitempty"`
}

// Step is one scheduler operation at a millisecond offset from the start.
type Step struct {
	AtMs int64  `json:"at_ms"`
	Op   string `json:"op"`

	Adding     string `json:"adding,omitempty"`
	ReactsWith string `json:"reacts_with,omitempty"`
	// Producing is one type for "reaction" and any number for
	// "reaction-from-existing".
	Producing  []string       `json:"producing,omitempty"`
	Consuming  string         `json:"consuming,omitempty"`
	Type       string         `json:"type,omitempty"`
	Count      *int           `json:"count,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
}

var knownOps = []string{"reaction", "reaction-from-existing", "consume", "add", "reset"}

func (st Step) count() int {
	if st.Count == nil {
		return 1
	}
	return *st.Count
}

func (st Step) String() string {
	switch st.Op {
	case "reaction":
		return fmt.Sprintf("reaction(%s+%s->%s)", st.Adding, st.ReactsWith, first(st.Producing))
	case "reaction-from-existing":
		return fmt.Sprintf("reaction-from-existing(%s->%v)", st.Consuming, st.Producing)
	case "consume":
		return fmt.Sprintf("consume(%s x%d)", st.Type, st.count())
	case "add":
		return fmt.Sprintf("add(%s x%d over %s)", st.Type, st.count(), time.Duration(st.DurationMs)*time.Millisecond)
	case "reset":
		return fmt.Sprintf("reset(%v)", st.Counts)
	default:
		return st.Op
	}
}

func first(types []string) string {
	if len(types) == 0 {
		return ""
	}
	return types[0]
}

// validate checks the scenario's shape; the chart itself goes through
// reaction.ValidateChartConfig.
func (sc Scenario) validate() error {
	verr := &reaction.ValidationError{}
	if err := reaction.ValidateChartConfig(sc.Chart); err != nil {
		verr.Add(err.Error())
	}
	if sc.UntilMs < 0 {
		verr.Addf("until_ms must be >= 0, got %d", sc.UntilMs)
	}
	for i, st := range sc.Steps {
		if st.AtMs < 0 {
			verr.Addf("step %d: at_ms must be >= 0, got %d", i, st.AtMs)
		}
		if !slices.Contains(knownOps, st.Op) {
			verr.Addf("step %d: unknown op %q", i, st.Op)
		}
		if st.Op == "reaction" && len(st.Producing) != 1 {
			verr.Addf("step %d: reaction produces exactly one type, got %d", i, len(st.Producing))
		}
		if st.count() < 0 || st.DurationMs < 0 {
			verr.Addf("step %d: count and duration_ms must be >= 0", i)
		}
	}
	if verr.HasIssues() {
		return verr
	}
	return nil
}

func loadScenarioFromFile(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading scenario file: %w", err)
	}

	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parsing scenario JSON: %w", err)
	}

	if err := sc.validate(); err != nil {
		return Scenario{}, fmt.Errorf("validating scenario: %w", err)
	}
	return sc, nil
}

func types(names []string) []reaction.MoleculeType {
	out := make([]reaction.MoleculeType, len(names))
	for i, n := range names {
		out[i] = reaction.MoleculeType(n)
	}
	return out
}

func counts(m map[string]int) map[reaction.MoleculeType]int {
	out := make(map[reaction.MoleculeType]int, len(m))
	for k, v := range m {
		out[reaction.MoleculeType(k)] = v
	}
	return out
}

// apply runs one step against the scheduler. started is false for a
// rejected start; err is set only for a failed reset.
func apply(s *reaction.Scheduler, st Step) (started bool, err error) {
	switch st.Op {
	case "reaction":
		return s.StartReaction(reaction.MoleculeType(st.Adding), reaction.MoleculeType(st.ReactsWith), reaction.MoleculeType(first(st.Producing))), nil
	case "reaction-from-existing":
		return s.StartReactionFromExisting(reaction.MoleculeType(st.Consuming), types(st.Producing)...), nil
	case "consume":
		return s.Consume(reaction.MoleculeType(st.Type), st.count()), nil
	case "add":
		return s.AddMolecules(reaction.MoleculeType(st.Type), st.count(), time.Duration(st.DurationMs)*time.Millisecond), nil
	case "reset":
		if err := s.Reset(counts(st.Counts)); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, fmt.Errorf("unknown op %q", st.Op)
}

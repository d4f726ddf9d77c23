package reaction

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Snapshot represents a point-in-time capture of a chart's state.
type Snapshot struct {
	ChartID   ChartID              `json:"chart_id"`
	TakenAt   time.Time            `json:"taken_at"`
	Config    ChartConfig          `json:"config"`
	Counts    map[MoleculeType]int `json:"counts"`
	Molecules []MoleculeView       `json:"molecules"`
}

// TakeSnapshot captures the chart's live molecules at the scheduler's clock.
func TakeSnapshot(chart *Chart) Snapshot {
	s := chart.Scheduler
	return Snapshot{
		ChartID:   chart.ID,
		TakenAt:   s.Clock().Now(),
		Config:    chart.Config(),
		Counts:    s.LiveCounts(),
		Molecules: s.Molecules(),
	}
}

// ValidateSnapshot performs validation checks on a snapshot.
// It verifies that:
//   - the embedded chart config is valid
//   - all molecule IDs are non-empty and unique
//   - every molecule has a known type and a row inside its column
//   - no two placed molecules share a row of the same column
//   - counts match the molecules listed
func ValidateSnapshot(snapshot Snapshot) error {
	if err := ValidateChartConfig(snapshot.Config); err != nil {
		return fmt.Errorf("snapshot config: %w", err)
	}

	known := make(map[MoleculeType]bool, len(snapshot.Config.Types))
	for _, t := range snapshot.Config.Types {
		known[MoleculeType(t)] = true
	}

	seenIDs := make(map[MoleculeID]struct{})
	type cell struct {
		t   MoleculeType
		row int
	}
	occupied := make(map[cell]MoleculeID)
	perType := make(map[MoleculeType]int)

	for i, mol := range snapshot.Molecules {
		if mol.ID == "" {
			return fmt.Errorf("molecule at index %d has empty ID", i)
		}
		if _, exists := seenIDs[mol.ID]; exists {
			return fmt.Errorf("duplicate molecule ID: %s", mol.ID)
		}
		seenIDs[mol.ID] = struct{}{}

		if !known[mol.Type] {
			return fmt.Errorf("molecule %s has invalid type: %s (not found in chart)", mol.ID, mol.Type)
		}
		if mol.RowIndex < 0 || mol.RowIndex > snapshot.Config.MaxRowIndex {
			return fmt.Errorf("molecule %s has row %d outside [0, %d]", mol.ID, mol.RowIndex, snapshot.Config.MaxRowIndex)
		}
		perType[mol.Type]++

		if mol.Preparing {
			continue
		}
		key := cell{mol.Type, mol.RowIndex}
		if other, taken := occupied[key]; taken {
			return fmt.Errorf("molecules %s and %s share row %d of column %s", other, mol.ID, mol.RowIndex, mol.Type)
		}
		occupied[key] = mol.ID
	}

	for t, n := range snapshot.Counts {
		if !known[t] {
			return fmt.Errorf("count given for unknown type: %s", t)
		}
		if perType[t] != n {
			return fmt.Errorf("count for %s is %d but %d molecules are listed", t, n, perType[t])
		}
	}
	return nil
}

// RestoreSnapshot resets the chart to the snapshot's counts.
func RestoreSnapshot(chart *Chart, snapshot Snapshot) error {
	if err := ValidateSnapshot(snapshot); err != nil {
		return err
	}
	return chart.Scheduler.Reset(snapshot.Counts)
}

// EncodeSnapshotJSON encodes a snapshot to JSON format.
func EncodeSnapshotJSON(snapshot Snapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshotJSON decodes a snapshot from JSON format.
func DecodeSnapshotJSON(data []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}

// SnapshotPath is where the file snapshot of a chart lives inside dir.
func SnapshotPath(dir string, id ChartID) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(string(id))
	return filepath.Join(dir, name+".snapshot.json")
}

// SaveSnapshotFile writes the snapshot to dir, replacing any previous one
// for the same chart. The write goes through a temporary file so readers
// never observe a partial snapshot.
func SaveSnapshotFile(dir string, snapshot Snapshot) (string, error) {
	data, err := EncodeSnapshotJSON(snapshot)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	path := SnapshotPath(dir, snapshot.ChartID)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshotFile reads and validates the file snapshot of a chart.
func LoadSnapshotFile(dir string, id ChartID) (Snapshot, error) {
	data, err := os.ReadFile(SnapshotPath(dir, id))
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	snapshot, err := DecodeSnapshotJSON(data)
	if err != nil {
		return Snapshot{}, err
	}
	if err := ValidateSnapshot(snapshot); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

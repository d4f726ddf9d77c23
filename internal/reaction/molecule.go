package reaction

import (
	"math"
	"time"
)

// MoleculeID is a unique identifier for a scheduler entity.
type MoleculeID string

// MoleculeType is one of the chart's closed set of categories. Each type owns
// exactly one column.
type MoleculeType string

// Molecule is a live entity in a column. Row and presentation state are only
// mutated by the scheduler's action runner.
type Molecule struct {
	ID       MoleculeID
	Type     MoleculeType
	RowIndex int

	// placed is false while the molecule is being prepared for dropping;
	// unplaced molecules do not occupy a row of their column yet.
	placed bool
	// claimed is set once a sequence has started fading the molecule out.
	claimed bool

	drop    dropState
	opacity ramp
	scale   ramp
}

// dropState remembers where a falling molecule started so its position can
// be estimated between actions.
type dropState struct {
	active    bool
	fromRow   float64
	startedAt time.Time
}

// ramp moves a value linearly from `from` to `to` over duration.
type ramp struct {
	from, to  float64
	startedAt time.Time
	duration  time.Duration
}

func steady(v float64) ramp {
	return ramp{from: v, to: v}
}

func (r ramp) at(now time.Time) float64 {
	if r.duration <= 0 {
		return r.to
	}
	progress := float64(now.Sub(r.startedAt)) / float64(r.duration)
	progress = min(max(progress, 0), 1)
	return r.from + (r.to-r.from)*progress
}

func newMolecule(t MoleculeType, row int) *Molecule {
	return &Molecule{
		ID:       MoleculeID(NewRandomID()),
		Type:     t,
		RowIndex: row,
		placed:   true,
		opacity:  steady(1),
		scale:    steady(1),
	}
}

// fadeIn starts the 0 -> 1 opacity and scale ramp.
func (m *Molecule) fadeIn(now time.Time, d time.Duration) {
	m.opacity = ramp{from: 0, to: 1, startedAt: now, duration: d}
	m.scale = ramp{from: 0, to: 1, startedAt: now, duration: d}
}

func (m *Molecule) fadeOut(now time.Time, d time.Duration) {
	m.opacity = ramp{from: m.opacity.at(now), to: 0, startedAt: now, duration: d}
}

// startDrop animates the molecule from fromRow down to its nominal row.
func (m *Molecule) startDrop(fromRow float64, now time.Time) {
	m.drop = dropState{active: true, fromRow: fromRow, startedAt: now}
}

// estimatedRow is droppedFromRow - dropSpeed * elapsed, never below the
// nominal row.
func (m *Molecule) estimatedRow(now time.Time, dropSpeed float64) float64 {
	nominal := float64(m.RowIndex)
	if !m.drop.active || dropSpeed <= 0 {
		return nominal
	}
	elapsed := now.Sub(m.drop.startedAt).Seconds()
	return math.Max(m.drop.fromRow-dropSpeed*elapsed, nominal)
}

// MoleculeView is a read-only presentation snapshot of a molecule.
type MoleculeView struct {
	ID           MoleculeID   `json:"id"`
	Type         MoleculeType `json:"type"`
	Column       int          `json:"column"`
	RowIndex     int          `json:"row_index"`
	EstimatedRow float64      `json:"estimated_row"`
	Scale        float64      `json:"scale"`
	Opacity      float64      `json:"opacity"`
	InTransit    bool         `json:"in_transit"`
	// Preparing is set while the molecule waits to drop into its column.
	Preparing bool `json:"preparing,omitempty"`
}

func (m *Molecule) view(column int, now time.Time, dropSpeed float64) MoleculeView {
	est := m.estimatedRow(now, dropSpeed)
	return MoleculeView{
		ID:           m.ID,
		Type:         m.Type,
		Column:       column,
		RowIndex:     m.RowIndex,
		EstimatedRow: est,
		Scale:        m.scale.at(now),
		Opacity:      m.opacity.at(now),
		InTransit:    !m.placed || est > float64(m.RowIndex),
		Preparing:    !m.placed,
	}
}

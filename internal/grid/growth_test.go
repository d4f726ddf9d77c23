package grid

import (
	"math/rand"
	"testing"
)

func rowMajor(cols, rows int) []Coordinate {
	out := make([]Coordinate, 0, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			out = append(out, Coordinate{Col: col, Row: row})
		}
	}
	return out
}

func mustOrderedPool(t *testing.T, cols, rows int) *Pool {
	t.Helper()
	p, err := NewPoolWithOrder(cols, rows, rowMajor(cols, rows))
	if err != nil {
		t.Fatalf("Failed to build pool: %v", err)
	}
	return p
}

func assertUnique(t *testing.T, coords []Coordinate) {
	t.Helper()
	if len(Unique(coords)) != len(coords) {
		t.Errorf("Expected no duplicate coordinates, got %v", coords)
	}
}

func TestNewPool(t *testing.T) {
	p := NewPool(4, 3, rand.New(rand.NewSource(42)))
	if p.Len() != 12 {
		t.Fatalf("Expected 12 cells, got %d", p.Len())
	}
	coords := p.Coords()
	assertUnique(t, coords)
	for i, c := range coords {
		if !p.Contains(c) {
			t.Errorf("Expected %v to be on the grid", c)
		}
		if p.Rank(c) != i {
			t.Errorf("Expected rank %d for %v, got %d", i, c, p.Rank(c))
		}
	}
	if p.Rank(Coordinate{Col: 4, Row: 0}) != -1 {
		t.Error("Expected rank -1 for an off-grid cell")
	}

	again := NewPool(4, 3, rand.New(rand.NewSource(42)))
	for i, c := range again.Coords() {
		if coords[i] != c {
			t.Fatalf("Expected same seed to give same order, differs at %d", i)
		}
	}
}

func TestNewPoolWithOrder_Invalid(t *testing.T) {
	if _, err := NewPoolWithOrder(2, 2, rowMajor(2, 1)); err == nil {
		t.Error("Expected error for short order")
	}
	dup := []Coordinate{{0, 0}, {0, 0}, {1, 0}, {1, 1}}
	if _, err := NewPoolWithOrder(2, 2, dup); err == nil {
		t.Error("Expected error for duplicate cell")
	}
	off := []Coordinate{{0, 0}, {0, 1}, {1, 0}, {2, 1}}
	if _, err := NewPoolWithOrder(2, 2, off); err == nil {
		t.Error("Expected error for off-grid cell")
	}
}

func TestPool_Take(t *testing.T) {
	p := mustOrderedPool(t, 3, 2)
	got := p.Take(2, NewCoordinateSet([]Coordinate{{0, 0}}))
	want := []Coordinate{{1, 0}, {2, 0}}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v at %d, got %v", want[i], i, got[i])
		}
	}

	all := p.Take(100, nil)
	if len(all) != 6 {
		t.Errorf("Expected take to stop at pool size 6, got %d", len(all))
	}
}

func TestSpiral_CenterOfOddGrid(t *testing.T) {
	got := Spiral(3, 3, 1, nil)
	if len(got) != 1 || got[0] != (Coordinate{Col: 1, Row: 1}) {
		t.Errorf("Expected [(1,1)], got %v", got)
	}
}

func TestSpiral_Order(t *testing.T) {
	got := Spiral(3, 3, 9, nil)
	want := []Coordinate{
		{1, 1}, {2, 1}, {2, 0}, {1, 0}, {0, 0}, {0, 1}, {0, 2}, {1, 2}, {2, 2},
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d cells, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v at %d, got %v", want[i], i, got[i])
		}
	}
}

func TestSpiral_StopsWhenGridTooSmall(t *testing.T) {
	got := Spiral(2, 3, 50, nil)
	if len(got) != 6 {
		t.Errorf("Expected 6 cells, got %d", len(got))
	}
	assertUnique(t, got)

	if got := Spiral(4, 2, 1, nil); got[0] != (Coordinate{Col: 2, Row: 1}) {
		t.Errorf("Expected even grid to centre on (2,1), got %v", got[0])
	}
	if got := Spiral(0, 5, 3, nil); len(got) != 0 {
		t.Errorf("Expected no cells on empty grid, got %v", got)
	}
}

func TestSpiral_Avoiding(t *testing.T) {
	avoid := NewCoordinateSet([]Coordinate{{1, 1}})
	got := Spiral(3, 3, 2, avoid)
	if len(got) != 2 || got[0] != (Coordinate{Col: 2, Row: 1}) {
		t.Errorf("Expected spiral to skip the avoided centre, got %v", got)
	}
}

func TestGrow_FromEmptyStartsAtCentre(t *testing.T) {
	p := NewPool(5, 5, rand.New(rand.NewSource(7)))
	got := p.Grow(nil, 1, nil)
	if len(got) != 1 || got[0] != (Coordinate{Col: 2, Row: 2}) {
		t.Errorf("Expected growth to start at centre (2,2), got %v", got)
	}
}

func TestGrow_KeepsExistingAndStaysAdjacent(t *testing.T) {
	p := NewPool(6, 6, rand.New(rand.NewSource(3)))
	existing := []Coordinate{{0, 0}}
	got := p.Grow(existing, 5, nil)
	if len(got) != 6 {
		t.Fatalf("Expected 6 cells, got %d", len(got))
	}
	if got[0] != existing[0] {
		t.Errorf("Expected existing cells first, got %v", got[0])
	}
	assertUnique(t, got)

	region := NewCoordinateSet(got[:1])
	for _, c := range got[1:] {
		adjacent := false
		for _, step := range neighbourSteps {
			if region.Contains(Coordinate{Col: c.Col + step.Col, Row: c.Row + step.Row}) {
				adjacent = true
			}
		}
		if !adjacent {
			t.Errorf("Expected %v to touch the grown region", c)
		}
		region.Add(c)
	}
}

func TestGrow_RespectsAvoiding(t *testing.T) {
	p := mustOrderedPool(t, 3, 3)
	avoid := NewCoordinateSet([]Coordinate{{0, 0}, {1, 0}, {2, 0}})
	got := p.Grow(nil, 6, avoid)
	if len(got) != 6 {
		t.Fatalf("Expected 6 free cells, got %d", len(got))
	}
	for _, c := range got {
		if avoid.Contains(c) {
			t.Errorf("Expected %v to be avoided", c)
		}
	}
	assertUnique(t, got)
}

func TestGrow_FullGridReturnsFewer(t *testing.T) {
	p := mustOrderedPool(t, 2, 2)
	got := p.Grow([]Coordinate{{0, 0}}, 10, NewCoordinateSet([]Coordinate{{1, 1}}))
	if len(got) != 3 {
		t.Errorf("Expected 3 cells once the grid is full, got %d", len(got))
	}
	assertUnique(t, got)
}

func TestGrow_WalledInRegionJumps(t *testing.T) {
	p := mustOrderedPool(t, 3, 1)
	// (0,0) is boxed in by the avoided (1,0); (2,0) is the only free cell
	got := p.Grow([]Coordinate{{0, 0}}, 1, NewCoordinateSet([]Coordinate{{1, 0}}))
	if len(got) != 2 || got[1] != (Coordinate{Col: 2, Row: 0}) {
		t.Errorf("Expected growth to jump to (2,0), got %v", got)
	}
}

func TestGrow_NegativeCountIsNoOp(t *testing.T) {
	p := mustOrderedPool(t, 2, 2)
	before := PreconditionViolations()
	got := p.Grow([]Coordinate{{0, 0}}, -3, nil)
	if len(got) != 1 {
		t.Errorf("Expected existing cells only, got %v", got)
	}
	if PreconditionViolations() != before+1 {
		t.Error("Expected the violation to be counted")
	}
}

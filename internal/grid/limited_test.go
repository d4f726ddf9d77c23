package grid

import (
	"math/rand"
	"testing"
)

func TestLimitedCoords_Bounds(t *testing.T) {
	p := NewPool(10, 10, rand.New(rand.NewSource(1)))
	l := NewLimitedCoords(p, nil, 10, 30)

	if l.HasAddedEnough() {
		t.Error("Expected HasAddedEnough to be false before adding")
	}
	if !l.CanAdd() {
		t.Error("Expected CanAdd to be true before adding")
	}

	if added := l.Add(10); added != 10 {
		t.Errorf("Expected 10 cells added, got %d", added)
	}
	if !l.HasAddedEnough() {
		t.Error("Expected HasAddedEnough after adding the minimum")
	}

	l.Add(50)
	if l.Count() != 30 {
		t.Errorf("Expected count clamped to 30, got %d", l.Count())
	}
	if l.CanAdd() {
		t.Error("Expected CanAdd to be false at the maximum")
	}
	assertUnique(t, l.Coords())
}

func TestLimitedCoords_AvoidsBaseAndOthers(t *testing.T) {
	p := mustOrderedPool(t, 4, 4)
	base := []Coordinate{{0, 0}, {1, 0}}
	other := []Coordinate{{0, 1}, {1, 1}, {2, 0}}
	l := NewLimitedCoords(p, base, 0, 11)

	l.Add(11, other)
	if l.Count() != 11 {
		t.Fatalf("Expected 11 cells, got %d", l.Count())
	}
	taken := NewCoordinateSet(base, other)
	for _, c := range l.Coords() {
		if taken.Contains(c) {
			t.Errorf("Expected %v not to collide with base or other categories", c)
		}
	}
	if len(l.All()) != 13 {
		t.Errorf("Expected All to include base, got %d cells", len(l.All()))
	}
	if l.CanAdd() {
		t.Error("Expected CanAdd to be false at the maximum")
	}
}

func TestLimitedCoords_GridFull(t *testing.T) {
	p := mustOrderedPool(t, 2, 2)
	l := NewLimitedCoords(p, nil, 0, 10)
	if added := l.Add(10); added != 4 {
		t.Errorf("Expected only 4 cells on a 2x2 grid, got %d", added)
	}
	if !l.CanAdd() {
		t.Error("Expected CanAdd to stay true below the maximum")
	}
}

func TestLimitedCoords_ZeroAndNegative(t *testing.T) {
	p := mustOrderedPool(t, 3, 3)
	l := NewLimitedCoords(p, nil, 1, 5)
	if l.Add(0) != 0 || l.Add(-2) != 0 {
		t.Error("Expected zero and negative adds to be no-ops")
	}
	if l.Count() != 0 {
		t.Errorf("Expected no cells, got %d", l.Count())
	}

	l.Add(3)
	l.Reset()
	if l.Count() != 0 {
		t.Errorf("Expected reset to drop added cells, got %d", l.Count())
	}
}

func TestNewLimitedCoords_ClampsBounds(t *testing.T) {
	p := mustOrderedPool(t, 3, 3)
	l := NewLimitedCoords(p, nil, 8, 4)
	if l.MinToAdd() != 4 || l.MaxToAdd() != 4 {
		t.Errorf("Expected min clamped to max 4, got min=%d max=%d", l.MinToAdd(), l.MaxToAdd())
	}
}

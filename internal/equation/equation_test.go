package equation

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestLinear(t *testing.T) {
	l := NewLinear(0, 1, 10, 0)
	if !almostEqual(l.Value(5), 0.5) {
		t.Errorf("Expected 0.5, got %v", l.Value(5))
	}
	if !almostEqual(l.Value(20), -1) {
		t.Errorf("Expected line to extend past its points, got %v", l.Value(20))
	}

	step := NewLinear(3, 0, 3, 1)
	if step.Value(2.9) != 0 || step.Value(3) != 1 {
		t.Errorf("Expected a step at x=3, got %v and %v", step.Value(2.9), step.Value(3))
	}
}

func TestSwitching(t *testing.T) {
	s := Switching{Threshold: 5, Under: Constant(1), Over: Constant(2)}
	if s.Value(4.99) != 1 || s.Value(5) != 2 {
		t.Errorf("Expected switch at 5, got %v and %v", s.Value(4.99), s.Value(5))
	}
}

func TestNewPiecewise(t *testing.T) {
	eq, err := NewPiecewise(Point{0, 0}, Point{10, 0.8}, Point{20, 1})
	if err != nil {
		t.Fatalf("Failed to build curve: %v", err)
	}
	checks := map[float64]float64{0: 0, 5: 0.4, 10: 0.8, 15: 0.9, 20: 1}
	for x, want := range checks {
		if got := eq.Value(x); !almostEqual(got, want) {
			t.Errorf("Value(%v): expected %v, got %v", x, want, got)
		}
	}

	three, err := NewPiecewise(Point{0, 0}, Point{1, 0.5}, Point{2, 0.5}, Point{3, 1})
	if err != nil {
		t.Fatalf("Failed to build three-segment curve: %v", err)
	}
	if got := three.Value(1.5); !almostEqual(got, 0.5) {
		t.Errorf("Expected flat middle segment, got %v", got)
	}
	if got := three.Value(2.5); !almostEqual(got, 0.75) {
		t.Errorf("Expected 0.75 on the last segment, got %v", got)
	}

	if _, err := NewPiecewise(Point{0, 0}); err == nil {
		t.Error("Expected error for a single point")
	}
	if _, err := NewPiecewise(Point{0, 0}, Point{0, 1}); err == nil {
		t.Error("Expected error for non-increasing x")
	}
}

func TestBounded(t *testing.T) {
	b := Bounded{Eq: NewLinear(0, 0, 1, 1), Lower: 0, Upper: 1}
	if b.Value(-3) != 0 || b.Value(7) != 1 {
		t.Errorf("Expected clamping to [0,1], got %v and %v", b.Value(-3), b.Value(7))
	}
}

func TestSpring_MonotonicAndEndpoints(t *testing.T) {
	s := NewSpring(0, 0, 2, 1, 60, 6, 0.3)
	if s.Value(-1) != 0 || s.Value(0) != 0 {
		t.Errorf("Expected start value 0, got %v", s.Value(0))
	}
	if s.Value(2) != 1 || s.Value(5) != 1 {
		t.Errorf("Expected end value 1, got %v", s.Value(2))
	}
	prev := 0.0
	for x := 0.0; x <= 2.0; x += 0.01 {
		v := s.Value(x)
		if v < prev-1e-12 {
			t.Fatalf("Expected monotonic curve, dropped from %v to %v at %v", prev, v, x)
		}
		if v > 1 {
			t.Fatalf("Expected no overshoot, got %v at %v", v, x)
		}
		prev = v
	}
}

func TestSpring_FallsBackToLinear(t *testing.T) {
	s := NewSpring(0, 0, 1, 1, 0, 5, 1)
	if got := s.Value(0.5); !almostEqual(got, 0.5) {
		t.Errorf("Expected linear fallback, got %v", got)
	}
}

// Package equation provides the one-dimensional curves that drive how much of
// a coordinate list is drawn at a given input value.
package equation

import "fmt"

// Equation maps an input (typically elapsed reaction time) to an output.
type Equation interface {
	Value(x float64) float64
}

// Constant always returns the same value.
type Constant float64

func (c Constant) Value(float64) float64 { return float64(c) }

// Linear is the line through (X1, Y1) and (X2, Y2), extended beyond both ends.
// When X1 == X2 it is a step from Y1 to Y2 at X1.
type Linear struct {
	X1, Y1 float64
	X2, Y2 float64
}

// NewLinear returns the line through two points.
func NewLinear(x1, y1, x2, y2 float64) Linear {
	return Linear{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func (l Linear) Value(x float64) float64 {
	if l.X1 == l.X2 {
		if x >= l.X2 {
			return l.Y2
		}
		return l.Y1
	}
	return l.Y1 + (x-l.X1)*(l.Y2-l.Y1)/(l.X2-l.X1)
}

// Switching uses Under below Threshold and Over from Threshold onwards.
type Switching struct {
	Threshold float64
	Under     Equation
	Over      Equation
}

func (s Switching) Value(x float64) float64 {
	if x < s.Threshold {
		return s.Under.Value(x)
	}
	return s.Over.Value(x)
}

// Point is a knot of a piecewise linear curve.
type Point struct {
	X, Y float64
}

// NewPiecewise joins consecutive points with line segments, nesting
// Switching equations at each inner knot. The first and last segments are
// extended beyond the outer knots. Points must have strictly increasing X.
func NewPiecewise(points ...Point) (Equation, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("piecewise curve needs at least 2 points, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].X <= points[i-1].X {
			return nil, fmt.Errorf("piecewise point %d has x %v not after %v", i, points[i].X, points[i-1].X)
		}
	}
	last := len(points) - 1
	var eq Equation = NewLinear(points[last-1].X, points[last-1].Y, points[last].X, points[last].Y)
	for i := last - 1; i > 0; i-- {
		eq = Switching{
			Threshold: points[i].X,
			Under:     NewLinear(points[i-1].X, points[i-1].Y, points[i].X, points[i].Y),
			Over:      eq,
		}
	}
	return eq, nil
}

// Bounded clamps Eq into [Lower, Upper].
type Bounded struct {
	Eq    Equation
	Lower float64
	Upper float64
}

func (b Bounded) Value(x float64) float64 {
	return min(max(b.Eq.Value(x), b.Lower), b.Upper)
}

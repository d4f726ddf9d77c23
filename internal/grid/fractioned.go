package grid

import (
	"math"

	"github.com/daniacca/molgrid/internal/equation"
)

// FractionedCoordinates is a fixed coordinate list paired with the fraction
// of it to draw at a given input. The visible cells are always a prefix of
// Coordinates, so a steadily rising fraction never skips a cell.
type FractionedCoordinates struct {
	Coordinates    []Coordinate
	FractionToDraw equation.Equation
}

// CountAt is round(len(Coordinates) * fraction(x)) clamped to
// [0, len(Coordinates)]. A nil equation draws everything; NaN draws nothing.
func (f FractionedCoordinates) CountAt(x float64) int {
	n := len(f.Coordinates)
	if f.FractionToDraw == nil {
		return n
	}
	fraction := f.FractionToDraw.Value(x)
	if math.IsNaN(fraction) {
		return 0
	}
	fraction = min(max(fraction, 0), 1)
	return min(max(int(math.Round(float64(n)*fraction)), 0), n)
}

// CoordsAt returns the visible prefix at x. The slice aliases Coordinates.
func (f FractionedCoordinates) CoordsAt(x float64) []Coordinate {
	return f.Coordinates[:f.CountAt(x)]
}

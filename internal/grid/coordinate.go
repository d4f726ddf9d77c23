package grid

import "fmt"

// Coordinate is a single cell of a cols x rows grid.
// Coordinates are values: they are compared and hashed by (Col, Row) and
// never edited in place.
type Coordinate struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.Col, c.Row)
}

// inBounds reports whether c lies inside a cols x rows grid.
func (c Coordinate) inBounds(cols, rows int) bool {
	return c.Col >= 0 && c.Col < cols && c.Row >= 0 && c.Row < rows
}

// CoordinateSet is an unordered membership set of coordinates.
type CoordinateSet map[Coordinate]struct{}

// NewCoordinateSet builds a set from any number of coordinate lists.
func NewCoordinateSet(lists ...[]Coordinate) CoordinateSet {
	size := 0
	for _, l := range lists {
		size += len(l)
	}
	set := make(CoordinateSet, size)
	for _, l := range lists {
		for _, c := range l {
			set[c] = struct{}{}
		}
	}
	return set
}

// Contains reports whether c is a member of the set. A nil set contains nothing.
func (s CoordinateSet) Contains(c Coordinate) bool {
	_, ok := s[c]
	return ok
}

// Add inserts c into the set.
func (s CoordinateSet) Add(c Coordinate) {
	s[c] = struct{}{}
}

// Unique returns coords with later duplicates removed, keeping first-seen order.
func Unique(coords []Coordinate) []Coordinate {
	seen := make(CoordinateSet, len(coords))
	out := make([]Coordinate, 0, len(coords))
	for _, c := range coords {
		if seen.Contains(c) {
			continue
		}
		seen.Add(c)
		out = append(out, c)
	}
	return out
}

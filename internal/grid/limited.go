package grid

// LimitedCoords accumulates cells for one category between a lower and an
// upper bound. Cells are grown from the category's base cells and never
// collide with the base or with any other category passed to Add.
type LimitedCoords struct {
	pool     *Pool
	base     []Coordinate
	coords   []Coordinate
	minToAdd int
	maxToAdd int
}

// NewLimitedCoords wraps a category whose pre-existing cells are base.
// Only cells added through Add count towards the bounds.
func NewLimitedCoords(pool *Pool, base []Coordinate, minToAdd, maxToAdd int) *LimitedCoords {
	if maxToAdd < 0 {
		maxToAdd = 0
	}
	if minToAdd > maxToAdd {
		minToAdd = maxToAdd
	}
	b := make([]Coordinate, len(base))
	copy(b, base)
	return &LimitedCoords{pool: pool, base: b, minToAdd: minToAdd, maxToAdd: maxToAdd}
}

// Coords returns a copy of the added cells in the order they were added.
func (l *LimitedCoords) Coords() []Coordinate {
	out := make([]Coordinate, len(l.coords))
	copy(out, l.coords)
	return out
}

// All returns the base cells followed by the added ones.
func (l *LimitedCoords) All() []Coordinate {
	out := make([]Coordinate, 0, len(l.base)+len(l.coords))
	out = append(out, l.base...)
	return append(out, l.coords...)
}

func (l *LimitedCoords) Count() int    { return len(l.coords) }
func (l *LimitedCoords) MinToAdd() int { return l.minToAdd }
func (l *LimitedCoords) MaxToAdd() int { return l.maxToAdd }

// CanAdd reports whether the upper bound has not been reached.
func (l *LimitedCoords) CanAdd() bool {
	return len(l.coords) < l.maxToAdd
}

// HasAddedEnough reports whether the lower bound has been met.
func (l *LimitedCoords) HasAddedEnough() bool {
	return len(l.coords) >= l.minToAdd
}

// Add grows the category by min(count, remaining capacity) cells, avoiding
// the cells of every list in others. It returns how many cells were added,
// which can be less than requested when the grid is full.
func (l *LimitedCoords) Add(count int, others ...[]Coordinate) int {
	if !precondition(count >= 0, "add count %d is negative", count) || count == 0 {
		return 0
	}
	count = min(count, l.maxToAdd-len(l.coords))
	if count <= 0 {
		return 0
	}

	grown := l.pool.Grow(l.All(), count, NewCoordinateSet(others...))
	added := grown[len(l.base)+len(l.coords):]
	l.coords = append(l.coords, added...)
	return len(added)
}

// Reset drops every added cell, keeping the base.
func (l *LimitedCoords) Reset() {
	l.coords = nil
}

package grid

import (
	"fmt"
	"math/rand"
)

// Pool is the shuffled, immutable sequence of every cell of a cols x rows
// grid. Its order is the priority every allocation routine uses: an earlier
// cell is preferred over a later one. A Pool is safe for concurrent reads.
type Pool struct {
	cols  int
	rows  int
	order []Coordinate
	rank  []int // rank[row*cols+col] = index in order
}

// NewPool shuffles all cols x rows cells once with rng. A nil rng uses a
// time-independent default source, so two nil-rng pools are identical.
func NewPool(cols, rows int, rng *rand.Rand) *Pool {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	order := make([]Coordinate, 0, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			order = append(order, Coordinate{Col: col, Row: row})
		}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return newPool(cols, rows, order)
}

// NewPoolWithOrder builds a pool with an explicit priority order. The order
// must list every cell of the grid exactly once.
func NewPoolWithOrder(cols, rows int, order []Coordinate) (*Pool, error) {
	if cols < 0 || rows < 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", cols, rows)
	}
	if len(order) != cols*rows {
		return nil, fmt.Errorf("pool order has %d cells, grid has %d", len(order), cols*rows)
	}
	seen := make(CoordinateSet, len(order))
	for _, c := range order {
		if !c.inBounds(cols, rows) {
			return nil, fmt.Errorf("pool cell %s outside %dx%d grid", c, cols, rows)
		}
		if seen.Contains(c) {
			return nil, fmt.Errorf("duplicate pool cell %s", c)
		}
		seen.Add(c)
	}
	cp := make([]Coordinate, len(order))
	copy(cp, order)
	return newPool(cols, rows, cp), nil
}

func newPool(cols, rows int, order []Coordinate) *Pool {
	rank := make([]int, cols*rows)
	for i, c := range order {
		rank[c.Row*cols+c.Col] = i
	}
	return &Pool{cols: cols, rows: rows, order: order, rank: rank}
}

func (p *Pool) Cols() int { return p.cols }
func (p *Pool) Rows() int { return p.rows }

// Len is the number of cells, cols x rows.
func (p *Pool) Len() int { return len(p.order) }

// Coords returns a copy of the pool order.
func (p *Pool) Coords() []Coordinate {
	out := make([]Coordinate, len(p.order))
	copy(out, p.order)
	return out
}

// Contains reports whether c is a cell of this grid.
func (p *Pool) Contains(c Coordinate) bool {
	return c.inBounds(p.cols, p.rows)
}

// Rank returns c's position in the pool order, or -1 when c is off the grid.
func (p *Pool) Rank(c Coordinate) int {
	if !p.Contains(c) {
		return -1
	}
	return p.rank[c.Row*p.cols+c.Col]
}

// Take returns up to count cells in pool order that are not in excluding.
// It returns fewer when the grid runs out of free cells.
func (p *Pool) Take(count int, excluding CoordinateSet) []Coordinate {
	if !precondition(count >= 0, "take count %d is negative", count) {
		return nil
	}
	out := make([]Coordinate, 0, min(count, len(p.order)))
	for _, c := range p.order {
		if len(out) == count {
			break
		}
		if excluding.Contains(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

package grid

import "container/heap"

// neighbourSteps is the neighbour preference order: right, up, left, down.
var neighbourSteps = [4]Coordinate{
	{Col: 1, Row: 0},
	{Col: 0, Row: -1},
	{Col: -1, Row: 0},
	{Col: 0, Row: 1},
}

// Grow returns existing followed by up to count new cells. New cells extend
// the occupied region outward: each pick is the free cell adjacent to the
// region with the best pool rank. With nothing occupied the region is seeded
// at the grid centre and grows outward; when the region is walled in, the
// best-ranked free cell anywhere is used. Cells in existing or avoiding are
// never returned twice. When the grid fills up, fewer than count cells are added.
func (p *Pool) Grow(existing []Coordinate, count int, avoiding CoordinateSet) []Coordinate {
	out := make([]Coordinate, 0, len(existing)+max(count, 0))
	out = append(out, existing...)
	if !precondition(count >= 0, "grow count %d is negative", count) {
		return out
	}

	taken := NewCoordinateSet(existing)
	for c := range avoiding {
		taken.Add(c)
	}

	f := &frontier{pool: p, queued: make([]bool, p.Len())}
	for _, c := range existing {
		f.pushNeighbours(c, taken)
	}

	for added := 0; added < count; added++ {
		next, ok := f.pop(taken)
		if !ok {
			next, ok = p.seed(len(out) == 0, taken)
		}
		if !ok {
			break
		}
		taken.Add(next)
		out = append(out, next)
		f.pushNeighbours(next, taken)
	}
	return out
}

// seed picks a starting cell when no frontier cell is available.
func (p *Pool) seed(empty bool, taken CoordinateSet) (Coordinate, bool) {
	if empty {
		var found Coordinate
		ok := false
		spiralWalk(p.cols, p.rows, func(c Coordinate) bool {
			if taken.Contains(c) {
				return true
			}
			found, ok = c, true
			return false
		})
		return found, ok
	}
	for _, c := range p.order {
		if !taken.Contains(c) {
			return c, true
		}
	}
	return Coordinate{}, false
}

// frontier is a min-heap of pool ranks adjacent to the occupied region.
type frontier struct {
	pool   *Pool
	ranks  []int
	queued []bool
}

func (f *frontier) Len() int           { return len(f.ranks) }
func (f *frontier) Less(i, j int) bool { return f.ranks[i] < f.ranks[j] }
func (f *frontier) Swap(i, j int)      { f.ranks[i], f.ranks[j] = f.ranks[j], f.ranks[i] }
func (f *frontier) Push(x any)         { f.ranks = append(f.ranks, x.(int)) }
func (f *frontier) Pop() any {
	n := len(f.ranks)
	r := f.ranks[n-1]
	f.ranks = f.ranks[:n-1]
	return r
}

func (f *frontier) pushNeighbours(c Coordinate, taken CoordinateSet) {
	for _, step := range neighbourSteps {
		n := Coordinate{Col: c.Col + step.Col, Row: c.Row + step.Row}
		r := f.pool.Rank(n)
		if r < 0 || f.queued[r] || taken.Contains(n) {
			continue
		}
		f.queued[r] = true
		heap.Push(f, r)
	}
}

// pop returns the best-ranked free frontier cell. Cells taken after being
// queued are discarded lazily.
func (f *frontier) pop(taken CoordinateSet) (Coordinate, bool) {
	for f.Len() > 0 {
		c := f.pool.order[heap.Pop(f).(int)]
		if !taken.Contains(c) {
			return c, true
		}
	}
	return Coordinate{}, false
}

// Spiral lays out up to count cells in a spiral starting at the centre cell
// (cols/2, rows/2) and turning right, up, left, down with run lengths
// 1, 1, 2, 2, 3, 3, ... Cells in avoiding are skipped. Fewer than count cells
// are returned when the grid is too small.
func Spiral(cols, rows, count int, avoiding CoordinateSet) []Coordinate {
	if !precondition(count >= 0, "spiral count %d is negative", count) || count == 0 {
		return nil
	}
	out := make([]Coordinate, 0, min(count, max(cols*rows, 0)))
	spiralWalk(cols, rows, func(c Coordinate) bool {
		if !avoiding.Contains(c) {
			out = append(out, c)
		}
		return len(out) < count
	})
	return out
}

// spiralWalk visits every in-bounds cell once in spiral order until visit
// returns false.
func spiralWalk(cols, rows int, visit func(Coordinate) bool) {
	total := cols * rows
	if cols <= 0 || rows <= 0 {
		return
	}
	c := Coordinate{Col: cols / 2, Row: rows / 2}
	if !visit(c) {
		return
	}
	seen := 1
	run := 1
	for seen < total {
		for d, step := range neighbourSteps {
			for i := 0; i < run; i++ {
				c = Coordinate{Col: c.Col + step.Col, Row: c.Row + step.Row}
				if !c.inBounds(cols, rows) {
					continue
				}
				seen++
				if !visit(c) {
					return
				}
			}
			if d%2 == 1 {
				run++
			}
		}
	}
}

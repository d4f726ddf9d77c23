package grid

import (
	"math"
	"sort"

	"github.com/daniacca/molgrid/internal/equation"
)

// ElementToBalance is one category's current cells and its target count.
// The order of InitialCoords matters: a shrinking category hides cells from
// the back of the list.
type ElementToBalance struct {
	InitialCoords []Coordinate `json:"initial_coords"`
	FinalCount    int          `json:"final_count"`
}

// BalancedElement is a category's cell list across a transition. Coords
// never changes during the transition; only the drawn fraction moves from
// InitialFraction to FinalFraction.
type BalancedElement struct {
	Coords          []Coordinate `json:"coords"`
	InitialFraction float64      `json:"initial_fraction"`
	FinalFraction   float64      `json:"final_fraction"`
}

// InitialCount is the number of cells drawn before the transition.
func (b BalancedElement) InitialCount() int {
	return int(math.Round(float64(len(b.Coords)) * b.InitialFraction))
}

// FinalCount is the number of cells drawn after the transition.
func (b BalancedElement) FinalCount() int {
	return int(math.Round(float64(len(b.Coords)) * b.FinalFraction))
}

// Fractioned pairs Coords with an arbitrary fraction curve.
func (b BalancedElement) Fractioned(eq equation.Equation) FractionedCoordinates {
	return FractionedCoordinates{Coordinates: b.Coords, FractionToDraw: eq}
}

// FractionedLinear moves the drawn fraction linearly from InitialFraction at
// startX to FinalFraction at endX, holding the end values outside that range.
func (b BalancedElement) FractionedLinear(startX, endX float64) FractionedCoordinates {
	lo, hi := min(b.InitialFraction, b.FinalFraction), max(b.InitialFraction, b.FinalFraction)
	var eq equation.Equation = equation.NewLinear(startX, b.InitialFraction, endX, b.FinalFraction)
	if startX > endX {
		eq = equation.Constant(b.FinalFraction)
	}
	return b.Fractioned(equation.Bounded{Eq: eq, Lower: lo, Upper: hi})
}

// FractionedSpring eases the drawn fraction from InitialFraction at startX
// to FinalFraction at endX along a critically damped spring sampled at fps.
func (b BalancedElement) FractionedSpring(startX, endX float64, fps int, frequency, damping float64) FractionedCoordinates {
	lo, hi := min(b.InitialFraction, b.FinalFraction), max(b.InitialFraction, b.FinalFraction)
	var eq equation.Equation = equation.NewSpring(startX, b.InitialFraction, endX, b.FinalFraction, fps, frequency, damping)
	if startX > endX {
		eq = equation.Constant(b.FinalFraction)
	}
	return b.Fractioned(equation.Bounded{Eq: eq, Lower: lo, Upper: hi})
}

// Balanced is the result of a four-category balance.
type Balanced struct {
	Increasing [2]BalancedElement `json:"increasing"`
	Decreasing [2]BalancedElement `json:"decreasing"`
}

// Balance moves cells from the shrinking pair to the growing pair.
//
// Each decreasing category releases the back of its list. The amount moved
// is min(total released, total needed); it is split between the decreasing
// categories in proportion to what each releases, and between the increasing
// categories in proportion to what each needs. Each decreasing category's
// share is handed out first to increasing[0] then to increasing[1]. Needs
// left over are drawn from cells no category owns, in pool order.
//
// Decreasing categories keep their original lists and shrink their final
// fraction; increasing categories append transferred then fresh cells and
// grow their fraction to 1.
func Balance(pool *Pool, increasing, decreasing [2]ElementToBalance) Balanced {
	out := balance(pool, []ElementToBalance{
		increasing[0], increasing[1], decreasing[0], decreasing[1],
	}, nil)
	return Balanced{
		Increasing: [2]BalancedElement{out[0], out[1]},
		Decreasing: [2]BalancedElement{out[2], out[3]},
	}
}

// Set rebalances a single group of categories with the same algorithm as
// Balance. When every category moves in the same direction it degrades to a
// pure pool draw (all growing) or pure fraction reduction (all shrinking).
// Cells in avoiding are never drawn from the pool.
func Set(pool *Pool, elements []ElementToBalance, avoiding CoordinateSet) []BalancedElement {
	return balance(pool, elements, avoiding)
}

func balance(pool *Pool, elements []ElementToBalance, avoiding CoordinateSet) []BalancedElement {
	initial, finals := sanitize(pool, elements)

	owned := NewCoordinateSet(initial...)
	for c := range avoiding {
		owned.Add(c)
	}

	var sources, targets []int
	var released, needed []int
	for i := range elements {
		switch delta := finals[i] - len(initial[i]); {
		case delta < 0:
			sources = append(sources, i)
			released = append(released, -delta)
		case delta > 0:
			targets = append(targets, i)
			needed = append(needed, delta)
		}
	}

	moved := min(sum(released), sum(needed))
	drawn := apportion(moved, released)
	quotas := apportion(moved, needed)
	matrix := transferMatrix(drawn, quotas)

	received := make([][]Coordinate, len(elements))
	for si, src := range sources {
		// the back of the list disappears first, so hand it over first
		coords := initial[src]
		next := len(coords) - 1
		for ti, dst := range targets {
			for k := 0; k < matrix[si][ti]; k++ {
				received[dst] = append(received[dst], coords[next])
				next--
			}
		}
	}

	out := make([]BalancedElement, len(elements))
	for i := range elements {
		out[i] = BalancedElement{Coords: initial[i], InitialFraction: 1, FinalFraction: 1}
	}

	for ti, dst := range targets {
		coords := make([]Coordinate, 0, finals[dst])
		coords = append(coords, initial[dst]...)
		coords = append(coords, received[dst]...)
		if short := needed[ti] - len(received[dst]); short > 0 {
			fresh := pool.Take(short, owned)
			precondition(len(fresh) == short, "pool exhausted: wanted %d fresh cells, got %d", short, len(fresh))
			for _, c := range fresh {
				owned.Add(c)
			}
			coords = append(coords, fresh...)
		}
		if len(coords) == 0 {
			continue
		}
		out[dst] = BalancedElement{
			Coords:          coords,
			InitialFraction: float64(len(initial[dst])) / float64(len(coords)),
			FinalFraction:   1,
		}
	}

	for _, src := range sources {
		out[src].FinalFraction = float64(finals[src]) / float64(len(initial[src]))
	}
	return out
}

// sanitize enforces the caller contract: non-negative targets, no cell owned
// twice, cells on the grid and total occupancy within the pool.
func sanitize(pool *Pool, elements []ElementToBalance) ([][]Coordinate, []int) {
	initial := make([][]Coordinate, len(elements))
	finals := make([]int, len(elements))
	seen := make(CoordinateSet)
	total := 0
	for i, e := range elements {
		coords := make([]Coordinate, 0, len(e.InitialCoords))
		for _, c := range e.InitialCoords {
			if !precondition(pool.Contains(c) && !seen.Contains(c), "cell %s is off the grid or owned twice", c) {
				continue
			}
			seen.Add(c)
			coords = append(coords, c)
		}
		initial[i] = coords

		final := e.FinalCount
		if !precondition(final >= 0, "final count %d is negative", final) {
			final = 0
		}
		finals[i] = final
		total += max(final, len(coords))
	}
	precondition(total <= pool.Len(), "requested occupancy %d exceeds pool size %d", total, pool.Len())
	return initial, finals
}

// apportion splits total across weights proportionally using largest
// remainders, ties going to the earlier weight. No share exceeds its weight
// as long as total <= sum(weights).
func apportion(total int, weights []int) []int {
	shares := make([]int, len(weights))
	w := sum(weights)
	if total <= 0 || w == 0 {
		return shares
	}
	type remainder struct {
		index int
		frac  float64
	}
	rems := make([]remainder, len(weights))
	given := 0
	for i, weight := range weights {
		exact := float64(total) * float64(weight) / float64(w)
		shares[i] = int(math.Floor(exact))
		given += shares[i]
		rems[i] = remainder{index: i, frac: exact - float64(shares[i])}
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for k := 0; given < total; k++ {
		shares[rems[k%len(rems)].index]++
		given++
	}
	return shares
}

// transferMatrix decides how many cells source j gives target i. Every
// source but the last splits its share by the targets' quotas; the last
// source fills whatever quota remains, which keeps all totals exact.
func transferMatrix(drawn, quotas []int) [][]int {
	matrix := make([][]int, len(drawn))
	remaining := make([]int, len(quotas))
	copy(remaining, quotas)
	for j, d := range drawn {
		matrix[j] = make([]int, len(quotas))
		if j == len(drawn)-1 {
			copy(matrix[j], remaining)
			break
		}
		spill := 0
		for i, share := range apportion(d, quotas) {
			take := min(share, remaining[i])
			matrix[j][i] = take
			remaining[i] -= take
			spill += share - take
		}
		for i := range remaining {
			if spill == 0 {
				break
			}
			take := min(spill, remaining[i])
			matrix[j][i] += take
			remaining[i] -= take
			spill -= take
		}
	}
	return matrix
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

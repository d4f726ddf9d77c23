package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"strings"

	"github.com/daniacca/molgrid/internal/grid"
)

// maxGridCells caps the grids the server will allocate a pool for.
const maxGridCells = 1 << 16

type gridRequest struct {
	Cols int   `json:"cols"`
	Rows int   `json:"rows"`
	Seed int64 `json:"seed"`
}

func (g gridRequest) validate() error {
	if g.Cols <= 0 || g.Rows <= 0 {
		return fmt.Errorf("cols and rows must be > 0, got %dx%d", g.Cols, g.Rows)
	}
	if g.Cols*g.Rows > maxGridCells {
		return fmt.Errorf("grid of %dx%d exceeds %d cells", g.Cols, g.Rows, maxGridCells)
	}
	return nil
}

func (g gridRequest) pool() *grid.Pool {
	return grid.NewPool(g.Cols, g.Rows, rand.New(rand.NewSource(g.Seed)))
}

type balanceRequest struct {
	gridRequest
	Increasing [2]grid.ElementToBalance `json:"increasing"`
	Decreasing [2]grid.ElementToBalance `json:"decreasing"`
	Curve      *curveRequest            `json:"curve,omitempty"`
}

// maxCurveSamples caps the frames a single balance request may ask for.
const maxCurveSamples = 1000

// curveRequest asks for the drawn counts of a balance sampled along a
// transition from start_x to end_x. Zero fields take the defaults below.
type curveRequest struct {
	Kind      string  `json:"kind"`
	StartX    float64 `json:"start_x"`
	EndX      float64 `json:"end_x"`
	Samples   int     `json:"samples"`
	FPS       int     `json:"fps"`
	Frequency float64 `json:"frequency"`
	Damping   float64 `json:"damping"`
}

func (c *curveRequest) normalize() error {
	if c.Kind == "" {
		c.Kind = "linear"
	}
	if c.Kind != "linear" && c.Kind != "spring" {
		return fmt.Errorf("curve kind must be linear or spring, got %q", c.Kind)
	}
	if c.StartX == 0 && c.EndX == 0 {
		c.EndX = 1
	}
	if c.EndX <= c.StartX {
		return fmt.Errorf("curve end_x must be greater than start_x")
	}
	if c.Samples == 0 {
		c.Samples = 11
	}
	if c.Samples < 2 || c.Samples > maxCurveSamples {
		return fmt.Errorf("curve samples must be between 2 and %d, got %d", maxCurveSamples, c.Samples)
	}
	if c.FPS == 0 {
		c.FPS = 60
	}
	if c.Frequency == 0 {
		c.Frequency = 6
	}
	if c.Damping == 0 {
		c.Damping = 1
	}
	if c.FPS < 2 || c.Frequency < 0 || c.Damping < 0 {
		return fmt.Errorf("curve fps must be >= 2, frequency and damping must be >= 0")
	}
	return nil
}

func (c curveRequest) fractioned(e grid.BalancedElement) grid.FractionedCoordinates {
	if c.Kind == "spring" {
		return e.FractionedSpring(c.StartX, c.EndX, c.FPS, c.Frequency, c.Damping)
	}
	return e.FractionedLinear(c.StartX, c.EndX)
}

// balanceFrame is how many cells of each category are drawn at X.
type balanceFrame struct {
	X          float64 `json:"x"`
	Increasing [2]int  `json:"increasing"`
	Decreasing [2]int  `json:"decreasing"`
}

type balanceResponse struct {
	grid.Balanced
	Frames []balanceFrame `json:"frames,omitempty"`
}

// frames samples the balance at evenly spaced inputs, both ends included.
func (c curveRequest) frames(b grid.Balanced) []balanceFrame {
	var inc, dec [2]grid.FractionedCoordinates
	for i := range 2 {
		inc[i] = c.fractioned(b.Increasing[i])
		dec[i] = c.fractioned(b.Decreasing[i])
	}
	out := make([]balanceFrame, c.Samples)
	step := (c.EndX - c.StartX) / float64(c.Samples-1)
	for k := range out {
		x := c.StartX + step*float64(k)
		if k == c.Samples-1 {
			x = c.EndX
		}
		f := balanceFrame{X: x}
		for i := range 2 {
			f.Increasing[i] = inc[i].CountAt(x)
			f.Decreasing[i] = dec[i].CountAt(x)
		}
		out[k] = f
	}
	return out
}

type setRequest struct {
	gridRequest
	Elements []grid.ElementToBalance `json:"elements"`
	Avoiding []grid.Coordinate       `json:"avoiding,omitempty"`
}

type spiralRequest struct {
	gridRequest
	Count    int               `json:"count"`
	Avoiding []grid.Coordinate `json:"avoiding,omitempty"`
}

type growRequest struct {
	gridRequest
	Existing []grid.Coordinate `json:"existing,omitempty"`
	Count    int               `json:"count"`
	Avoiding []grid.Coordinate `json:"avoiding,omitempty"`
}

// checkElements rejects inputs the balancer treats as caller bugs: cells off
// the grid, cells owned twice, negative targets and occupancy beyond the
// grid.
func checkElements(g gridRequest, elements []grid.ElementToBalance, avoiding []grid.Coordinate) error {
	seen := grid.NewCoordinateSet()
	total := 0
	for i, e := range elements {
		if e.FinalCount < 0 {
			return fmt.Errorf("element %d: final_count must be >= 0, got %d", i, e.FinalCount)
		}
		for _, c := range e.InitialCoords {
			if c.Col < 0 || c.Col >= g.Cols || c.Row < 0 || c.Row >= g.Rows {
				return fmt.Errorf("element %d: cell %s is off the grid", i, c)
			}
			if seen.Contains(c) {
				return fmt.Errorf("element %d: cell %s is owned twice", i, c)
			}
			seen.Add(c)
		}
		total += max(e.FinalCount, len(e.InitialCoords))
	}
	for _, c := range avoiding {
		if !seen.Contains(c) {
			total++
			seen.Add(c)
		}
	}
	if total > g.Cols*g.Rows {
		return fmt.Errorf("requested occupancy %d exceeds grid size %d", total, g.Cols*g.Rows)
	}
	return nil
}

// handleGridRoutes serves the stateless layout endpoints under /grid/
func (s *Server) handleGridRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch strings.TrimPrefix(r.URL.Path, "/grid/") {
	case "balance":
		s.handleBalance(w, r)
	case "set":
		s.handleSet(w, r)
	case "spiral":
		s.handleSpiral(w, r)
	case "grow":
		s.handleGrow(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	elements := []grid.ElementToBalance{req.Increasing[0], req.Increasing[1], req.Decreasing[0], req.Decreasing[1]}
	if err := checkElements(req.gridRequest, elements, nil); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Curve != nil {
		if err := req.Curve.normalize(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	resp := balanceResponse{Balanced: grid.Balance(req.pool(), req.Increasing, req.Decreasing)}
	if req.Curve != nil {
		resp.Frames = req.Curve.frames(resp.Balanced)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := checkElements(req.gridRequest, req.Elements, req.Avoiding); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out := grid.Set(req.pool(), req.Elements, grid.NewCoordinateSet(req.Avoiding))
	writeJSON(w, http.StatusOK, map[string]any{"elements": out})
}

func (s *Server) handleSpiral(w http.ResponseWriter, r *http.Request) {
	var req spiralRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Count < 0 {
		http.Error(w, "count must be >= 0", http.StatusBadRequest)
		return
	}
	coords := grid.Spiral(req.Cols, req.Rows, req.Count, grid.NewCoordinateSet(req.Avoiding))
	writeJSON(w, http.StatusOK, map[string]any{"coords": coords})
}

func (s *Server) handleGrow(w http.ResponseWriter, r *http.Request) {
	var req growRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Count < 0 {
		http.Error(w, "count must be >= 0", http.StatusBadRequest)
		return
	}
	existing := []grid.ElementToBalance{{InitialCoords: req.Existing}}
	if err := checkElements(req.gridRequest, existing, nil); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	coords := req.pool().Grow(req.Existing, req.Count, grid.NewCoordinateSet(req.Avoiding))
	writeJSON(w, http.StatusOK, map[string]any{"coords": coords})
}

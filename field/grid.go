package field

import (
	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/spark/space"
)

// Grid is a serial data layer updated in place. It must not be written
// concurrently; use ParallelGrid when agents step in parallel.
type Grid struct {
	lattice
	data   []float64
	stepFn StepFunc
}

// NewGrid creates a 2D layer of nx by ny cells over s.
func NewGrid(name string, s *space.Space, nx, ny int) (*Grid, error) {
	return NewGrid3(name, s, nx, ny, 1)
}

// NewGrid3 creates a layer of nx by ny by nz cells over s. nz must be 1 on a
// 2D space.
func NewGrid3(name string, s *space.Space, nx, ny, nz int) (*Grid, error) {
	l, err := newLattice(name, s, nx, ny, nz)
	if err != nil {
		return nil, err
	}
	return &Grid{lattice: l, data: make([]float64, l.Len())}, nil
}

// MustNewGrid is like NewGrid but panics on error.
func MustNewGrid(name string, s *space.Space, nx, ny int) *Grid {
	g, err := NewGrid(name, s, nx, ny)
	if err != nil {
		panic(err)
	}
	return g
}

// At returns the value of cell (i, j, k).
func (g *Grid) At(i, j, k int) float64 { return g.data[g.index(i, j, k)] }

// Set sets the value of cell (i, j, k).
func (g *Grid) Set(i, j, k int, v float64) { g.data[g.index(i, j, k)] = v }

// Value returns the value of the cell containing p.
func (g *Grid) Value(p space.Vector) float64 { return g.data[g.indexOf(p)] }

// SetValue sets the cell containing p.
func (g *Grid) SetValue(p space.Vector, v float64) { g.data[g.indexOf(p)] = v }

// AddValue adds v to the cell containing p.
func (g *Grid) AddValue(p space.Vector, v float64) { g.data[g.indexOf(p)] += v }

// Fill sets every cell to v.
func (g *Grid) Fill(v float64) {
	for i := range g.data {
		g.data[i] = v
	}
}

// SetFunc sets every cell to fn evaluated at the cell centre.
func (g *Grid) SetFunc(fn func(space.Vector) float64) { g.evalFunc(g.data, fn) }

// Total returns the sum of all cells.
func (g *Grid) Total() float64 { return floats.Sum(g.data) }

// TotalIn returns the sum of the cells covering the box from lo to hi.
func (g *Grid) TotalIn(lo, hi space.Vector) float64 { return g.totalIn(g.data, lo, hi) }

// Gradient returns the steepest ascent from p's cell, scaled by the rise.
func (g *Grid) Gradient(p space.Vector) space.Vector { return g.gradient(g.data, p) }

// Stats summarizes the values.
func (g *Grid) Stats() Stats { return computeStats(g.data) }

// Colors maps the values onto a colour ramp for display.
func (g *Grid) Colors(val1, val2 float64, c1, c2 space.Color) []space.Color {
	return colors(g.data, val1, val2, c1, c2)
}

// Data returns the backing array in storage order (x fastest).
func (g *Grid) Data() []float64 { return g.data }

// SetStepFunc installs the per-tick update applied by Process.
func (g *Grid) SetStepFunc(fn StepFunc) { g.stepFn = fn }

// Process applies the step function, if any, to every cell.
func (g *Grid) Process(tick int64) {
	if g.stepFn == nil {
		return
	}
	g.evalStep(g.data, g.data, tick, g.stepFn)
}

// BeginStep is a no-op on a serial grid.
func (g *Grid) BeginStep() {}

// EndStep is a no-op on a serial grid.
func (g *Grid) EndStep() {}

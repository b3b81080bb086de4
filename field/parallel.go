package field

import (
	"slices"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/spark/space"
)

// ParallelGrid is a copy-on-write data layer. Readers always see the array
// published at the last EndStep or Process; a reader that captured it never
// observes a partial update.
//
// Between BeginStep and EndStep writes go to a private buffer under a mutex
// and become visible when EndStep publishes it. Outside a step, writes apply
// to the current array directly; that phase is single-threaded.
type ParallelGrid struct {
	lattice
	cur    atomic.Pointer[[]float64]
	mu     sync.Mutex
	buf    []float64
	stepFn StepFunc
}

// NewParallelGrid creates a 2D copy-on-write layer.
func NewParallelGrid(name string, s *space.Space, nx, ny int) (*ParallelGrid, error) {
	return NewParallelGrid3(name, s, nx, ny, 1)
}

// NewParallelGrid3 creates a copy-on-write layer of nx by ny by nz cells.
func NewParallelGrid3(name string, s *space.Space, nx, ny, nz int) (*ParallelGrid, error) {
	l, err := newLattice(name, s, nx, ny, nz)
	if err != nil {
		return nil, err
	}
	g := &ParallelGrid{lattice: l}
	data := make([]float64, l.Len())
	g.cur.Store(&data)
	return g, nil
}

// Snapshot returns the published array. Callers must not modify it.
func (g *ParallelGrid) Snapshot() []float64 { return *g.cur.Load() }

func (g *ParallelGrid) publish(data []float64) { g.cur.Store(&data) }

// At returns the published value of cell (i, j, k).
func (g *ParallelGrid) At(i, j, k int) float64 { return g.Snapshot()[g.index(i, j, k)] }

// Value returns the published value of the cell containing p.
func (g *ParallelGrid) Value(p space.Vector) float64 { return g.Snapshot()[g.indexOf(p)] }

func (g *ParallelGrid) write(idx int, fn func(old float64) float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.buf != nil {
		g.buf[idx] = fn(g.buf[idx])
		return
	}
	data := g.Snapshot()
	data[idx] = fn(data[idx])
}

// Set sets cell (i, j, k).
func (g *ParallelGrid) Set(i, j, k int, v float64) {
	g.write(g.index(i, j, k), func(float64) float64 { return v })
}

// SetValue sets the cell containing p.
func (g *ParallelGrid) SetValue(p space.Vector, v float64) {
	g.write(g.indexOf(p), func(float64) float64 { return v })
}

// AddValue adds v to the cell containing p.
func (g *ParallelGrid) AddValue(p space.Vector, v float64) {
	g.write(g.indexOf(p), func(old float64) float64 { return old + v })
}

// Fill publishes a new array with every cell set to v.
func (g *ParallelGrid) Fill(v float64) {
	data := make([]float64, g.Len())
	for i := range data {
		data[i] = v
	}
	g.publish(data)
}

// SetFunc publishes a new array of fn evaluated at each cell centre.
func (g *ParallelGrid) SetFunc(fn func(space.Vector) float64) {
	data := make([]float64, g.Len())
	g.evalFunc(data, fn)
	g.publish(data)
}

// SetStepFunc installs the per-tick update applied by Process.
func (g *ParallelGrid) SetStepFunc(fn StepFunc) { g.stepFn = fn }

// Process publishes a new array with the step function applied.
func (g *ParallelGrid) Process(tick int64) {
	if g.stepFn == nil {
		return
	}
	g.publish(g.applyStep(g.Snapshot(), tick))
}

func (g *ParallelGrid) applyStep(src []float64, tick int64) []float64 {
	dst := make([]float64, len(src))
	g.evalStep(dst, src, tick, g.stepFn)
	return dst
}

// BeginStep opens a write buffer seeded from the published array.
func (g *ParallelGrid) BeginStep() {
	g.mu.Lock()
	g.buf = slices.Clone(g.Snapshot())
	g.mu.Unlock()
}

// EndStep publishes the write buffer.
func (g *ParallelGrid) EndStep() {
	g.mu.Lock()
	buf := g.buf
	g.buf = nil
	g.mu.Unlock()
	if buf != nil {
		g.publish(buf)
	}
}

// Total returns the sum of the published array.
func (g *ParallelGrid) Total() float64 { return floats.Sum(g.Snapshot()) }

// TotalIn returns the published sum over the box from lo to hi.
func (g *ParallelGrid) TotalIn(lo, hi space.Vector) float64 {
	return g.totalIn(g.Snapshot(), lo, hi)
}

// Gradient returns the steepest ascent from p's cell in the published array.
func (g *ParallelGrid) Gradient(p space.Vector) space.Vector {
	return g.gradient(g.Snapshot(), p)
}

// Stats summarizes the published values.
func (g *ParallelGrid) Stats() Stats { return computeStats(g.Snapshot()) }

// Colors maps the published values onto a colour ramp.
func (g *ParallelGrid) Colors(val1, val2 float64, c1, c2 space.Color) []space.Color {
	return colors(g.Snapshot(), val1, val2, c1, c2)
}

// Data returns a copy of the published array.
func (g *ParallelGrid) Data() []float64 { return slices.Clone(g.Snapshot()) }

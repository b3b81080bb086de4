// Package field implements data layers: dense scalar fields laid over the
// bounds of a space, sampled and written by agents and advanced once per tick.
package field

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/spark/space"
)

var (
	// ErrConfig marks a layer that cannot be built for the given space.
	ErrConfig = errors.New("field: configuration error")
	// ErrRadiusNotFound is returned when the convolution radius search does
	// not reach the tolerance within its iteration cap.
	ErrRadiusNotFound = errors.New("field: convolution radius not found")
)

// StepFunc computes the next value of the cell centred at p.
type StepFunc func(tick int64, p space.Vector, old float64) float64

// lattice is the geometry shared by every layer: a regular partition of the
// owning space's bounding box. Point to cell mapping matches the space's hash
// grid rounding and wrap rules.
type lattice struct {
	name    string
	space   *space.Space
	topo    space.Topology
	n       [3]int
	step    [3]float64
	invStep [3]float64
}

func newLattice(name string, s *space.Space, nx, ny, nz int) (lattice, error) {
	if s == nil {
		return lattice{}, fmt.Errorf("%w: layer %q has no space", ErrConfig, name)
	}
	topo := s.Topology()
	if nx < 1 || ny < 1 || nz < 1 {
		return lattice{}, fmt.Errorf("%w: layer %q has empty size %dx%dx%d", ErrConfig, name, nx, ny, nz)
	}
	if topo.Dims == 2 && nz != 1 {
		return lattice{}, fmt.Errorf("%w: 3D layer %q on 2D space %q", ErrConfig, name, s.Name())
	}
	l := lattice{name: name, space: s, topo: topo, n: [3]int{nx, ny, nz}}
	for axis := 0; axis < topo.Dims; axis++ {
		l.step[axis] = topo.Extent(axis) / float64(l.n[axis])
		l.invStep[axis] = 1 / l.step[axis]
	}
	return l, nil
}

// Name returns the layer name.
func (l *lattice) Name() string { return l.name }

// Space returns the owning space.
func (l *lattice) Space() *space.Space { return l.space }

// Cells returns the cell counts per axis.
func (l *lattice) Cells() [3]int { return l.n }

// Step returns the cell size along axis.
func (l *lattice) Step(axis int) float64 { return l.step[axis] }

// CellVolume returns the area (2D) or volume (3D) of one cell.
func (l *lattice) CellVolume() float64 {
	v := 1.0
	for axis := 0; axis < l.topo.Dims; axis++ {
		v *= l.step[axis]
	}
	return v
}

// Len returns the number of cells.
func (l *lattice) Len() int { return l.n[0] * l.n[1] * l.n[2] }

func (l *lattice) find(axis int, coord float64) int {
	if axis >= l.topo.Dims {
		return 0
	}
	return space.CellIndex(coord, space.Component(l.topo.Min, axis), l.invStep[axis], l.n[axis], l.topo.Wrap[axis])
}

// FindX returns the column holding x.
func (l *lattice) FindX(x float64) int { return l.find(0, x) }

// FindY returns the row holding y.
func (l *lattice) FindY(y float64) int { return l.find(1, y) }

// FindZ returns the layer holding z.
func (l *lattice) FindZ(z float64) int { return l.find(2, z) }

func (l *lattice) index(i, j, k int) int {
	return (k*l.n[1]+j)*l.n[0] + i
}

func (l *lattice) indexOf(p space.Vector) int {
	return l.index(l.find(0, p.X), l.find(1, p.Y), l.find(2, p.Z))
}

func (l *lattice) coords(idx int) (i, j, k int) {
	i = idx % l.n[0]
	j = (idx / l.n[0]) % l.n[1]
	k = idx / (l.n[0] * l.n[1])
	return
}

// CellCenter returns the centre of cell (i, j, k).
func (l *lattice) CellCenter(i, j, k int) space.Vector {
	var c space.Vector
	idx := [3]int{i, j, k}
	for axis := 0; axis < l.topo.Dims; axis++ {
		space.SetComponent(&c, axis, space.Component(l.topo.Min, axis)+(float64(idx[axis])+0.5)*l.step[axis])
	}
	return c
}

// Geometry returns every cell centre in storage order.
func (l *lattice) Geometry() []space.Vector {
	out := make([]space.Vector, l.Len())
	for idx := range out {
		out[idx] = l.CellCenter(l.coords(idx))
	}
	return out
}

func (l *lattice) evalFunc(dst []float64, fn func(space.Vector) float64) {
	for idx := range dst {
		dst[idx] = fn(l.CellCenter(l.coords(idx)))
	}
}

func (l *lattice) evalStep(dst, src []float64, tick int64, fn StepFunc) {
	for idx := range dst {
		dst[idx] = fn(tick, l.CellCenter(l.coords(idx)), src[idx])
	}
}

// totalIn sums the cells covering the box from lo to hi, inclusive of the
// cells holding both corners. Corners are clamped into the bounds.
func (l *lattice) totalIn(data []float64, lo, hi space.Vector) float64 {
	var from, to [3]int
	for axis := 0; axis < 3; axis++ {
		if axis >= l.topo.Dims {
			continue
		}
		a, b := space.Component(lo, axis), space.Component(hi, axis)
		if a > b {
			a, b = b, a
		}
		mn, mx := space.Component(l.topo.Min, axis), space.Component(l.topo.Max, axis)
		a, b = math.Max(a, mn), math.Min(b, mx)
		from[axis] = space.CellIndex(a, mn, l.invStep[axis], l.n[axis], false)
		to[axis] = space.CellIndex(b, mn, l.invStep[axis], l.n[axis], false)
	}
	var sum float64
	for k := from[2]; k <= to[2]; k++ {
		for j := from[1]; j <= to[1]; j++ {
			row := l.index(0, j, k)
			sum += floats.Sum(data[row+from[0] : row+to[0]+1])
		}
	}
	return sum
}

// gradient returns the direction toward the neighbouring cell with the
// largest increase over p's cell, scaled by that increase. It is zero when no
// neighbour is higher. Out-of-range neighbours on clamped axes are skipped.
func (l *lattice) gradient(data []float64, p space.Vector) space.Vector {
	c := [3]int{l.find(0, p.X), l.find(1, p.Y), l.find(2, p.Z)}
	base := data[l.index(c[0], c[1], c[2])]
	zr := 0
	if l.topo.Dims == 3 {
		zr = 1
	}

	var best space.Vector
	bestDelta := 0.0
	for dk := -zr; dk <= zr; dk++ {
		for dj := -1; dj <= 1; dj++ {
			for di := -1; di <= 1; di++ {
				if di == 0 && dj == 0 && dk == 0 {
					continue
				}
				off := [3]int{di, dj, dk}
				var nb [3]int
				ok := true
				for axis := 0; axis < 3; axis++ {
					x := c[axis] + off[axis]
					if x < 0 || x >= l.n[axis] {
						if !l.topo.Wrap[axis] {
							ok = false
							break
						}
						x = space.RestrictIndex(x, l.n[axis], true)
					}
					nb[axis] = x
				}
				if !ok {
					continue
				}
				delta := data[l.index(nb[0], nb[1], nb[2])] - base
				if delta > bestDelta {
					bestDelta = delta
					best = space.Vec3(float64(di)*l.step[0], float64(dj)*l.step[1], float64(dk)*l.step[2])
				}
			}
		}
	}
	if bestDelta == 0 {
		return space.Vector{}
	}
	return r3.Scale(bestDelta, r3.Unit(best))
}

// Stats summarizes a layer's values.
type Stats struct {
	Min    float64 `csv:"min"`
	Max    float64 `csv:"max"`
	Mean   float64 `csv:"mean"`
	StdDev float64 `csv:"std_dev"`
	Total  float64 `csv:"total"`
}

func computeStats(data []float64) Stats {
	if len(data) == 0 {
		return Stats{}
	}
	mean, std := stat.MeanStdDev(data, nil)
	if len(data) == 1 {
		std = 0
	}
	return Stats{
		Min:    floats.Min(data),
		Max:    floats.Max(data),
		Mean:   mean,
		StdDev: std,
		Total:  floats.Sum(data),
	}
}

// colors maps each value onto a linear ramp from c1 at val1 to c2 at val2,
// clamped at both ends. A degenerate range is widened to val1+1.
func colors(data []float64, val1, val2 float64, c1, c2 space.Color) []space.Color {
	if math.Abs(val2-val1) < 1e-12 {
		val2 = val1 + 1
	}
	out := make([]space.Color, len(data))
	inv := 1 / (val2 - val1)
	for idx, v := range data {
		t := (v - val1) * inv
		t = math.Min(math.Max(t, 0), 1)
		out[idx] = c1.Lerp(c2, t)
	}
	return out
}

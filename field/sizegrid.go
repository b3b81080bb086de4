package field

import (
	"math"

	"github.com/pthm-cable/spark/space"
)

// SizeGrid is a Grid that reads and writes whole agent footprints instead of
// single points. A footprint is the axis-aligned box of half-width equal to
// the node radius; each overlapped cell receives the fraction of the
// footprint's in-bounds area that falls inside it.
type SizeGrid struct {
	*Grid
}

// NewSizeGrid creates a 2D footprint-aware layer.
func NewSizeGrid(name string, s *space.Space, nx, ny int) (*SizeGrid, error) {
	g, err := NewGrid(name, s, nx, ny)
	if err != nil {
		return nil, err
	}
	return &SizeGrid{Grid: g}, nil
}

// NewSizeGrid3 creates a footprint-aware layer of nx by ny by nz cells.
func NewSizeGrid3(name string, s *space.Space, nx, ny, nz int) (*SizeGrid, error) {
	g, err := NewGrid3(name, s, nx, ny, nz)
	if err != nil {
		return nil, err
	}
	return &SizeGrid{Grid: g}, nil
}

type share struct {
	idx int
	w   float64
}

// span lists the cells overlapped by [c-h, c+h] on one axis with each cell's
// fraction of the in-bounds length. Clamped axes clip the interval to the
// bounds; wrapping axes fold it around.
func (g *SizeGrid) span(axis int, c, h float64) []share {
	if axis >= g.topo.Dims {
		return []share{{0, 1}}
	}
	n := g.n[axis]
	mn := space.Component(g.topo.Min, axis)
	mx := space.Component(g.topo.Max, axis)
	wrap := g.topo.Wrap[axis]
	lo, hi := c-h, c+h
	if !wrap {
		lo, hi = math.Max(lo, mn), math.Min(hi, mx)
	}
	length := hi - lo
	if h <= 0 || length <= 0 {
		return []share{{g.find(axis, c), 1}}
	}

	step := g.step[axis]
	i0 := int(math.Floor((lo - mn) * g.invStep[axis]))
	i1 := int(math.Floor((hi - mn) * g.invStep[axis]))
	out := make([]share, 0, i1-i0+1)
	for i := i0; i <= i1; i++ {
		cellLo := mn + float64(i)*step
		overlap := math.Min(hi, cellLo+step) - math.Max(lo, cellLo)
		if overlap <= 0 {
			continue
		}
		out = append(out, share{space.RestrictIndex(i, n, wrap), overlap / length})
	}
	return out
}

func (g *SizeGrid) footprint(center space.Vector, half float64, fn func(idx int, w float64)) {
	xs := g.span(0, center.X, half)
	ys := g.span(1, center.Y, half)
	zs := g.span(2, center.Z, half)
	for _, z := range zs {
		for _, y := range ys {
			for _, x := range xs {
				fn(g.index(x.idx, y.idx, z.idx), x.w*y.w*z.w)
			}
		}
	}
}

// SetBoxValue distributes v over the box of half-width half centred at
// center, overwriting the overlapped cells. The overlapped cells then sum
// to v.
func (g *SizeGrid) SetBoxValue(center space.Vector, half, v float64) {
	g.footprint(center, half, func(idx int, _ float64) {
		g.data[idx] = 0
	})
	g.AddBoxValue(center, half, v)
}

// AddBoxValue adds v to the box, apportioned by overlap.
func (g *SizeGrid) AddBoxValue(center space.Vector, half, v float64) {
	g.footprint(center, half, func(idx int, w float64) {
		g.data[idx] += v * w
	})
}

// BoxValue returns the overlap-weighted average of the cells under the box.
func (g *SizeGrid) BoxValue(center space.Vector, half float64) float64 {
	var sum float64
	g.footprint(center, half, func(idx int, w float64) {
		sum += g.data[idx] * w
	})
	return sum
}

// SetNodeValue distributes v over n's footprint.
func (g *SizeGrid) SetNodeValue(n *space.Node, v float64) {
	g.SetBoxValue(n.Position(), n.Radius(), v)
}

// AddNodeValue adds v over n's footprint.
func (g *SizeGrid) AddNodeValue(n *space.Node, v float64) {
	g.AddBoxValue(n.Position(), n.Radius(), v)
}

// NodeValue returns the footprint-weighted average under n.
func (g *SizeGrid) NodeValue(n *space.Node) float64 {
	return g.BoxValue(n.Position(), n.Radius())
}

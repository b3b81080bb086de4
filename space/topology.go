package space

import (
	"fmt"
	"math"
	"math/rand"
)

// Topology describes the bounding box of a space and how each axis behaves at
// its edges: wrapping axes are toroidal, the rest clamp to the bounds.
type Topology struct {
	Dims     int
	Min, Max Vector
	Wrap     [3]bool
}

// NewTopology2D returns a 2D topology.
func NewTopology2D(xMin, xMax, yMin, yMax float64, wrapX, wrapY bool) Topology {
	return Topology{
		Dims: 2,
		Min:  Vec2(xMin, yMin),
		Max:  Vec2(xMax, yMax),
		Wrap: [3]bool{wrapX, wrapY, false},
	}
}

// NewTopology3D returns a 3D topology.
func NewTopology3D(min, max Vector, wrapX, wrapY, wrapZ bool) Topology {
	return Topology{
		Dims: 3,
		Min:  min,
		Max:  max,
		Wrap: [3]bool{wrapX, wrapY, wrapZ},
	}
}

// Validate reports a configuration error for unusable bounds.
func (t Topology) Validate() error {
	if t.Dims != 2 && t.Dims != 3 {
		return fmt.Errorf("%w: dims must be 2 or 3, got %d", ErrConfig, t.Dims)
	}
	for axis := 0; axis < t.Dims; axis++ {
		lo, hi := Component(t.Min, axis), Component(t.Max, axis)
		if !(hi > lo) || math.IsInf(hi-lo, 0) {
			return fmt.Errorf("%w: axis %d has empty extent [%g, %g]", ErrConfig, axis, lo, hi)
		}
	}
	return nil
}

// Extent returns the length of the space along axis. Unused axes report 0.
func (t Topology) Extent(axis int) float64 {
	if axis >= t.Dims {
		return 0
	}
	return Component(t.Max, axis) - Component(t.Min, axis)
}

// Restrict maps p into the space: wrapping axes are reduced modulo the extent,
// other axes are clamped to [min, max].
func (t Topology) Restrict(p Vector) Vector {
	for axis := 0; axis < 3; axis++ {
		if axis >= t.Dims {
			SetComponent(&p, axis, 0)
			continue
		}
		lo, hi := Component(t.Min, axis), Component(t.Max, axis)
		x := Component(p, axis)
		if t.Wrap[axis] {
			ext := hi - lo
			if x < lo || x >= hi {
				x = lo + math.Mod(x-lo, ext)
				if x < lo {
					x += ext
				}
				if x >= hi {
					x = lo
				}
			}
		} else if x < lo {
			x = lo
		} else if x > hi {
			x = hi
		}
		SetComponent(&p, axis, x)
	}
	return p
}

// Displacement returns the shortest vector from a to b. Along wrapping axes the
// wrap-around image is used when it is shorter than the direct difference.
func (t Topology) Displacement(a, b Vector) Vector {
	var d Vector
	for axis := 0; axis < t.Dims; axis++ {
		x := Component(b, axis) - Component(a, axis)
		if t.Wrap[axis] {
			ext := t.Extent(axis)
			half := ext / 2
			if x > half {
				x -= ext
			} else if x < -half {
				x += ext
			}
		}
		SetComponent(&d, axis, x)
	}
	return d
}

// RandomPosition returns a uniformly distributed point inside the bounds.
func (t Topology) RandomPosition(rng *rand.Rand) Vector {
	var p Vector
	for axis := 0; axis < t.Dims; axis++ {
		SetComponent(&p, axis, Component(t.Min, axis)+rng.Float64()*t.Extent(axis))
	}
	return t.Restrict(p)
}

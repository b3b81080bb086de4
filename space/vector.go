// Package space provides the spatial core of the simulation: node handles with
// shapes, a hash grid for neighbor search, and the Space type that owns node
// lifecycle, topology and named data layers.
package space

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vector is a point or displacement. 2D spaces keep Z at zero.
type Vector = r3.Vec

// Vec2 returns a 2D vector.
func Vec2(x, y float64) Vector {
	return Vector{X: x, Y: y}
}

// Vec3 returns a 3D vector.
func Vec3(x, y, z float64) Vector {
	return Vector{X: x, Y: y, Z: z}
}

// Color is an RGBA colour in [0,1]. It is rendering metadata only.
type Color struct {
	R, G, B, A float64
}

// Common colours.
var (
	White = Color{1, 1, 1, 1}
	Black = Color{0, 0, 0, 1}
	Red   = Color{1, 0, 0, 1}
	Green = Color{0, 1, 0, 1}
	Blue  = Color{0, 0, 1, 1}
)

// Lerp blends c toward o by t.
func (c Color) Lerp(o Color, t float64) Color {
	return Color{
		R: c.R + (o.R-c.R)*t,
		G: c.G + (o.G-c.G)*t,
		B: c.B + (o.B-c.B)*t,
		A: c.A + (o.A-c.A)*t,
	}
}

// Component returns the value of v along axis (0=X, 1=Y, 2=Z).
func Component(v Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// SetComponent sets the value of v along axis.
func SetComponent(v *Vector, axis int, x float64) {
	switch axis {
	case 0:
		v.X = x
	case 1:
		v.Y = x
	default:
		v.Z = x
	}
}

// RestrictIndex maps a cell index into [0, n). Wrapping axes use a single
// modular correction so negative and far out-of-range offsets need no loop;
// other axes clamp.
func RestrictIndex(i, n int, wrap bool) int {
	if i >= 0 && i < n {
		return i
	}
	if wrap {
		i %= n
		if i < 0 {
			i += n
		}
		return i
	}
	if i < 0 {
		return 0
	}
	return n - 1
}

// CellIndex buckets a coordinate into a cell, rounding toward the lower edge.
// The hash grid and data layers both use it so a point always maps to the
// same cell in either structure.
func CellIndex(coord, min, invStep float64, n int, wrap bool) int {
	return RestrictIndex(int(math.Floor((coord-min)*invStep)), n, wrap)
}

package space

import "math"

// Intersects reports whether two nodes overlap. The displacement between them
// is taken from a's topology, so wrap-around neighbours collide. The result is
// symmetric for every shape pair.
func Intersects(a, b *Node) bool {
	t := &a.space.topology
	d := t.Displacement(a.position, b.position)
	return ShapesIntersect(a.shape, a.radius, b.shape, b.radius, d, t.Dims)
}

// ShapesIntersect tests two shapes whose centres are separated by d.
func ShapesIntersect(sa Shape, ra float64, sb Shape, rb float64, d Vector, dims int) bool {
	switch {
	case sa == Square2 && sb == Square2:
		return boxBox(ra, rb, d, dims)
	case sa == Square2:
		return boxRound(ra, rb, d, dims)
	case sb == Square2:
		return boxRound(rb, ra, d, dims)
	default:
		// Circle and the legacy Square share the disc test.
		return roundRound(ra, rb, d)
	}
}

func roundRound(ra, rb float64, d Vector) bool {
	r := ra + rb
	return d.X*d.X+d.Y*d.Y+d.Z*d.Z < r*r
}

// boxBox checks both directed overlaps on every axis: B's max corner against
// A's min corner, and A's max corner against B's min corner.
func boxBox(ra, rb float64, d Vector, dims int) bool {
	for axis := 0; axis < dims; axis++ {
		x := Component(d, axis)
		if (x+rb)-(-ra) < 0 {
			return false
		}
		if ra-(x-rb) < 0 {
			return false
		}
	}
	return true
}

// boxRound tests a box of half-width r against a disc of radius cr.
func boxRound(r, cr float64, d Vector, dims int) bool {
	var excess [3]float64
	inside := false
	for axis := 0; axis < dims; axis++ {
		a := math.Abs(Component(d, axis))
		if a > r+cr {
			return false
		}
		if a <= r {
			inside = true
			continue
		}
		excess[axis] = a - r
	}
	if inside && dims == 2 {
		return true
	}
	var dist2 float64
	for axis := 0; axis < dims; axis++ {
		dist2 += excess[axis] * excess[axis]
	}
	return dist2 <= cr*cr
}

package space

import "fmt"

// Shape selects the intersection geometry of a node.
type Shape uint8

const (
	// Circle is a disc (sphere in 3D) of the node radius.
	Circle Shape = iota
	// Square is the legacy square shape. It collides as a circle.
	Square
	// Square2 is an axis-aligned box with half-width equal to the node radius.
	Square2
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case Circle:
		return "circle"
	case Square:
		return "square"
	case Square2:
		return "square2"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

// ParseShape converts a shape name to a Shape.
func ParseShape(name string) (Shape, error) {
	switch name {
	case "circle", "":
		return Circle, nil
	case "square":
		return Square, nil
	case "square2":
		return Square2, nil
	}
	return Circle, fmt.Errorf("%w: unknown shape %q", ErrConfig, name)
}

// nodeState is the per-node bitmask folded from queued commands at commit.
type nodeState uint8

const (
	stateCreating nodeState = 1 << iota
	stateRemoving
	stateMoving
)

// noSlot marks a node that is not in the hash grid.
const noSlot int32 = -1

// Node is the positional handle of one agent inside one space.
//
// Position only changes during a commit pass, so reading it mid-tick always
// yields the committed value. The ring links are arena slot indices; a node
// outside the grid has slot, next and prev all equal to noSlot, which is its
// singleton ring.
type Node struct {
	space  *Space
	shape  Shape
	radius float64
	agent  any
	color  Color

	position    Vector
	newPosition Vector
	state       nodeState
	removed     bool

	slot       int32
	bucket     int32
	next, prev int32
}

func newNode(s *Space, shape Shape, radius float64, pos Vector, agent any) *Node {
	if radius < 0 {
		radius = 0
	}
	return &Node{
		space:    s,
		shape:    shape,
		radius:   radius,
		agent:    agent,
		color:    White,
		position: pos,
		slot:     noSlot,
		bucket:   noSlot,
		next:     noSlot,
		prev:     noSlot,
	}
}

// Space returns the owning space.
func (n *Node) Space() *Space { return n.space }

// Shape returns the node shape.
func (n *Node) Shape() Shape { return n.shape }

// Radius returns the node radius (relative size).
func (n *Node) Radius() float64 { return n.radius }

// Position returns the committed position.
func (n *Node) Position() Vector { return n.position }

// Agent returns the agent that owns this node.
func (n *Node) Agent() any { return n.agent }

// Color returns the node colour.
func (n *Node) Color() Color { return n.color }

// SetColor sets the node colour.
func (n *Node) SetColor(c Color) { n.color = c }

// Removed reports whether a removal has been committed.
func (n *Node) Removed() bool { return n.removed }

// Committed reports whether the node is currently in the hash grid.
func (n *Node) Committed() bool { return n.slot != noSlot }

// Intersects reports whether n and o overlap in n's space.
func (n *Node) Intersects(o *Node) bool {
	return Intersects(n, o)
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	return fmt.Sprintf("%s(r=%g @ %.3f,%.3f,%.3f)", n.shape, n.radius, n.position.X, n.position.Y, n.position.Z)
}

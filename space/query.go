package space

import (
	"iter"
	"reflect"
)

// queryNode returns a node positioned at center for a neighbour search.
// Serial spaces reuse one scratch node; every other mode allocates.
func (s *Space) queryNode(center Vector, radius float64) *Node {
	if radius < 0 {
		radius = 0
	}
	center = s.topology.Restrict(center)
	if s.mode == Serial {
		q := s.scratch
		q.shape, q.radius, q.position = Circle, radius, center
		return q
	}
	return newNode(s, Circle, radius, center, nil)
}

// visit calls fn for every committed node intersecting q. filter runs first
// and may reject a candidate before the geometric test.
func (s *Space) visit(q *Node, filter func(*Node) bool, fn func(*Node)) {
	s.grid.Visit(q.position, q.radius, s.MaxNodeRadius(), func(n *Node) {
		if n == q {
			return
		}
		if filter != nil && !filter(n) {
			return
		}
		if Intersects(q, n) {
			fn(n)
		}
	})
}

// Nodes returns the committed nodes intersecting the disc at center.
func (s *Space) Nodes(center Vector, radius float64) []*Node {
	var out []*Node
	s.visit(s.queryNode(center, radius), nil, func(n *Node) {
		out = append(out, n)
	})
	return out
}

// Agents returns the agents whose nodes intersect the disc at center.
// Nodes without an agent are skipped.
func (s *Space) Agents(center Vector, radius float64) []any {
	return s.AgentsInto(nil, center, radius)
}

// AgentsInto appends the agents near center to dst and returns it. Passing a
// reused slice avoids allocation in hot loops.
func (s *Space) AgentsInto(dst []any, center Vector, radius float64) []any {
	dst = dst[:0]
	s.visit(s.queryNode(center, radius), hasAgent, func(n *Node) {
		dst = append(dst, n.agent)
	})
	return dst
}

// AgentsNear returns the agents whose nodes intersect n, using n's own shape
// and radius. n itself is excluded.
func (s *Space) AgentsNear(n *Node) []any {
	var out []any
	s.visit(n, hasAgent, func(o *Node) {
		out = append(out, o.agent)
	})
	return out
}

// AgentsOfType returns the agents of exactly type t near center.
func (s *Space) AgentsOfType(center Vector, radius float64, t reflect.Type) []any {
	var out []any
	if t == nil {
		return out
	}
	filter := func(n *Node) bool {
		return n.agent != nil && reflect.TypeOf(n.agent) == t
	}
	s.visit(s.queryNode(center, radius), filter, func(n *Node) {
		out = append(out, n.agent)
	})
	return out
}

// AgentsOfKind returns the agents near center that are assignable to T,
// which may be an interface.
func AgentsOfKind[T any](s *Space, center Vector, radius float64) []T {
	var out []T
	filter := func(n *Node) bool {
		_, ok := n.agent.(T)
		return ok
	}
	s.visit(s.queryNode(center, radius), filter, func(n *Node) {
		out = append(out, n.agent.(T))
	})
	return out
}

// All iterates every committed node in arena order.
func (s *Space) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, n := range s.grid.nodes {
			if n == nil {
				continue
			}
			if !yield(n) {
				return
			}
		}
	}
}

func hasAgent(n *Node) bool { return n.agent != nil }

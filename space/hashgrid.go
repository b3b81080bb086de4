package space

import "math"

// Hash grid resolution bounds per axis.
const (
	DefaultMinCells = 10
	DefaultMaxCells = 120
)

// HashGrid maps discretized cell coordinates to a ring of the nodes occupying
// that cell. Nodes live in a slot arena; rings are linked by slot index and
// each bucket stores the slot of its head node, or noSlot when empty.
//
// The grid is only mutated during single-threaded commit passes. Queries may
// run concurrently with each other.
type HashGrid struct {
	topo    Topology
	n       [3]int
	step    [3]float64
	invStep [3]float64
	heads   []int32

	nodes []*Node
	free  []int32
}

// CellsFor picks a per-axis resolution proportional to the extents, about
// one cell per unit of extent, clamped to [minCells, maxCells]. Unused axes
// get one cell.
func CellsFor(topo Topology, minCells, maxCells int) [3]int {
	if minCells <= 0 {
		minCells = DefaultMinCells
	}
	if maxCells < minCells {
		maxCells = max(DefaultMaxCells, minCells)
	}
	cells := [3]int{1, 1, 1}
	for axis := 0; axis < topo.Dims; axis++ {
		c := int(math.Ceil(topo.Extent(axis)))
		cells[axis] = min(max(c, minCells), maxCells)
	}
	return cells
}

// NewHashGrid allocates a grid over topo with the given cell counts.
func NewHashGrid(topo Topology, cells [3]int) *HashGrid {
	g := &HashGrid{topo: topo}
	total := 1
	for axis := 0; axis < 3; axis++ {
		n := cells[axis]
		if axis >= topo.Dims || n < 1 {
			n = 1
		}
		g.n[axis] = n
		if axis < topo.Dims {
			g.step[axis] = topo.Extent(axis) / float64(n)
			g.invStep[axis] = 1 / g.step[axis]
		}
		total *= n
	}
	g.heads = make([]int32, total)
	for i := range g.heads {
		g.heads[i] = noSlot
	}
	return g
}

// Cells returns the cell counts per axis.
func (g *HashGrid) Cells() [3]int { return g.n }

// Step returns the cell size along axis.
func (g *HashGrid) Step(axis int) float64 { return g.step[axis] }

// FindAxis returns the cell index of coord along axis.
func (g *HashGrid) FindAxis(axis int, coord float64) int {
	if axis >= g.topo.Dims {
		return 0
	}
	return CellIndex(coord, Component(g.topo.Min, axis), g.invStep[axis], g.n[axis], g.topo.Wrap[axis])
}

// RestrictAxis normalizes an out-of-range cell index along axis.
func (g *HashGrid) RestrictAxis(axis, i int) int {
	return RestrictIndex(i, g.n[axis], g.topo.Wrap[axis])
}

// Bucket returns the bucket index of the cell containing p.
func (g *HashGrid) Bucket(p Vector) int {
	return g.bucketOf(g.FindAxis(0, p.X), g.FindAxis(1, p.Y), g.FindAxis(2, p.Z))
}

// CellCenter returns the centre of the cell holding p.
func (g *HashGrid) CellCenter(p Vector) Vector {
	var c Vector
	for axis := 0; axis < g.topo.Dims; axis++ {
		i := g.FindAxis(axis, Component(p, axis))
		SetComponent(&c, axis, Component(g.topo.Min, axis)+(float64(i)+0.5)*g.step[axis])
	}
	return c
}

func (g *HashGrid) bucketOf(i, j, k int) int {
	return (k*g.n[1]+j)*g.n[0] + i
}

// Len returns the number of nodes in the grid.
func (g *HashGrid) Len() int {
	return len(g.nodes) - len(g.free)
}

func (g *HashGrid) alloc(n *Node) {
	if k := len(g.free); k > 0 {
		n.slot = g.free[k-1]
		g.free = g.free[:k-1]
		g.nodes[n.slot] = n
		return
	}
	n.slot = int32(len(g.nodes))
	g.nodes = append(g.nodes, n)
}

// insert places n into the cell containing p.
func (g *HashGrid) insert(n *Node, p Vector) {
	if n.slot == noSlot {
		g.alloc(n)
	}
	g.link(n, int32(g.Bucket(p)))
}

// remove unlinks n and releases its slot.
func (g *HashGrid) remove(n *Node) {
	if n.slot == noSlot {
		return
	}
	g.unlink(n)
	g.nodes[n.slot] = nil
	g.free = append(g.free, n.slot)
	n.slot, n.next, n.prev, n.bucket = noSlot, noSlot, noSlot, noSlot
}

// move re-buckets n at p, keeping its slot.
func (g *HashGrid) move(n *Node, p Vector) {
	b := int32(g.Bucket(p))
	if b == n.bucket {
		return
	}
	g.unlink(n)
	g.link(n, b)
}

func (g *HashGrid) link(n *Node, b int32) {
	n.bucket = b
	head := g.heads[b]
	if head == noSlot {
		n.next, n.prev = n.slot, n.slot
		g.heads[b] = n.slot
		return
	}
	h := g.nodes[head]
	tail := g.nodes[h.prev]
	n.next = head
	n.prev = h.prev
	tail.next = n.slot
	h.prev = n.slot
}

func (g *HashGrid) unlink(n *Node) {
	b := n.bucket
	if b == noSlot {
		return
	}
	if n.next == n.slot {
		g.heads[b] = noSlot
	} else {
		g.nodes[n.prev].next = n.next
		g.nodes[n.next].prev = n.prev
		if g.heads[b] == n.slot {
			g.heads[b] = n.next
		}
	}
	n.next, n.prev, n.bucket = n.slot, n.slot, noSlot
}

// window returns the inclusive cell range to scan along axis for a query of
// the given reach around cell c. Wrapping axes may return lo < 0 or hi >= n;
// callers restrict each index.
func (g *HashGrid) window(axis, c int, reach float64) (lo, hi int) {
	if axis >= g.topo.Dims {
		return 0, 0
	}
	n := g.n[axis]
	off := int(math.Ceil(reach*g.invStep[axis])) + 1
	if g.topo.Wrap[axis] {
		if 2*off+1 >= n {
			return 0, n - 1
		}
		return c - off, c + off
	}
	return max(c-off, 0), min(c+off, n-1)
}

// Visit calls fn for every node whose cell lies within the search window of a
// query centred at center with the given radius. maxRadius is the largest
// node radius ever created in the space; fn does the exact geometric test.
func (g *HashGrid) Visit(center Vector, radius, maxRadius float64, fn func(*Node)) {
	reach := radius + maxRadius
	var lo, hi [3]int
	for axis := 0; axis < 3; axis++ {
		lo[axis], hi[axis] = g.window(axis, g.FindAxis(axis, Component(center, axis)), reach)
	}
	for k := lo[2]; k <= hi[2]; k++ {
		kk := g.RestrictAxis(2, k)
		for j := lo[1]; j <= hi[1]; j++ {
			jj := g.RestrictAxis(1, j)
			for i := lo[0]; i <= hi[0]; i++ {
				g.visitBucket(g.bucketOf(g.RestrictAxis(0, i), jj, kk), fn)
			}
		}
	}
}

func (g *HashGrid) visitBucket(b int, fn func(*Node)) {
	head := g.heads[b]
	if head == noSlot {
		return
	}
	for s := head; ; {
		n := g.nodes[s]
		fn(n)
		s = n.next
		if s == head {
			return
		}
	}
}

// BucketLen returns the number of nodes in bucket b.
func (g *HashGrid) BucketLen(b int) int {
	count := 0
	g.visitBucket(b, func(*Node) { count++ })
	return count
}

// Stats summarizes bucket occupancy.
func (g *HashGrid) Stats() GridStats {
	st := GridStats{TotalCells: len(g.heads)}
	for b := range g.heads {
		c := g.BucketLen(b)
		if c == 0 {
			continue
		}
		st.NonEmptyCells++
		st.TotalNodes += c
		st.MaxInCell = max(st.MaxInCell, c)
	}
	if st.NonEmptyCells > 0 {
		st.AvgPerNonEmpty = float64(st.TotalNodes) / float64(st.NonEmptyCells)
	}
	return st
}

// GridStats contains hash grid statistics for debugging.
type GridStats struct {
	TotalCells     int
	NonEmptyCells  int
	TotalNodes     int
	MaxInCell      int
	AvgPerNonEmpty float64
}

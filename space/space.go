package space

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
)

// ErrConfig marks configuration errors: mistakes in the model definition that
// are reported immediately and never retried.
var ErrConfig = errors.New("space: configuration error")

// Mode is the execution mode of a space. It is fixed at construction.
type Mode uint8

const (
	// Serial commits every mutation immediately.
	Serial Mode = iota
	// Concurrent queues mutations without locking; the scheduler guarantees
	// a single writer at a time.
	Concurrent
	// Parallel queues mutations under a lock; many goroutines may call in.
	Parallel
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Serial:
		return "serial"
	case Concurrent:
		return "concurrent"
	case Parallel:
		return "parallel"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode converts a mode name to a Mode.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "serial", "":
		return Serial, nil
	case "concurrent":
		return Concurrent, nil
	case "parallel":
		return Parallel, nil
	}
	return Serial, fmt.Errorf("%w: unknown execution mode %q", ErrConfig, name)
}

// Kind selects how positions are interpreted.
type Kind uint8

const (
	// Standard is continuous space.
	Standard Kind = iota
	// Grid snaps every position to the centre of a unit cell. Extents must
	// be integers and the hash grid has one bucket per unit cell.
	Grid
)

// ParseKind converts a kind name to a Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "standard", "":
		return Standard, nil
	case "grid", "discrete":
		return Grid, nil
	}
	return Standard, fmt.Errorf("%w: unknown space kind %q", ErrConfig, name)
}

// Options configures a new Space.
type Options struct {
	Name     string
	Kind     Kind
	Topology Topology
	Mode     Mode
	// Hash grid resolution bounds per axis. Zero selects the defaults.
	MinCells, MaxCells int
}

type opCode uint8

const (
	opCreate opCode = iota
	opMove
	opRemove
)

// command is one queued node mutation.
type command struct {
	op     opCode
	node   *Node
	target Vector
}

// CommitStats counts the mutations applied by one commit pass.
type CommitStats struct {
	Created int
	Moved   int
	Removed int
}

// Space owns a hash grid of nodes, the topology, the deferred mutation queue
// and a set of named data layers.
type Space struct {
	name     string
	kind     Kind
	topology Topology
	mode     Mode
	grid     *HashGrid

	// maxRadius holds float64 bits; it only grows.
	maxRadius atomic.Uint64

	mu    sync.Mutex
	queue []command
	order []*Node
	setup bool

	scratch *Node

	layers      map[string]DataLayer
	layerOrder  []string
	postProcess func(*Space)
}

// New creates a space. The space starts in its setup phase, in which every
// mutation commits immediately, until EndSetup is called.
func New(opts Options) (*Space, error) {
	topo := opts.Topology
	if err := topo.Validate(); err != nil {
		return nil, err
	}
	if opts.Mode > Parallel {
		return nil, fmt.Errorf("%w: unsupported execution mode %d", ErrConfig, opts.Mode)
	}

	var cells [3]int
	switch opts.Kind {
	case Standard:
		cells = CellsFor(topo, opts.MinCells, opts.MaxCells)
	case Grid:
		for axis := 0; axis < topo.Dims; axis++ {
			ext := topo.Extent(axis)
			if ext != math.Trunc(ext) {
				return nil, fmt.Errorf("%w: grid space needs integer extents, axis %d is %g", ErrConfig, axis, ext)
			}
			cells[axis] = int(ext)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported space kind %d", ErrConfig, opts.Kind)
	}

	s := &Space{
		name:     opts.Name,
		kind:     opts.Kind,
		topology: topo,
		mode:     opts.Mode,
		grid:     NewHashGrid(topo, cells),
		setup:    true,
		layers:   make(map[string]DataLayer),
	}
	s.scratch = newNode(s, Circle, 0, topo.Min, nil)

	slog.Debug("space created",
		"name", s.name,
		"mode", s.mode.String(),
		"dims", topo.Dims,
		"cells", cells,
	)
	return s, nil
}

// MustNew is like New but panics on error.
func MustNew(opts Options) *Space {
	s, err := New(opts)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the space name.
func (s *Space) Name() string { return s.name }

// Kind returns the space kind.
func (s *Space) Kind() Kind { return s.kind }

// Mode returns the execution mode.
func (s *Space) Mode() Mode { return s.mode }

// Topology returns the bounds and wrap flags.
func (s *Space) Topology() Topology { return s.topology }

// HashGrid exposes the spatial index for inspection.
func (s *Space) HashGrid() *HashGrid { return s.grid }

// NodeCount returns the number of committed nodes.
func (s *Space) NodeCount() int { return s.grid.Len() }

// MaxNodeRadius returns the largest radius of any node ever created here.
func (s *Space) MaxNodeRadius() float64 {
	return math.Float64frombits(s.maxRadius.Load())
}

// observeRadius raises the maximum node radius. It is safe for concurrent use.
func (s *Space) observeRadius(r float64) {
	for {
		old := s.maxRadius.Load()
		if math.Float64frombits(old) >= r {
			return
		}
		if s.maxRadius.CompareAndSwap(old, math.Float64bits(r)) {
			return
		}
	}
}

// EndSetup leaves the setup phase. From now on mutations in Concurrent and
// Parallel mode are deferred until ProcessNodes.
func (s *Space) EndSetup() { s.setup = false }

// InSetup reports whether mutations still commit immediately.
func (s *Space) InSetup() bool { return s.setup }

func (s *Space) immediate() bool {
	return s.mode == Serial || s.setup
}

// SetPostProcess installs a hook run at the end of every ProcessNodes call.
func (s *Space) SetPostProcess(fn func(*Space)) { s.postProcess = fn }

// Restrict maps p into the space per topology; grid spaces also snap to
// the cell centre.
func (s *Space) Restrict(p Vector) Vector {
	p = s.topology.Restrict(p)
	if s.kind == Grid {
		p = s.grid.CellCenter(p)
	}
	return p
}

// Displacement returns the topology-aware vector from a to b. It is the only
// notion of distance in the simulation core.
func (s *Space) Displacement(a, b Vector) Vector {
	return s.topology.Displacement(a, b)
}

// Distance2 returns the squared topology-aware distance between a and b.
func (s *Space) Distance2(a, b Vector) float64 {
	d := s.topology.Displacement(a, b)
	return d.X*d.X + d.Y*d.Y + d.Z*d.Z
}

// Distance returns the topology-aware distance between a and b.
func (s *Space) Distance(a, b Vector) float64 {
	return math.Sqrt(s.Distance2(a, b))
}

// RandomPosition returns a uniformly distributed restricted position.
func (s *Space) RandomPosition(rng *rand.Rand) Vector {
	return s.Restrict(s.topology.RandomPosition(rng))
}

// CreateCircleNode creates a circle node at the lower corner of the space.
func (s *Space) CreateCircleNode(radius float64, agent any) *Node {
	return s.CreateNode(Circle, radius, s.topology.Min, agent)
}

// CreateSquareNode creates a legacy square node at the lower corner.
func (s *Space) CreateSquareNode(radius float64, agent any) *Node {
	return s.CreateNode(Square, radius, s.topology.Min, agent)
}

// CreateSquare2Node creates a box node at the lower corner.
func (s *Space) CreateSquare2Node(radius float64, agent any) *Node {
	return s.CreateNode(Square2, radius, s.topology.Min, agent)
}

// CreateNode creates a node at pos. It is committed immediately in Serial
// mode or during setup, otherwise at the next ProcessNodes.
func (s *Space) CreateNode(shape Shape, radius float64, pos Vector, agent any) *Node {
	n := newNode(s, shape, radius, s.Restrict(pos), agent)
	s.observeRadius(n.radius)
	s.submit(command{op: opCreate, node: n})
	return n
}

// RemoveNode requests removal of n. Removing a removed node is a no-op.
func (s *Space) RemoveNode(n *Node) {
	if n == nil || n.removed {
		return
	}
	s.own(n)
	s.submit(command{op: opRemove, node: n})
}

// ChangeNodePosition requests that n move to pos. Requests made in the same
// tick replace each other; the last one wins.
func (s *Space) ChangeNodePosition(n *Node, pos Vector) {
	if n == nil || n.removed {
		return
	}
	s.own(n)
	s.submit(command{op: opMove, node: n, target: s.Restrict(pos)})
}

// Jump moves n to an absolute position.
func (s *Space) Jump(n *Node, pos Vector) {
	s.ChangeNodePosition(n, pos)
}

// Move displaces n by delta from its committed position.
func (s *Space) Move(n *Node, delta Vector) {
	if n == nil {
		return
	}
	p := n.position
	s.ChangeNodePosition(n, Vector{X: p.X + delta.X, Y: p.Y + delta.Y, Z: p.Z + delta.Z})
}

// MoveToSpace removes n from its space and creates an equivalent node at pos
// in target, preserving shape, radius, agent and colour.
func MoveToSpace(n *Node, target *Space, pos Vector) *Node {
	n.space.RemoveNode(n)
	nn := target.CreateNode(n.shape, n.radius, pos, n.agent)
	nn.color = n.color
	return nn
}

func (s *Space) own(n *Node) {
	if n.space != s {
		panic(fmt.Errorf("%w: node %v belongs to space %q, not %q", ErrConfig, n, n.space.name, s.name))
	}
}

func (s *Space) submit(c command) {
	if s.immediate() {
		s.apply(c)
		return
	}
	if s.mode == Parallel {
		s.mu.Lock()
		s.queue = append(s.queue, c)
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, c)
}

// apply commits a single command right away.
func (s *Space) apply(c command) {
	n := c.node
	if n.removed {
		return
	}
	switch c.op {
	case opCreate:
		s.grid.insert(n, n.position)
	case opMove:
		if n.slot != noSlot {
			s.grid.move(n, c.target)
		}
		n.position = c.target
	case opRemove:
		s.grid.remove(n)
		n.removed = true
	}
}

// Pending returns the number of queued mutations.
func (s *Space) Pending() int {
	if s.mode == Parallel {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return len(s.queue)
}

// ProcessNodes commits every queued mutation. It must be called once per tick
// by a single goroutine after all agents have stepped.
//
// Commands are folded per node first, so a node that was created, moved and
// removed in one tick is simply dropped, and the last move request wins.
func (s *Space) ProcessNodes() CommitStats {
	var st CommitStats
	order := s.order[:0]
	for i := range s.queue {
		c := &s.queue[i]
		n := c.node
		if n.state == 0 {
			order = append(order, n)
		}
		switch c.op {
		case opCreate:
			n.state |= stateCreating
		case opMove:
			n.state |= stateMoving
			n.newPosition = c.target
		case opRemove:
			n.state |= stateRemoving
		}
	}

	for _, n := range order {
		s.commit(n, &st)
		n.state = 0
	}

	clear(s.queue)
	s.queue = s.queue[:0]
	clear(order)
	s.order = order[:0]

	if s.postProcess != nil {
		s.postProcess(s)
	}
	return st
}

func (s *Space) commit(n *Node, st *CommitStats) {
	switch {
	case n.state&stateRemoving != 0:
		if n.removed {
			return
		}
		if n.slot != noSlot {
			s.grid.remove(n)
			st.Removed++
		}
		n.removed = true
	case n.state&stateCreating != 0:
		if n.state&stateMoving != 0 {
			n.position = n.newPosition
		}
		s.grid.insert(n, n.position)
		st.Created++
	case n.state&stateMoving != 0:
		if n.removed {
			return
		}
		if n.slot != noSlot {
			s.grid.move(n, n.newPosition)
		}
		n.position = n.newPosition
		st.Moved++
	}
}

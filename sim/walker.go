package sim

import (
	"log/slog"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/spark/components"
	"github.com/pthm-cable/spark/space"
)

const (
	turnSigma = 0.4 // std of the random heading change per tick, radians
	climbGain = 1.0 // weight of the uphill direction against the heading
)

type depositLayer interface {
	AddValue(p space.Vector, v float64)
}

type gradientLayer interface {
	Gradient(p space.Vector) space.Vector
}

// forage takes food from the cells a node covers.
type forage interface {
	NodeValue(n *space.Node) float64
	AddNodeValue(n *space.Node, v float64)
}

type pointLayer interface {
	Value(p space.Vector) float64
	AddValue(p space.Vector, v float64)
}

// pointForage grazes a layer at the node's centre cell only.
type pointForage struct{ l pointLayer }

func (f pointForage) NodeValue(n *space.Node) float64 { return f.l.Value(n.Position()) }

func (f pointForage) AddNodeValue(n *space.Node, v float64) { f.l.AddValue(n.Position(), v) }

// concurrentLayer is implemented by layers that accept writes from several
// goroutines between BeginStep and EndStep.
type concurrentLayer interface {
	Snapshot() []float64
}

func (s *Simulation) resolveLayers() {
	a := &s.cfg.Agents

	if l := s.space.DataLayer(a.Layer); l != nil {
		if d, ok := l.(depositLayer); ok && a.Deposit > 0 {
			_, concurrent := l.(concurrentLayer)
			s.deposit = d
			s.depositLive = s.space.Mode() != space.Parallel || concurrent
		}
	} else if a.Layer != "" {
		slog.Warn("deposit layer not found", "layer", a.Layer)
	}

	if l := s.space.DataLayer(a.Food); l != nil {
		switch f := l.(type) {
		case forage:
			s.food = f
		case pointLayer:
			s.food = pointForage{f}
		}
		if g, ok := l.(gradientLayer); ok {
			s.climb = g
		}
	} else if a.Food != "" {
		slog.Warn("food layer not found", "layer", a.Food)
	}
}

// spawnWalker creates a walker entity and its node at pos.
func (s *Simulation) spawnWalker(pos space.Vector, heading float64, parent *components.Organism) ecs.Entity {
	s.nextID++
	org := components.Organism{ID: s.nextID, BirthTick: s.tick}
	if parent != nil {
		org.ParentID = parent.ID
		org.Generation = parent.Generation + 1
	}
	entity := s.newWalker(org, components.Rotation{Heading: heading}, components.Energy{Alive: true})
	s.bodyMap.Get(entity).Node = s.space.CreateNode(s.shape, s.cfg.Agents.Radius, pos, entity)
	return entity
}

// newWalker creates the entity without a node.
func (s *Simulation) newWalker(org components.Organism, rot components.Rotation, energy components.Energy) ecs.Entity {
	caps := s.caps
	body := components.Body{}
	entity := s.walkerMap.NewEntity(&org, &rot, &energy, &caps, &body)
	s.alive++
	return entity
}

// stepWalkers snapshots every walker and computes its intent.
func (s *Simulation) stepWalkers() {
	s.buf.reset()
	query := s.walkerFilter.Query()
	for query.Next() {
		entity := query.Entity()
		_, rot, energy, caps, body := query.Get()
		if !energy.Alive || body.Node == nil {
			continue
		}
		s.buf.snapshots = append(s.buf.snapshots, walkerSnapshot{
			Entity:    entity,
			Node:      body.Node,
			Heading:   rot.Heading,
			Speed:     caps.Speed,
			Sense:     caps.SenseRadius,
			Deposit:   caps.Deposit,
			Consume:   caps.Consume,
			Turn:      s.rng.NormFloat64() * turnSigma,
			BirthRoll: s.rng.Float64(),
			DeathRoll: s.rng.Float64(),
		})
	}

	n := s.buf.sizeIntents()
	if n == 0 {
		return
	}

	// Serial and Concurrent spaces take unlocked submissions, so only a
	// Parallel space may be driven from the worker pool.
	if s.space.Mode() == space.Parallel && n >= parallelThreshold {
		s.pool.run(n, s.computeChunk)
	} else {
		s.computeChunk(0, n, &s.pool.scratches[0])
	}
}

// computeChunk steers and moves a range of walkers. It only reads shared
// state, apart from node moves and live deposits, which the space and
// concurrent layers accept from any goroutine.
func (s *Simulation) computeChunk(i0, i1 int, scratch *workerScratch) {
	crowding := s.cfg.Agents.Crowding

	for i := i0; i < i1; i++ {
		snap := &s.buf.snapshots[i]
		in := &s.buf.intents[i]
		pos := snap.Node.Position()

		in.Neighbours = 0
		if crowding > 0 && snap.Sense > 0 {
			scratch.Neighbors = s.space.AgentsInto(scratch.Neighbors[:0], pos, snap.Sense)
			for _, a := range scratch.Neighbors {
				if e, ok := a.(ecs.Entity); ok && e != snap.Entity {
					in.Neighbours++
				}
			}
		}

		heading := snap.Heading + snap.Turn
		if s.climb != nil {
			if g := s.climb.Gradient(pos); g.X != 0 || g.Y != 0 {
				u := math.Hypot(g.X, g.Y)
				heading = math.Atan2(math.Sin(heading)+climbGain*g.Y/u, math.Cos(heading)+climbGain*g.X/u)
			}
		}
		in.Heading = normalizeAngle(heading)

		if s.deposit != nil && s.depositLive {
			s.deposit.AddValue(pos, snap.Deposit)
		}
		s.space.Move(snap.Node, space.Vec2(math.Cos(in.Heading)*snap.Speed, math.Sin(in.Heading)*snap.Speed))
	}
}

type birth struct {
	parent  components.Organism
	pos     space.Vector
	heading float64
}

// applyIntents writes intents back to the ECS world, grazes, and handles
// births and deaths. It runs single-threaded.
func (s *Simulation) applyIntents() {
	a := &s.cfg.Agents
	var (
		births []birth
		deaths []ecs.Entity
	)

	for i := range s.buf.snapshots {
		snap := &s.buf.snapshots[i]
		in := &s.buf.intents[i]

		rot := s.rotMap.Get(snap.Entity)
		energy := s.energyMap.Get(snap.Entity)
		rot.Heading = in.Heading

		pos := snap.Node.Position()
		if s.deposit != nil && !s.depositLive {
			s.deposit.AddValue(pos, snap.Deposit)
		}

		fed := 1.0
		if s.food != nil && snap.Consume > 0 {
			take := math.Min(snap.Consume, math.Max(s.food.NodeValue(snap.Node), 0))
			if take > 0 {
				s.food.AddNodeValue(snap.Node, -take)
				energy.Grazed += take
			}
			fed = take / snap.Consume
		}

		if snap.DeathRoll < a.DeathRate || (a.Crowding > 0 && in.Neighbours > a.Crowding) {
			energy.Alive = false
			deaths = append(deaths, snap.Entity)
			continue
		}
		if snap.BirthRoll < a.BirthRate*fed {
			births = append(births, birth{
				parent:  *s.orgMap.Get(snap.Entity),
				pos:     pos,
				heading: in.Heading + math.Pi,
			})
		}
	}

	// Structural changes wait until no component pointers are held.
	for _, e := range deaths {
		s.space.RemoveNode(s.bodyMap.Get(e).Node)
		s.world.RemoveEntity(e)
		s.alive--
		s.collector.RecordDeath()
	}
	for i := range births {
		if s.alive >= a.MaxCount {
			break
		}
		b := &births[i]
		s.spawnWalker(b.pos, normalizeAngle(b.heading), &b.parent)
		s.collector.RecordBirth()
	}
}

// normalizeAngle maps a to [-pi, pi].
func normalizeAngle(a float64) float64 {
	return math.Remainder(a, 2*math.Pi)
}

package sim

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/spark/components"
	"github.com/pthm-cable/spark/config"
	"github.com/pthm-cable/spark/space"
	"github.com/pthm-cable/spark/telemetry"
)

// countingWriter counts bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// nodesPayload writes the committed nodes of a space.
type nodesPayload struct{ s *space.Space }

func (p nodesPayload) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := space.WriteNodes(cw, p.s)
	return cw.n, err
}

// SaveSnapshot writes the current state under dir and returns the snapshot
// directory. It must be called between ticks.
func (s *Simulation) SaveSnapshot(dir string, bookmark *telemetry.Bookmark) (string, error) {
	d := s.cfg.Derived
	snap := &telemetry.Snapshot{
		RNGSeed: s.seed,
		Tick:    s.tick,
		NextID:  s.nextID,
		Space: telemetry.SpaceState{
			Name: s.space.Name(),
			Dims: d.Dims,
			Min:  d.Min,
			Max:  d.Max,
			Wrap: d.Wrap,
		},
		Bookmark: bookmark,
	}

	// Walkers follow the node order WriteNodes uses.
	for n := range s.space.All() {
		e, ok := n.Agent().(ecs.Entity)
		if !ok {
			return "", fmt.Errorf("node %v has no walker entity", n)
		}
		org := s.orgMap.Get(e)
		snap.Walkers = append(snap.Walkers, telemetry.WalkerState{
			ID:         org.ID,
			ParentID:   org.ParentID,
			Generation: org.Generation,
			BirthTick:  org.BirthTick,
			Heading:    s.rotMap.Get(e).Heading,
			Grazed:     s.energyMap.Get(e).Grazed,
		})
	}

	payloads := make(map[string]io.WriterTo)
	for _, lc := range s.cfg.Layers {
		w, ok := s.space.DataLayer(lc.Name).(io.WriterTo)
		if !ok {
			continue
		}
		snap.Layers = append(snap.Layers, telemetry.LayerState{Name: lc.Name, Kind: lc.Kind})
		payloads[lc.Name] = w
	}

	path, err := telemetry.SaveSnapshot(snap, dir, nodesPayload{s.space}, payloads)
	if err != nil {
		return "", err
	}
	slog.Info("snapshot saved", "path", path, "tick", s.tick, "walkers", len(snap.Walkers))
	return path, nil
}

// Restore rebuilds a simulation from a snapshot directory written by
// SaveSnapshot with the same configuration. The RNG is reseeded from the
// saved seed and tick, so a restored run does not replay the original.
func Restore(cfg *config.Config, opts Options, dir string) (*Simulation, error) {
	snap, err := telemetry.LoadSnapshot(dir)
	if err != nil {
		return nil, err
	}
	if opts.Seed == 0 {
		opts.Seed = snap.RNGSeed
	}
	s, err := newSimulation(cfg, opts)
	if err != nil {
		return nil, err
	}
	d := cfg.Derived
	if snap.Space.Dims != d.Dims || snap.Space.Max != d.Max || snap.Space.Min != d.Min || snap.Space.Wrap != d.Wrap {
		s.Close()
		return nil, fmt.Errorf("%w: snapshot space %+v does not match config", space.ErrConfig, snap.Space)
	}

	if err := s.restoreNodes(snap); err != nil {
		s.Close()
		return nil, err
	}
	for _, ls := range snap.Layers {
		if err := restoreLayer(s.space, snap, ls); err != nil {
			s.Close()
			return nil, err
		}
	}

	s.tick = snap.Tick
	s.nextID = max(s.nextID, snap.NextID)
	s.collector.StartAt(snap.Tick)
	s.rng = rand.New(rand.NewSource(s.seed ^ snap.Tick))
	slog.Info("snapshot restored", "path", dir, "tick", s.tick, "walkers", s.alive)
	return s, nil
}

func (s *Simulation) restoreNodes(snap *telemetry.Snapshot) error {
	f, err := snap.Open(snap.Nodes)
	if err != nil {
		return err
	}
	defer f.Close()
	recs, err := space.ReadNodes(f)
	if err != nil {
		return err
	}
	if len(recs) != len(snap.Walkers) {
		return fmt.Errorf("snapshot has %d nodes but %d walkers", len(recs), len(snap.Walkers))
	}

	entities := make([]ecs.Entity, len(recs))
	nodes := s.space.Restore(recs, func(i int) any {
		w := snap.Walkers[i]
		s.nextID = max(s.nextID, w.ID)
		entities[i] = s.newWalker(
			components.Organism{ID: w.ID, ParentID: w.ParentID, Generation: w.Generation, BirthTick: w.BirthTick},
			components.Rotation{Heading: w.Heading},
			components.Energy{Grazed: w.Grazed, Alive: true},
		)
		return entities[i]
	})
	for i, n := range nodes {
		s.bodyMap.Get(entities[i]).Node = n
	}
	return nil
}

func restoreLayer(sp *space.Space, snap *telemetry.Snapshot, ls telemetry.LayerState) error {
	rf, ok := sp.DataLayer(ls.Name).(io.ReaderFrom)
	if !ok {
		return fmt.Errorf("%w: snapshot layer %q is not configured", space.ErrConfig, ls.Name)
	}
	f, err := snap.Open(ls.File)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := rf.ReadFrom(f); err != nil {
		return fmt.Errorf("restore layer %q: %w", ls.Name, err)
	}
	return nil
}

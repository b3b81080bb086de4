package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/mlange-42/ark/ecs"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm-cable/spark/components"
	"github.com/pthm-cable/spark/config"
	"github.com/pthm-cable/spark/field"
	"github.com/pthm-cable/spark/metrics"
	"github.com/pthm-cable/spark/space"
	"github.com/pthm-cable/spark/telemetry"
)

// Options control a simulation run beyond the model configuration.
type Options struct {
	Seed        int64  // 0 uses run.seed from the config
	LogStats    bool   // log window and perf stats via slog
	OutputDir   string // CSV output directory (empty = disabled)
	SnapshotDir string // snapshot directory (empty = disabled)

	// Registerer receives the Prometheus collectors. Nil disables metrics.
	Registerer prometheus.Registerer
}

// Simulation owns the model, the walker ECS world and the telemetry sinks.
type Simulation struct {
	cfg  *config.Config
	opts Options
	seed int64
	rng  *rand.Rand

	model *Model
	space *space.Space

	// Walker model wiring, resolved from the agents config. Nil when the
	// named layer does not exist.
	shape       space.Shape
	caps        components.Capabilities
	deposit     depositLayer
	depositLive bool // deposit during the compute phase
	food        forage
	climb       gradientLayer

	world        *ecs.World
	walkerMap    *ecs.Map5[components.Organism, components.Rotation, components.Energy, components.Capabilities, components.Body]
	walkerFilter *ecs.Filter5[components.Organism, components.Rotation, components.Energy, components.Capabilities, components.Body]
	orgMap       *ecs.Map1[components.Organism]
	rotMap       *ecs.Map1[components.Rotation]
	energyMap    *ecs.Map1[components.Energy]
	bodyMap      *ecs.Map1[components.Body]

	pool    *workerPool
	buf     stepBuffers
	started bool
	tick    int64
	nextID  uint32
	alive   int

	collector *telemetry.Collector
	perf      *telemetry.PerfCollector
	bookmarks *telemetry.BookmarkDetector
	output    *telemetry.OutputManager
	metrics   *metrics.Metrics
}

// New builds the configured model and spawns the founder walkers.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	s, err := newSimulation(cfg, opts)
	if err != nil {
		return nil, err
	}
	for i := 0; i < cfg.Agents.Count; i++ {
		pos := s.space.RandomPosition(s.rng)
		s.spawnWalker(pos, s.rng.Float64()*2*math.Pi, nil)
	}
	slog.Info("simulation created",
		"space", s.space.Name(),
		"mode", s.space.Mode().String(),
		"dims", s.space.Topology().Dims,
		"cells", s.space.HashGrid().Cells(),
		"layers", len(s.space.DataLayers()),
		"walkers", s.alive,
		"seed", s.seed,
	)
	return s, nil
}

func newSimulation(cfg *config.Config, opts Options) (*Simulation, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = cfg.Run.Seed
	}

	model, sp, err := BuildModel(cfg)
	if err != nil {
		return nil, err
	}

	shape, err := space.ParseShape(cfg.Agents.Shape)
	if err != nil {
		return nil, err
	}

	world := ecs.NewWorld()
	s := &Simulation{
		cfg:   cfg,
		opts:  opts,
		seed:  seed,
		rng:   rand.New(rand.NewSource(seed)),
		model: model,
		space: sp,
		shape: shape,
		caps:  components.CapabilitiesFromConfig(&cfg.Agents),
		world: world,
		walkerMap: ecs.NewMap5[
			components.Organism,
			components.Rotation,
			components.Energy,
			components.Capabilities,
			components.Body,
		](world),
		walkerFilter: ecs.NewFilter5[
			components.Organism,
			components.Rotation,
			components.Energy,
			components.Capabilities,
			components.Body,
		](world),
		orgMap:    ecs.NewMap1[components.Organism](world),
		rotMap:    ecs.NewMap1[components.Rotation](world),
		energyMap: ecs.NewMap1[components.Energy](world),
		bodyMap:   ecs.NewMap1[components.Body](world),
		pool:      newWorkerPool(cfg.Run.Workers),
		collector: telemetry.NewCollector(cfg.Run.StatsWindow),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		bookmarks: telemetry.NewBookmarkDetector(10),
	}
	s.resolveLayers()

	if opts.Registerer != nil {
		s.metrics = metrics.New(opts.Registerer)
	}

	s.output, err = telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := s.output.WriteConfig(cfg); err != nil {
		s.output.Close()
		return nil, fmt.Errorf("writing config: %w", err)
	}
	return s, nil
}

// Step advances the simulation by one tick.
func (s *Simulation) Step() {
	start := time.Now()
	if !s.started {
		s.model.EndSetup()
		s.started = true
	}
	s.tick++

	s.perf.StartTick()

	s.perf.StartPhase(telemetry.PhaseBeginStep)
	s.model.BeginStep()

	s.perf.StartPhase(telemetry.PhaseAgents)
	s.stepWalkers()

	s.perf.StartPhase(telemetry.PhaseApply)
	s.applyIntents()

	s.perf.StartPhase(telemetry.PhaseEndStep)
	s.model.EndStep()

	s.perf.StartPhase(telemetry.PhaseCommit)
	st := s.model.ProcessNodes()
	s.collector.RecordCommit(st)
	s.metrics.RecordCommit(st)

	s.perf.StartPhase(telemetry.PhaseDataLayers)
	s.model.ProcessDataLayers(s.tick)

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.updateTelemetry()

	s.perf.EndTick()
	s.metrics.RecordTick(time.Since(start))
}

// Run steps until maxTicks is reached (0 = unlimited) or ctx is cancelled.
func (s *Simulation) Run(ctx context.Context, maxTicks int) error {
	for maxTicks <= 0 || s.tick < int64(maxTicks) {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Step()
	}
	slog.Info("max ticks reached", "tick", s.tick)
	return nil
}

// Close stops the worker pool and flushes output files.
func (s *Simulation) Close() error {
	s.pool.stop()
	return s.output.Close()
}

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() int64 { return s.tick }

// Seed returns the RNG seed in use.
func (s *Simulation) Seed() int64 { return s.seed }

// Model returns the space registry.
func (s *Simulation) Model() *Model { return s.model }

// Space returns the walkers' space.
func (s *Simulation) Space() *space.Space { return s.space }

// Alive returns the number of living walkers.
func (s *Simulation) Alive() int { return s.alive }

// Perf returns the performance collector.
func (s *Simulation) Perf() *telemetry.PerfCollector { return s.perf }

// updateTelemetry flushes window stats and takes periodic snapshots.
func (s *Simulation) updateTelemetry() {
	if s.collector.ShouldFlush(s.tick) {
		s.flushWindow()
	}

	interval := s.cfg.Telemetry.SnapshotInterval
	if s.opts.SnapshotDir != "" && interval > 0 && s.tick%int64(interval) == 0 {
		if _, err := s.SaveSnapshot(s.opts.SnapshotDir, nil); err != nil {
			slog.Error("failed to save snapshot", "tick", s.tick, "error", err)
		}
	}
}

func (s *Simulation) flushWindow() {
	pop := telemetry.Population{
		Walkers: s.alive,
		Grazed:  make([]float64, 0, s.alive),
		Grid:    s.space.HashGrid().Stats(),
	}
	query := s.walkerFilter.Query()
	for query.Next() {
		org, _, energy, _, _ := query.Get()
		pop.Grazed = append(pop.Grazed, energy.Grazed)
		pop.MaxGeneration = max(pop.MaxGeneration, org.Generation)
	}

	stats := s.collector.Flush(s.tick, pop)
	layers := s.layerStats()
	perf := s.perf.Stats()

	s.metrics.SetPopulation(s.space.NodeCount(), s.alive)
	for _, l := range layers {
		s.metrics.SetLayerTotal(l.Layer, l.Total)
	}

	if s.opts.LogStats {
		stats.LogStats()
		perf.LogStats()
		for _, l := range layers {
			slog.Info("layer", "stats", l)
		}
	}

	if err := s.output.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := s.output.WritePerf(perf, s.tick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
	if err := s.output.WriteLayers(layers); err != nil {
		slog.Error("failed to write layers", "error", err)
	}

	for _, b := range s.bookmarks.Check(stats) {
		b.LogBookmark()
		if err := s.output.WriteBookmark(b); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
		if s.opts.SnapshotDir != "" {
			if _, err := s.SaveSnapshot(s.opts.SnapshotDir, &b); err != nil {
				slog.Error("failed to save snapshot", "tick", s.tick, "error", err)
			}
		}
	}
}

type statLayer interface {
	Stats() field.Stats
}

func (s *Simulation) layerStats() []telemetry.LayerStats {
	var out []telemetry.LayerStats
	for _, l := range s.space.DataLayers() {
		sl, ok := l.(statLayer)
		if !ok {
			continue
		}
		st := sl.Stats()
		out = append(out, telemetry.LayerStats{
			WindowEndTick: s.tick,
			Layer:         l.Name(),
			Min:           st.Min,
			Max:           st.Max,
			Mean:          st.Mean,
			StdDev:        st.StdDev,
			Total:         st.Total,
		})
	}
	return out
}

package telemetry

import (
	"log/slog"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase is one timed section of a simulation tick.
type Phase int

// Phases of a tick, in the order the driver runs them.
const (
	PhaseBeginStep Phase = iota
	PhaseAgents
	PhaseApply
	PhaseEndStep
	PhaseCommit
	PhaseDataLayers
	PhaseTelemetry

	numPhases
)

var phaseNames = [numPhases]string{
	"begin_step", "agents", "apply", "end_step", "commit", "data_layers", "telemetry",
}

func (ph Phase) String() string {
	if ph < 0 || ph >= numPhases {
		return "unknown"
	}
	return phaseNames[ph]
}

type perfSample struct {
	tick   time.Duration
	phases [numPhases]time.Duration
}

// PerfCollector keeps per-phase tick timings for the last windowSize ticks.
type PerfCollector struct {
	samples []perfSample
	next    int
	count   int

	cur        perfSample
	tickStart  time.Time
	phaseStart time.Time
	phase      Phase // -1 between ticks
}

// NewPerfCollector creates a collector averaging over windowSize ticks.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		samples: make([]perfSample, windowSize),
		phase:   -1,
	}
}

// StartTick begins timing a new tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.cur = perfSample{}
	p.phase = -1
}

// StartPhase ends the running phase, if any, and starts ph.
func (p *PerfCollector) StartPhase(ph Phase) {
	now := time.Now()
	p.endPhase(now)
	p.phaseStart = now
	p.phase = ph
}

func (p *PerfCollector) endPhase(now time.Time) {
	if p.phase >= 0 && p.phase < numPhases {
		p.cur.phases[p.phase] += now.Sub(p.phaseStart)
	}
}

// EndTick ends the running phase and records the tick.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.endPhase(now)
	p.phase = -1
	p.cur.tick = now.Sub(p.tickStart)

	p.samples[p.next] = p.cur
	p.next = (p.next + 1) % len(p.samples)
	p.count = min(p.count+1, len(p.samples))
}

// PerfStats summarizes the window.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration
	P95TickDuration time.Duration

	PhaseAvg [numPhases]time.Duration
	PhasePct [numPhases]float64 // share of the average tick, in percent

	TicksPerSecond float64
}

// Stats computes statistics over the recorded ticks.
func (p *PerfCollector) Stats() PerfStats {
	var s PerfStats
	if p.count == 0 {
		return s
	}

	ticks := make([]float64, p.count)
	var sum perfSample
	for i, smp := range p.samples[:p.count] {
		ticks[i] = float64(smp.tick)
		sum.tick += smp.tick
		for ph, d := range smp.phases {
			sum.phases[ph] += d
		}
	}
	slices.Sort(ticks)

	n := time.Duration(p.count)
	s.AvgTickDuration = sum.tick / n
	s.MinTickDuration = time.Duration(ticks[0])
	s.MaxTickDuration = time.Duration(ticks[len(ticks)-1])
	s.P95TickDuration = time.Duration(stat.Quantile(0.95, stat.Empirical, ticks, nil))
	for ph := range sum.phases {
		s.PhaseAvg[ph] = sum.phases[ph] / n
		if s.AvgTickDuration > 0 {
			s.PhasePct[ph] = float64(s.PhaseAvg[ph]) / float64(s.AvgTickDuration) * 100
		}
	}
	if s.AvgTickDuration > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTickDuration)
	}
	return s
}

// LogStats logs the window summary, skipping phases under 0.1%.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"p95_tick_us", s.P95TickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}
	for ph := Phase(0); ph < numPhases; ph++ {
		if pct := s.PhasePct[ph]; pct > 0.1 {
			attrs = append(attrs, ph.String()+"_pct", float64(int(pct*10))/10)
		}
	}
	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Int64("p95_tick_us", s.P95TickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	for ph := Phase(0); ph < numPhases; ph++ {
		attrs = append(attrs, slog.Float64(ph.String()+"_pct", s.PhasePct[ph]))
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is the perf.csv row.
type PerfStatsCSV struct {
	WindowEnd     int64   `csv:"window_end"`
	AvgTickUS     int64   `csv:"avg_tick_us"`
	MinTickUS     int64   `csv:"min_tick_us"`
	MaxTickUS     int64   `csv:"max_tick_us"`
	P95TickUS     int64   `csv:"p95_tick_us"`
	TicksPerSec   float64 `csv:"ticks_per_sec"`
	BeginStepPct  float64 `csv:"begin_step_pct"`
	AgentsPct     float64 `csv:"agents_pct"`
	ApplyPct      float64 `csv:"apply_pct"`
	EndStepPct    float64 `csv:"end_step_pct"`
	CommitPct     float64 `csv:"commit_pct"`
	DataLayersPct float64 `csv:"data_layers_pct"`
	TelemetryPct  float64 `csv:"telemetry_pct"`
}

// ToCSV flattens the stats for the window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd int64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:     windowEnd,
		AvgTickUS:     s.AvgTickDuration.Microseconds(),
		MinTickUS:     s.MinTickDuration.Microseconds(),
		MaxTickUS:     s.MaxTickDuration.Microseconds(),
		P95TickUS:     s.P95TickDuration.Microseconds(),
		TicksPerSec:   s.TicksPerSecond,
		BeginStepPct:  s.PhasePct[PhaseBeginStep],
		AgentsPct:     s.PhasePct[PhaseAgents],
		ApplyPct:      s.PhasePct[PhaseApply],
		EndStepPct:    s.PhasePct[PhaseEndStep],
		CommitPct:     s.PhasePct[PhaseCommit],
		DataLayersPct: s.PhasePct[PhaseDataLayers],
		TelemetryPct:  s.PhasePct[PhaseTelemetry],
	}
}

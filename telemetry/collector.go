// Package telemetry provides window statistics, bookmarks, performance timing and snapshots.
package telemetry

import "github.com/pthm-cable/spark/space"

// Collector accumulates events within tick windows and produces WindowStats.
type Collector struct {
	windowTicks int64

	// Current window tracking
	windowStartTick int64

	// Event counters for current window
	births  int
	deaths  int
	commits space.CommitStats
}

// NewCollector creates a new stats collector flushing every windowTicks ticks.
func NewCollector(windowTicks int) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{windowTicks: int64(windowTicks)}
}

// RecordBirth records a birth event.
func (c *Collector) RecordBirth() {
	c.births++
}

// RecordDeath records a death event.
func (c *Collector) RecordDeath() {
	c.deaths++
}

// RecordCommit adds the result of one ProcessNodes call.
func (c *Collector) RecordCommit(st space.CommitStats) {
	c.commits.Created += st.Created
	c.commits.Moved += st.Moved
	c.commits.Removed += st.Removed
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowTicks
}

// Population is the state sampled at the end of a window.
type Population struct {
	Walkers       int
	Grazed        []float64 // per-walker grazing totals
	MaxGeneration uint32
	Grid          space.GridStats
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int64, pop Population) WindowStats {
	grazed := ComputeDistribution(pop.Grazed)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,

		Walkers: pop.Walkers,
		Nodes:   pop.Grid.TotalNodes,

		Births: c.births,
		Deaths: c.deaths,

		Created: c.commits.Created,
		Moved:   c.commits.Moved,
		Removed: c.commits.Removed,

		GrazedMean: grazed.Mean,
		GrazedStd:  grazed.Std,
		GrazedP10:  grazed.P10,
		GrazedP50:  grazed.P50,
		GrazedP90:  grazed.P90,

		OccupiedCells: pop.Grid.NonEmptyCells,
		MaxInCell:     pop.Grid.MaxInCell,
		MeanInCell:    pop.Grid.AvgPerNonEmpty,

		MaxGeneration: pop.MaxGeneration,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.births = 0
	c.deaths = 0
	c.commits = space.CommitStats{}

	return stats
}

// WindowTicks returns the number of ticks per window.
func (c *Collector) WindowTicks() int64 {
	return c.windowTicks
}

// StartAt begins the current window at tick, as when resuming a run.
func (c *Collector) StartAt(tick int64) {
	c.windowStartTick = tick
}

package telemetry

import (
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a window of ticks.
type WindowStats struct {
	WindowStartTick int64 `csv:"-"`
	WindowEndTick   int64 `csv:"window_end"`

	// Population at window end
	Walkers int `csv:"walkers"`
	Nodes   int `csv:"nodes"`

	// Events during window
	Births int `csv:"births"`
	Deaths int `csv:"deaths"`

	// Node commits during window
	Created int `csv:"created"`
	Moved   int `csv:"moved"`
	Removed int `csv:"removed"`

	// Grazing distribution (sampled at window end)
	GrazedMean float64 `csv:"grazed_mean"`
	GrazedStd  float64 `csv:"grazed_std"`
	GrazedP10  float64 `csv:"grazed_p10"`
	GrazedP50  float64 `csv:"grazed_p50"`
	GrazedP90  float64 `csv:"grazed_p90"`

	// Hash grid occupancy
	OccupiedCells int     `csv:"occupied_cells"`
	MaxInCell     int     `csv:"max_in_cell"`
	MeanInCell    float64 `csv:"mean_in_cell"`

	MaxGeneration uint32 `csv:"max_generation"`
}

// LayerStats is one data layer's summary at the end of a window.
type LayerStats struct {
	WindowEndTick int64   `csv:"window_end"`
	Layer         string  `csv:"layer"`
	Min           float64 `csv:"min"`
	Max           float64 `csv:"max"`
	Mean          float64 `csv:"mean"`
	StdDev        float64 `csv:"std_dev"`
	Total         float64 `csv:"total"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Distribution summarizes a sample.
type Distribution struct {
	Mean, Std     float64
	P10, P50, P90 float64
}

// ComputeDistribution calculates mean, population std and percentiles.
func ComputeDistribution(values []float64) Distribution {
	n := len(values)
	if n == 0 {
		return Distribution{}
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return Distribution{
		Mean: mean,
		Std:  math.Sqrt(variance),
		P10:  Percentile(sorted, 0.10),
		P50:  Percentile(sorted, 0.50),
		P90:  Percentile(sorted, 0.90),
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Int("walkers", s.Walkers),
		slog.Int("nodes", s.Nodes),
		slog.Int("births", s.Births),
		slog.Int("deaths", s.Deaths),
		slog.Int("created", s.Created),
		slog.Int("moved", s.Moved),
		slog.Int("removed", s.Removed),
		slog.Float64("grazed_mean", s.GrazedMean),
		slog.Float64("grazed_p50", s.GrazedP50),
		slog.Int("occupied_cells", s.OccupiedCells),
		slog.Int("max_in_cell", s.MaxInCell),
		slog.Any("max_generation", s.MaxGeneration),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}

// LogValue implements slog.LogValuer for structured logging.
func (s LayerStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("layer", s.Layer),
		slog.Float64("min", s.Min),
		slog.Float64("max", s.Max),
		slog.Float64("mean", s.Mean),
		slog.Float64("total", s.Total),
	)
}

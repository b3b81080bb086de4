// Package metrics exposes simulation counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pthm-cable/spark/space"
)

// Metrics holds the simulation collectors. Label values are bounded: op is
// one of created, moved, removed and layer is a configured layer name.
// A nil *Metrics ignores every call.
type Metrics struct {
	tickDuration prometheus.Histogram
	tickCount    prometheus.Counter
	nodes        prometheus.Gauge
	walkers      prometheus.Gauge
	commits      *prometheus.CounterVec
	layerTotal   *prometheus.GaugeVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "spark_tick_duration_seconds",
			Help:    "Time spent in one simulation tick",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		tickCount: f.NewCounter(prometheus.CounterOpts{
			Name: "spark_ticks_total",
			Help: "Simulation ticks completed",
		}),
		nodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "spark_nodes",
			Help: "Committed nodes in the space",
		}),
		walkers: f.NewGauge(prometheus.GaugeOpts{
			Name: "spark_walkers",
			Help: "Living walker entities",
		}),
		commits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spark_node_commits_total",
			Help: "Node mutations applied by ProcessNodes",
		}, []string{"op"}),
		layerTotal: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spark_layer_total",
			Help: "Sum of all cells of a data layer",
		}, []string{"layer"}),
	}
}

// RecordTick records tick timing.
func (m *Metrics) RecordTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
	m.tickCount.Inc()
}

// RecordCommit adds the result of one ProcessNodes call.
func (m *Metrics) RecordCommit(st space.CommitStats) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues("created").Add(float64(st.Created))
	m.commits.WithLabelValues("moved").Add(float64(st.Moved))
	m.commits.WithLabelValues("removed").Add(float64(st.Removed))
}

// SetPopulation updates the node and walker gauges.
func (m *Metrics) SetPopulation(nodes, walkers int) {
	if m == nil {
		return
	}
	m.nodes.Set(float64(nodes))
	m.walkers.Set(float64(walkers))
}

// SetLayerTotal updates the total of one data layer.
func (m *Metrics) SetLayerTotal(layer string, total float64) {
	if m == nil {
		return
	}
	m.layerTotal.WithLabelValues(layer).Set(total)
}

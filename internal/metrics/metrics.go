// Package metrics exposes clustering progress as Prometheus collectors on a
// private registry, so a batch run can dump them to a textfile when it ends.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/danielpatrickdp/benchcluster/internal/cluster"
)

const namespace = "benchcluster"

// #region metrics
// Metrics implements cluster.Observer.
type Metrics struct {
	registry *prometheus.Registry

	rounds        prometheus.Counter
	stalledRounds prometheus.Counter
	groups        *prometheus.CounterVec
	clusterSize   prometheus.Histogram
	remaining     prometheus.Gauge
	watchdogTrips prometheus.Counter
	assigned      prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		rounds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Engine rounds executed.",
		}),
		stalledRounds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stalled_rounds_total",
			Help:      "Rounds started without progress since the previous round.",
		}),
		groups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_total",
			Help:      "Closed groups by gate action.",
		}, []string{"action"}),
		clusterSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_size",
			Help:      "Members per accepted cluster.",
			Buckets:   []float64{2, 3, 4, 6, 8, 12, 16, 32},
		}),
		remaining: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remaining_candidates",
			Help:      "Candidates not yet assigned to any cluster.",
		}),
		watchdogTrips: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watchdog_trips_total",
			Help:      "Runs stopped by the stalled-round watchdog.",
		}),
		assigned: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assigned_candidates",
			Help:      "Candidates placed into a cluster by the last run.",
		}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

// #endregion metrics

// #region observer
func (m *Metrics) RoundStarted(_, remaining, stalled int) {
	m.rounds.Inc()
	if stalled > 0 {
		m.stalledRounds.Inc()
	}
	m.remaining.Set(float64(remaining))
}

func (m *Metrics) GroupDecided(d cluster.Decision) {
	m.groups.WithLabelValues(d.Gate.Action).Inc()
	if d.Gate.Accepted() {
		m.clusterSize.Observe(float64(len(d.Group)))
	}
}

func (m *Metrics) Finished(res cluster.Result) {
	m.remaining.Set(float64(len(res.Remaining)))
	m.assigned.Set(float64(len(res.Assigned)))
	if res.StopReason == cluster.StopWatchdog {
		m.watchdogTrips.Inc()
	}
}

// #endregion observer

// Package metrics exposes retention run outcomes to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backupprune"

// Collector owns its registry so tests and embedders do not share global
// state. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	candidates  prometheus.Gauge
	kept        prometheus.Gauge
	deleted     prometheus.Counter
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Retention runs by final status.",
		}, []string{"mode", "status"}),
		candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidates",
			Help:      "Backup artifacts considered by the last run.",
		}),
		kept: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kept",
			Help:      "Backup artifacts kept by the last run.",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deleted_total",
			Help:      "Backup artifacts sent for deletion.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of retention runs.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}

	c.registry.MustRegister(c.runs, c.candidates, c.kept, c.deleted, c.duration, c.lastSuccess)
	return c
}

// Observation is what one run reports.
type Observation struct {
	Mode       string
	Success    bool
	Candidates int
	Kept       int
	Deleted    int
	Duration   time.Duration
	Finished   time.Time
}

func (c *Collector) Observe(o Observation) {
	if c == nil {
		return
	}
	status := "failure"
	if o.Success {
		status = "success"
	}
	c.runs.WithLabelValues(o.Mode, status).Inc()
	c.duration.Observe(o.Duration.Seconds())
	if !o.Success {
		return
	}
	c.candidates.Set(float64(o.Candidates))
	c.kept.Set(float64(o.Kept))
	c.deleted.Add(float64(o.Deleted))
	c.lastSuccess.Set(float64(o.Finished.Unix()))
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Package metrics provides Prometheus instrumentation for spawnpool.
//
// # Overview
//
// A Collector owns one set of pool metrics registered on a caller-supplied
// prometheus.Registerer, so several managers (or several tests) can coexist
// without colliding on the default registry:
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewCollector("spawnpool", reg)
//	mgr := pool.NewManager(pool.WithMetrics(collector))
//
// # Metric Types
//
// Counter: spawns by outcome, instances created/destroyed/expired
// Gauge: queue length and tracked lifetime records per template
// Histogram: duration of each Tick scan
//
// All methods are safe on a nil *Collector, which lets the pool call them
// unconditionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Spawn outcomes used as the "outcome" label.
const (
	OutcomeReuse = "reuse"
	OutcomeGrow  = "grow"
)

// Collector wraps the Prometheus vectors used by a pool manager.
type Collector struct {
	spawns    *prometheus.CounterVec   // Spawns by template and outcome
	created   *prometheus.CounterVec   // Instances built by the factory
	destroyed *prometheus.CounterVec   // Instances destroyed
	expired   *prometheus.CounterVec   // Instances deactivated by the tracker
	queueLen  *prometheus.GaugeVec     // Current queue length
	tracked   *prometheus.GaugeVec     // Current lifetime records
	tickScan  prometheus.Histogram     // Tick scan duration
	startTime time.Time                // Collector creation time
}

// NewCollector creates and registers the pool metrics under namespace.
// A nil reg registers on prometheus.DefaultRegisterer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		spawns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "spawns_total",
				Help:      "Total number of spawn calls served, by outcome",
			},
			[]string{"template", "outcome"},
		),
		created: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instances_created_total",
				Help:      "Total number of instances built by the factory",
			},
			[]string{"template"},
		),
		destroyed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instances_destroyed_total",
				Help:      "Total number of instances destroyed",
			},
			[]string{"template"},
		),
		expired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instances_expired_total",
				Help:      "Total number of instances deactivated after their lifetime elapsed",
			},
			[]string{"template"},
		),
		queueLen: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_length",
				Help:      "Number of instances owned by the template queue",
			},
			[]string{"template"},
		),
		tracked: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "lifetime_records",
				Help:      "Number of lifetime records held for the template",
			},
			[]string{"template"},
		),
		tickScan: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_scan_seconds",
				Help:      "Duration of lifetime scans",
				Buckets: []float64{
					1e-6, // 1μs - empty tracker
					1e-5, // 10μs
					1e-4, // 100μs - a few thousand records
					1e-3, // 1ms
					1e-2, // 10ms - very large trackers
				},
			},
		),
		startTime: time.Now(),
	}
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.startTime
}

// ObserveSpawn counts one spawn for template with the given outcome.
func (c *Collector) ObserveSpawn(template, outcome string) {
	if c == nil {
		return
	}
	c.spawns.WithLabelValues(template, outcome).Inc()
}

// AddCreated counts n factory builds.
func (c *Collector) AddCreated(template string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.created.WithLabelValues(template).Add(float64(n))
}

// AddDestroyed counts n destroyed instances.
func (c *Collector) AddDestroyed(template string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.destroyed.WithLabelValues(template).Add(float64(n))
}

// AddExpired counts n lifetime expirations.
func (c *Collector) AddExpired(template string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.expired.WithLabelValues(template).Add(float64(n))
}

// SetQueueLength records the current queue length.
func (c *Collector) SetQueueLength(template string, n int) {
	if c == nil {
		return
	}
	c.queueLen.WithLabelValues(template).Set(float64(n))
}

// SetTracked records the current number of lifetime records.
func (c *Collector) SetTracked(template string, n int) {
	if c == nil {
		return
	}
	c.tracked.WithLabelValues(template).Set(float64(n))
}

// ObserveTick records how long a lifetime scan took.
func (c *Collector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	c.tickScan.Observe(d.Seconds())
}

// Forget drops the gauges of a template that no longer exists. Counters are
// kept so totals survive a clear/register round-trip.
func (c *Collector) Forget(template string) {
	if c == nil {
		return
	}
	c.queueLen.DeleteLabelValues(template)
	c.tracked.DeleteLabelValues(template)
}

package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// ResourceGauges publishes ResourceUsage samples as Prometheus gauges.
type ResourceGauges struct {
	rss        prometheus.Gauge
	heap       prometheus.Gauge
	cpu        prometheus.Gauge
	goroutines prometheus.Gauge
	threads    prometheus.Gauge
}

// NewResourceGauges registers the gauges under namespace on reg. A nil reg
// registers on prometheus.DefaultRegisterer.
func NewResourceGauges(namespace string, reg prometheus.Registerer) *ResourceGauges {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      name,
			Help:      help,
		})
	}

	return &ResourceGauges{
		rss:        gauge("resident_memory_bytes", "Resident set size of the host process"),
		heap:       gauge("heap_alloc_bytes", "Bytes of allocated heap objects"),
		cpu:        gauge("cpu_percent", "CPU usage since start, in percent of one core"),
		goroutines: gauge("goroutines", "Number of goroutines"),
		threads:    gauge("threads", "Number of OS threads"),
	}
}

// Observe records u.
func (g *ResourceGauges) Observe(u ResourceUsage) {
	g.rss.Set(float64(u.MemoryRSS))
	g.heap.Set(float64(u.HeapAlloc))
	g.cpu.Set(u.CPUPercent)
	g.goroutines.Set(float64(u.GoroutineCount))
	g.threads.Set(float64(u.ThreadCount))
}

// Watch samples rm every interval and publishes the result until ctx is
// done. Sampling errors are logged and skipped.
func (g *ResourceGauges) Watch(ctx context.Context, rm *ResourceMonitor, interval time.Duration, log *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			u, err := rm.Sample(ctx)
			if err != nil {
				log.Warn("resource sample failed", zap.Error(err))
				continue
			}
			g.Observe(u)
		}
	}
}

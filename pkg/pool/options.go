package pool

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/spawnpool/pkg/clock"
	"github.com/ajitpratap0/spawnpool/pkg/metrics"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l == nil {
			l = zap.NewNop()
		}
		m.logger = l
	}
}

// WithClock sets the time source used to stamp lifetime records.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithMetrics publishes pool metrics through c.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) {
		m.metrics = c
	}
}

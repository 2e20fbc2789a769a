package testutil

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/spawnpool/pkg/clock"
	"github.com/ajitpratap0/spawnpool/pkg/metrics"
	"github.com/ajitpratap0/spawnpool/pkg/pool"
)

// PoolSuite provides a fresh manager, manual clock and metrics registry for
// every test in a suite.
type PoolSuite struct {
	suite.Suite

	Clock    *clock.Manual
	Registry *prometheus.Registry
	Metrics  *metrics.Collector
	Manager  *pool.Manager

	startTime time.Time
}

// SetupTest runs before each test in the suite
func (s *PoolSuite) SetupTest() {
	s.startTime = time.Now()
	s.Clock = clock.NewManual(Epoch)
	s.Registry = prometheus.NewRegistry()
	s.Metrics = metrics.NewCollector("spawnpool_test", s.Registry)
	s.Manager = pool.NewManager(
		pool.WithLogger(TestLogger(s.T())),
		pool.WithClock(s.Clock),
		pool.WithMetrics(s.Metrics),
	)
}

// TearDownTest runs after each test in the suite
func (s *PoolSuite) TearDownTest() {
	s.Require().NoError(s.Manager.Shutdown())
	s.T().Logf("test completed in %v", time.Since(s.startTime))
}

// Template returns a template wired to factory.
func (s *PoolSuite) Template(id string, size int, lifetime time.Duration, recycle bool, factory pool.Factory) pool.Template {
	return pool.Template{
		ID:                     id,
		Size:                   size,
		Lifetime:               lifetime,
		RecycleWithoutLifetime: recycle,
		Factory:                factory,
	}
}

// Advance moves the manual clock by d and runs a Tick at the new time.
func (s *PoolSuite) Advance(d time.Duration) int {
	return s.Manager.Tick(s.Clock.Advance(d))
}

// RequireLen asserts the queue length of id.
func (s *PoolSuite) RequireLen(id string, want int) {
	s.T().Helper()
	n, ok := s.Manager.Len(id)
	s.Require().True(ok, "template %q not registered", id)
	s.Require().Equal(want, n, "queue length of %q", id)
}

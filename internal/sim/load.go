package sim

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/spawnpool/pkg/errors"
	"github.com/ajitpratap0/spawnpool/pkg/pool"
)

// Spawner is the part of a pool the load generator needs. Both
// observability.PoolTracer and Direct satisfy it.
type Spawner interface {
	Spawn(ctx context.Context, id string, p pool.Placement) (*pool.Instance, error)
}

type direct struct{ m *pool.Manager }

func (d direct) Spawn(_ context.Context, id string, p pool.Placement) (*pool.Instance, error) {
	return d.m.Spawn(id, p)
}

// Direct adapts a Manager to Spawner without tracing.
func Direct(m *pool.Manager) Spawner {
	return direct{m: m}
}

// Bounds is the half extent of the cube placements are drawn from.
const Bounds = 100.0

// Load spawns templates round-robin at a fixed rate with random placements.
type Load struct {
	spawner   Spawner
	templates []string
	interval  time.Duration
	log       *zap.Logger

	mu   sync.Mutex
	rng  *rand.Rand
	next int

	spawned atomic.Int64
	failed  atomic.Int64
}

// NewLoad creates a load generator issuing rate spawns per second across
// templates. seed makes the placement sequence reproducible; 0 picks a
// time-based seed.
func NewLoad(s Spawner, templates []string, rate float64, seed int64, log *zap.Logger) (*Load, error) {
	if len(templates) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "load needs at least one template")
	}
	if rate <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "spawn rate must be positive").WithDetail("rate", rate)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if log == nil {
		log = zap.NewNop()
	}

	interval := time.Duration(float64(time.Second) / rate)
	if interval <= 0 {
		interval = time.Nanosecond
	}

	return &Load{
		spawner:   s,
		templates: append([]string(nil), templates...),
		interval:  interval,
		log:       log,
		rng:       rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1)), //nolint:gosec // simulation placements
	}, nil
}

// Interval returns the time between spawns.
func (l *Load) Interval() time.Duration { return l.interval }

// Run spawns until ctx is done and returns ctx.Err().
func (l *Load) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, _ = l.Step(ctx)
		}
	}
}

// Step issues one spawn for the next template. Failures are counted and
// logged, then returned.
func (l *Load) Step(ctx context.Context) (*pool.Instance, error) {
	id, p := l.nextSpawn()

	inst, err := l.spawner.Spawn(ctx, id, p)
	if err != nil {
		l.failed.Add(1)
		l.log.Warn("spawn failed", zap.String("template", id), zap.Error(err))
		return nil, err
	}
	l.spawned.Add(1)
	return inst, nil
}

func (l *Load) nextSpawn() (string, Placement) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.templates[l.next]
	l.next = (l.next + 1) % len(l.templates)
	return id, Placement{
		Position: l.randomVec(Bounds),
		Rotation: l.randomVec(180),
	}
}

func (l *Load) randomVec(extent float64) Vec3 {
	return Vec3{
		X: (l.rng.Float64()*2 - 1) * extent,
		Y: (l.rng.Float64()*2 - 1) * extent,
		Z: (l.rng.Float64()*2 - 1) * extent,
	}
}

// LoadStats counts spawns issued by a Load.
type LoadStats struct {
	Spawned int64 `json:"spawned"`
	Failed  int64 `json:"failed"`
}

// Stats returns the spawn counters.
func (l *Load) Stats() LoadStats {
	return LoadStats{
		Spawned: l.spawned.Load(),
		Failed:  l.failed.Load(),
	}
}

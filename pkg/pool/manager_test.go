package pool_test

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/spawnpool/pkg/errors"
	"github.com/ajitpratap0/spawnpool/pkg/pool"
	poolutil "github.com/ajitpratap0/spawnpool/pkg/testutil"
)

type ManagerSuite struct {
	poolutil.PoolSuite
	factory *poolutil.Factory
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.PoolSuite.SetupTest()
	s.factory = poolutil.NewFactory()
}

func (s *ManagerSuite) register(id string, size int, lifetime time.Duration, recycle bool) pool.Template {
	t := s.Template(id, size, lifetime, recycle, s.factory)
	s.Require().NoError(s.Manager.Register(t))
	return t
}

func (s *ManagerSuite) TestRegisterPrepopulatesInactiveInstances() {
	s.register("bullet", 3, 0, false)

	s.RequireLen("bullet", 3)
	s.Equal(3, s.factory.Count())
	for _, inst := range s.Manager.Instances("bullet") {
		s.False(inst.Active())
		s.Equal("bullet", inst.Template())
		s.Equal("[bullet]", inst.Group().Name())
		s.Equal("[bullet]", poolutil.EntityOf(inst).GroupName())
	}

	g, ok := s.Manager.Group("bullet")
	s.Require().True(ok)
	s.Equal(3, g.Len())
	s.Equal(poolutil.Epoch, g.CreatedAt())
	s.Equal([]string{"bullet"}, s.Manager.Templates())
}

func (s *ManagerSuite) TestRegisterIsIdempotent() {
	s.register("bullet", 2, 0, false)
	s.register("bullet", 5, 0, false)

	s.RequireLen("bullet", 2)
	s.Equal(2, s.factory.Count())
	s.Len(s.Manager.Templates(), 1)
}

func (s *ManagerSuite) TestRegisterRejectsInvalidTemplates() {
	cases := map[string]pool.Template{
		"empty id":          {Factory: s.factory},
		"nil factory":       {ID: "a"},
		"negative size":     {ID: "a", Size: -1, Factory: s.factory},
		"negative lifetime": {ID: "a", Lifetime: -time.Second, Factory: s.factory},
	}
	for name, tmpl := range cases {
		s.Run(name, func() {
			err := s.Manager.Register(tmpl)
			s.Require().Error(err)
			s.ErrorIs(err, pool.ErrInvalidTemplate)
			s.True(errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
	s.Empty(s.Manager.Templates())
}

func (s *ManagerSuite) TestRegisterFactoryFailureLeavesNoTrace() {
	s.factory.FailAfter(2)

	err := s.Manager.Register(s.Template("bullet", 4, 0, false, s.factory))
	s.Require().Error(err)
	s.ErrorIs(err, poolutil.ErrFactory)
	s.True(errors.IsType(err, errors.ErrorTypeFactory))

	_, ok := s.Manager.Len("bullet")
	s.False(ok)
	s.Equal(2, s.factory.Count())
	s.Equal(2, s.factory.Destroyed())
}

func (s *ManagerSuite) TestSpawnUnknownTemplate() {
	inst, err := s.Manager.Spawn("missing", nil)
	s.Nil(inst)
	s.ErrorIs(err, pool.ErrUnknownTemplate)
	s.True(errors.IsType(err, errors.ErrorTypeNotFound))
}

func (s *ManagerSuite) TestSpawnReusesInactiveFrontAndKeepsSize() {
	s.register("spark", 2, 0, false)
	first := s.Manager.Instances("spark")[0]

	inst, err := s.Manager.Spawn("spark", "here")
	s.Require().NoError(err)

	s.Same(first, inst)
	s.True(inst.Active())
	s.RequireLen("spark", 2)
	s.Equal("here", poolutil.EntityOf(inst).LastPlacement())
	s.True(poolutil.EntityOf(inst).Live())

	// Reused instance moved to the back of the queue.
	s.Same(inst, s.Manager.Instances("spark")[1])
}

func (s *ManagerSuite) TestSpawnWithoutLifetimeNeverTracks() {
	s.register("decal", 2, 0, false)

	for range 5 {
		_, err := s.Manager.Spawn("decal", nil)
		s.Require().NoError(err)
	}
	s.Zero(s.Manager.Tracked("decal"))

	s.Zero(s.Advance(24 * time.Hour))
	for _, inst := range s.Manager.Instances("decal") {
		s.True(inst.Active(), "untracked instances are never auto-deactivated")
	}
}

func (s *ManagerSuite) TestSpawnGrowsBehindLiveFront() {
	s.register("t", 2, 5*time.Second, false)

	a, err := s.Manager.Spawn("t", nil)
	s.Require().NoError(err)
	b, err := s.Manager.Spawn("t", nil)
	s.Require().NoError(err)

	s.NotSame(a, b)
	s.True(a.Active())
	s.True(b.Active())
	s.RequireLen("t", 2)
	s.Equal(2, s.Manager.Tracked("t"))
	at, ok := s.Manager.ActivatedAt(a)
	s.Require().True(ok)
	s.Equal(poolutil.Epoch, at)

	s.Clock.Advance(2 * time.Second)
	c, err := s.Manager.Spawn("t", "third")
	s.Require().NoError(err)

	s.NotSame(a, c)
	s.NotSame(b, c)
	s.True(c.Active())
	s.RequireLen("t", 3)
	s.Equal(3, s.factory.Count())
	s.Equal(3, s.Manager.Tracked("t"))

	// The live front instance went back ahead of the new one.
	s.Equal([]*pool.Instance{b, a, c}, s.Manager.Instances("t"))

	stats := s.Manager.Stats()
	s.Require().Len(stats, 1)
	s.Equal(uint64(1), stats[0].Grown)
	s.Equal(uint64(3), stats[0].Spawned)
	s.Equal(3, stats[0].Active)
}

func (s *ManagerSuite) TestTickExpiresOverdueInstances() {
	s.register("t", 2, 5*time.Second, false)

	inst, err := s.Manager.Spawn("t", nil)
	s.Require().NoError(err)

	s.Zero(s.Advance(5 * time.Second), "expiry requires now to be strictly after the deadline")
	s.True(inst.Active())

	s.Equal(1, s.Advance(time.Second))
	s.False(inst.Active())
	s.False(poolutil.EntityOf(inst).Live())
	s.Equal(1, s.Manager.Tracked("t"), "record stays until overwritten")

	// A later tick does not count it again.
	s.Zero(s.Advance(time.Minute))
}

func (s *ManagerSuite) TestRespawnReplacesLifetimeRecord() {
	s.register("t", 1, 5*time.Second, false)

	inst, err := s.Manager.Spawn("t", nil)
	s.Require().NoError(err)
	s.Equal(1, s.Advance(6*time.Second))

	again, err := s.Manager.Spawn("t", nil)
	s.Require().NoError(err)
	s.Same(inst, again)
	s.Equal(1, s.Manager.Tracked("t"))

	at, ok := s.Manager.ActivatedAt(again)
	s.Require().True(ok)
	s.Equal(poolutil.Epoch.Add(6*time.Second), at)

	s.Zero(s.Advance(4 * time.Second))
	s.True(again.Active())
}

func (s *ManagerSuite) TestRecycleWithoutLifetimeStealsLiveInstance() {
	s.register("hit", 1, 5*time.Second, true)

	a, err := s.Manager.Spawn("hit", "p1")
	s.Require().NoError(err)
	b, err := s.Manager.Spawn("hit", "p2")
	s.Require().NoError(err)

	s.Same(a, b)
	s.RequireLen("hit", 1)
	s.Equal(1, s.factory.Count())
	s.Equal("p2", poolutil.EntityOf(b).LastPlacement())
	s.Equal(2, poolutil.EntityOf(b).Activations())
}

func (s *ManagerSuite) TestSpawnOnEmptyQueueGrows() {
	s.register("rare", 0, 0, false)

	inst, err := s.Manager.Spawn("rare", nil)
	s.Require().NoError(err)
	s.True(inst.Active())
	s.RequireLen("rare", 1)
}

func (s *ManagerSuite) TestGrowFactoryFailureRestoresQueue() {
	s.register("t", 1, 5*time.Second, false)
	front, err := s.Manager.Spawn("t", nil)
	s.Require().NoError(err)

	s.factory.FailAfter(0)
	inst, err := s.Manager.Spawn("t", nil)
	s.Nil(inst)
	s.ErrorIs(err, poolutil.ErrFactory)

	s.RequireLen("t", 1)
	s.Equal([]*pool.Instance{front}, s.Manager.Instances("t"))
	s.True(front.Active())

	// With a longer queue the live front keeps its place.
	s.factory.FailAfter(-1)
	s.register("u", 3, 5*time.Second, false)
	for range 3 {
		_, err := s.Manager.Spawn("u", nil)
		s.Require().NoError(err)
	}
	before := s.Manager.Instances("u")

	s.factory.FailAfter(0)
	_, err = s.Manager.Spawn("u", nil)
	s.ErrorIs(err, poolutil.ErrFactory)
	s.Equal(before, s.Manager.Instances("u"))
}

func (s *ManagerSuite) TestResizeGrowAndShrink() {
	s.register("t", 2, 5*time.Second, false)

	s.Require().NoError(s.Manager.Resize("t", 5))
	s.RequireLen("t", 5)
	for _, inst := range s.Manager.Instances("t") {
		s.False(inst.Active())
	}

	// Spawn the two front instances so they get lifetime records.
	a, err := s.Manager.Spawn("t", nil)
	s.Require().NoError(err)
	b, err := s.Manager.Spawn("t", nil)
	s.Require().NoError(err)
	s.Equal(2, s.Manager.Tracked("t"))

	// Queue is now [3 4 5 a b]; shrinking to 1 destroys the three inactive
	// front instances and a.
	s.Require().NoError(s.Manager.Resize("t", 1))
	s.RequireLen("t", 1)
	s.True(a.Destroyed())
	s.False(b.Destroyed())
	s.Equal(1, s.Manager.Tracked("t"))
	_, ok := s.Manager.ActivatedAt(a)
	s.False(ok)
	s.Equal(4, s.factory.Destroyed())

	g, _ := s.Manager.Group("t")
	s.Equal(1, g.Len())
}

func (s *ManagerSuite) TestResizeEdgeCases() {
	s.register("t", 2, 0, false)

	s.Require().NoError(s.Manager.Resize("t", 2))
	s.Equal(2, s.factory.Count())

	err := s.Manager.Resize("t", -1)
	s.ErrorIs(err, pool.ErrInvalidTemplate)
	s.RequireLen("t", 2)

	err = s.Manager.Resize("missing", 3)
	s.ErrorIs(err, pool.ErrUnknownTemplate)

	s.factory.FailAfter(1)
	err = s.Manager.Resize("t", 6)
	s.ErrorIs(err, poolutil.ErrFactory)
	s.RequireLen("t", 2)
}

func (s *ManagerSuite) TestWarmRegistersAndGrows() {
	t := s.Template("w", 2, 0, false, s.factory)

	s.Require().NoError(s.Manager.Warm(t, 3))
	s.RequireLen("w", 5)

	s.Require().NoError(s.Manager.Warm(t, 1))
	s.RequireLen("w", 6)

	s.ErrorIs(s.Manager.Warm(t, -1), pool.ErrInvalidTemplate)
}

func (s *ManagerSuite) TestWarmRollsBackFreshRegistration() {
	s.factory.FailAfter(3)
	err := s.Manager.Warm(s.Template("w", 2, 0, false, s.factory), 4)

	s.ErrorIs(err, poolutil.ErrFactory)
	_, ok := s.Manager.Len("w")
	s.False(ok)
	s.Equal(s.factory.Count(), s.factory.Destroyed())
}

func (s *ManagerSuite) TestReleaseDeactivatesOneInstance() {
	var released []*pool.Instance
	t := s.Template("r", 2, 5*time.Second, false, s.factory)
	t.Hooks.OnRelease = func(inst *pool.Instance) { released = append(released, inst) }
	s.Require().NoError(s.Manager.Register(t))

	a, err := s.Manager.Spawn("r", nil)
	s.Require().NoError(err)
	b, err := s.Manager.Spawn("r", nil)
	s.Require().NoError(err)

	s.Require().NoError(s.Manager.Release(a))
	s.False(a.Active())
	s.True(b.Active())
	s.Require().NoError(s.Manager.Release(a))
	s.Equal([]*pool.Instance{a}, released)

	// The released instance is reused by the next spawn once it reaches the front.
	c, err := s.Manager.Spawn("r", nil)
	s.Require().NoError(err)
	s.Same(a, c)
	s.RequireLen("r", 2)
}

func (s *ManagerSuite) TestReleaseStaleInstance() {
	s.register("r", 1, 0, false)
	inst, err := s.Manager.Spawn("r", nil)
	s.Require().NoError(err)

	s.Require().NoError(s.Manager.Clear("r"))
	s.ErrorIs(s.Manager.Release(inst), pool.ErrUnknownTemplate)

	s.register("r", 1, 0, false)
	s.ErrorIs(s.Manager.Release(inst), pool.ErrStaleInstance)
	s.ErrorIs(s.Manager.Release(nil), pool.ErrInvalidTemplate)
}

func (s *ManagerSuite) TestRecycleAllDeactivatesEverything() {
	s.register("a", 2, 5*time.Second, false)
	s.register("b", 3, 0, false)

	for range 2 {
		_, err := s.Manager.Spawn("a", nil)
		s.Require().NoError(err)
	}
	for range 3 {
		_, err := s.Manager.Spawn("b", nil)
		s.Require().NoError(err)
	}
	built := s.factory.Count()

	s.Manager.RecycleAll()

	for _, id := range []string{"a", "b"} {
		for _, inst := range s.Manager.Instances(id) {
			s.False(inst.Active())
			s.False(inst.Destroyed())
		}
		s.Zero(s.Manager.Tracked(id))
	}
	s.Zero(s.factory.Destroyed())

	for _, id := range []string{"a", "b"} {
		inst, err := s.Manager.Spawn(id, nil)
		s.Require().NoError(err)
		s.True(inst.Active())
	}
	s.Equal(built, s.factory.Count(), "spawn after recycle allocates nothing")
}

func (s *ManagerSuite) TestRecycleUnknown() {
	s.ErrorIs(s.Manager.Recycle("nope"), pool.ErrUnknownTemplate)
}

func (s *ManagerSuite) TestClearThenRegisterRoundTrip() {
	t := s.register("t", 3, 5*time.Second, false)
	before := s.Manager.Instances("t")
	_, err := s.Manager.Spawn("t", nil)
	s.Require().NoError(err)
	g, _ := s.Manager.Group("t")

	s.Require().NoError(s.Manager.Clear("t"))
	_, ok := s.Manager.Len("t")
	s.False(ok)
	s.True(g.Destroyed())
	s.Zero(g.Len())
	s.Zero(s.Manager.Tracked("t"))
	for _, inst := range before {
		s.True(inst.Destroyed())
	}

	s.Require().NoError(s.Manager.Register(t))
	s.RequireLen("t", 3)
	for _, inst := range s.Manager.Instances("t") {
		s.False(inst.Active())
	}
	g2, _ := s.Manager.Group("t")
	s.NotSame(g, g2)
	s.False(g2.Destroyed())
}

func (s *ManagerSuite) TestUnregisterUnknown() {
	s.ErrorIs(s.Manager.Unregister("ghost"), pool.ErrUnknownTemplate)
}

func (s *ManagerSuite) TestClearAllDestroysEverything() {
	s.register("a", 2, 0, false)
	s.register("b", 1, time.Second, false)

	s.Manager.ClearAll()

	s.Empty(s.Manager.Templates())
	s.Equal(s.factory.Count(), s.factory.Destroyed())
	for _, id := range []string{"a", "b"} {
		_, err := s.Manager.Spawn(id, nil)
		s.ErrorIs(err, pool.ErrUnknownTemplate)
	}
}

func (s *ManagerSuite) TestShutdownClosesManager() {
	s.register("a", 2, 0, false)

	s.Require().NoError(s.Manager.Shutdown())
	s.Require().NoError(s.Manager.Shutdown())

	s.Equal(2, s.factory.Destroyed())
	_, err := s.Manager.Spawn("a", nil)
	s.ErrorIs(err, pool.ErrManagerClosed)
	s.ErrorIs(s.Manager.Register(s.Template("b", 1, 0, false, s.factory)), pool.ErrManagerClosed)
	s.Zero(s.Manager.Tick(time.Now()))
}

func (s *ManagerSuite) TestHooksFireAndMayReenter() {
	var (
		spawned   []bool
		expired   int
		destroyed int
	)
	t := s.Template("h", 1, time.Second, false, s.factory)
	t.Hooks = pool.Hooks{
		OnSpawn: func(_ *pool.Instance, grown bool) {
			spawned = append(spawned, grown)
			// Hooks run outside the lock, so reading back is allowed.
			_, _ = s.Manager.Len("h")
		},
		OnExpire:  func(*pool.Instance) { expired++ },
		OnDestroy: func(*pool.Instance) { destroyed++ },
	}
	s.Require().NoError(s.Manager.Register(t))

	_, err := s.Manager.Spawn("h", nil)
	s.Require().NoError(err)
	_, err = s.Manager.Spawn("h", nil)
	s.Require().NoError(err)
	s.Equal([]bool{false, true}, spawned)

	s.Equal(2, s.Advance(2*time.Second))
	s.Equal(2, expired)

	s.Require().NoError(s.Manager.Clear("h"))
	s.Equal(2, destroyed)
}

func (s *ManagerSuite) TestInstanceCountInvariant() {
	s.register("t", 2, time.Second, false)

	for i := range 20 {
		_, err := s.Manager.Spawn("t", i)
		s.Require().NoError(err)
		if i%3 == 0 {
			s.Advance(1500 * time.Millisecond)
		}
		if i == 10 {
			s.Require().NoError(s.Manager.Resize("t", 2))
		}
	}

	stats := s.Manager.Stats()[0]
	s.Equal(int(stats.Created-stats.Destroyed), stats.Size)
	s.LessOrEqual(stats.Tracked, stats.Size)

	seen := make(map[uint64]bool)
	for _, inst := range s.Manager.Instances("t") {
		s.False(seen[inst.ID()], "instance appears twice in the queue")
		seen[inst.ID()] = true
	}
}

func (s *ManagerSuite) TestMetricsFollowOperations() {
	s.register("m", 1, time.Second, false)
	_, err := s.Manager.Spawn("m", nil)
	s.Require().NoError(err)
	_, err = s.Manager.Spawn("m", nil)
	s.Require().NoError(err)
	s.Advance(2 * time.Second)

	n, err := testutil.GatherAndCount(s.Registry,
		"spawnpool_test_spawns_total",
		"spawnpool_test_instances_created_total",
		"spawnpool_test_instances_expired_total",
		"spawnpool_test_queue_length",
		"spawnpool_test_lifetime_records",
	)
	s.Require().NoError(err)
	// spawns has reuse and grow series; the others one series each.
	s.Equal(6, n)
}

func TestManagerConcurrentSpawn(t *testing.T) {
	factory := poolutil.NewFactory()
	m := pool.NewManager(pool.WithLogger(poolutil.TestLogger(t)))
	defer func() { _ = m.Shutdown() }()

	if err := m.Register(pool.Template{ID: "c", Size: 4, Lifetime: time.Hour, Factory: factory}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if _, err := m.Spawn("c", nil); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	// Every spawn either reused a recycled instance or grew by exactly one;
	// with a one-hour lifetime nothing is inactive, so 400 spawns grew 396 times.
	n, _ := m.Len("c")
	if n != 400 {
		t.Fatalf("queue length = %d, want 400", n)
	}
	if got := factory.Count(); got != 400 {
		t.Fatalf("factory built %d instances, want 400", got)
	}
}

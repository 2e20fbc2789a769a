// Package pool provides example usage of the recycling pool manager.
package pool_test

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/spawnpool/pkg/clock"
	"github.com/ajitpratap0/spawnpool/pkg/pool"
)

type sprite struct{ at pool.Placement }

func (s *sprite) Activate(p pool.Placement) { s.at = p }
func (s *sprite) Deactivate()               { s.at = nil }
func (s *sprite) Destroy()                  {}

var spriteFactory = pool.FactoryFunc(func(pool.Template, *pool.Group, pool.Placement) (pool.Entity, error) {
	return &sprite{}, nil
})

// Example demonstrates registering a template and spawning from it. The
// third spawn finds a live instance at the front and grows the queue.
func Example() {
	m := pool.NewManager(pool.WithLogger(zap.NewNop()))
	defer m.Shutdown()

	if err := m.Register(pool.Template{
		ID:       "bullet",
		Size:     2,
		Lifetime: 5 * time.Second,
		Factory:  spriteFactory,
	}); err != nil {
		panic(err)
	}

	for i := range 3 {
		inst, _ := m.Spawn("bullet", i)
		n, _ := m.Len("bullet")
		fmt.Printf("spawned #%d, queue length %d\n", inst.ID(), n)
	}

	// Output:
	// spawned #1, queue length 2
	// spawned #2, queue length 2
	// spawned #3, queue length 3
}

// ExampleManager_Tick shows lifetime expiry driven by a manual clock.
func ExampleManager_Tick() {
	clk := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	m := pool.NewManager(pool.WithLogger(zap.NewNop()), pool.WithClock(clk))
	defer m.Shutdown()

	_ = m.Register(pool.Template{ID: "spark", Size: 1, Lifetime: time.Second, Factory: spriteFactory})
	inst, _ := m.Spawn("spark", nil)

	fmt.Println(m.Tick(clk.Advance(time.Second)), inst.Active())
	fmt.Println(m.Tick(clk.Advance(time.Millisecond)), inst.Active())

	// Output:
	// 0 true
	// 1 false
}

// ExampleManager_RecycleAll shows a scene reset that keeps every instance.
func ExampleManager_RecycleAll() {
	m := pool.NewManager(pool.WithLogger(zap.NewNop()))
	defer m.Shutdown()

	_ = m.Register(pool.Template{ID: "decal", Size: 3, Factory: spriteFactory})
	for range 3 {
		_, _ = m.Spawn("decal", nil)
	}

	m.RecycleAll()
	inst, _ := m.Spawn("decal", nil)
	n, _ := m.Len("decal")
	fmt.Println(inst.ID(), n)

	// Output:
	// 1 3
}

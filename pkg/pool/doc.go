// Package pool implements a template-keyed object recycling pool for
// short-lived, frequently spawned entities such as projectiles or effects.
//
// Architecture
//
// A Manager keeps one FIFO Queue of Instances per registered Template, an
// isolation Group per template, and a lifetime tracker:
//
//   - Template: id, initial size, lifetime, recycling policy and Factory
//   - Queue: ring buffer owning every instance built for a template
//   - Group: naming scope handed to the Factory, torn down by Clear
//   - tracker: activation timestamps for templates with a lifetime
//
// Instances are never removed from their queue while the template is
// registered. A Spawn dequeues the front instance and always puts it back;
// the queue only changes length through grow-on-demand, Resize, Warm and
// Clear.
//
// Spawning
//
// Spawn reuses the front instance when it is inactive, or when the template
// sets RecycleWithoutLifetime. Otherwise the live front instance is left
// alone and one new instance is built at the requested placement, so the
// queue grows by exactly one:
//
//	m := pool.NewManager(pool.WithLogger(log))
//	if err := m.Register(pool.Template{
//		ID:       "bullet",
//		Size:     32,
//		Lifetime: 2 * time.Second,
//		Factory:  bulletFactory,
//	}); err != nil {
//		return err
//	}
//	defer m.Shutdown()
//
//	inst, err := m.Spawn("bullet", muzzle)
//
// Lifetimes
//
// The Manager is passive. Templates with a positive Lifetime are stamped at
// every spawn; Tick deactivates each active instance whose lifetime elapsed
// strictly before the given time. Deactivated instances stay queued for
// reuse. Hosts drive Tick from their own loop or with a clock.Driver:
//
//	d, _ := clock.NewDriver(m, 100*time.Millisecond)
//	go d.Run(ctx)
//
// Errors
//
// Every error returned by the Manager wraps one of the sentinel errors
// (ErrUnknownTemplate, ErrInvalidTemplate, ErrManagerClosed,
// ErrStaleInstance) and can be matched with errors.Is. Factory failures keep
// the factory's own error in the chain.
//
// Thread Safety
//
// All Manager methods are safe for concurrent use. Hooks run after the
// Manager releases its lock and may call back into it.
package pool

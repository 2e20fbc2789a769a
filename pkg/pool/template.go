package pool

import (
	"time"
)

// Placement is an opaque value (position, orientation or whatever the host
// uses) handed to an Entity when it is spawned. The pool never inspects it.
type Placement any

// Entity is the capability set a pooled object must provide.
type Entity interface {
	// Activate applies placement and makes the entity live.
	Activate(p Placement)
	// Deactivate hides the entity without releasing its resources.
	Deactivate()
	// Destroy releases whatever backing resource the entity wraps.
	Destroy()
}

// Factory builds new entities for a template. Implementations must return an
// inactive entity. p is nil when the pool pre-populates or grows a queue
// outside of a spawn.
type Factory interface {
	Create(t Template, g *Group, p Placement) (Entity, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(t Template, g *Group, p Placement) (Entity, error)

// Create calls f(t, g, p).
func (f FactoryFunc) Create(t Template, g *Group, p Placement) (Entity, error) {
	return f(t, g, p)
}

// Hooks are optional callbacks attached to a template at registration. They
// run synchronously on the goroutine that performed the operation, after the
// Manager has released its lock, so a hook may call back into the Manager.
type Hooks struct {
	// OnSpawn fires for every instance handed out by Spawn. grown reports
	// whether the instance was freshly built because the front of the queue
	// was still live.
	OnSpawn func(inst *Instance, grown bool)
	// OnExpire fires when a Tick deactivates an instance.
	OnExpire func(inst *Instance)
	// OnRelease fires when Release or Recycle deactivates a live instance.
	OnRelease func(inst *Instance)
	// OnDestroy fires when an instance is destroyed by Resize or Clear.
	OnDestroy func(inst *Instance)
}

// Template describes one kind of recyclable entity. It is copied on
// registration and never mutated afterwards.
type Template struct {
	// ID is the stable key the pool is addressed by.
	ID string
	// Size is the number of instances built at registration.
	Size int
	// Lifetime bounds how long a spawned instance stays active before a Tick
	// deactivates it. Zero disables lifetime tracking.
	Lifetime time.Duration
	// RecycleWithoutLifetime lets Spawn reuse the front instance even when it
	// is still active, instead of growing the queue.
	RecycleWithoutLifetime bool
	// Factory builds the template's entities.
	Factory Factory
	// Hooks observe instance transitions.
	Hooks Hooks
}

// Tracked reports whether spawned instances get lifetime records.
func (t Template) Tracked() bool {
	return t.Lifetime > 0
}

// Validate checks the template for registration.
func (t Template) Validate() error {
	switch {
	case t.ID == "":
		return invalidTemplate(t.ID, "template id must not be empty")
	case t.Factory == nil:
		return invalidTemplate(t.ID, "template factory must not be nil")
	case t.Size < 0:
		return invalidTemplate(t.ID, "template size must not be negative").
			WithDetail("size", t.Size)
	case t.Lifetime < 0:
		return invalidTemplate(t.ID, "template lifetime must not be negative").
			WithDetail("lifetime", t.Lifetime)
	}
	return nil
}

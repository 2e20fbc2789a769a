package pool

import (
	"sync/atomic"
	"time"
)

// Instance is the handle to one pooled entity. Handles are shared between the
// pool and callers; the flags are atomics so callers may poll Active while
// the Manager mutates them.
type Instance struct {
	id       uint64
	template string
	entity   Entity
	group    *Group

	active    atomic.Bool
	destroyed atomic.Bool
}

func newInstance(id uint64, template string, e Entity, g *Group) *Instance {
	return &Instance{
		id:       id,
		template: template,
		entity:   e,
		group:    g,
	}
}

// ID returns the manager-wide sequence number of the instance.
func (i *Instance) ID() uint64 { return i.id }

// Template returns the id of the owning template.
func (i *Instance) Template() string { return i.template }

// Entity returns the wrapped entity.
func (i *Instance) Entity() Entity { return i.entity }

// Group returns the isolation group the instance was built in.
func (i *Instance) Group() *Group { return i.group }

// Active reports whether the instance is currently handed out.
func (i *Instance) Active() bool { return i.active.Load() }

// Destroyed reports whether the instance has been destroyed.
func (i *Instance) Destroyed() bool { return i.destroyed.Load() }

func (i *Instance) activate(p Placement) {
	i.entity.Activate(p)
	i.active.Store(true)
}

// deactivate flips the instance to inactive. It reports false if the
// instance was already inactive.
func (i *Instance) deactivate() bool {
	if !i.active.CompareAndSwap(true, false) {
		return false
	}
	i.entity.Deactivate()
	return true
}

// destroy releases the entity once. It reports false on repeated calls.
func (i *Instance) destroy() bool {
	if !i.destroyed.CompareAndSwap(false, true) {
		return false
	}
	i.active.Store(false)
	i.entity.Destroy()
	i.group.leave()
	return true
}

// Group is the isolation scope created per registered template. Factories
// receive it so entities can be parented or namespaced under it.
type Group struct {
	name      string
	template  string
	createdAt time.Time

	members   atomic.Int64
	destroyed atomic.Bool
}

func newGroup(template string, now time.Time) *Group {
	return &Group{
		name:      "[" + template + "]",
		template:  template,
		createdAt: now,
	}
}

// Name returns the group name, the template id in square brackets.
func (g *Group) Name() string { return g.name }

// Template returns the id of the owning template.
func (g *Group) Template() string { return g.template }

// CreatedAt returns when the group was created.
func (g *Group) CreatedAt() time.Time { return g.createdAt }

// Len returns the number of live instances built in the group.
func (g *Group) Len() int { return int(g.members.Load()) }

// Destroyed reports whether the group was torn down by Clear.
func (g *Group) Destroyed() bool { return g.destroyed.Load() }

func (g *Group) join()    { g.members.Add(1) }
func (g *Group) leave()   { g.members.Add(-1) }
func (g *Group) destroy() { g.destroyed.Store(true) }

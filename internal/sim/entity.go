// Package sim provides a simulated scene for exercising a pool.Manager:
// entities with a 3-D placement, a factory that builds them, and a load
// generator that spawns at a fixed rate.
package sim

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/spawnpool/pkg/errors"
	"github.com/ajitpratap0/spawnpool/pkg/pool"
)

// Vec3 is a point or an Euler rotation in scene space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Placement positions a spawned entity.
type Placement struct {
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
}

// Entity is a simulated scene object.
type Entity struct {
	name    string
	group   string
	factory *Factory

	mu        sync.Mutex
	visible   bool
	placement Placement
	spawns    int
	destroyed bool
}

// Name returns the entity name, "<template>#<n>".
func (e *Entity) Name() string { return e.name }

// Group returns the name of the group the entity was parented under.
func (e *Entity) Group() string { return e.group }

// Activate implements pool.Entity. Placements of another type leave the
// current placement unchanged.
func (e *Entity) Activate(p pool.Placement) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pl, ok := asPlacement(p); ok {
		e.placement = pl
	}
	if !e.visible {
		e.factory.visible.Add(1)
	}
	e.visible = true
	e.spawns++
}

// Deactivate implements pool.Entity.
func (e *Entity) Deactivate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.visible {
		e.factory.visible.Add(-1)
	}
	e.visible = false
}

// Destroy implements pool.Entity.
func (e *Entity) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	if e.visible {
		e.factory.visible.Add(-1)
	}
	e.visible = false
	e.destroyed = true
	e.factory.destroyed.Add(1)
}

// Visible reports whether the entity is shown in the scene.
func (e *Entity) Visible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible
}

// Placement returns the entity's current placement.
func (e *Entity) Placement() Placement {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.placement
}

// Spawns returns how many times the entity was activated.
func (e *Entity) Spawns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spawns
}

func asPlacement(p pool.Placement) (Placement, bool) {
	switch v := p.(type) {
	case Placement:
		return v, true
	case *Placement:
		if v != nil {
			return *v, true
		}
	}
	return Placement{}, false
}

// Factory builds simulated entities. One Factory can serve any number of
// templates.
type Factory struct {
	log *zap.Logger

	seq       atomic.Int64
	created   atomic.Int64
	destroyed atomic.Int64
	visible   atomic.Int64
}

// NewFactory returns a Factory that logs creations at debug level.
func NewFactory(log *zap.Logger) *Factory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Factory{log: log}
}

// Create implements pool.Factory. The entity starts hidden; a non-nil
// placement becomes its initial position.
func (f *Factory) Create(t pool.Template, g *pool.Group, p pool.Placement) (pool.Entity, error) {
	if g == nil || g.Destroyed() {
		return nil, errors.New(errors.ErrorTypeValidation, "cannot create entity in a destroyed group").
			WithDetail("template", t.ID)
	}
	n := f.seq.Add(1)
	e := &Entity{
		name:    fmt.Sprintf("%s#%d", t.ID, n),
		group:   g.Name(),
		factory: f,
	}
	if pl, ok := asPlacement(p); ok {
		e.placement = pl
	}
	f.created.Add(1)
	f.log.Debug("entity created", zap.String("entity", e.name), zap.String("group", e.group))
	return e, nil
}

// FactoryStats counts entities by state.
type FactoryStats struct {
	Created   int64 `json:"created"`
	Destroyed int64 `json:"destroyed"`
	Visible   int64 `json:"visible"`
}

// Stats returns the factory counters.
func (f *Factory) Stats() FactoryStats {
	return FactoryStats{
		Created:   f.created.Load(),
		Destroyed: f.destroyed.Load(),
		Visible:   f.visible.Load(),
	}
}

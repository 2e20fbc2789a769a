package pool

import (
	"time"
)

// TemplateStats is a point-in-time view of one template's pool.
type TemplateStats struct {
	ID                     string        `json:"id"`
	Group                  string        `json:"group"`
	Size                   int           `json:"size"`
	Active                 int           `json:"active"`
	Tracked                int           `json:"tracked"`
	Lifetime               time.Duration `json:"lifetime"`
	RecycleWithoutLifetime bool          `json:"recycle_without_lifetime"`
	Created                uint64        `json:"created"`
	Destroyed              uint64        `json:"destroyed"`
	Spawned                uint64        `json:"spawned"`
	Grown                  uint64        `json:"grown"`
	Expired                uint64        `json:"expired"`
}

// Stats returns one TemplateStats per registered template, in registration
// order.
func (m *Manager) Stats() []TemplateStats {
	m.lock()
	defer m.unlock()

	out := make([]TemplateStats, 0, m.reg.len())
	for _, id := range m.reg.ids() {
		e, _ := m.reg.get(id)
		active := 0
		e.queue.Each(func(inst *Instance) {
			if inst.Active() {
				active++
			}
		})
		out = append(out, TemplateStats{
			ID:                     id,
			Group:                  e.group.Name(),
			Size:                   e.queue.Len(),
			Active:                 active,
			Tracked:                m.tracker.len(id),
			Lifetime:               e.template.Lifetime,
			RecycleWithoutLifetime: e.template.RecycleWithoutLifetime,
			Created:                e.created,
			Destroyed:              e.destroyed,
			Spawned:                e.spawned,
			Grown:                  e.grown,
			Expired:                e.expired,
		})
	}
	return out
}

// Templates returns the registered template ids in registration order.
func (m *Manager) Templates() []string {
	m.lock()
	defer m.unlock()
	return m.reg.ids()
}

// Len returns the queue length of id and whether id is registered.
func (m *Manager) Len(id string) (int, bool) {
	m.lock()
	defer m.unlock()

	e, ok := m.reg.get(id)
	if !ok {
		return 0, false
	}
	return e.queue.Len(), true
}

// Tracked returns the number of lifetime records held for id.
func (m *Manager) Tracked(id string) int {
	m.lock()
	defer m.unlock()
	return m.tracker.len(id)
}

// TrackedTotal returns the number of lifetime records across all templates.
func (m *Manager) TrackedTotal() int {
	m.lock()
	defer m.unlock()
	return m.tracker.total()
}

// ActivatedAt returns when inst was last stamped by the lifetime tracker.
func (m *Manager) ActivatedAt(inst *Instance) (time.Time, bool) {
	if inst == nil {
		return time.Time{}, false
	}
	m.lock()
	defer m.unlock()
	return m.tracker.activation(inst.template, inst.id)
}

// Group returns the isolation group of id.
func (m *Manager) Group(id string) (*Group, bool) {
	m.lock()
	defer m.unlock()

	e, ok := m.reg.get(id)
	if !ok {
		return nil, false
	}
	return e.group, true
}

// Instances returns the queued instances of id, front to back.
func (m *Manager) Instances(id string) []*Instance {
	m.lock()
	defer m.unlock()

	e, ok := m.reg.get(id)
	if !ok {
		return nil
	}
	return e.queue.Snapshot()
}

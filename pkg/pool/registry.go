package pool

// entry is everything the Manager owns for one registered template.
type entry struct {
	template Template
	queue    *Queue
	group    *Group

	created   uint64
	destroyed uint64
	grown     uint64
	spawned   uint64
	expired   uint64
}

// registry maps template ids to their entries and remembers registration
// order so that bulk operations and Stats are deterministic.
type registry struct {
	entries map[string]*entry
	order   []string
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*entry)}
}

func (r *registry) get(id string) (*entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

func (r *registry) add(e *entry) {
	r.entries[e.template.ID] = e
	r.order = append(r.order, e.template.ID)
}

func (r *registry) remove(id string) {
	if _, ok := r.entries[id]; !ok {
		return
	}
	delete(r.entries, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// ids returns a copy of the registered ids in registration order.
func (r *registry) ids() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *registry) len() int {
	return len(r.order)
}

func (r *registry) reset() {
	r.entries = make(map[string]*entry)
	r.order = nil
}

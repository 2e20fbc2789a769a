package pool

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/spawnpool/pkg/clock"
	"github.com/ajitpratap0/spawnpool/pkg/errors"
	"github.com/ajitpratap0/spawnpool/pkg/logger"
	"github.com/ajitpratap0/spawnpool/pkg/metrics"
)

// Manager owns the template registry, the per-template queues and the
// lifetime tracker. It is safe for concurrent use: every entry point runs
// as one critical section, so a dequeue, a possible grow and the re-enqueue
// of a Spawn are never interleaved with another operation.
//
// The Manager is passive. The host calls Tick at whatever cadence it likes,
// directly or through a clock.Driver.
type Manager struct {
	mu sync.Mutex

	reg     *registry
	tracker *tracker
	nextID  uint64
	closed  bool

	// pending holds hook invocations queued while mu is held; unlock runs
	// them once the lock is released.
	pending []func()

	clock   clock.Clock
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewManager creates an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		reg:     newRegistry(),
		tracker: newTracker(),
		clock:   clock.System{},
		logger:  logger.Get().Named("pool"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) lock() {
	m.mu.Lock()
}

func (m *Manager) unlock() {
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

func (m *Manager) notify(fn func()) {
	m.pending = append(m.pending, fn)
}

func (m *Manager) checkOpen(op string) error {
	if m.closed {
		return errors.Wrap(ErrManagerClosed, errors.ErrorTypeConflict, op)
	}
	return nil
}

// lookup returns the entry for id or logs and returns ErrUnknownTemplate.
func (m *Manager) lookup(op, id string) (*entry, error) {
	e, ok := m.reg.get(id)
	if !ok {
		m.logger.Warn("pool does not exist", zap.String("op", op), zap.String("template", id))
		return nil, unknownTemplate(op, id)
	}
	return e, nil
}

// Register builds the queue and isolation group for t and pre-populates it
// with t.Size inactive instances. Registering an id that already exists is
// a no-op. If the factory fails, every instance built so far is destroyed
// and nothing is registered.
func (m *Manager) Register(t Template) error {
	m.lock()
	defer m.unlock()

	if err := m.checkOpen("register"); err != nil {
		return err
	}
	_, err := m.registerLocked(t)
	return err
}

// registerLocked registers t if absent and reports whether it did.
func (m *Manager) registerLocked(t Template) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	if _, ok := m.reg.get(t.ID); ok {
		m.logger.Debug("template already registered", zap.String("template", t.ID))
		return false, nil
	}

	e := &entry{
		template: t,
		queue:    NewQueue(),
		group:    newGroup(t.ID, m.clock.Now()),
	}
	built, err := m.build(e, t.Size, nil)
	if err != nil {
		e.group.destroy()
		return false, err
	}
	for _, inst := range built {
		e.queue.Enqueue(inst)
	}
	m.reg.add(e)
	m.observe(e)

	m.logger.Info("template registered",
		zap.String("template", t.ID),
		zap.String("group", e.group.Name()),
		zap.Int("size", t.Size),
		zap.Duration("lifetime", t.Lifetime),
		zap.Bool("recycle_without_lifetime", t.RecycleWithoutLifetime))
	return true, nil
}

// Unregister tears down a template. It is equivalent to Clear.
func (m *Manager) Unregister(id string) error {
	return m.Clear(id)
}

// Warm registers t if needed and then grows its queue by extra inactive
// instances.
func (m *Manager) Warm(t Template, extra int) error {
	m.lock()
	defer m.unlock()

	if err := m.checkOpen("warm"); err != nil {
		return err
	}
	if extra < 0 {
		return invalidTemplate(t.ID, "warm count must not be negative").WithDetail("extra", extra)
	}

	fresh, err := m.registerLocked(t)
	if err != nil {
		return err
	}
	e, _ := m.reg.get(t.ID)

	built, err := m.build(e, extra, nil)
	if err != nil {
		if fresh {
			m.clearLocked(e)
		}
		return err
	}
	for _, inst := range built {
		e.queue.Enqueue(inst)
	}
	m.observe(e)

	m.logger.Debug("template warmed",
		zap.String("template", t.ID),
		zap.Int("extra", extra),
		zap.Int("size", e.queue.Len()))
	return nil
}

// Resize grows or shrinks the queue of id to exactly n instances. Growth
// appends inactive instances; shrinking destroys instances from the front
// and purges their lifetime records.
func (m *Manager) Resize(id string, n int) error {
	m.lock()
	defer m.unlock()

	if err := m.checkOpen("resize"); err != nil {
		return err
	}
	e, err := m.lookup("resize", id)
	if err != nil {
		return err
	}
	if n < 0 {
		return invalidTemplate(id, "resize target must not be negative").WithDetail("size", n)
	}

	cur := e.queue.Len()
	switch {
	case n == cur:
		m.logger.Debug("resize to current size", zap.String("template", id), zap.Int("size", n))
		return nil
	case n > cur:
		built, err := m.build(e, n-cur, nil)
		if err != nil {
			return err
		}
		for _, inst := range built {
			e.queue.Enqueue(inst)
		}
	default:
		for range cur - n {
			inst, err := e.queue.Dequeue()
			if err != nil {
				panic(errors.Wrap(err, errors.ErrorTypeInternal, "resize").WithDetail("template", id))
			}
			m.tracker.forget(id, inst.id)
			m.destroyLocked(e, inst)
		}
	}
	m.observe(e)

	m.logger.Debug("template resized", zap.String("template", id), zap.Int("from", cur), zap.Int("to", n))
	return nil
}

// Spawn hands out an instance of id activated at p.
//
// The front of the queue is reused when it is inactive, or when the template
// allows recycling live instances. Otherwise the queue grows by one: a new
// instance is built at p and enqueued behind the still-live front instance,
// which is left untouched. Either way the returned instance is already back
// in the queue.
func (m *Manager) Spawn(id string, p Placement) (*Instance, error) {
	m.lock()
	defer m.unlock()

	if err := m.checkOpen("spawn"); err != nil {
		return nil, err
	}
	e, err := m.lookup("spawn", id)
	if err != nil {
		return nil, err
	}

	// An emptied queue (size 0, or resized to 0) goes straight to growth.
	if e.queue.Len() == 0 {
		return m.grow(e, nil, p)
	}

	front, err := e.queue.Dequeue()
	if err != nil {
		panic(errors.Wrap(err, errors.ErrorTypeInternal, "spawn").WithDetail("template", id))
	}

	if front.Active() && !e.template.RecycleWithoutLifetime {
		return m.grow(e, front, p)
	}

	front.activate(p)
	e.queue.Enqueue(front)
	m.trackLocked(e, front)
	e.spawned++
	m.metrics.ObserveSpawn(id, metrics.OutcomeReuse)
	m.observe(e)
	m.fireSpawn(e, front, false)
	return front, nil
}

// grow builds a new live instance at p. front, if not nil, is the still-live
// instance that was dequeued; it goes back first so queue order is kept.
func (m *Manager) grow(e *entry, front *Instance, p Placement) (*Instance, error) {
	built, err := m.build(e, 1, p)
	if err != nil {
		if front != nil {
			e.queue.PushFront(front)
		}
		return nil, err
	}
	inst := built[0]
	inst.activate(p)

	if front != nil {
		e.queue.Enqueue(front)
	}
	e.queue.Enqueue(inst)
	m.trackLocked(e, inst)
	e.spawned++
	e.grown++
	m.metrics.ObserveSpawn(e.template.ID, metrics.OutcomeGrow)
	m.observe(e)

	m.logger.Debug("pool grew on demand",
		zap.String("template", e.template.ID),
		zap.Int("size", e.queue.Len()))
	m.fireSpawn(e, inst, true)
	return inst, nil
}

// Release deactivates a single spawned instance ahead of its lifetime. The
// instance stays queued and its lifetime record, if any, is left to be
// overwritten by the next spawn. Releasing an inactive instance is a no-op.
func (m *Manager) Release(inst *Instance) error {
	m.lock()
	defer m.unlock()

	if err := m.checkOpen("release"); err != nil {
		return err
	}
	if inst == nil {
		return invalidTemplate("", "release of nil instance")
	}
	e, err := m.lookup("release", inst.template)
	if err != nil {
		return err
	}
	if inst.Destroyed() || inst.group != e.group {
		return errors.Wrap(ErrStaleInstance, errors.ErrorTypeValidation, "release").
			WithDetail("template", inst.template).
			WithDetail("instance", inst.id)
	}

	if inst.deactivate() {
		m.fireRelease(e, inst)
	}
	return nil
}

// Recycle deactivates every instance of id and drops all of its lifetime
// records. Nothing is destroyed.
func (m *Manager) Recycle(id string) error {
	m.lock()
	defer m.unlock()

	if err := m.checkOpen("recycle"); err != nil {
		return err
	}
	e, err := m.lookup("recycle", id)
	if err != nil {
		return err
	}
	m.recycleLocked(e)
	return nil
}

// RecycleAll applies Recycle to every registered template.
func (m *Manager) RecycleAll() {
	m.lock()
	defer m.unlock()

	if m.closed {
		return
	}
	for _, id := range m.reg.ids() {
		e, _ := m.reg.get(id)
		m.recycleLocked(e)
	}
}

func (m *Manager) recycleLocked(e *entry) {
	released := 0
	e.queue.Each(func(inst *Instance) {
		if inst.deactivate() {
			released++
			m.fireRelease(e, inst)
		}
	})
	m.tracker.forgetTemplate(e.template.ID)
	m.observe(e)

	m.logger.Debug("template recycled",
		zap.String("template", e.template.ID),
		zap.Int("released", released))
}

// Clear destroys every instance of id, its lifetime records and its
// isolation group, and removes the template from the registry.
func (m *Manager) Clear(id string) error {
	m.lock()
	defer m.unlock()

	if err := m.checkOpen("clear"); err != nil {
		return err
	}
	e, err := m.lookup("clear", id)
	if err != nil {
		return err
	}
	m.clearLocked(e)
	return nil
}

// ClearAll clears every template and empties the registry. Hosts must call
// it (or Shutdown) when they are done with the pool; otherwise every pooled
// entity and group is leaked.
func (m *Manager) ClearAll() {
	m.lock()
	defer m.unlock()

	m.clearAllLocked()
}

func (m *Manager) clearAllLocked() {
	for _, id := range m.reg.ids() {
		e, _ := m.reg.get(id)
		m.clearLocked(e)
	}
	m.reg.reset()
}

func (m *Manager) clearLocked(e *entry) {
	id := e.template.ID
	destroyed := 0
	for _, inst := range e.queue.Drain() {
		if m.destroyLocked(e, inst) {
			destroyed++
		}
	}
	m.tracker.forgetTemplate(id)
	e.group.destroy()
	m.reg.remove(id)
	m.metrics.Forget(id)

	m.logger.Info("template cleared",
		zap.String("template", id),
		zap.Int("destroyed", destroyed))
}

// Shutdown clears every template and closes the manager. Subsequent calls
// to any operation return ErrManagerClosed; Shutdown itself is idempotent.
func (m *Manager) Shutdown() error {
	m.lock()
	defer m.unlock()

	if m.closed {
		return nil
	}
	m.clearAllLocked()
	m.closed = true
	m.logger.Info("pool manager shut down")
	return nil
}

// Tick scans the lifetime records and deactivates every active instance
// whose lifetime elapsed before now. Expired instances stay queued. It
// returns the number of instances deactivated.
func (m *Manager) Tick(now time.Time) int {
	m.lock()
	defer m.unlock()

	if m.closed {
		return 0
	}

	start := time.Now()
	perTemplate := make(map[string]int)
	expired := m.tracker.scan(now,
		func(id string) (time.Duration, bool) {
			e, ok := m.reg.get(id)
			if !ok {
				return 0, false
			}
			return e.template.Lifetime, true
		},
		func(inst *Instance) {
			if !inst.deactivate() {
				return
			}
			perTemplate[inst.template]++
			e, _ := m.reg.get(inst.template)
			e.expired++
			m.fireExpire(e, inst)
		},
	)
	m.metrics.ObserveTick(time.Since(start))

	for id, n := range perTemplate {
		m.metrics.AddExpired(id, n)
		m.logger.Debug("instances expired", zap.String("template", id), zap.Int("expired", n))
	}
	return expired
}

// build asks the factory for n new instances. On failure the instances built
// so far are destroyed and the factory error is returned wrapped.
func (m *Manager) build(e *entry, n int, p Placement) ([]*Instance, error) {
	if n <= 0 {
		return nil, nil
	}
	t := e.template
	out := make([]*Instance, 0, n)
	for range n {
		ent, err := t.Factory.Create(t, e.group, p)
		if err == nil && ent == nil {
			err = errors.New(errors.ErrorTypeFactory, "factory returned a nil entity")
		}
		if err != nil {
			for _, inst := range out {
				inst.destroy()
			}
			m.logger.Error("instance factory failed",
				zap.String("template", t.ID),
				zap.Int("built", len(out)),
				zap.Error(err))
			return nil, errors.Wrap(err, errors.ErrorTypeFactory, "create instance").
				WithDetail("template", t.ID)
		}
		m.nextID++
		inst := newInstance(m.nextID, t.ID, ent, e.group)
		e.group.join()
		out = append(out, inst)
	}
	e.created += uint64(n)
	m.metrics.AddCreated(t.ID, n)
	return out, nil
}

func (m *Manager) destroyLocked(e *entry, inst *Instance) bool {
	if !inst.destroy() {
		return false
	}
	e.destroyed++
	m.metrics.AddDestroyed(e.template.ID, 1)
	if fn := e.template.Hooks.OnDestroy; fn != nil {
		m.notify(func() { fn(inst) })
	}
	return true
}

func (m *Manager) trackLocked(e *entry, inst *Instance) {
	if !e.template.Tracked() {
		return
	}
	m.tracker.track(e.template.ID, inst, m.clock.Now())
}

func (m *Manager) observe(e *entry) {
	m.metrics.SetQueueLength(e.template.ID, e.queue.Len())
	m.metrics.SetTracked(e.template.ID, m.tracker.len(e.template.ID))
}

func (m *Manager) fireSpawn(e *entry, inst *Instance, grown bool) {
	if fn := e.template.Hooks.OnSpawn; fn != nil {
		m.notify(func() { fn(inst, grown) })
	}
}

func (m *Manager) fireRelease(e *entry, inst *Instance) {
	if fn := e.template.Hooks.OnRelease; fn != nil {
		m.notify(func() { fn(inst) })
	}
}

func (m *Manager) fireExpire(e *entry, inst *Instance) {
	if fn := e.template.Hooks.OnExpire; fn != nil {
		m.notify(func() { fn(inst) })
	}
}

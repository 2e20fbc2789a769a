// Package testutil provides testing utilities for spawnpool
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/spawnpool/pkg/pool"
)

// ErrFactory is returned by factories built with FailAfter.
var ErrFactory = errors.New("factory failure")

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ testing.TB) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// Epoch is the start time used by manual clocks in tests.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Entity is a pool.Entity that records every call made on it.
type Entity struct {
	mu          sync.Mutex
	template    string
	group       string
	live        bool
	destroyed   bool
	activations int
	placements  []pool.Placement
}

// Activate implements pool.Entity.
func (e *Entity) Activate(p pool.Placement) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.live = true
	e.activations++
	e.placements = append(e.placements, p)
}

// Deactivate implements pool.Entity.
func (e *Entity) Deactivate() {
	e.mu.Lock()
	e.live = false
	e.mu.Unlock()
}

// Destroy implements pool.Entity.
func (e *Entity) Destroy() {
	e.mu.Lock()
	e.live = false
	e.destroyed = true
	e.mu.Unlock()
}

// Live reports whether the entity is currently activated.
func (e *Entity) Live() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live
}

// IsDestroyed reports whether Destroy was called.
func (e *Entity) IsDestroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

// Activations returns how many times Activate was called.
func (e *Entity) Activations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activations
}

// LastPlacement returns the placement of the most recent activation.
func (e *Entity) LastPlacement() pool.Placement {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.placements) == 0 {
		return nil
	}
	return e.placements[len(e.placements)-1]
}

// GroupName returns the name of the group the entity was created in.
func (e *Entity) GroupName() string { return e.group }

// Factory builds recording entities and keeps every one it made.
type Factory struct {
	mu        sync.Mutex
	created   []*Entity
	failAfter int
}

// NewFactory returns a Factory that never fails.
func NewFactory() *Factory {
	return &Factory{failAfter: -1}
}

// FailAfter makes the factory return ErrFactory once n more entities have
// been built. A negative n disables failure.
func (f *Factory) FailAfter(n int) *Factory {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 0 {
		f.failAfter = -1
	} else {
		f.failAfter = len(f.created) + n
	}
	return f
}

// Create implements pool.Factory.
func (f *Factory) Create(t pool.Template, g *pool.Group, _ pool.Placement) (pool.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter >= 0 && len(f.created) >= f.failAfter {
		return nil, ErrFactory
	}
	e := &Entity{template: t.ID, group: g.Name()}
	f.created = append(f.created, e)
	return e, nil
}

// Created returns every entity built so far, in creation order.
func (f *Factory) Created() []*Entity {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Entity, len(f.created))
	copy(out, f.created)
	return out
}

// Count returns how many entities were built.
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// Destroyed returns how many built entities were destroyed.
func (f *Factory) Destroyed() int {
	n := 0
	for _, e := range f.Created() {
		if e.IsDestroyed() {
			n++
		}
	}
	return n
}

// EntityOf returns the recording entity behind inst.
func EntityOf(inst *pool.Instance) *Entity {
	e, _ := inst.Entity().(*Entity)
	return e
}

package clock

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/spawnpool/pkg/errors"
)

// Ticker is anything that wants a periodic pass. *pool.Manager satisfies it.
type Ticker interface {
	Tick(now time.Time) int
}

// TickFunc adapts a function to the Ticker interface.
type TickFunc func(now time.Time) int

// Tick calls f(now).
func (f TickFunc) Tick(now time.Time) int {
	return f(now)
}

// Driver invokes a Ticker at a fixed interval until its context ends.
// It is the host-side scheduler; the pool itself stays passive.
type Driver struct {
	target   Ticker
	clock    Clock
	interval time.Duration
	logger   *zap.Logger
	onTick   func(now time.Time, expired int)
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithClock overrides the time source used to stamp each tick.
func WithClock(c Clock) DriverOption {
	return func(d *Driver) {
		d.clock = c
	}
}

// WithLogger sets the driver's logger.
func WithLogger(l *zap.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithOnTick registers a callback invoked after every pass.
func WithOnTick(fn func(now time.Time, expired int)) DriverOption {
	return func(d *Driver) {
		d.onTick = fn
	}
}

// NewDriver creates a Driver for target. interval must be positive.
func NewDriver(target Ticker, interval time.Duration, opts ...DriverOption) (*Driver, error) {
	if target == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "driver target must not be nil")
	}
	if interval <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "driver interval must be positive").
			WithDetail("interval", interval)
	}

	d := &Driver{
		target:   target,
		clock:    System{},
		interval: interval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Interval returns the tick interval.
func (d *Driver) Interval() time.Duration {
	return d.interval
}

// Run ticks until ctx is done. It returns ctx.Err() (never nil).
func (d *Driver) Run(ctx context.Context) error {
	t := time.NewTicker(d.interval)
	defer t.Stop()

	d.logger.Debug("tick driver started", zap.Duration("interval", d.interval))
	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("tick driver stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-t.C:
			d.Step()
		}
	}
}

// Step performs a single pass immediately.
func (d *Driver) Step() int {
	now := d.clock.Now()
	expired := d.target.Tick(now)
	if expired > 0 {
		d.logger.Debug("tick expired instances", zap.Int("expired", expired))
	}
	if d.onTick != nil {
		d.onTick(now, expired)
	}
	return expired
}

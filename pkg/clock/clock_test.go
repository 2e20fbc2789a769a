package clock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/spawnpool/pkg/errors"
)

func TestManualAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManual(start)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(6*time.Second), c.Advance(6*time.Second))

	later := start.Add(time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestSystemClockMovesForward(t *testing.T) {
	var c Clock = System{}
	a := c.Now()
	b := c.Now()
	assert.False(t, b.Before(a))
}

func TestNewDriverValidation(t *testing.T) {
	_, err := NewDriver(nil, time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = NewDriver(TickFunc(func(time.Time) int { return 0 }), -time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "interval must be positive")

	var perr *errors.Error
	require.ErrorAs(t, err, &perr)
	interval, ok := perr.Detail("interval")
	require.True(t, ok)
	assert.Equal(t, -time.Second, interval)
}

func TestDriverStepUsesClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc := NewManual(start)

	var seen time.Time
	var callbacks int
	d, err := NewDriver(
		TickFunc(func(now time.Time) int {
			seen = now
			return 2
		}),
		time.Second,
		WithClock(mc),
		WithLogger(zaptest.NewLogger(t)),
		WithOnTick(func(_ time.Time, expired int) {
			callbacks++
			assert.Equal(t, 2, expired)
		}),
	)
	require.NoError(t, err)

	mc.Advance(3 * time.Second)
	assert.Equal(t, 2, d.Step())
	assert.Equal(t, start.Add(3*time.Second), seen)
	assert.Equal(t, 1, callbacks)
	assert.Equal(t, time.Second, d.Interval())
}

func TestDriverRunStopsOnCancel(t *testing.T) {
	var ticks atomic.Int32
	d, err := NewDriver(TickFunc(func(time.Time) int {
		ticks.Add(1)
		return 0
	}), 5*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop after cancel")
	}
}

package account

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerCoalesces(t *testing.T) {
	var calls atomic.Int32
	d := newDebouncer(30*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Trigger()
	d.Trigger()

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "rapid triggers must collapse into one call")
}

func TestDebouncerTrailingEdge(t *testing.T) {
	var calls atomic.Int32
	d := newDebouncer(40*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load(), "no leading-edge call")
	d.Trigger()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load(), "window restarts on retrigger")

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDebouncerStop(t *testing.T) {
	var calls atomic.Int32
	d := newDebouncer(20*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	// Still usable after a Stop.
	d.Trigger()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleFires(t *testing.T) {
	w := NewDeliveryWorker()
	defer w.Stop()

	var fired atomic.Int32
	w.Schedule("m1", time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, w.Pending())
}

func TestCancelPreventsFiring(t *testing.T) {
	w := NewDeliveryWorker()
	defer w.Stop()

	var fired atomic.Int32
	w.Schedule("m1", 20*time.Millisecond, func() { fired.Add(1) })
	assert.True(t, w.Cancel("m1"))
	assert.False(t, w.Cancel("m1"))

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, 0, w.Pending())
}

func TestRescheduleReplacesTimer(t *testing.T) {
	w := NewDeliveryWorker()
	defer w.Stop()

	var first, second atomic.Int32
	w.Schedule("m1", time.Hour, func() { first.Add(1) })
	w.Schedule("m1", time.Millisecond, func() { second.Add(1) })
	assert.Equal(t, 1, w.Pending())

	require.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
}

func TestStopCancelsEverything(t *testing.T) {
	w := NewDeliveryWorker()

	var fired atomic.Int32
	w.Schedule("m1", 10*time.Millisecond, func() { fired.Add(1) })
	w.Schedule("m2", 10*time.Millisecond, func() { fired.Add(1) })
	w.Stop()

	// Scheduling after Stop is a no-op.
	w.Schedule("m3", time.Millisecond, func() { fired.Add(1) })

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, 0, w.Pending())
}

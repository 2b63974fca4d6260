package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClock_RunsDueTasksInOrder(t *testing.T) {
	clock := NewManualClock(t0)
	var order []string
	clock.Every(3*time.Second, func() { order = append(order, "slow") })
	stopFast := clock.Every(time.Second, func() { order = append(order, "fast") })

	clock.Advance(3 * time.Second)
	assert.Equal(t, []string{"fast", "fast", "slow", "fast"}, order)

	stopFast()
	stopFast()
	clock.Advance(3 * time.Second)
	assert.Equal(t, []string{"fast", "fast", "slow", "fast", "slow"}, order)
	assert.Equal(t, 1, clock.Pending())
	assert.Equal(t, t0.Add(6*time.Second), clock.Now())
}

func TestManualClock_CallbackCanStopItself(t *testing.T) {
	clock := NewManualClock(t0)
	calls := 0
	var stop func()
	stop = clock.Every(time.Second, func() {
		calls++
		if calls == 2 {
			stop()
		}
	})

	clock.Advance(10 * time.Second)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, clock.Pending())
}

func TestTickerScheduler_PostsTicks(t *testing.T) {
	posted := make(chan func(), 8)
	sched := TickerScheduler{Post: func(fn func()) { posted <- fn }}

	ran := 0
	stop := sched.Every(5*time.Millisecond, func() { ran++ })
	defer stop()

	select {
	case fn := <-posted:
		fn()
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no tick posted")
	}
	stop()
	stop()
	assert.Equal(t, 1, ran)
}

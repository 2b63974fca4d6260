package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/workout-session/internal/domain"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type timerProbe struct {
	ticks   []int
	expired int
}

func newProbedTimer(clock *ManualClock, kind domain.TimerKind, seconds int) (*Timer, *timerProbe) {
	p := &timerProbe{}
	tm := NewTimer(kind, seconds, TimerConfig{
		Clock:     clock,
		Scheduler: clock,
		OnTick:    func(t *Timer) { p.ticks = append(p.ticks, t.RemainingSeconds()) },
		OnExpire:  func(*Timer) { p.expired++ },
	})
	return tm, p
}

func TestTimer_ExtendFiresOnceAtExtendedDeadline(t *testing.T) {
	clock := NewManualClock(t0)
	tm, probe := newProbedTimer(clock, domain.TimerRest, 60)
	tm.Start()

	clock.Advance(10 * time.Second)
	assert.Equal(t, 50, tm.RemainingSeconds())
	tm.Extend(30)
	assert.Equal(t, 80, tm.RemainingSeconds())

	clock.Advance(50 * time.Second) // t=60, the original deadline
	assert.Equal(t, 0, probe.expired, "must not fire at the original deadline")

	clock.Advance(29 * time.Second) // t=89
	assert.Equal(t, 0, probe.expired)
	assert.Equal(t, 1, tm.RemainingSeconds())

	clock.Advance(1 * time.Second) // t=90
	assert.Equal(t, 1, probe.expired)
	assert.Equal(t, t0.Add(90*time.Second), clock.Now())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, probe.expired, "terminal callback fires exactly once")
	assert.Equal(t, 0, clock.Pending())
}

func TestTimer_PauseIsIdempotent(t *testing.T) {
	clock := NewManualClock(t0)
	tm, probe := newProbedTimer(clock, domain.TimerRest, 60)
	tm.Start()

	clock.Advance(5 * time.Second)
	tm.Pause()
	assert.Equal(t, 55, tm.RemainingSeconds())

	tm.Pause()
	assert.Equal(t, 55, tm.RemainingSeconds())
	assert.True(t, tm.IsPaused())

	clock.Advance(20 * time.Second)
	assert.Equal(t, 55, tm.RemainingSeconds(), "paused timers do not lose time")
	assert.Len(t, probe.ticks, 5)

	tm.Resume()
	assert.Equal(t, t0.Add(25*time.Second).Add(-5*time.Second), tm.StartedAt(), "resume moves the start forward")
	clock.Advance(54 * time.Second)
	assert.Equal(t, 0, probe.expired)
	clock.Advance(1 * time.Second)
	assert.Equal(t, 1, probe.expired)
}

func TestTimer_ResumeWhenNotPausedIsNoop(t *testing.T) {
	clock := NewManualClock(t0)
	tm, _ := newProbedTimer(clock, domain.TimerRest, 30)
	tm.Start()
	clock.Advance(3 * time.Second)

	started := tm.StartedAt()
	tm.Resume()
	assert.Equal(t, started, tm.StartedAt())
	assert.Equal(t, 1, clock.Pending())
}

func TestTimer_ExtendWhilePaused(t *testing.T) {
	clock := NewManualClock(t0)
	tm, probe := newProbedTimer(clock, domain.TimerRest, 10)
	tm.Start()
	clock.Advance(4 * time.Second)
	tm.Pause()
	tm.Extend(5)
	assert.Equal(t, 11, tm.RemainingSeconds())

	tm.Resume()
	clock.Advance(11 * time.Second)
	assert.Equal(t, 1, probe.expired)
}

func TestTimer_CancelNeverFires(t *testing.T) {
	clock := NewManualClock(t0)
	tm, probe := newProbedTimer(clock, domain.TimerRest, 10)
	tm.Start()
	clock.Advance(3 * time.Second)

	tm.Cancel()
	clock.Advance(time.Minute)

	assert.Equal(t, 0, probe.expired)
	assert.Len(t, probe.ticks, 3)
	assert.Equal(t, 0, clock.Pending())
}

// captureScheduler hands out the tick function so a test can deliver a tick
// that was already queued when the timer got canceled.
type captureScheduler struct {
	fn func()
}

func (s *captureScheduler) Every(_ time.Duration, fn func()) func() {
	s.fn = fn
	return func() {}
}

func TestTimer_LateTickAfterCancelIsIgnored(t *testing.T) {
	clock := NewManualClock(t0)
	sched := &captureScheduler{}
	expired := 0
	tm := NewTimer(domain.TimerRest, 5, TimerConfig{
		Clock:     clock,
		Scheduler: sched,
		OnExpire:  func(*Timer) { expired++ },
	})
	tm.Start()
	require.NotNil(t, sched.fn)

	clock.Advance(5 * time.Second)
	tm.Cancel()
	sched.fn()

	assert.Equal(t, 0, expired)
}

func TestTimer_LateTicksAfterExpiryFireOnce(t *testing.T) {
	clock := NewManualClock(t0)
	sched := &captureScheduler{}
	expired := 0
	tm := NewTimer(domain.TimerRest, 2, TimerConfig{
		Clock:     clock,
		Scheduler: sched,
		OnExpire:  func(*Timer) { expired++ },
	})
	tm.Start()
	clock.Advance(2 * time.Second)
	sched.fn()
	tm.Extend(10)
	sched.fn()
	sched.fn()

	assert.Equal(t, 1, expired)
}

func TestTimer_SetElapsedCountsUp(t *testing.T) {
	clock := NewManualClock(t0)
	tm, probe := newProbedTimer(clock, domain.TimerSetElapsed, 0)
	tm.Start()

	clock.Advance(42 * time.Second)
	snap := tm.Snapshot()
	assert.Equal(t, domain.TimerSetElapsed, snap.Kind)
	assert.Equal(t, 42, snap.ElapsedSeconds)
	assert.Equal(t, 0, snap.RemainingSeconds)
	assert.Equal(t, 0, probe.expired, "elapsed timers never expire")

	tm.Extend(10)
	assert.Equal(t, 0, tm.DurationSeconds())
}

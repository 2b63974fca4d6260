package engine

import (
	"time"

	"alcyxob/workout-session/internal/domain"
)

// DefaultTickInterval is how often a running timer reports.
const DefaultTickInterval = time.Second

// Timer is a cancelable countdown (warmup, rest) or count-up (set elapsed)
// driven by an injected Scheduler. It is not safe for concurrent use; the
// scheduler must deliver ticks on the owner's goroutine.
//
// Remaining time is derived from the clock on every read, never decremented,
// so a late or missed tick cannot make the timer drift.
type Timer struct {
	kind     domain.TimerKind
	clock    Clock
	sched    Scheduler
	interval time.Duration

	durationSeconds int
	startedAt       time.Time
	frozen          time.Duration // elapsed time while paused
	paused          bool
	canceled        bool
	fired           bool
	stop            func()

	onTick   func(*Timer)
	onExpire func(*Timer)
}

// TimerConfig wires a timer to its time sources and callbacks.
type TimerConfig struct {
	Clock     Clock
	Scheduler Scheduler
	Interval  time.Duration
	OnTick    func(*Timer)
	OnExpire  func(*Timer)
}

// NewTimer returns a stopped timer. Call Start to begin ticking.
func NewTimer(kind domain.TimerKind, durationSeconds int, cfg TimerConfig) *Timer {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickInterval
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	return &Timer{
		kind:            kind,
		clock:           cfg.Clock,
		sched:           cfg.Scheduler,
		interval:        cfg.Interval,
		durationSeconds: durationSeconds,
		onTick:          cfg.OnTick,
		onExpire:        cfg.OnExpire,
	}
}

// Start begins ticking from zero elapsed time.
func (t *Timer) Start() {
	t.startFrom(0)
}

// startFrom begins ticking as if elapsed had already passed.
func (t *Timer) startFrom(elapsed time.Duration) {
	t.startedAt = t.clock.Now().Add(-elapsed)
	t.paused = false
	t.stop = t.sched.Every(t.interval, t.tick)
}

// restorePaused puts the timer in the paused state without scheduling.
func (t *Timer) restorePaused(elapsed time.Duration) {
	t.startedAt = t.clock.Now().Add(-elapsed)
	t.frozen = elapsed
	t.paused = true
}

// Pause freezes the remaining time. No-op when already paused or finished.
func (t *Timer) Pause() {
	if t.paused || t.canceled || t.fired {
		return
	}
	t.frozen = t.elapsed()
	t.paused = true
	t.halt()
}

// Resume restarts ticking from the frozen remaining time. No-op unless paused.
func (t *Timer) Resume() {
	if !t.paused || t.canceled || t.fired {
		return
	}
	t.startFrom(t.frozen)
}

// Extend adds delta seconds to the duration, paused or running.
// The remaining time never goes below zero.
func (t *Timer) Extend(deltaSeconds int) {
	if t.canceled || t.fired || !t.countsDown() {
		return
	}
	t.durationSeconds += deltaSeconds
	if floor := t.elapsedSeconds(); t.durationSeconds < floor {
		t.durationSeconds = floor
	}
}

// Cancel stops the timer for good without firing the terminal callback.
func (t *Timer) Cancel() {
	if t.canceled {
		return
	}
	t.canceled = true
	t.halt()
}

// Kind reports what the timer measures.
func (t *Timer) Kind() domain.TimerKind { return t.kind }

// IsPaused reports whether the timer is frozen.
func (t *Timer) IsPaused() bool { return t.paused }

// DurationSeconds is the current (possibly extended) duration.
func (t *Timer) DurationSeconds() int { return t.durationSeconds }

// StartedAt is the effective start; it moves forward on every resume.
func (t *Timer) StartedAt() time.Time { return t.startedAt }

// ElapsedSeconds is the whole seconds the timer has been running.
func (t *Timer) ElapsedSeconds() int { return t.elapsedSeconds() }

// RemainingSeconds is zero for count-up timers.
func (t *Timer) RemainingSeconds() int {
	if !t.countsDown() {
		return 0
	}
	remaining := t.durationSeconds - t.elapsedSeconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Snapshot returns the persisted projection of the timer.
func (t *Timer) Snapshot() domain.TimerSnapshot {
	return domain.TimerSnapshot{
		Kind:             t.kind,
		DurationSeconds:  t.durationSeconds,
		RemainingSeconds: t.RemainingSeconds(),
		ElapsedSeconds:   t.elapsedSeconds(),
		IsPaused:         t.paused,
	}
}

func (t *Timer) tick() {
	// Ticks already queued on the loop can arrive after Cancel or Pause.
	if t.canceled || t.fired || t.paused {
		return
	}
	if t.onTick != nil {
		t.onTick(t)
	}
	if t.countsDown() && t.RemainingSeconds() == 0 && !t.fired && !t.canceled {
		t.fired = true
		t.halt()
		if t.onExpire != nil {
			t.onExpire(t)
		}
	}
}

func (t *Timer) halt() {
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
}

func (t *Timer) countsDown() bool {
	return t.kind != domain.TimerSetElapsed
}

func (t *Timer) elapsed() time.Duration {
	if t.paused {
		return t.frozen
	}
	d := t.clock.Now().Sub(t.startedAt)
	if d < 0 {
		return 0
	}
	return d
}

func (t *Timer) elapsedSeconds() int {
	return int(t.elapsed() / time.Second)
}

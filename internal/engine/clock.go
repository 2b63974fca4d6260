package engine

import (
	"sort"
	"sync"
	"time"
)

// Clock supplies the current time to the engine and its timers.
type Clock interface {
	Now() time.Time
}

// Scheduler delivers periodic callbacks. The returned stop function must be
// safe to call more than once; after it returns no new callback starts.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// TickerScheduler runs each schedule on its own time.Ticker goroutine.
// When Post is set every tick is handed to it instead of being called
// directly, so a host can run ticks on the same loop as user actions.
type TickerScheduler struct {
	Post func(fn func())
}

// Every starts a ticker that calls fn at the given interval until stopped.
func (s TickerScheduler) Every(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if s.Post != nil {
					s.Post(fn)
				} else {
					fn()
				}
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

// ManualClock is a virtual clock and scheduler. Time only moves when Advance
// is called, and due callbacks run synchronously in due-time order, which
// makes timer behaviour fully deterministic in tests.
type ManualClock struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	id       int
	interval time.Duration
	next     time.Time
	fn       func()
	stopped  bool
}

// NewManualClock returns a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start.UTC()}
}

// Now returns the virtual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Every registers fn to run each interval of virtual time.
func (c *ManualClock) Every(interval time.Duration, fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	task := &manualTask{id: c.seq, interval: interval, next: c.now.Add(interval), fn: fn}
	c.tasks = append(c.tasks, task)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		task.stopped = true
	}
}

// Advance moves virtual time forward by d, running every callback that
// becomes due on the way. Callbacks may register or stop other schedules.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		task := c.nextDueLocked(target)
		if task == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = task.next
		task.next = task.next.Add(task.interval)
		fn := task.fn
		c.mu.Unlock()

		fn()
	}
}

// Pending returns the number of live schedules.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compactLocked()
	return len(c.tasks)
}

func (c *ManualClock) nextDueLocked(target time.Time) *manualTask {
	c.compactLocked()
	sort.SliceStable(c.tasks, func(i, j int) bool {
		if c.tasks[i].next.Equal(c.tasks[j].next) {
			return c.tasks[i].id < c.tasks[j].id
		}
		return c.tasks[i].next.Before(c.tasks[j].next)
	})
	if len(c.tasks) == 0 || c.tasks[0].next.After(target) {
		return nil
	}
	return c.tasks[0]
}

func (c *ManualClock) compactLocked() {
	live := c.tasks[:0]
	for _, t := range c.tasks {
		if !t.stopped {
			live = append(live, t)
		}
	}
	c.tasks = live
}

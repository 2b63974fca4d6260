package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"alcyxob/workout-session/internal/domain"
	"alcyxob/workout-session/internal/engine"
)

const (
	hostQueueSize    = 64
	subscriberBuffer = 16
)

// sessionHost owns one running engine. User actions and timer ticks are
// both posted to cmds and executed one at a time by the loop goroutine, so
// the engine is never touched concurrently.
type sessionHost struct {
	clientID    string
	workoutID   string
	sessionDate string
	sessionID   string

	eng      *engine.Engine // loop goroutine only, once started
	finished bool           // loop goroutine only

	writer       *snapshotWriter
	events       *eventHub
	writeTimeout time.Duration
	onFinished   func(domain.SessionSnapshot)
	log          zerolog.Logger

	cmds     chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// loopScheduler hands every tick of the inner scheduler to the host loop.
type loopScheduler struct {
	inner engine.Scheduler
	post  func(fn func()) bool
}

func (s loopScheduler) Every(interval time.Duration, fn func()) func() {
	return s.inner.Every(interval, func() { s.post(fn) })
}

// engineOptions wires base options to this host.
func (h *sessionHost) engineOptions(base engine.Options) engine.Options {
	opts := base
	inner := base.Scheduler
	if inner == nil {
		inner = engine.TickerScheduler{}
	}
	opts.Scheduler = loopScheduler{inner: inner, post: h.post}
	opts.OnSnapshot = h.handleSnapshot
	opts.OnTick = h.handleTick
	opts.OnSuspend = h.handleSuspend
	return opts
}

// attach binds the engine and starts the loop. Nothing may touch eng from
// the calling goroutine afterwards.
func (h *sessionHost) attach(eng *engine.Engine) {
	h.eng = eng
	h.sessionID = eng.SessionID()
	h.log = log.With().
		Str("clientId", h.clientID).
		Str("sessionId", h.sessionID).
		Logger()
	go h.loop()
}

func (h *sessionHost) loop() {
	defer close(h.done)
	for {
		select {
		case fn := <-h.cmds:
			fn()
		case <-h.quit:
			return
		}
	}
}

// post queues fn on the loop. It reports false once the host is stopping.
func (h *sessionHost) post(fn func()) bool {
	select {
	case <-h.quit:
		return false
	default:
	}
	select {
	case h.cmds <- fn:
		return true
	case <-h.quit:
		return false
	}
}

// do runs fn on the loop and returns the snapshot taken right after it.
func (h *sessionHost) do(ctx context.Context, fn func(*engine.Engine) error) (domain.SessionSnapshot, error) {
	type result struct {
		snap domain.SessionSnapshot
		err  error
	}
	reply := make(chan result, 1)
	ok := h.post(func() {
		err := fn(h.eng)
		reply <- result{snap: h.eng.Snapshot(), err: err}
	})
	if !ok {
		return domain.SessionSnapshot{}, ErrNoActiveSession
	}
	select {
	case r := <-reply:
		return r.snap, r.err
	case <-h.done:
		return domain.SessionSnapshot{}, ErrNoActiveSession
	case <-ctx.Done():
		return domain.SessionSnapshot{}, ctx.Err()
	}
}

// stop closes the engine, ends the loop and drains the writer.
func (h *sessionHost) stop(ctx context.Context) {
	h.stopOnce.Do(func() {
		if h.eng != nil {
			_, _ = h.do(ctx, func(e *engine.Engine) error {
				e.Close()
				return nil
			})
		}
		close(h.quit)
		if h.eng != nil {
			select {
			case <-h.done:
			case <-ctx.Done():
			}
		}
		h.events.close()
		if err := h.writer.Close(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Snapshot writer did not drain before shutdown")
		}
	})
}

// --- Engine callbacks (loop goroutine) ---

func (h *sessionHost) handleSnapshot(snap domain.SessionSnapshot) {
	h.writer.Submit(snap)
	h.events.publish(Event{Type: EventSnapshot, Snapshot: &snap})
	if snap.Phase.IsTerminal() && !h.finished {
		h.finished = true
		h.log.Info().
			Str("phase", string(snap.Phase)).
			Int("completedSets", snap.CompletedSetCount).
			Int("totalSets", snap.TotalSetCount).
			Msg("Workout session finished")
		if h.onFinished != nil {
			h.onFinished(snap)
		}
	}
}

func (h *sessionHost) handleTick(ts domain.TimerSnapshot) {
	h.events.publish(Event{Type: EventTick, Timer: &ts})
}

// handleSuspend blocks until the suspension snapshot is stored.
func (h *sessionHost) handleSuspend(snap domain.SessionSnapshot) {
	h.writer.Submit(snap)
	ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
	defer cancel()
	if err := h.writer.Flush(ctx); err != nil {
		h.log.Error().Err(err).Msg("Failed to store session before leaving; resume will use an older snapshot")
		return
	}
	h.log.Info().Str("phase", string(snap.Phase)).Msg("Workout session left for later")
}

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"alcyxob/workout-session/internal/domain"
)

var errWriterClosed = errors.New("snapshot writer closed")

// snapshotWriter persists the snapshots of one session on its own goroutine.
// Only the newest pending snapshot is kept; older ones are superseded and
// never written.
type snapshotWriter struct {
	save    func(ctx context.Context, snap domain.SessionSnapshot) error
	timeout time.Duration
	log     zerolog.Logger

	mu        sync.Mutex
	pending   *domain.SessionSnapshot
	submitted uint64
	written   uint64
	lastErr   error
	progress  chan struct{} // closed and replaced after every write

	wake     chan struct{}
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSnapshotWriter(save func(context.Context, domain.SessionSnapshot) error, timeout time.Duration, logger zerolog.Logger) *snapshotWriter {
	w := &snapshotWriter{
		save:     save,
		timeout:  timeout,
		log:      logger,
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// Submit queues snap, replacing anything not yet written. Never blocks.
func (w *snapshotWriter) Submit(snap domain.SessionSnapshot) {
	w.mu.Lock()
	w.pending = &snap
	w.submitted++
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Flush waits until everything submitted before the call has been written
// and returns the error of the last write.
func (w *snapshotWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.submitted
	w.mu.Unlock()

	for {
		w.mu.Lock()
		if w.written >= target {
			err := w.lastErr
			w.mu.Unlock()
			return err
		}
		progress := w.progress
		w.mu.Unlock()

		select {
		case <-progress:
		case <-w.done:
			w.mu.Lock()
			caughtUp, err := w.written >= target, w.lastErr
			w.mu.Unlock()
			if caughtUp {
				return err
			}
			return errWriterClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close writes whatever is pending and stops the writer.
func (w *snapshotWriter) Close(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.quit) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *snapshotWriter) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.writePending()
		case <-w.quit:
			w.writePending()
			return
		}
	}
}

func (w *snapshotWriter) writePending() {
	w.mu.Lock()
	snap, seq := w.pending, w.submitted
	w.pending = nil
	w.mu.Unlock()
	if snap == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	err := w.save(ctx, *snap)
	cancel()
	if err != nil {
		w.log.Error().Err(err).
			Str("sessionId", snap.SessionID).
			Str("phase", string(snap.Phase)).
			Msg("Failed to persist session snapshot")
	}

	w.mu.Lock()
	w.written = seq
	w.lastErr = err
	close(w.progress)
	w.progress = make(chan struct{})
	w.mu.Unlock()
}

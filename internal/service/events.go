package service

import (
	"sync"

	"alcyxob/workout-session/internal/domain"
)

// Event types pushed to live subscribers.
const (
	EventSnapshot = "snapshot"
	EventTick     = "tick"
)

// Event is a live update of a running session: a committed snapshot or a
// timer tick.
type Event struct {
	Type     string                  `json:"type"`
	Snapshot *domain.SessionSnapshot `json:"snapshot,omitempty"`
	Timer    *domain.TimerSnapshot   `json:"timer,omitempty"`
}

// eventHub fans events out to subscribers without ever blocking the
// publisher. A subscriber that falls behind misses events.
type eventHub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[int]chan Event)}
}

func (h *eventHub) subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
}

func (h *eventHub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *eventHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// close ends every subscription.
func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

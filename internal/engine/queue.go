package engine

import (
	"fmt"

	"alcyxob/workout-session/internal/domain"
)

// Queue is the mutable execution order of a session's entries.
// Reordering changes positions only; membership is fixed at creation.
type Queue struct {
	entries []domain.QueueEntry
}

// NewQueue builds a queue in plan order.
func NewQueue(plan []domain.WorkoutPlanEntry) *Queue {
	q := &Queue{entries: make([]domain.QueueEntry, len(plan))}
	for i, e := range plan {
		q.entries[i] = domain.QueueEntry{WorkoutPlanEntry: e, QueuePosition: i}
	}
	return q
}

// restoreQueue rebuilds a queue from persisted entries, already in order.
func restoreQueue(entries []domain.QueueEntry) *Queue {
	q := &Queue{entries: make([]domain.QueueEntry, len(entries))}
	copy(q.entries, entries)
	q.renumber()
	return q
}

// Len returns the number of entries.
func (q *Queue) Len() int { return len(q.entries) }

// EntryAt returns the entry at a queue position.
func (q *Queue) EntryAt(pos int) (domain.QueueEntry, error) {
	if pos < 0 || pos >= len(q.entries) {
		return domain.QueueEntry{}, fmt.Errorf("%w: queue position %d out of range", ErrInvalidTarget, pos)
	}
	return q.entries[pos], nil
}

// IndexOf returns the current position of an entry.
func (q *Queue) IndexOf(entryID string) (int, error) {
	for i, e := range q.entries {
		if e.EntryID == entryID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: entry %q is not in the queue", ErrInvalidTarget, entryID)
}

// MoveToEnd relocates an entry to the tail, keeping the relative order of
// the others. Moving the last entry leaves the order unchanged.
func (q *Queue) MoveToEnd(entryID string) error {
	idx, err := q.IndexOf(entryID)
	if err != nil {
		return err
	}
	moved := q.entries[idx]
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	q.entries = append(q.entries, moved)
	q.renumber()
	return nil
}

// Entries returns a copy of the queue in execution order.
func (q *Queue) Entries() []domain.QueueEntry {
	out := make([]domain.QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// TotalSets sums the target set counts of every entry.
func (q *Queue) TotalSets() int {
	total := 0
	for _, e := range q.entries {
		total += e.TargetSets
	}
	return total
}

func (q *Queue) renumber() {
	for i := range q.entries {
		q.entries[i].QueuePosition = i
	}
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/workout-session/internal/domain"
)

func queueIDs(q *Queue) []string {
	ids := make([]string, 0, q.Len())
	for _, e := range q.Entries() {
		ids = append(ids, e.EntryID)
	}
	return ids
}

func TestQueue_MoveToEnd(t *testing.T) {
	tests := []struct {
		name  string
		move  string
		order []string
	}{
		{name: "head goes to tail", move: "A", order: []string{"B", "C", "D", "A"}},
		{name: "middle keeps relative order", move: "C", order: []string{"A", "B", "D", "C"}},
		{name: "last entry stays put", move: "D", order: []string{"A", "B", "C", "D"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue(testPlan(3, 3, 3, 3).Entries)
			require.NoError(t, q.MoveToEnd(tt.move))
			assert.Equal(t, tt.order, queueIDs(q))
			for i, e := range q.Entries() {
				assert.Equal(t, i, e.QueuePosition)
			}
			assert.Equal(t, 12, q.TotalSets(), "reordering never changes membership")
		})
	}
}

func TestQueue_UnknownEntry(t *testing.T) {
	q := NewQueue(testPlan(1, 1).Entries)

	assert.ErrorIs(t, q.MoveToEnd("nope"), ErrInvalidTarget)
	_, err := q.IndexOf("nope")
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, err = q.EntryAt(5)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestQueue_KeepsPlanPosition(t *testing.T) {
	q := NewQueue(testPlan(2, 2, 2).Entries)
	require.NoError(t, q.MoveToEnd("A"))

	e, err := q.EntryAt(2)
	require.NoError(t, err)
	assert.Equal(t, "A", e.EntryID)
	assert.Equal(t, 0, e.Position, "plan position is not the queue position")
	assert.Equal(t, 2, e.QueuePosition)
}

func TestQueue_EntriesIsACopy(t *testing.T) {
	q := NewQueue(testPlan(2).Entries)
	entries := q.Entries()
	entries[0].TargetSets = 99

	e, _ := q.EntryAt(0)
	assert.Equal(t, 2, e.TargetSets)
	assert.IsType(t, domain.QueueEntry{}, e)
}

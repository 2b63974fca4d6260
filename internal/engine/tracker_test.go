package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/workout-session/internal/domain"
)

func trackerFor(t *testing.T, sets int) (*Tracker, domain.QueueEntry) {
	t.Helper()
	q := NewQueue(testPlan(sets).Entries)
	entry, err := q.EntryAt(0)
	require.NoError(t, err)
	tr := NewTracker()
	tr.EnsureEntry(entry)
	return tr, entry
}

func TestTracker_EnsureEntryIsIdempotent(t *testing.T) {
	tr, entry := trackerFor(t, 3)
	_, err := tr.BeginSet("A", 0, t0)
	require.NoError(t, err)

	tr.EnsureEntry(entry)

	records := tr.Records()
	require.Len(t, records, 3)
	assert.Equal(t, domain.SetActive, records[0].Status, "existing records are left alone")
	for _, r := range records {
		assert.Equal(t, 20.0, r.TargetWeight)
		assert.Equal(t, 10, r.TargetReps)
		assert.Equal(t, 30, r.TargetRestSeconds)
	}
}

func TestTracker_SingleActiveSet(t *testing.T) {
	tr, _ := trackerFor(t, 3)

	first, err := tr.BeginSet("A", 0, t0)
	require.NoError(t, err)

	again, err := tr.BeginSet("A", 0, t0)
	require.NoError(t, err, "beginning the active set again is a no-op")
	assert.Same(t, first, again)

	_, err = tr.BeginSet("A", 1, t0)
	assert.ErrorIs(t, err, ErrSetAlreadyActive)

	_, err = tr.BeginSet("A", 7, t0)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestTracker_CompleteSetFallsBackToTargets(t *testing.T) {
	tr, _ := trackerFor(t, 2)
	_, err := tr.BeginSet("A", 0, t0)
	require.NoError(t, err)

	reps := 7
	rec, err := tr.CompleteSet(SetResult{Reps: &reps}, t0)
	require.NoError(t, err)

	assert.Equal(t, domain.SetCompleted, rec.Status)
	require.NotNil(t, rec.ActualWeight)
	assert.Equal(t, 20.0, *rec.ActualWeight)
	assert.Equal(t, 7, *rec.ActualReps)
	assert.Equal(t, 30, *rec.ActualRestSeconds)
	assert.Equal(t, 1, tr.CompletedCount())

	_, err = tr.CompleteSet(SetResult{}, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition, "nothing is active any more")
}

func TestTracker_CompleteSetRejectsNegativeValues(t *testing.T) {
	tr, _ := trackerFor(t, 1)
	_, err := tr.BeginSet("A", 0, t0)
	require.NoError(t, err)

	weight := -2.5
	_, err = tr.CompleteSet(SetResult{Weight: &weight}, t0)
	assert.ErrorIs(t, err, ErrInvalidValue)

	rec, ok := tr.Active()
	require.True(t, ok, "a rejected completion leaves the set active")
	assert.Nil(t, rec.ActualWeight)
}

func TestTracker_CompletedRecordsAreImmutable(t *testing.T) {
	tr, _ := trackerFor(t, 2)
	_, err := tr.BeginSet("A", 0, t0)
	require.NoError(t, err)
	_, err = tr.CompleteSet(SetResult{}, t0)
	require.NoError(t, err)

	assert.ErrorIs(t, tr.AdjustWeight("A", 0, 40), ErrRecordImmutable)
	assert.ErrorIs(t, tr.AdjustReps("A", 0, 4), ErrRecordImmutable)
	assert.ErrorIs(t, tr.AdjustRestTime("A", 0, 10), ErrRecordImmutable)
	assert.ErrorIs(t, tr.SkipSet("A", 0, t0), ErrRecordImmutable)
	_, err = tr.BeginSet("A", 0, t0)
	assert.ErrorIs(t, err, ErrRecordImmutable)

	rec, _ := tr.Record("A", 0)
	assert.Equal(t, 20.0, rec.TargetWeight)
}

func TestTracker_Adjust(t *testing.T) {
	tr, _ := trackerFor(t, 2)

	require.NoError(t, tr.AdjustWeight("A", 1, 42.5))
	require.NoError(t, tr.AdjustReps("A", 1, 6))
	require.NoError(t, tr.AdjustRestTime("A", 1, 0))

	rec, _ := tr.Record("A", 1)
	assert.Equal(t, 42.5, rec.TargetWeight)
	assert.Equal(t, 6, rec.TargetReps)
	assert.Equal(t, 0, rec.TargetRestSeconds)

	assert.ErrorIs(t, tr.AdjustWeight("A", 1, -1), ErrInvalidValue)
	assert.ErrorIs(t, tr.AdjustReps("A", 1, -1), ErrInvalidValue)
	assert.ErrorIs(t, tr.AdjustRestTime("A", 1, -1), ErrInvalidValue)
	assert.ErrorIs(t, tr.AdjustWeight("B", 0, 1), ErrInvalidTarget)
}

func TestTracker_SkippedSetsAreClosedUntilReopened(t *testing.T) {
	tr, entry := trackerFor(t, 3)
	require.NoError(t, tr.SkipSet("A", 1, t0))

	assert.Equal(t, 0, tr.CompletedCount(), "skipped sets never count as completed")

	next, ok := tr.NextOpen(entry, 0)
	require.True(t, ok)
	assert.Equal(t, 2, next)

	next, ok = tr.NextOpen(entry, 2)
	require.True(t, ok)
	assert.Equal(t, 0, next, "search wraps to earlier sets")

	idx, ok := tr.FirstSkipped(entry)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	tr.Reopen("A", 1)
	rec, _ := tr.Record("A", 1)
	assert.Equal(t, domain.SetPending, rec.Status)
	assert.Nil(t, rec.CompletedAt)
}

func TestTracker_MissingRecordsCountAsOpen(t *testing.T) {
	q := NewQueue(testPlan(1, 2).Entries)
	b, _ := q.EntryAt(1)
	tr := NewTracker()

	idx, ok := tr.FirstOpen(b)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Empty(t, tr.Records())
}

func TestTracker_DemoteActive(t *testing.T) {
	tr, _ := trackerFor(t, 2)
	_, err := tr.BeginSet("A", 1, t0)
	require.NoError(t, err)

	tr.DemoteActive()

	_, ok := tr.Active()
	assert.False(t, ok)
	rec, _ := tr.Record("A", 1)
	assert.Equal(t, domain.SetPending, rec.Status)
	assert.Nil(t, rec.StartedAt)
}

func TestTracker_RecordsAreDeepCopies(t *testing.T) {
	tr, _ := trackerFor(t, 1)
	_, err := tr.BeginSet("A", 0, t0)
	require.NoError(t, err)
	_, err = tr.CompleteSet(SetResult{}, t0)
	require.NoError(t, err)

	records := tr.Records()
	*records[0].ActualWeight = 999

	rec, _ := tr.Record("A", 0)
	assert.Equal(t, 20.0, *rec.ActualWeight)
}

func TestClampSetIndex(t *testing.T) {
	assert.Equal(t, 0, ClampSetIndex(-3, 4))
	assert.Equal(t, 2, ClampSetIndex(2, 4))
	assert.Equal(t, 3, ClampSetIndex(9, 4))
}

package engine

import (
	"fmt"
	"time"

	"alcyxob/workout-session/internal/domain"
)

// SetResult carries what the user actually did. Nil fields fall back to the
// set's targets.
type SetResult struct {
	Weight      *float64 `json:"weight,omitempty"`
	Reps        *int     `json:"reps,omitempty"`
	RestSeconds *int     `json:"restSeconds,omitempty"`
}

type recordKey struct {
	entryID  string
	setIndex int
}

// Tracker owns every SetRecord of a session. Records are only ever
// transitioned, never removed.
type Tracker struct {
	records []domain.SetRecord
	index   map[recordKey]int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{index: make(map[recordKey]int)}
}

func restoreTracker(records []domain.SetRecord) *Tracker {
	t := NewTracker()
	for _, r := range records {
		t.index[recordKey{r.EntryID, r.SetIndex}] = len(t.records)
		t.records = append(t.records, cloneRecord(r))
	}
	return t
}

// EnsureEntry creates pending records for every set of the entry the first
// time it becomes current.
func (t *Tracker) EnsureEntry(e domain.QueueEntry) {
	for i := 0; i < e.TargetSets; i++ {
		key := recordKey{e.EntryID, i}
		if _, ok := t.index[key]; ok {
			continue
		}
		t.index[key] = len(t.records)
		t.records = append(t.records, domain.SetRecord{
			EntryID:           e.EntryID,
			SetIndex:          i,
			Status:            domain.SetPending,
			TargetWeight:      e.TargetWeight,
			TargetReps:        e.TargetReps,
			TargetRestSeconds: e.RestSeconds,
		})
	}
}

// Record looks up a record. Missing means the entry never became current.
func (t *Tracker) Record(entryID string, setIndex int) (*domain.SetRecord, bool) {
	i, ok := t.index[recordKey{entryID, setIndex}]
	if !ok {
		return nil, false
	}
	return &t.records[i], true
}

// Active returns the single active record, if any.
func (t *Tracker) Active() (*domain.SetRecord, bool) {
	for i := range t.records {
		if t.records[i].Status == domain.SetActive {
			return &t.records[i], true
		}
	}
	return nil, false
}

// BeginSet activates a record. Beginning the set that is already active
// returns it unchanged.
func (t *Tracker) BeginSet(entryID string, setIndex int, now time.Time) (*domain.SetRecord, error) {
	rec, ok := t.Record(entryID, setIndex)
	if !ok {
		return nil, fmt.Errorf("%w: no set %d for entry %q", ErrInvalidTarget, setIndex, entryID)
	}
	if active, ok := t.Active(); ok {
		if active == rec {
			return rec, nil
		}
		return active, fmt.Errorf("%w: set %d of entry %q", ErrSetAlreadyActive, active.SetIndex, active.EntryID)
	}
	if rec.Status == domain.SetCompleted {
		return nil, fmt.Errorf("%w: set %d of entry %q is completed", ErrRecordImmutable, setIndex, entryID)
	}
	rec.Status = domain.SetActive
	started := now
	rec.StartedAt = &started
	rec.CompletedAt = nil
	return rec, nil
}

// CompleteSet closes the active record with the actual values.
func (t *Tracker) CompleteSet(res SetResult, now time.Time) (*domain.SetRecord, error) {
	rec, ok := t.Active()
	if !ok {
		return nil, fmt.Errorf("%w: no active set", ErrInvalidTransition)
	}
	weight, reps, rest := rec.TargetWeight, rec.TargetReps, rec.TargetRestSeconds
	if res.Weight != nil {
		weight = *res.Weight
	}
	if res.Reps != nil {
		reps = *res.Reps
	}
	if res.RestSeconds != nil {
		rest = *res.RestSeconds
	}
	if weight < 0 || reps < 0 || rest < 0 {
		return nil, fmt.Errorf("%w: actual values must not be negative", ErrInvalidValue)
	}
	rec.ActualWeight = &weight
	rec.ActualReps = &reps
	rec.ActualRestSeconds = &rest
	rec.Status = domain.SetCompleted
	done := now
	rec.CompletedAt = &done
	return rec, nil
}

// SkipSet closes an open record without counting it as completed.
func (t *Tracker) SkipSet(entryID string, setIndex int, now time.Time) error {
	rec, ok := t.Record(entryID, setIndex)
	if !ok {
		return fmt.Errorf("%w: no set %d for entry %q", ErrInvalidTarget, setIndex, entryID)
	}
	if !rec.Status.IsOpen() {
		return fmt.Errorf("%w: set %d of entry %q is %s", ErrRecordImmutable, setIndex, entryID, rec.Status)
	}
	rec.Status = domain.SetSkipped
	done := now
	rec.CompletedAt = &done
	return nil
}

// Reopen turns a skipped record back into a pending one.
func (t *Tracker) Reopen(entryID string, setIndex int) {
	if rec, ok := t.Record(entryID, setIndex); ok && rec.Status == domain.SetSkipped {
		rec.Status = domain.SetPending
		rec.CompletedAt = nil
	}
}

// DemoteActive returns an abandoned active record to pending so it stays
// available for a later return.
func (t *Tracker) DemoteActive() {
	if rec, ok := t.Active(); ok {
		rec.Status = domain.SetPending
		rec.StartedAt = nil
	}
}

// AdjustWeight edits the target weight of a pending or active record.
func (t *Tracker) AdjustWeight(entryID string, setIndex int, value float64) error {
	if value < 0 {
		return fmt.Errorf("%w: weight %v", ErrInvalidValue, value)
	}
	return t.adjust(entryID, setIndex, func(r *domain.SetRecord) { r.TargetWeight = value })
}

// AdjustReps edits the target reps of a pending or active record.
func (t *Tracker) AdjustReps(entryID string, setIndex int, value int) error {
	if value < 0 {
		return fmt.Errorf("%w: reps %d", ErrInvalidValue, value)
	}
	return t.adjust(entryID, setIndex, func(r *domain.SetRecord) { r.TargetReps = value })
}

// AdjustRestTime edits the rest that follows a pending or active record.
func (t *Tracker) AdjustRestTime(entryID string, setIndex int, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: rest %ds", ErrInvalidValue, seconds)
	}
	return t.adjust(entryID, setIndex, func(r *domain.SetRecord) { r.TargetRestSeconds = seconds })
}

func (t *Tracker) adjust(entryID string, setIndex int, apply func(*domain.SetRecord)) error {
	rec, ok := t.Record(entryID, setIndex)
	if !ok {
		return fmt.Errorf("%w: no set %d for entry %q", ErrInvalidTarget, setIndex, entryID)
	}
	if !rec.Status.IsOpen() {
		return fmt.Errorf("%w: set %d of entry %q is %s", ErrRecordImmutable, setIndex, entryID, rec.Status)
	}
	apply(rec)
	return nil
}

// CompletedCount counts completed records. Skipped sets are excluded.
func (t *Tracker) CompletedCount() int {
	n := 0
	for _, r := range t.records {
		if r.Status == domain.SetCompleted {
			n++
		}
	}
	return n
}

// isOpen treats sets without a record as pending.
func (t *Tracker) isOpen(entryID string, setIndex int) bool {
	rec, ok := t.Record(entryID, setIndex)
	return !ok || rec.Status.IsOpen()
}

// FirstOpen returns the lowest open set index of an entry.
func (t *Tracker) FirstOpen(e domain.QueueEntry) (int, bool) {
	for i := 0; i < e.TargetSets; i++ {
		if t.isOpen(e.EntryID, i) {
			return i, true
		}
	}
	return 0, false
}

// NextOpen returns the next open set after the given index, wrapping around
// to earlier sets of the same entry.
func (t *Tracker) NextOpen(e domain.QueueEntry, after int) (int, bool) {
	for step := 1; step <= e.TargetSets; step++ {
		i := (after + step) % e.TargetSets
		if t.isOpen(e.EntryID, i) {
			return i, true
		}
	}
	return 0, false
}

// FirstSkipped returns the lowest skipped set index of an entry.
func (t *Tracker) FirstSkipped(e domain.QueueEntry) (int, bool) {
	for i := 0; i < e.TargetSets; i++ {
		if rec, ok := t.Record(e.EntryID, i); ok && rec.Status == domain.SetSkipped {
			return i, true
		}
	}
	return 0, false
}

// Records returns deep copies of every record in creation order.
func (t *Tracker) Records() []domain.SetRecord {
	out := make([]domain.SetRecord, len(t.records))
	for i, r := range t.records {
		out[i] = cloneRecord(r)
	}
	return out
}

// ClampSetIndex keeps a set index inside [0, targetSets-1].
func ClampSetIndex(idx, targetSets int) int {
	if idx < 0 {
		return 0
	}
	if idx > targetSets-1 {
		return targetSets - 1
	}
	return idx
}

func cloneRecord(r domain.SetRecord) domain.SetRecord {
	out := r
	if r.ActualWeight != nil {
		v := *r.ActualWeight
		out.ActualWeight = &v
	}
	if r.ActualReps != nil {
		v := *r.ActualReps
		out.ActualReps = &v
	}
	if r.ActualRestSeconds != nil {
		v := *r.ActualRestSeconds
		out.ActualRestSeconds = &v
	}
	if r.StartedAt != nil {
		v := *r.StartedAt
		out.StartedAt = &v
	}
	if r.CompletedAt != nil {
		v := *r.CompletedAt
		out.CompletedAt = &v
	}
	return out
}

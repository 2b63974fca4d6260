package engine

import (
	"time"

	"alcyxob/workout-session/internal/domain"
)

// Snapshot returns an immutable projection of the whole session.
func (e *Engine) Snapshot() domain.SessionSnapshot {
	s := domain.SessionSnapshot{
		SchemaVersion:        domain.SessionSnapshotVersion,
		SessionID:            e.sessionID,
		PlanRef:              e.planRef,
		Phase:                e.phase,
		Queue:                e.queue.Entries(),
		CurrentQueuePosition: e.pos,
		CurrentSetIndex:      e.setIndex,
		Records:              e.tracker.Records(),
		CompletedSetCount:    e.tracker.CompletedCount(),
		TotalSetCount:        e.totalSets,
		IsFullyCompleted:     e.fullyCompleted,
		FinishedEarly:        e.finishedEarly,
		StartedAt:            e.startedAt,
		LastMutatedAt:        e.lastMutatedAt,
	}
	if e.timer != nil {
		ts := e.timer.Snapshot()
		s.Timer = &ts
	}
	return s
}

// Resume rehydrates a session from a persisted snapshot. A snapshot that
// fails validation yields ErrSnapshotCorrupt and no engine; the host should
// then create a fresh session from the plan.
//
// Running countdowns are restored according to opts.ResumePolicy. A rest or
// warmup that ran out while suspended is expired immediately.
func Resume(snap domain.SessionSnapshot, opts Options) (*Engine, error) {
	if err := ValidateSnapshot(snap); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	e := &Engine{
		opts:           opts,
		sessionID:      snap.SessionID,
		planRef:        snap.PlanRef,
		phase:          snap.Phase,
		queue:          restoreQueue(snap.Queue),
		pos:            snap.CurrentQueuePosition,
		setIndex:       snap.CurrentSetIndex,
		tracker:        restoreTracker(snap.Records),
		totalSets:      snap.TotalSetCount,
		fullyCompleted: snap.IsFullyCompleted,
		finishedEarly:  snap.FinishedEarly,
		startedAt:      snap.StartedAt,
		lastMutatedAt:  snap.LastMutatedAt,
	}
	if snap.Timer == nil {
		return e, nil
	}

	ts := *snap.Timer
	gap := 0
	if opts.ResumePolicy == ResumeElapsed && !ts.IsPaused {
		if d := opts.Clock.Now().Sub(snap.LastMutatedAt); d > 0 {
			gap = int(d / time.Second)
		}
	}

	t := NewTimer(ts.Kind, ts.DurationSeconds, e.timerConfig())
	e.timer = t
	elapsed := ts.ElapsedSeconds + gap
	if ts.Kind != domain.TimerSetElapsed {
		elapsed = ts.DurationSeconds - ts.RemainingSeconds + gap
		if elapsed >= ts.DurationSeconds {
			// Ran out while suspended.
			t.fired = true
			e.handleExpiry(t)
			return e, nil
		}
	}
	if ts.IsPaused {
		t.restorePaused(time.Duration(elapsed) * time.Second)
	} else {
		t.startFrom(time.Duration(elapsed) * time.Second)
	}
	return e, nil
}

// ValidateSnapshot checks a snapshot against every session invariant.
func ValidateSnapshot(s domain.SessionSnapshot) error {
	if s.SchemaVersion != domain.SessionSnapshotVersion {
		return corruptf("unsupported schema version %d", s.SchemaVersion)
	}
	if s.SessionID == "" {
		return corruptf("missing session id")
	}
	if !s.Phase.IsKnown() {
		return corruptf("unknown phase %q", s.Phase)
	}
	if len(s.Queue) == 0 {
		return corruptf("empty queue")
	}

	entries := make(map[string]domain.QueueEntry, len(s.Queue))
	total := 0
	for i, q := range s.Queue {
		if q.EntryID == "" {
			return corruptf("queue entry %d has no id", i)
		}
		if _, dup := entries[q.EntryID]; dup {
			return corruptf("duplicate queue entry %q", q.EntryID)
		}
		if q.TargetSets < 1 {
			return corruptf("queue entry %q has no sets", q.EntryID)
		}
		if q.QueuePosition != i {
			return corruptf("queue entry %q at %d claims position %d", q.EntryID, i, q.QueuePosition)
		}
		entries[q.EntryID] = q
		total += q.TargetSets
	}
	if s.TotalSetCount != total {
		return corruptf("total sets %d, queue holds %d", s.TotalSetCount, total)
	}
	if s.CurrentQueuePosition < 0 || s.CurrentQueuePosition >= len(s.Queue) {
		return corruptf("queue position %d out of range", s.CurrentQueuePosition)
	}
	current := s.Queue[s.CurrentQueuePosition]
	if s.CurrentSetIndex < 0 || s.CurrentSetIndex >= current.TargetSets {
		return corruptf("set index %d out of range for entry %q", s.CurrentSetIndex, current.EntryID)
	}

	seen := make(map[recordKey]struct{}, len(s.Records))
	perEntry := make(map[string]int, len(s.Queue))
	completed, active := 0, 0
	var activeRec domain.SetRecord
	for _, r := range s.Records {
		entry, ok := entries[r.EntryID]
		if !ok {
			return corruptf("record for unknown entry %q", r.EntryID)
		}
		if r.SetIndex < 0 || r.SetIndex >= entry.TargetSets {
			return corruptf("record set %d out of range for entry %q", r.SetIndex, r.EntryID)
		}
		key := recordKey{r.EntryID, r.SetIndex}
		if _, dup := seen[key]; dup {
			return corruptf("duplicate record for set %d of entry %q", r.SetIndex, r.EntryID)
		}
		seen[key] = struct{}{}
		perEntry[r.EntryID]++
		switch r.Status {
		case domain.SetCompleted:
			completed++
		case domain.SetActive:
			active++
			activeRec = r
		case domain.SetPending, domain.SetSkipped:
		default:
			return corruptf("record has unknown status %q", r.Status)
		}
	}
	// Records are created for a whole entry once it becomes current.
	if perEntry[current.EntryID] == 0 {
		return corruptf("no records for current entry %q", current.EntryID)
	}
	for id, n := range perEntry {
		if n != entries[id].TargetSets {
			return corruptf("entry %q has %d of %d records", id, n, entries[id].TargetSets)
		}
	}
	if s.CompletedSetCount != completed {
		return corruptf("completed count %d, records hold %d", s.CompletedSetCount, completed)
	}
	if active > 1 {
		return corruptf("%d active sets", active)
	}

	executing := s.Phase == domain.PhaseSetActive || s.Phase == domain.PhaseSetPaused
	if executing {
		if active != 1 || activeRec.EntryID != current.EntryID || activeRec.SetIndex != s.CurrentSetIndex {
			return corruptf("phase %s without the current set active", s.Phase)
		}
	} else if active != 0 && !s.Phase.IsTerminal() {
		return corruptf("active set outside set execution")
	}

	if err := validateTimer(s); err != nil {
		return err
	}

	if s.FinishedEarly != (s.Phase == domain.PhaseAbandonedEarly) {
		return corruptf("finishedEarly=%v in phase %s", s.FinishedEarly, s.Phase)
	}
	if s.Phase.IsTerminal() {
		if s.IsFullyCompleted != (completed == total) {
			return corruptf("isFullyCompleted disagrees with %d/%d sets", completed, total)
		}
	} else if s.IsFullyCompleted {
		return corruptf("isFullyCompleted before the session ended")
	}
	return nil
}

func validateTimer(s domain.SessionSnapshot) error {
	t := s.Timer
	switch s.Phase {
	case domain.PhaseWarmupActive, domain.PhaseRestActive:
		want := domain.TimerWarmup
		if s.Phase == domain.PhaseRestActive {
			want = domain.TimerRest
		}
		if t == nil || t.Kind != want {
			return corruptf("phase %s needs a %s timer", s.Phase, want)
		}
		if t.DurationSeconds < 0 || t.RemainingSeconds < 0 || t.RemainingSeconds > t.DurationSeconds {
			return corruptf("timer remaining %d of %d", t.RemainingSeconds, t.DurationSeconds)
		}
	case domain.PhaseSetActive, domain.PhaseSetPaused:
		if t == nil {
			return nil
		}
		if t.Kind != domain.TimerSetElapsed {
			return corruptf("phase %s cannot hold a %s timer", s.Phase, t.Kind)
		}
		if t.ElapsedSeconds < 0 {
			return corruptf("negative elapsed time")
		}
		if s.Phase == domain.PhaseSetPaused && !t.IsPaused {
			return corruptf("paused set with a running timer")
		}
	default:
		if t != nil {
			return corruptf("phase %s cannot hold a timer", s.Phase)
		}
	}
	return nil
}

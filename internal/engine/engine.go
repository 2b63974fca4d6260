// Package engine implements the workout session state machine: warmup, set
// execution, rest countdowns, pausing, jumping between sets and exercises,
// live adjustments, early finish and resume from a persisted snapshot.
//
// An Engine is owned by exactly one goroutine. All actions run synchronously
// and the only asynchronous input is the timer tick, which the injected
// Scheduler must deliver on that same goroutine (see TickerScheduler.Post).
package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"alcyxob/workout-session/internal/domain"
)

// DefaultWarmupSeconds is used when StartWarmup is called without a duration.
const DefaultWarmupSeconds = 300

// ResumePolicy decides how a countdown that was running when the session was
// suspended is restored.
type ResumePolicy string

const (
	// ResumeElapsed deducts the wall-clock time since the last snapshot from
	// a running rest or warmup countdown. Paused timers are never deducted.
	ResumeElapsed ResumePolicy = "elapsed"
	// ResumeFrozen restores the countdown exactly as persisted.
	ResumeFrozen ResumePolicy = "frozen"
)

// Options configures an Engine. Zero values fall back to sensible defaults.
type Options struct {
	Clock           Clock
	Scheduler       Scheduler
	TickInterval    time.Duration
	WarmupSeconds   int
	TrackSetElapsed bool
	ResumePolicy    ResumePolicy
	NewSessionID    func() string

	// OnSnapshot receives a snapshot after every committed transition.
	// It must not block; persistence is the receiver's problem.
	OnSnapshot func(domain.SessionSnapshot)
	// OnTick receives every timer tick for display.
	OnTick func(domain.TimerSnapshot)
	// OnSuspend is called by LeaveWorkoutForLater with the snapshot that must
	// be written before the host suspends the session.
	OnSuspend func(domain.SessionSnapshot)
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	if o.Scheduler == nil {
		o.Scheduler = TickerScheduler{}
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.WarmupSeconds <= 0 {
		o.WarmupSeconds = DefaultWarmupSeconds
	}
	if o.ResumePolicy == "" {
		o.ResumePolicy = ResumeElapsed
	}
	if o.NewSessionID == nil {
		o.NewSessionID = uuid.NewString
	}
	return o
}

// Engine is the session state machine. It is not safe for concurrent use.
type Engine struct {
	opts Options

	sessionID string
	planRef   string
	phase     domain.Phase
	queue     *Queue
	pos       int
	setIndex  int
	tracker   *Tracker
	timer     *Timer

	totalSets      int
	fullyCompleted bool
	finishedEarly  bool
	startedAt      time.Time
	lastMutatedAt  time.Time
}

// New creates a fresh session from a plan. The first entry becomes current
// and the session starts Idle.
func New(plan domain.WorkoutPlan, opts Options) (*Engine, error) {
	if err := ValidatePlan(plan); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	now := stamp(opts.Clock)

	e := &Engine{
		opts:          opts,
		sessionID:     opts.NewSessionID(),
		planRef:       plan.PlanRef,
		phase:         domain.PhaseIdle,
		queue:         NewQueue(plan.Entries),
		tracker:       NewTracker(),
		startedAt:     now,
		lastMutatedAt: now,
	}
	e.totalSets = e.queue.TotalSets()
	e.tracker.EnsureEntry(e.currentEntry())
	return e, nil
}

// ValidatePlan checks a plan can drive a session.
func ValidatePlan(plan domain.WorkoutPlan) error {
	if len(plan.Entries) == 0 {
		return fmt.Errorf("%w: no entries", ErrInvalidPlan)
	}
	seen := make(map[string]struct{}, len(plan.Entries))
	for i, e := range plan.Entries {
		if e.EntryID == "" {
			return fmt.Errorf("%w: entry %d has no id", ErrInvalidPlan, i)
		}
		if _, dup := seen[e.EntryID]; dup {
			return fmt.Errorf("%w: duplicate entry %q", ErrInvalidPlan, e.EntryID)
		}
		seen[e.EntryID] = struct{}{}
		if e.TargetSets < 1 {
			return fmt.Errorf("%w: entry %q needs at least one set", ErrInvalidPlan, e.EntryID)
		}
		if e.TargetReps < 0 || e.TargetWeight < 0 || e.RestSeconds < 0 {
			return fmt.Errorf("%w: entry %q has negative targets", ErrInvalidPlan, e.EntryID)
		}
	}
	return nil
}

// --- Read views ---

// SessionID returns the session identifier.
func (e *Engine) SessionID() string { return e.sessionID }

// Phase returns the current phase.
func (e *Engine) Phase() domain.Phase { return e.phase }

// CurrentEntry returns the entry at the current queue position.
func (e *Engine) CurrentEntry() domain.QueueEntry { return e.currentEntry() }

// CurrentSetIndex returns the set the session points at.
func (e *Engine) CurrentSetIndex() int { return e.setIndex }

// Progress returns the read model other screens poll.
func (e *Engine) Progress() domain.Progress {
	s := e.Snapshot()
	return domain.ProgressOf(&s)
}

// Close stops the timer without touching session state. Hosts call it when
// dropping a suspended engine.
func (e *Engine) Close() {
	if e.timer != nil {
		e.timer.halt()
	}
}

// --- Warmup ---

// StartWarmup starts the warmup countdown. seconds <= 0 uses the default.
func (e *Engine) StartWarmup(seconds int) error {
	if err := e.require(ActionStartWarmup, domain.PhaseIdle); err != nil {
		return err
	}
	if seconds <= 0 {
		seconds = e.opts.WarmupSeconds
	}
	e.phase = domain.PhaseWarmupActive
	e.startTimer(domain.TimerWarmup, seconds)
	e.commit()
	return nil
}

// SkipWarmup goes straight to preparing the first set.
func (e *Engine) SkipWarmup() error {
	if err := e.require(ActionSkipWarmup, domain.PhaseIdle); err != nil {
		return err
	}
	e.enterPreparation()
	e.commit()
	return nil
}

// CompleteWarmup ends the warmup before its countdown runs out.
func (e *Engine) CompleteWarmup() error {
	if err := e.require(ActionCompleteWarmup, domain.PhaseWarmupActive); err != nil {
		return err
	}
	e.cancelTimer()
	e.enterPreparation()
	e.commit()
	return nil
}

// StartExercisePreparation moves from idle or warmup to preparing the
// current set.
func (e *Engine) StartExercisePreparation() error {
	if err := e.require(ActionStartExercisePreparation, domain.PhaseIdle, domain.PhaseWarmupActive); err != nil {
		return err
	}
	e.cancelTimer()
	e.enterPreparation()
	e.commit()
	return nil
}

// --- Set lifecycle ---

// ConfirmReadyAndStartSet begins the current set.
func (e *Engine) ConfirmReadyAndStartSet() error {
	if err := e.require(ActionConfirmReadyAndStartSet, domain.PhaseExercisePreparation); err != nil {
		return err
	}
	entry := e.currentEntry()
	if _, err := e.tracker.BeginSet(entry.EntryID, e.setIndex, e.now()); err != nil {
		return e.reject(ActionConfirmReadyAndStartSet, err)
	}
	e.phase = domain.PhaseSetActive
	if e.opts.TrackSetElapsed {
		e.startTimer(domain.TimerSetElapsed, 0)
	}
	e.commit()
	return nil
}

// PauseSet freezes the running set.
func (e *Engine) PauseSet() error {
	if err := e.require(ActionPauseSet, domain.PhaseSetActive); err != nil {
		return err
	}
	if e.timer != nil {
		e.timer.Pause()
	}
	e.phase = domain.PhaseSetPaused
	e.commit()
	return nil
}

// ResumeSet continues a paused set.
func (e *Engine) ResumeSet() error {
	if err := e.require(ActionResumeSet, domain.PhaseSetPaused); err != nil {
		return err
	}
	if e.timer != nil {
		e.timer.Resume()
	}
	e.phase = domain.PhaseSetActive
	e.commit()
	return nil
}

// CompleteSet records the active set and moves to rest, the next exercise or
// the end of the workout.
func (e *Engine) CompleteSet(res SetResult) error {
	if err := e.require(ActionCompleteSet, domain.PhaseSetActive); err != nil {
		return err
	}
	rec, err := e.tracker.CompleteSet(res, e.now())
	if err != nil {
		return e.reject(ActionCompleteSet, err)
	}
	rest := 0
	if rec.ActualRestSeconds != nil {
		rest = *rec.ActualRestSeconds
	}
	e.cancelTimer()
	e.afterSetClosed(rest)
	e.commit()
	return nil
}

// SkipSet closes the current set without completing it. No rest follows.
func (e *Engine) SkipSet() error {
	if err := e.require(ActionSkipSet, domain.PhaseExercisePreparation, domain.PhaseSetActive, domain.PhaseSetPaused); err != nil {
		return err
	}
	entry := e.currentEntry()
	if err := e.tracker.SkipSet(entry.EntryID, e.setIndex, e.now()); err != nil {
		return e.reject(ActionSkipSet, err)
	}
	e.cancelTimer()
	e.afterSetClosed(0)
	e.commit()
	return nil
}

// NextSet points at the following set of the current entry that is not
// completed. Moving past the last set completes the exercise.
func (e *Engine) NextSet() error {
	if err := e.require(ActionNextSet, domain.PhaseExercisePreparation); err != nil {
		return err
	}
	entry := e.currentEntry()
	idx, ok := e.stepSet(entry, 1)
	if ok {
		e.landOn(entry, idx)
	} else {
		e.advanceExercise()
	}
	e.commit()
	return nil
}

// PreviousSet points at the preceding set of the current entry. With no
// earlier set left to perform the session stays where it is.
func (e *Engine) PreviousSet() error {
	if err := e.require(ActionPreviousSet, domain.PhaseExercisePreparation); err != nil {
		return err
	}
	entry := e.currentEntry()
	if idx, ok := e.stepSet(entry, -1); ok {
		e.landOn(entry, idx)
	}
	e.commit()
	return nil
}

// stepSet walks from the current set in direction dir, passing over
// completed sets, and stops at the entry's bounds.
func (e *Engine) stepSet(entry domain.QueueEntry, dir int) (int, bool) {
	for i := e.setIndex + dir; i == ClampSetIndex(i, entry.TargetSets); i += dir {
		if rec, ok := e.tracker.Record(entry.EntryID, i); ok && rec.Status == domain.SetCompleted {
			continue
		}
		return i, true
	}
	return 0, false
}

// landOn points preparation at a set of the current entry. A skipped set is
// reopened.
func (e *Engine) landOn(entry domain.QueueEntry, setIndex int) {
	e.setIndex = setIndex
	e.tracker.Reopen(entry.EntryID, setIndex)
}

// --- Rest ---

// ExtendRest adds seconds to the running rest countdown.
func (e *Engine) ExtendRest(deltaSeconds int) error {
	if err := e.require(ActionExtendRest, domain.PhaseRestActive); err != nil {
		return err
	}
	if deltaSeconds <= 0 {
		return e.reject(ActionExtendRest, fmt.Errorf("%w: extension must be positive, got %d", ErrInvalidValue, deltaSeconds))
	}
	e.timer.Extend(deltaSeconds)
	e.commit()
	return nil
}

// TriggerRestEnding ends the rest early.
func (e *Engine) TriggerRestEnding() error {
	if err := e.require(ActionTriggerRestEnding, domain.PhaseRestActive); err != nil {
		return err
	}
	e.cancelTimer()
	e.endRest()
	e.commit()
	return nil
}

// --- Live adjustments ---

// AdjustWeight edits the target weight of the set being prepared or performed.
// During rest it edits the upcoming set.
func (e *Engine) AdjustWeight(value float64) error {
	return e.adjust(ActionAdjustWeight, func(entryID string, idx int) error {
		return e.tracker.AdjustWeight(entryID, idx, value)
	})
}

// AdjustReps edits the target reps of the set being prepared or performed.
func (e *Engine) AdjustReps(value int) error {
	return e.adjust(ActionAdjustReps, func(entryID string, idx int) error {
		return e.tracker.AdjustReps(entryID, idx, value)
	})
}

// AdjustRestTime edits the rest that follows the set being prepared or performed.
func (e *Engine) AdjustRestTime(seconds int) error {
	return e.adjust(ActionAdjustRestTime, func(entryID string, idx int) error {
		return e.tracker.AdjustRestTime(entryID, idx, seconds)
	})
}

func (e *Engine) adjust(action ActionType, apply func(entryID string, idx int) error) error {
	if err := e.requireActive(action); err != nil {
		return err
	}
	entry := e.currentEntry()
	idx := e.setIndex
	if e.phase == domain.PhaseRestActive {
		next, ok := e.tracker.NextOpen(entry, e.setIndex)
		if !ok {
			return e.reject(action, fmt.Errorf("%w: no upcoming set in entry %q", ErrInvalidTarget, entry.EntryID))
		}
		idx = next
	}
	if err := apply(entry.EntryID, idx); err != nil {
		return e.reject(action, err)
	}
	e.commit()
	return nil
}

// --- Navigation ---

// JumpToSet makes an arbitrary set current. Whatever was in progress is left
// open for later, and any timer is canceled without firing.
func (e *Engine) JumpToSet(entryID string, setIndex int) error {
	if err := e.requireActive(ActionJumpToSet); err != nil {
		return err
	}
	pos, err := e.queue.IndexOf(entryID)
	if err != nil {
		return e.reject(ActionJumpToSet, err)
	}
	entry, _ := e.queue.EntryAt(pos)
	if setIndex < 0 || setIndex >= entry.TargetSets {
		return e.reject(ActionJumpToSet, fmt.Errorf("%w: entry %q has no set %d", ErrInvalidTarget, entryID, setIndex))
	}
	if rec, ok := e.tracker.Record(entryID, setIndex); ok && rec.Status == domain.SetCompleted {
		return e.reject(ActionJumpToSet, fmt.Errorf("%w: set %d of entry %q is already completed", ErrInvalidTarget, setIndex, entryID))
	}

	e.leaveCurrent()
	e.enterEntry(pos, setIndex)
	e.commit()
	return nil
}

// JumpToExercise makes another entry current at its first open set.
func (e *Engine) JumpToExercise(entryID string) error {
	if err := e.requireActive(ActionJumpToExercise); err != nil {
		return err
	}
	pos, setIndex, err := e.jumpTarget(entryID)
	if err != nil {
		return e.reject(ActionJumpToExercise, err)
	}
	e.leaveCurrent()
	e.enterEntry(pos, setIndex)
	e.commit()
	return nil
}

// JumpToExerciseAndQueueCurrent switches to another entry and moves the entry
// being left to the end of the queue.
func (e *Engine) JumpToExerciseAndQueueCurrent(entryID string) error {
	if err := e.requireActive(ActionJumpToExerciseAndQueueCurrent); err != nil {
		return err
	}
	_, setIndex, err := e.jumpTarget(entryID)
	if err != nil {
		return e.reject(ActionJumpToExerciseAndQueueCurrent, err)
	}
	leaving := e.currentEntry().EntryID

	e.leaveCurrent()
	if err := e.queue.MoveToEnd(leaving); err != nil {
		return e.reject(ActionJumpToExerciseAndQueueCurrent, err)
	}
	pos, _ := e.queue.IndexOf(entryID)
	e.enterEntry(pos, setIndex)
	e.commit()
	return nil
}

// jumpTarget resolves the position and set a jump to entryID lands on.
func (e *Engine) jumpTarget(entryID string) (int, int, error) {
	pos, err := e.queue.IndexOf(entryID)
	if err != nil {
		return 0, 0, err
	}
	entry, _ := e.queue.EntryAt(pos)
	if idx, ok := e.tracker.FirstOpen(entry); ok {
		return pos, idx, nil
	}
	if idx, ok := e.tracker.FirstSkipped(entry); ok {
		return pos, idx, nil
	}
	return 0, 0, fmt.Errorf("%w: every set of entry %q is completed", ErrInvalidTarget, entryID)
}

// --- Completion ---

// CompleteExercise closes the current entry: its open sets are skipped and
// the session moves to the next entry with open sets.
func (e *Engine) CompleteExercise() error {
	if err := e.require(ActionCompleteExercise, domain.PhaseExercisePreparation, domain.PhaseSetActive,
		domain.PhaseSetPaused, domain.PhaseRestActive); err != nil {
		return err
	}
	e.cancelTimer()
	entry := e.currentEntry()
	now := e.now()
	for i := 0; i < entry.TargetSets; i++ {
		if e.tracker.isOpen(entry.EntryID, i) {
			_ = e.tracker.SkipSet(entry.EntryID, i, now)
		}
	}
	e.advanceExercise()
	e.commit()
	return nil
}

// CompleteWorkout ends the session once no open set remains. Use
// FinishWorkoutEarly to stop with sets left.
func (e *Engine) CompleteWorkout() error {
	if err := e.requireActive(ActionCompleteWorkout); err != nil {
		return err
	}
	if e.hasOpenSets() {
		return e.reject(ActionCompleteWorkout, fmt.Errorf("%w: sets remain, finish early instead", ErrInvalidTransition))
	}
	e.completeWorkout()
	e.commit()
	return nil
}

// FinishWorkoutEarly stops the session where it is. Remaining sets are not
// marked completed.
func (e *Engine) FinishWorkoutEarly() error {
	if err := e.requireActive(ActionFinishWorkoutEarly); err != nil {
		return err
	}
	e.cancelTimer()
	e.phase = domain.PhaseAbandonedEarly
	e.finishedEarly = true
	e.fullyCompleted = e.tracker.CompletedCount() == e.totalSets
	e.commit()
	return nil
}

// LeaveWorkoutForLater keeps the phase but hands the host a fresh snapshot
// to persist before it suspends the session.
func (e *Engine) LeaveWorkoutForLater() error {
	if err := e.requireActive(ActionLeaveWorkoutForLater); err != nil {
		return err
	}
	e.lastMutatedAt = e.now()
	snap := e.Snapshot()
	if e.opts.OnSuspend != nil {
		e.opts.OnSuspend(snap)
	}
	return nil
}

// --- Internal transitions ---

func (e *Engine) currentEntry() domain.QueueEntry {
	entry, _ := e.queue.EntryAt(e.pos)
	return entry
}

func (e *Engine) now() time.Time { return stamp(e.opts.Clock) }

// stamp reads the clock at the millisecond precision the session store keeps.
func stamp(c Clock) time.Time { return c.Now().UTC().Truncate(time.Millisecond) }

// enterPreparation prepares the first open set of the current entry.
func (e *Engine) enterPreparation() {
	entry := e.currentEntry()
	e.tracker.EnsureEntry(entry)
	if rec, ok := e.tracker.Record(entry.EntryID, e.setIndex); ok && rec.Status.IsOpen() {
		e.phase = domain.PhaseExercisePreparation
		return
	}
	if idx, ok := e.tracker.FirstOpen(entry); ok {
		e.setIndex = idx
		e.phase = domain.PhaseExercisePreparation
		return
	}
	e.advanceExercise()
}

// enterEntry lands a jump on a set, reopening it if it was skipped.
func (e *Engine) enterEntry(pos, setIndex int) {
	e.pos = pos
	entry := e.currentEntry()
	e.tracker.EnsureEntry(entry)
	e.landOn(entry, setIndex)
	e.phase = domain.PhaseExercisePreparation
}

// leaveCurrent abandons whatever is in flight without closing it.
func (e *Engine) leaveCurrent() {
	e.cancelTimer()
	e.tracker.DemoteActive()
}

// afterSetClosed decides what follows a completed or skipped set.
func (e *Engine) afterSetClosed(restSeconds int) {
	entry := e.currentEntry()
	if _, ok := e.tracker.NextOpen(entry, e.setIndex); ok {
		if restSeconds > 0 {
			e.phase = domain.PhaseRestActive
			e.startTimer(domain.TimerRest, restSeconds)
			return
		}
		e.endRest()
		return
	}
	e.advanceExercise()
}

// endRest moves to the next open set of the current entry.
func (e *Engine) endRest() {
	entry := e.currentEntry()
	if next, ok := e.tracker.NextOpen(entry, e.setIndex); ok {
		e.setIndex = next
		e.phase = domain.PhaseExercisePreparation
		return
	}
	e.advanceExercise()
}

// advanceExercise moves to the next entry in queue order that still has open
// sets, wrapping around. With none left the workout completes.
func (e *Engine) advanceExercise() {
	n := e.queue.Len()
	for step := 1; step < n; step++ {
		pos := (e.pos + step) % n
		entry, _ := e.queue.EntryAt(pos)
		if idx, ok := e.tracker.FirstOpen(entry); ok {
			e.pos = pos
			e.setIndex = idx
			e.tracker.EnsureEntry(entry)
			e.phase = domain.PhaseExercisePreparation
			return
		}
	}
	if idx, ok := e.tracker.FirstOpen(e.currentEntry()); ok {
		e.setIndex = idx
		e.phase = domain.PhaseExercisePreparation
		return
	}
	e.completeWorkout()
}

func (e *Engine) completeWorkout() {
	e.cancelTimer()
	e.phase = domain.PhaseCompleted
	e.fullyCompleted = e.tracker.CompletedCount() == e.totalSets
}

func (e *Engine) hasOpenSets() bool {
	for _, entry := range e.queue.entries {
		if _, ok := e.tracker.FirstOpen(entry); ok {
			return true
		}
	}
	return false
}

// --- Timer plumbing ---

func (e *Engine) timerConfig() TimerConfig {
	return TimerConfig{
		Clock:     e.opts.Clock,
		Scheduler: e.opts.Scheduler,
		Interval:  e.opts.TickInterval,
		OnTick:    e.handleTick,
		OnExpire:  e.handleExpiry,
	}
}

func (e *Engine) startTimer(kind domain.TimerKind, seconds int) {
	e.cancelTimer()
	e.timer = NewTimer(kind, seconds, e.timerConfig())
	e.timer.Start()
}

func (e *Engine) cancelTimer() {
	if e.timer != nil {
		e.timer.Cancel()
		e.timer = nil
	}
}

func (e *Engine) handleTick(t *Timer) {
	if t != e.timer || e.opts.OnTick == nil {
		return
	}
	e.opts.OnTick(t.Snapshot())
}

// handleExpiry is the timer-driven transition. Only the current timer may
// trigger it.
func (e *Engine) handleExpiry(t *Timer) {
	if t != e.timer || e.phase.IsTerminal() {
		return
	}
	e.timer = nil
	switch {
	case t.Kind() == domain.TimerWarmup && e.phase == domain.PhaseWarmupActive:
		e.enterPreparation()
	case t.Kind() == domain.TimerRest && e.phase == domain.PhaseRestActive:
		e.endRest()
	default:
		return
	}
	e.commit()
}

// --- Preconditions & commit ---

func (e *Engine) require(action ActionType, allowed ...domain.Phase) error {
	for _, p := range allowed {
		if e.phase == p {
			return nil
		}
	}
	return &ActionError{Action: action, Phase: e.phase, Err: ErrInvalidTransition}
}

func (e *Engine) requireActive(action ActionType) error {
	if e.phase.IsTerminal() {
		return &ActionError{Action: action, Phase: e.phase, Err: ErrInvalidTransition, Detail: "session has ended"}
	}
	return nil
}

func (e *Engine) reject(action ActionType, err error) error {
	return &ActionError{Action: action, Phase: e.phase, Err: err}
}

// commit stamps the mutation and publishes a snapshot.
func (e *Engine) commit() {
	e.lastMutatedAt = e.now()
	if e.opts.OnSnapshot != nil {
		e.opts.OnSnapshot(e.Snapshot())
	}
}

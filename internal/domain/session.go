package domain

import (
	"time"
)

// Phase is the top-level state of a workout session.
type Phase string

const (
	PhaseIdle                Phase = "idle"
	PhaseWarmupActive        Phase = "warmup_active"
	PhaseExercisePreparation Phase = "exercise_preparation"
	PhaseSetActive           Phase = "set_active"
	PhaseSetPaused           Phase = "set_paused"
	PhaseRestActive          Phase = "rest_active"
	PhaseCompleted           Phase = "completed"
	PhaseAbandonedEarly      Phase = "abandoned_early"
)

// IsTerminal reports whether no further action is accepted in this phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseAbandonedEarly
}

// IsKnown reports whether p is one of the defined phases.
func (p Phase) IsKnown() bool {
	switch p {
	case PhaseIdle, PhaseWarmupActive, PhaseExercisePreparation, PhaseSetActive,
		PhaseSetPaused, PhaseRestActive, PhaseCompleted, PhaseAbandonedEarly:
		return true
	}
	return false
}

// SetStatus tracks one set through its lifecycle.
type SetStatus string

const (
	SetPending   SetStatus = "pending"
	SetActive    SetStatus = "active"
	SetCompleted SetStatus = "completed"
	SetSkipped   SetStatus = "skipped"
)

// IsOpen reports whether the set still has to be performed.
// Skipped sets are closed but reopen when navigation lands on them again.
func (s SetStatus) IsOpen() bool {
	return s == SetPending || s == SetActive
}

// TimerKind identifies what a session timer is measuring.
type TimerKind string

const (
	TimerWarmup     TimerKind = "warmup"
	TimerRest       TimerKind = "rest"
	TimerSetElapsed TimerKind = "set_elapsed"
)

// --- Plan (input) ---

// WorkoutPlanEntry is one exercise slot of a plan. Never mutated by a session.
type WorkoutPlanEntry struct {
	EntryID      string  `bson:"entryId" json:"entryId"`
	ExerciseID   string  `bson:"exerciseId" json:"exerciseId"`
	ExerciseName string  `bson:"exerciseName,omitempty" json:"exerciseName,omitempty"` // Display only
	Position     int     `bson:"position" json:"position"`                             // Ordinal in the plan
	TargetSets   int     `bson:"targetSets" json:"targetSets"`
	TargetReps   int     `bson:"targetReps" json:"targetReps"`
	TargetWeight float64 `bson:"targetWeight" json:"targetWeight"`
	RestSeconds  int     `bson:"restSeconds" json:"restSeconds"`
}

// WorkoutPlan is the ordered list of entries a session is created from.
type WorkoutPlan struct {
	PlanRef  string             `json:"planRef"` // Workout ObjectID hex
	ClientID string             `json:"clientId"`
	Name     string             `json:"name"`
	Entries  []WorkoutPlanEntry `json:"entries"`
}

// --- Session state (output) ---

// QueueEntry wraps a plan entry with its current position in the execution order.
type QueueEntry struct {
	WorkoutPlanEntry `bson:",inline"`
	QueuePosition    int `bson:"queuePosition" json:"queuePosition"`
}

// SetRecord is the planned-vs-actual record of a single set.
type SetRecord struct {
	EntryID           string     `bson:"entryId" json:"entryId"`
	SetIndex          int        `bson:"setIndex" json:"setIndex"` // 0-based within the entry
	Status            SetStatus  `bson:"status" json:"status"`
	TargetWeight      float64    `bson:"targetWeight" json:"targetWeight"`
	TargetReps        int        `bson:"targetReps" json:"targetReps"`
	TargetRestSeconds int        `bson:"targetRestSeconds" json:"targetRestSeconds"`
	ActualWeight      *float64   `bson:"actualWeight,omitempty" json:"actualWeight,omitempty"`
	ActualReps        *int       `bson:"actualReps,omitempty" json:"actualReps,omitempty"`
	ActualRestSeconds *int       `bson:"actualRestSeconds,omitempty" json:"actualRestSeconds,omitempty"`
	StartedAt         *time.Time `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt       *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// TimerSnapshot is the persisted projection of the single session timer.
type TimerSnapshot struct {
	Kind             TimerKind `bson:"kind" json:"kind"`
	DurationSeconds  int       `bson:"durationSeconds" json:"durationSeconds"`
	RemainingSeconds int       `bson:"remainingSeconds" json:"remainingSeconds"`
	ElapsedSeconds   int       `bson:"elapsedSeconds" json:"elapsedSeconds"`
	IsPaused         bool      `bson:"isPaused" json:"isPaused"`
}

// SessionSnapshotVersion is bumped whenever the snapshot shape changes.
const SessionSnapshotVersion = 1

// SessionSnapshot is the serializable projection of a whole session.
// It is written after every committed transition and read back on resume.
type SessionSnapshot struct {
	SchemaVersion        int            `bson:"schemaVersion" json:"schemaVersion"`
	SessionID            string         `bson:"sessionId" json:"sessionId"`
	PlanRef              string         `bson:"planRef" json:"planRef"`
	Phase                Phase          `bson:"phase" json:"phase"`
	Queue                []QueueEntry   `bson:"queue" json:"queue"`
	CurrentQueuePosition int            `bson:"currentQueuePosition" json:"currentQueuePosition"`
	CurrentSetIndex      int            `bson:"currentSetIndex" json:"currentSetIndex"`
	Records              []SetRecord    `bson:"records" json:"records"`
	Timer                *TimerSnapshot `bson:"timer,omitempty" json:"timer,omitempty"`
	CompletedSetCount    int            `bson:"completedSetCount" json:"completedSetCount"`
	TotalSetCount        int            `bson:"totalSetCount" json:"totalSetCount"`
	IsFullyCompleted     bool           `bson:"isFullyCompleted" json:"isFullyCompleted"`
	FinishedEarly        bool           `bson:"finishedEarly" json:"finishedEarly"`
	StartedAt            time.Time      `bson:"startedAt" json:"startedAt"`
	LastMutatedAt        time.Time      `bson:"lastMutatedAt" json:"lastMutatedAt"`
}

// Progress is the minimal read-only view other screens may poll.
type Progress struct {
	CompletedSets    int   `json:"completedSets"`
	TotalSets        int   `json:"totalSets"`
	IsFullyCompleted bool  `json:"isFullyCompleted"`
	FinishedEarly    bool  `json:"finishedEarly"`
	Status           Phase `json:"status"`
}

// ProgressOf projects a snapshot onto the progress view.
func ProgressOf(s *SessionSnapshot) Progress {
	return Progress{
		CompletedSets:    s.CompletedSetCount,
		TotalSets:        s.TotalSetCount,
		IsFullyCompleted: s.IsFullyCompleted,
		FinishedEarly:    s.FinishedEarly,
		Status:           s.Phase,
	}
}

// WorkoutSession is the stored document of a session: the latest snapshot plus
// the keys the store is queried by (client, workout and calendar date).
type WorkoutSession struct {
	ID               string          `bson:"_id" json:"id"` // Same as Snapshot.SessionID
	ClientID         string          `bson:"clientId" json:"clientId"`
	WorkoutID        string          `bson:"workoutId" json:"workoutId"`
	SessionDate      string          `bson:"sessionDate" json:"sessionDate"` // YYYY-MM-DD, UTC
	Snapshot         SessionSnapshot `bson:"snapshot" json:"snapshot"`
	ArchiveObjectKey string          `bson:"archiveObjectKey,omitempty" json:"-"`
	UpdatedAt        time.Time       `bson:"updatedAt" json:"updatedAt"`
}

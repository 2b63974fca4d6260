package engine

import (
	"fmt"
)

// ActionType names a verb of the session action API.
type ActionType string

const (
	ActionStartWarmup                   ActionType = "start_warmup"
	ActionSkipWarmup                    ActionType = "skip_warmup"
	ActionCompleteWarmup                ActionType = "complete_warmup"
	ActionStartExercisePreparation      ActionType = "start_exercise_preparation"
	ActionConfirmReadyAndStartSet       ActionType = "confirm_ready_and_start_set"
	ActionPauseSet                      ActionType = "pause_set"
	ActionResumeSet                     ActionType = "resume_set"
	ActionCompleteSet                   ActionType = "complete_set"
	ActionSkipSet                       ActionType = "skip_set"
	ActionNextSet                       ActionType = "next_set"
	ActionPreviousSet                   ActionType = "previous_set"
	ActionJumpToSet                     ActionType = "jump_to_set"
	ActionJumpToExercise                ActionType = "jump_to_exercise"
	ActionJumpToExerciseAndQueueCurrent ActionType = "jump_to_exercise_and_queue_current"
	ActionExtendRest                    ActionType = "extend_rest"
	ActionTriggerRestEnding             ActionType = "trigger_rest_ending"
	ActionAdjustWeight                  ActionType = "adjust_weight"
	ActionAdjustReps                    ActionType = "adjust_reps"
	ActionAdjustRestTime                ActionType = "adjust_rest_time"
	ActionCompleteExercise              ActionType = "complete_exercise"
	ActionCompleteWorkout               ActionType = "complete_workout"
	ActionFinishWorkoutEarly            ActionType = "finish_workout_early"
	ActionLeaveWorkoutForLater          ActionType = "leave_workout_for_later"
)

// Action is a dispatchable command with its arguments. Only the fields the
// verb needs are read.
type Action struct {
	Type        ActionType `json:"action"`
	EntryID     string     `json:"entryId,omitempty"`
	SetIndex    *int       `json:"setIndex,omitempty"`
	Seconds     int        `json:"seconds,omitempty"` // warmup duration or rest extension
	Weight      *float64   `json:"weight,omitempty"`
	Reps        *int       `json:"reps,omitempty"`
	RestSeconds *int       `json:"restSeconds,omitempty"`
}

// Dispatch runs an action by name. Hosts that receive commands as data
// (HTTP, voice assistant) go through here.
func (e *Engine) Dispatch(a Action) error {
	switch a.Type {
	case ActionStartWarmup:
		return e.StartWarmup(a.Seconds)
	case ActionSkipWarmup:
		return e.SkipWarmup()
	case ActionCompleteWarmup:
		return e.CompleteWarmup()
	case ActionStartExercisePreparation:
		return e.StartExercisePreparation()
	case ActionConfirmReadyAndStartSet:
		return e.ConfirmReadyAndStartSet()
	case ActionPauseSet:
		return e.PauseSet()
	case ActionResumeSet:
		return e.ResumeSet()
	case ActionCompleteSet:
		return e.CompleteSet(SetResult{Weight: a.Weight, Reps: a.Reps, RestSeconds: a.RestSeconds})
	case ActionSkipSet:
		return e.SkipSet()
	case ActionNextSet:
		return e.NextSet()
	case ActionPreviousSet:
		return e.PreviousSet()
	case ActionJumpToSet:
		if a.SetIndex == nil {
			return e.missing(a.Type, "setIndex")
		}
		return e.JumpToSet(a.EntryID, *a.SetIndex)
	case ActionJumpToExercise:
		return e.JumpToExercise(a.EntryID)
	case ActionJumpToExerciseAndQueueCurrent:
		return e.JumpToExerciseAndQueueCurrent(a.EntryID)
	case ActionExtendRest:
		return e.ExtendRest(a.Seconds)
	case ActionTriggerRestEnding:
		return e.TriggerRestEnding()
	case ActionAdjustWeight:
		if a.Weight == nil {
			return e.missing(a.Type, "weight")
		}
		return e.AdjustWeight(*a.Weight)
	case ActionAdjustReps:
		if a.Reps == nil {
			return e.missing(a.Type, "reps")
		}
		return e.AdjustReps(*a.Reps)
	case ActionAdjustRestTime:
		if a.RestSeconds == nil {
			return e.missing(a.Type, "restSeconds")
		}
		return e.AdjustRestTime(*a.RestSeconds)
	case ActionCompleteExercise:
		return e.CompleteExercise()
	case ActionCompleteWorkout:
		return e.CompleteWorkout()
	case ActionFinishWorkoutEarly:
		return e.FinishWorkoutEarly()
	case ActionLeaveWorkoutForLater:
		return e.LeaveWorkoutForLater()
	default:
		return &ActionError{Action: a.Type, Phase: e.phase, Err: ErrInvalidTransition, Detail: "unknown action"}
	}
}

func (e *Engine) missing(action ActionType, field string) error {
	return e.reject(action, fmt.Errorf("%w: %s is required", ErrInvalidValue, field))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/workout-session/internal/domain"
	"alcyxob/workout-session/internal/engine"
	"alcyxob/workout-session/internal/repository"
)

// --- Error Definitions ---
var (
	ErrWorkoutNotFound          = errors.New("workout not found")
	ErrWorkoutNotBelongToClient = errors.New("workout does not belong to this client")
	ErrWorkoutHasNoExercises    = errors.New("workout has no exercises assigned")
)

// PlanService turns a trainer-authored workout into a session plan.
type PlanService interface {
	BuildPlan(ctx context.Context, clientID, workoutID primitive.ObjectID) (*domain.WorkoutPlan, error)
}

// planService implements the PlanService interface.
type planService struct {
	workoutRepo        repository.WorkoutRepository
	assignmentRepo     repository.AssignmentRepository
	exerciseRepo       repository.ExerciseRepository
	defaultRestSeconds int
}

// NewPlanService creates a new instance of planService. defaultRestSeconds
// is used for assignments whose rest cannot be read.
func NewPlanService(
	workoutRepo repository.WorkoutRepository,
	assignmentRepo repository.AssignmentRepository,
	exerciseRepo repository.ExerciseRepository,
	defaultRestSeconds int,
) PlanService {
	return &planService{
		workoutRepo:        workoutRepo,
		assignmentRepo:     assignmentRepo,
		exerciseRepo:       exerciseRepo,
		defaultRestSeconds: defaultRestSeconds,
	}
}

// BuildPlan loads a workout the client owns and converts its assignments,
// in sequence order, into plan entries with numeric targets.
func (s *planService) BuildPlan(ctx context.Context, clientID, workoutID primitive.ObjectID) (*domain.WorkoutPlan, error) {
	workout, err := s.workoutRepo.GetByID(ctx, workoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, fmt.Errorf("loading workout: %w", err)
	}
	if workout.ClientID != clientID {
		return nil, ErrWorkoutNotBelongToClient
	}

	assignments, err := s.assignmentRepo.GetByWorkoutID(ctx, workoutID)
	if err != nil {
		return nil, fmt.Errorf("loading assignments: %w", err)
	}
	if len(assignments) == 0 {
		return nil, ErrWorkoutHasNoExercises
	}
	sort.SliceStable(assignments, func(i, j int) bool {
		return assignments[i].Sequence < assignments[j].Sequence
	})

	names, err := s.exerciseNames(ctx, assignments)
	if err != nil {
		return nil, err
	}

	plan := &domain.WorkoutPlan{
		PlanRef:  workout.ID.Hex(),
		ClientID: clientID.Hex(),
		Name:     workout.Name,
		Entries:  make([]domain.WorkoutPlanEntry, 0, len(assignments)),
	}
	for i, a := range assignments {
		plan.Entries = append(plan.Entries, domain.WorkoutPlanEntry{
			EntryID:      a.ID.Hex(),
			ExerciseID:   a.ExerciseID.Hex(),
			ExerciseName: names[a.ExerciseID],
			Position:     i,
			TargetSets:   ParseSets(a.Sets),
			TargetReps:   ParseReps(deref(a.Reps)),
			TargetWeight: ParseWeight(deref(a.Weight)),
			RestSeconds:  ParseRestSeconds(deref(a.Rest), s.defaultRestSeconds),
		})
	}
	if err := engine.ValidatePlan(*plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *planService) exerciseNames(ctx context.Context, assignments []domain.Assignment) (map[primitive.ObjectID]string, error) {
	ids := make([]primitive.ObjectID, 0, len(assignments))
	seen := make(map[primitive.ObjectID]struct{}, len(assignments))
	for _, a := range assignments {
		if _, ok := seen[a.ExerciseID]; !ok {
			seen[a.ExerciseID] = struct{}{}
			ids = append(ids, a.ExerciseID)
		}
	}
	exercises, err := s.exerciseRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading exercises: %w", err)
	}
	names := make(map[primitive.ObjectID]string, len(exercises))
	for _, e := range exercises {
		names[e.ID] = e.Name
	}
	return names, nil
}

// --- Target parsing ---
// Trainers write targets as free text. Anything unreadable becomes a
// neutral value so a sloppy assignment never blocks a workout.

var (
	leadingInt    = regexp.MustCompile(`^\s*(\d+)`)
	leadingNumber = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)`)
)

// ParseSets returns the set count, at least one.
func ParseSets(sets *int) int {
	if sets == nil || *sets < 1 {
		return 1
	}
	return *sets
}

// ParseReps reads "10", "8-12" (lower bound) or "12/side". AMRAP and other
// open-ended targets are 0.
func ParseReps(reps string) int {
	m := leadingInt.FindStringSubmatch(reps)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// ParseWeight reads the number in "10kg", "22.5 lbs" or "17,5". Bodyweight
// and effort targets such as "BW" or "RPE 8" are 0. Units are not converted.
func ParseWeight(weight string) float64 {
	m := leadingNumber.FindStringSubmatch(weight)
	if m == nil {
		return 0
	}
	w, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0
	}
	return w
}

var restUnits = strings.NewReplacer(
	"seconds", "s", "second", "s", "secs", "s", "sec", "s",
	"minutes", "m", "minute", "m", "mins", "m", "min", "m",
)

// ParseRestSeconds reads "90", "60s", "2m", "1m30s" or "2 min". Empty or
// unreadable values use def.
func ParseRestSeconds(rest string, def int) int {
	s := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(rest), " ", ""))
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return def
		}
		return n
	}
	d, err := time.ParseDuration(restUnits.Replace(s))
	if err != nil || d < 0 {
		return def
	}
	return int(d / time.Second)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

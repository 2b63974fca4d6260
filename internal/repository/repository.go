package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/workout-session/internal/domain"
)

// Error constants for the repository layer.
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// WorkoutRepository reads the workouts trainers have planned for clients.
type WorkoutRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error)
}

// AssignmentRepository reads the exercise slots of a workout and records
// which of them a session finished.
type AssignmentRepository interface {
	GetByWorkoutID(ctx context.Context, workoutID primitive.ObjectID) ([]domain.Assignment, error) // Sorted by sequence
	MarkCompleted(ctx context.Context, ids []primitive.ObjectID) error
}

// ExerciseRepository reads exercise definitions for display names.
type ExerciseRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error)
}

// SessionRepository stores the latest snapshot of every workout session.
type SessionRepository interface {
	// Save upserts the session document. The archive key is left untouched.
	Save(ctx context.Context, session *domain.WorkoutSession) error
	GetByID(ctx context.Context, id string) (*domain.WorkoutSession, error)
	// GetLatestForWorkout returns the most recently updated session of a
	// client's workout on a calendar date (YYYY-MM-DD).
	GetLatestForWorkout(ctx context.Context, clientID, workoutID, sessionDate string) (*domain.WorkoutSession, error)
	SetArchiveKey(ctx context.Context, id, objectKey string) error
}

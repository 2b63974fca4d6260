package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentStatus type for assignment lifecycle
type AssignmentStatus string

const (
	StatusAssigned  AssignmentStatus = "assigned"
	StatusCompleted AssignmentStatus = "completed" // Set once a session finished every set of it
)

// Assignment places an Exercise inside a Workout with the trainer's execution details.
// The free-text fields (Reps, Rest, Weight) are written by trainers and parsed
// into numeric session targets when a workout is selected.
type Assignment struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	WorkoutID    primitive.ObjectID `bson:"workoutId" json:"workoutId"`   // Link to the Workout
	ExerciseID   primitive.ObjectID `bson:"exerciseId" json:"exerciseId"` // Link to the specific Exercise
	Status       AssignmentStatus   `bson:"status" json:"status"`
	Sets         *int               `bson:"sets,omitempty" json:"sets,omitempty"`
	Reps         *string            `bson:"reps,omitempty" json:"reps,omitempty"`     // e.g., "8-12", "AMRAP"
	Rest         *string            `bson:"rest,omitempty" json:"rest,omitempty"`     // e.g., "60s", "2m"
	Weight       *string            `bson:"weight,omitempty" json:"weight,omitempty"` // e.g., "10kg", "BW"
	Sequence     int                `bson:"sequence" json:"sequence"`                 // Order within workout
	TrainerNotes string             `bson:"trainerNotes,omitempty" json:"trainerNotes,omitempty"`
	AssignedAt   time.Time          `bson:"assignedAt" json:"assignedAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

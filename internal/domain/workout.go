package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Workout represents a single workout within a TrainingPlan.
// Exercises are linked via Assignments pointing to this Workout's ID.
type Workout struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainingPlanID primitive.ObjectID `bson:"trainingPlanId" json:"trainingPlanId"`
	TrainerID      primitive.ObjectID `bson:"trainerId" json:"trainerId"` // Denormalized for easier query/auth
	ClientID       primitive.ObjectID `bson:"clientId" json:"clientId"`   // Denormalized
	Name           string             `bson:"name" json:"name"`           // e.g., "Day 1: Upper Body"
	Notes          string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Sequence       int                `bson:"sequence" json:"sequence"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

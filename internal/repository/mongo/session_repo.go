package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alcyxob/workout-session/internal/domain"
	"alcyxob/workout-session/internal/repository"
)

const sessionCollectionName = "sessions"

// mongoSessionRepository implements repository.SessionRepository. One
// document per session, keyed by the session ID.
type mongoSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionRepository creates a new Session repository backed by MongoDB.
func NewMongoSessionRepository(db *mongo.Database) repository.SessionRepository {
	return &mongoSessionRepository{
		collection: db.Collection(sessionCollectionName),
	}
}

// Save upserts the latest snapshot of a session.
func (r *mongoSessionRepository) Save(ctx context.Context, session *domain.WorkoutSession) error {
	if session.ID == "" || session.ClientID == "" || session.WorkoutID == "" {
		return errors.New("session requires id, clientId and workoutId")
	}
	session.UpdatedAt = time.Now().UTC()

	filter := bson.M{"_id": session.ID}
	// archiveObjectKey is owned by SetArchiveKey and never overwritten here.
	update := bson.M{
		"$set": bson.M{
			"clientId":    session.ClientID,
			"workoutId":   session.WorkoutID,
			"sessionDate": session.SessionDate,
			"snapshot":    session.Snapshot,
			"updatedAt":   session.UpdatedAt,
		},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// GetByID retrieves a session by its ID.
func (r *mongoSessionRepository) GetByID(ctx context.Context, id string) (*domain.WorkoutSession, error) {
	var session domain.WorkoutSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// GetLatestForWorkout returns the newest session of a workout on a date.
func (r *mongoSessionRepository) GetLatestForWorkout(ctx context.Context, clientID, workoutID, sessionDate string) (*domain.WorkoutSession, error) {
	filter := bson.M{
		"clientId":    clientID,
		"workoutId":   workoutID,
		"sessionDate": sessionDate,
	}
	findOptions := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	var session domain.WorkoutSession
	err := r.collection.FindOne(ctx, filter, findOptions).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// SetArchiveKey records where the finished session was archived.
func (r *mongoSessionRepository) SetArchiveKey(ctx context.Context, id, objectKey string) error {
	update := bson.M{"$set": bson.M{"archiveObjectKey": objectKey}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureSessionIndexes creates necessary indexes for the sessions collection.
func EnsureSessionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Progress lookups: one workout of one client on one day, newest first
			Keys: bson.D{
				{Key: "clientId", Value: 1},
				{Key: "workoutId", Value: 1},
				{Key: "sessionDate", Value: 1},
				{Key: "updatedAt", Value: -1},
			},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "snapshot.phase", Value: 1}},
			Options: options.Index(),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("indexes for %s: %w", collection.Name(), err)
	}
	return nil
}

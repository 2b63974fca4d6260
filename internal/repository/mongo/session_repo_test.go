package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"alcyxob/workout-session/internal/domain"
	"alcyxob/workout-session/internal/repository"
)

func toDoc(t *testing.T, v any) bson.D {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func sampleSession() *domain.WorkoutSession {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return &domain.WorkoutSession{
		ID:          "session-1",
		ClientID:    primitive.NewObjectID().Hex(),
		WorkoutID:   primitive.NewObjectID().Hex(),
		SessionDate: "2026-03-14",
		Snapshot: domain.SessionSnapshot{
			SchemaVersion: domain.SessionSnapshotVersion,
			SessionID:     "session-1",
			Phase:         domain.PhaseRestActive,
			Queue: []domain.QueueEntry{{
				WorkoutPlanEntry: domain.WorkoutPlanEntry{EntryID: "a1", TargetSets: 3, TargetReps: 8, RestSeconds: 60},
			}},
			Timer:             &domain.TimerSnapshot{Kind: domain.TimerRest, DurationSeconds: 60, RemainingSeconds: 41},
			CompletedSetCount: 1,
			TotalSetCount:     3,
			StartedAt:         now,
			LastMutatedAt:     now,
		},
		UpdatedAt: now,
	}
}

func TestSessionRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "test.sessions"

	mt.Run("save upserts", func(mt *mtest.T) {
		repo := &mongoSessionRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		s := sampleSession()
		require.NoError(mt, repo.Save(context.Background(), s))

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "update", started.CommandName)
	})

	mt.Run("save requires keys", func(mt *mtest.T) {
		repo := &mongoSessionRepository{collection: mt.Coll}
		err := repo.Save(context.Background(), &domain.WorkoutSession{ID: "x"})
		assert.Error(mt, err)
	})

	mt.Run("get by id", func(mt *mtest.T) {
		repo := &mongoSessionRepository{collection: mt.Coll}
		want := sampleSession()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDoc(mt.T, want)))

		got, err := repo.GetByID(context.Background(), "session-1")
		require.NoError(mt, err)
		assert.Equal(mt, want.ClientID, got.ClientID)
		assert.Equal(mt, domain.PhaseRestActive, got.Snapshot.Phase)
		require.Len(mt, got.Snapshot.Queue, 1)
		assert.Equal(mt, "a1", got.Snapshot.Queue[0].EntryID)
		require.NotNil(mt, got.Snapshot.Timer)
		assert.Equal(mt, 41, got.Snapshot.Timer.RemainingSeconds)
	})

	mt.Run("get by id not found", func(mt *mtest.T) {
		repo := &mongoSessionRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.GetByID(context.Background(), "missing")
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})

	mt.Run("latest for workout", func(mt *mtest.T) {
		repo := &mongoSessionRepository{collection: mt.Coll}
		want := sampleSession()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDoc(mt.T, want)))

		got, err := repo.GetLatestForWorkout(context.Background(), want.ClientID, want.WorkoutID, want.SessionDate)
		require.NoError(mt, err)
		assert.Equal(mt, "session-1", got.ID)
	})

	mt.Run("set archive key on unknown session", func(mt *mtest.T) {
		repo := &mongoSessionRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repo.SetArchiveKey(context.Background(), "missing", "sessions/x.json")
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})
}

func TestAssignmentRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "test.assignments"

	mt.Run("by workout keeps order", func(mt *mtest.T) {
		repo := &mongoAssignmentRepository{collection: mt.Coll}
		workoutID := primitive.NewObjectID()
		first := domain.Assignment{ID: primitive.NewObjectID(), WorkoutID: workoutID, Sequence: 0}
		second := domain.Assignment{ID: primitive.NewObjectID(), WorkoutID: workoutID, Sequence: 1}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDoc(mt.T, first), toDoc(mt.T, second)))

		got, err := repo.GetByWorkoutID(context.Background(), workoutID)
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, first.ID, got[0].ID)
		assert.Equal(mt, second.ID, got[1].ID)
	})

	mt.Run("mark completed", func(mt *mtest.T) {
		repo := &mongoAssignmentRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}, bson.E{Key: "nModified", Value: 2}))

		err := repo.MarkCompleted(context.Background(), []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()})
		require.NoError(mt, err)
	})

	mt.Run("mark nothing", func(mt *mtest.T) {
		repo := &mongoAssignmentRepository{collection: mt.Coll}
		assert.NoError(mt, repo.MarkCompleted(context.Background(), nil))
		assert.Nil(mt, mt.GetStartedEvent(), "no round trip for an empty list")
	})
}

func TestExerciseRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("by ids", func(mt *mtest.T) {
		repo := &mongoExerciseRepository{collection: mt.Coll}
		squat := domain.Exercise{ID: primitive.NewObjectID(), Name: "Back Squat"}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.exercises", mtest.FirstBatch, toDoc(mt.T, squat)))

		got, err := repo.GetByIDs(context.Background(), []primitive.ObjectID{squat.ID})
		require.NoError(mt, err)
		require.Len(mt, got, 1)
		assert.Equal(mt, "Back Squat", got[0].Name)
	})

	mt.Run("by id not found", func(mt *mtest.T) {
		repo := &mongoExerciseRepository{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.exercises", mtest.FirstBatch))

		_, err := repo.GetByID(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, repository.ErrNotFound)
	})
}

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/workout-session/internal/domain"
	"alcyxob/workout-session/internal/repository"
)

// --- In-memory repositories ---

type fakeWorkoutRepo struct {
	workouts map[primitive.ObjectID]*domain.Workout
	err      error
}

func (r *fakeWorkoutRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	if r.err != nil {
		return nil, r.err
	}
	w, ok := r.workouts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return w, nil
}

type fakeAssignmentRepo struct {
	mu          sync.Mutex
	byWorkout   map[primitive.ObjectID][]domain.Assignment
	completed   []primitive.ObjectID
	completeErr error
}

func (r *fakeAssignmentRepo) GetByWorkoutID(_ context.Context, workoutID primitive.ObjectID) ([]domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.Assignment(nil), r.byWorkout[workoutID]...)
	return out, nil
}

func (r *fakeAssignmentRepo) MarkCompleted(_ context.Context, ids []primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeErr != nil {
		return r.completeErr
	}
	r.completed = append(r.completed, ids...)
	return nil
}

func (r *fakeAssignmentRepo) Completed() []primitive.ObjectID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]primitive.ObjectID(nil), r.completed...)
}

type fakeExerciseRepo struct {
	exercises map[primitive.ObjectID]domain.Exercise
}

func (r *fakeExerciseRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	e, ok := r.exercises[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r *fakeExerciseRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error) {
	var out []domain.Exercise
	for _, id := range ids {
		if e, ok := r.exercises[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeSessionRepo struct {
	mu         sync.Mutex
	sessions   map[string]domain.WorkoutSession
	saves      int
	saveErr    error
	archiveErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]domain.WorkoutSession)}
}

func (r *fakeSessionRepo) Save(_ context.Context, s *domain.WorkoutSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	stored := *s
	stored.ArchiveObjectKey = r.sessions[s.ID].ArchiveObjectKey
	r.sessions[s.ID] = stored
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*domain.WorkoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *fakeSessionRepo) GetLatestForWorkout(_ context.Context, clientID, workoutID, sessionDate string) (*domain.WorkoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.WorkoutSession
	for _, s := range r.sessions {
		if s.ClientID != clientID || s.WorkoutID != workoutID || s.SessionDate != sessionDate {
			continue
		}
		if latest == nil || s.UpdatedAt.After(latest.UpdatedAt) {
			s := s
			latest = &s
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return latest, nil
}

func (r *fakeSessionRepo) SetArchiveKey(_ context.Context, id, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.archiveErr != nil {
		return r.archiveErr
	}
	s, ok := r.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.ArchiveObjectKey = key
	r.sessions[id] = s
	return nil
}

func (r *fakeSessionRepo) put(s domain.WorkoutSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *fakeSessionRepo) get(id string) (domain.WorkoutSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *fakeSessionRepo) setSaveErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr = err
}

// --- In-memory object storage ---

type fakeStorage struct {
	mu       sync.Mutex
	objects  map[string][]byte
	deleted  []string
	putErr   error
	presigns []time.Duration
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (s *fakeStorage) PutObject(_ context.Context, key, _ string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = append([]byte(nil), body...)
	return nil
}

func (s *fakeStorage) GeneratePresignedDownloadURL(_ context.Context, key string, expires time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return "", errors.New("no such key")
	}
	s.presigns = append(s.presigns, expires)
	return "https://storage.test/" + key + "?signed", nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	return b, ok
}

func (s *fakeStorage) deletedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

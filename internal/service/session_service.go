package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/workout-session/internal/domain"
	"alcyxob/workout-session/internal/engine"
	"alcyxob/workout-session/internal/repository"
	"alcyxob/workout-session/internal/storage"
)

// --- Error Definitions ---
var (
	ErrNoActiveSession          = errors.New("no active workout session")
	ErrSessionNotFound          = errors.New("workout session not found")
	ErrSessionNotBelongToClient = errors.New("workout session does not belong to this client")
	ErrSessionFinished          = errors.New("workout session already finished")
	ErrArchiveNotReady          = errors.New("workout session has not been archived")
	ErrArchiveURLError          = errors.New("failed to generate archive download URL")
	ErrInvalidSessionDate       = errors.New("session date must be YYYY-MM-DD")
	ErrServiceShuttingDown      = errors.New("workout session service is shutting down")
)

// SessionDateLayout is the calendar-day key sessions are filed under.
const SessionDateLayout = "2006-01-02"

// SessionOptions configures the session host.
type SessionOptions struct {
	// Engine holds the engine settings. Its callbacks are replaced by the host.
	Engine           engine.Options
	WriteTimeout     time.Duration
	Archive          bool
	ArchiveURLExpiry time.Duration
}

// SessionService runs at most one live workout session per client.
type SessionService interface {
	SelectWorkout(ctx context.Context, clientID, workoutID primitive.ObjectID) (*domain.SessionSnapshot, error)
	Current(ctx context.Context, clientID primitive.ObjectID) (*domain.SessionSnapshot, error)
	Progress(ctx context.Context, clientID primitive.ObjectID) (*domain.Progress, error)
	Dispatch(ctx context.Context, clientID primitive.ObjectID, action engine.Action) (*domain.SessionSnapshot, error)
	Leave(ctx context.Context, clientID primitive.ObjectID) (*domain.SessionSnapshot, error)
	Resume(ctx context.Context, clientID primitive.ObjectID, sessionID string) (*domain.SessionSnapshot, error)
	WorkoutProgress(ctx context.Context, clientID, workoutID primitive.ObjectID, sessionDate string) (*domain.Progress, error)
	ArchiveURL(ctx context.Context, clientID primitive.ObjectID, sessionID string) (string, error)
	Subscribe(ctx context.Context, clientID primitive.ObjectID) (<-chan Event, func(), error)
	Shutdown(ctx context.Context) error
}

// sessionService implements the SessionService interface.
type sessionService struct {
	plans          PlanService
	sessionRepo    repository.SessionRepository
	assignmentRepo repository.AssignmentRepository
	fileStorage    storage.FileStorage
	opts           SessionOptions
	clock          engine.Clock

	mu        sync.Mutex
	hosts     map[string]*sessionHost // by client id hex
	closed    bool
	finishing sync.WaitGroup
}

// NewSessionService creates a new instance of sessionService. fileStorage may
// be nil when archiving is disabled.
func NewSessionService(
	plans PlanService,
	sessionRepo repository.SessionRepository,
	assignmentRepo repository.AssignmentRepository,
	fileStorage storage.FileStorage,
	opts SessionOptions,
) SessionService {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.ArchiveURLExpiry <= 0 {
		opts.ArchiveURLExpiry = storage.DefaultPresignedURLExpiry
	}
	clock := opts.Engine.Clock
	if clock == nil {
		clock = engine.SystemClock{}
		opts.Engine.Clock = clock
	}
	return &sessionService{
		plans:          plans,
		sessionRepo:    sessionRepo,
		assignmentRepo: assignmentRepo,
		fileStorage:    fileStorage,
		opts:           opts,
		clock:          clock,
		hosts:          make(map[string]*sessionHost),
	}
}

// SelectWorkout starts a fresh session of the workout. A session the client
// was already running is left for later first.
func (s *sessionService) SelectWorkout(ctx context.Context, clientID, workoutID primitive.ObjectID) (*domain.SessionSnapshot, error) {
	if s.isClosed() {
		return nil, ErrServiceShuttingDown
	}
	plan, err := s.plans.BuildPlan(ctx, clientID, workoutID)
	if err != nil {
		return nil, err
	}

	h := s.newHost(clientID.Hex(), workoutID.Hex(), s.clock.Now().UTC().Format(SessionDateLayout))
	eng, err := engine.New(*plan, h.engineOptions(s.opts.Engine))
	if err != nil {
		_ = h.writer.Close(ctx)
		return nil, err
	}
	snap := eng.Snapshot()
	h.writer.Submit(snap)
	h.attach(eng)
	if err := s.install(ctx, h); err != nil {
		return nil, err
	}

	h.log.Info().
		Str("workoutId", h.workoutID).
		Int("entries", len(plan.Entries)).
		Int("totalSets", snap.TotalSetCount).
		Msg("Workout session started")
	return &snap, nil
}

// Current returns the live session snapshot.
func (s *sessionService) Current(ctx context.Context, clientID primitive.ObjectID) (*domain.SessionSnapshot, error) {
	return s.run(ctx, clientID, func(*engine.Engine) error { return nil })
}

// Progress returns the progress of the live session.
func (s *sessionService) Progress(ctx context.Context, clientID primitive.ObjectID) (*domain.Progress, error) {
	snap, err := s.Current(ctx, clientID)
	if err != nil {
		return nil, err
	}
	p := domain.ProgressOf(snap)
	return &p, nil
}

// Dispatch runs one action against the live session.
func (s *sessionService) Dispatch(ctx context.Context, clientID primitive.ObjectID, action engine.Action) (*domain.SessionSnapshot, error) {
	if action.Type == engine.ActionLeaveWorkoutForLater {
		return s.Leave(ctx, clientID)
	}
	snap, err := s.run(ctx, clientID, func(e *engine.Engine) error { return e.Dispatch(action) })
	if err != nil {
		var actionErr *engine.ActionError
		if errors.As(err, &actionErr) {
			log.Debug().Err(err).Str("clientId", clientID.Hex()).Msg("Session action rejected")
		}
		return nil, err
	}
	return snap, nil
}

// Leave stores the live session and unloads it. It can be resumed later.
func (s *sessionService) Leave(ctx context.Context, clientID primitive.ObjectID) (*domain.SessionSnapshot, error) {
	h := s.host(clientID.Hex())
	if h == nil {
		return nil, ErrNoActiveSession
	}
	snap, err := h.do(ctx, func(e *engine.Engine) error { return e.LeaveWorkoutForLater() })
	if err != nil {
		return nil, err
	}
	s.remove(h)
	h.stop(ctx)
	return &snap, nil
}

// Resume loads a stored session and makes it the client's live session.
// A corrupt snapshot yields engine.ErrSnapshotCorrupt; the caller should
// select the workout again.
func (s *sessionService) Resume(ctx context.Context, clientID primitive.ObjectID, sessionID string) (*domain.SessionSnapshot, error) {
	if s.isClosed() {
		return nil, ErrServiceShuttingDown
	}
	stored, err := s.loadOwned(ctx, clientID, sessionID)
	if err != nil {
		return nil, err
	}
	if stored.Snapshot.Phase.IsTerminal() {
		return nil, ErrSessionFinished
	}
	if live := s.host(clientID.Hex()); live != nil && live.sessionID == sessionID {
		return s.run(ctx, clientID, func(*engine.Engine) error { return nil })
	}

	h := s.newHost(stored.ClientID, stored.WorkoutID, stored.SessionDate)
	eng, err := engine.Resume(stored.Snapshot, h.engineOptions(s.opts.Engine))
	if err != nil {
		_ = h.writer.Close(ctx)
		log.Warn().Err(err).
			Str("clientId", stored.ClientID).
			Str("sessionId", sessionID).
			Msg("Stored session cannot be resumed")
		return nil, err
	}
	snap := eng.Snapshot()
	h.attach(eng)
	if err := s.install(ctx, h); err != nil {
		return nil, err
	}

	h.log.Info().
		Str("phase", string(snap.Phase)).
		Int("completedSets", snap.CompletedSetCount).
		Msg("Workout session resumed")
	return &snap, nil
}

// WorkoutProgress reports how far the client got with a workout on a date.
// The live session answers when it matches; otherwise the store does.
func (s *sessionService) WorkoutProgress(ctx context.Context, clientID, workoutID primitive.ObjectID, sessionDate string) (*domain.Progress, error) {
	if _, err := time.Parse(SessionDateLayout, sessionDate); err != nil {
		return nil, ErrInvalidSessionDate
	}
	if h := s.host(clientID.Hex()); h != nil && h.workoutID == workoutID.Hex() && h.sessionDate == sessionDate {
		if p, err := s.Progress(ctx, clientID); err == nil {
			return p, nil
		}
	}

	stored, err := s.sessionRepo.GetLatestForWorkout(ctx, clientID.Hex(), workoutID.Hex(), sessionDate)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	p := domain.ProgressOf(&stored.Snapshot)
	return &p, nil
}

// ArchiveURL returns a temporary download link for a finished session.
func (s *sessionService) ArchiveURL(ctx context.Context, clientID primitive.ObjectID, sessionID string) (string, error) {
	stored, err := s.loadOwned(ctx, clientID, sessionID)
	if err != nil {
		return "", err
	}
	if stored.ArchiveObjectKey == "" || s.fileStorage == nil {
		return "", ErrArchiveNotReady
	}
	url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, stored.ArchiveObjectKey, s.opts.ArchiveURLExpiry)
	if err != nil {
		log.Error().Err(err).Str("objectKey", stored.ArchiveObjectKey).Msg("Failed to presign archive download")
		return "", ErrArchiveURLError
	}
	return url, nil
}

// Subscribe streams the live session's snapshots and ticks until cancel is
// called or the session is unloaded.
func (s *sessionService) Subscribe(ctx context.Context, clientID primitive.ObjectID) (<-chan Event, func(), error) {
	h := s.host(clientID.Hex())
	if h == nil {
		return nil, nil, ErrNoActiveSession
	}
	ch, cancel := h.events.subscribe(subscriberBuffer)
	return ch, cancel, nil
}

// Shutdown leaves every live session for later and waits for pending
// archive work. Sessions cannot be selected or resumed afterwards.
func (s *sessionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	hosts := make([]*sessionHost, 0, len(s.hosts))
	for _, h := range s.hosts {
		hosts = append(hosts, h)
	}
	s.hosts = make(map[string]*sessionHost)
	s.mu.Unlock()

	for _, h := range hosts {
		s.suspend(ctx, h)
	}

	done := make(chan struct{})
	go func() {
		s.finishing.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- Host bookkeeping ---

func (s *sessionService) newHost(clientID, workoutID, sessionDate string) *sessionHost {
	h := &sessionHost{
		clientID:     clientID,
		workoutID:    workoutID,
		sessionDate:  sessionDate,
		events:       newEventHub(),
		writeTimeout: s.opts.WriteTimeout,
		log:          log.With().Str("clientId", clientID).Logger(),
		cmds:         make(chan func(), hostQueueSize),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	h.writer = newSnapshotWriter(func(ctx context.Context, snap domain.SessionSnapshot) error {
		return s.sessionRepo.Save(ctx, &domain.WorkoutSession{
			ID:          snap.SessionID,
			ClientID:    clientID,
			WorkoutID:   workoutID,
			SessionDate: sessionDate,
			Snapshot:    snap,
			UpdatedAt:   s.clock.Now().UTC(),
		})
	}, s.opts.WriteTimeout, h.log)
	h.onFinished = func(snap domain.SessionSnapshot) {
		s.finishing.Add(1)
		go func() {
			defer s.finishing.Done()
			s.finish(h, snap)
		}()
	}
	return h
}

func (s *sessionService) host(clientID string) *sessionHost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hosts[clientID]
}

func (s *sessionService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// install makes h the client's live session, suspending the previous one.
// After Shutdown h is left for later straight away.
func (s *sessionService) install(ctx context.Context, h *sessionHost) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.suspend(ctx, h)
		return ErrServiceShuttingDown
	}
	prev := s.hosts[h.clientID]
	s.hosts[h.clientID] = h
	s.mu.Unlock()
	if prev != nil {
		s.suspend(ctx, prev)
	}
	return nil
}

func (s *sessionService) remove(h *sessionHost) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hosts[h.clientID] == h {
		delete(s.hosts, h.clientID)
	}
}

// suspend leaves an unfinished session for later and stops its host.
func (s *sessionService) suspend(ctx context.Context, h *sessionHost) {
	_, err := h.do(ctx, func(e *engine.Engine) error {
		if e.Phase().IsTerminal() {
			return nil
		}
		return e.LeaveWorkoutForLater()
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to leave session before unloading it")
	}
	h.stop(ctx)
}

func (s *sessionService) run(ctx context.Context, clientID primitive.ObjectID, fn func(*engine.Engine) error) (*domain.SessionSnapshot, error) {
	h := s.host(clientID.Hex())
	if h == nil {
		return nil, ErrNoActiveSession
	}
	snap, err := h.do(ctx, fn)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *sessionService) loadOwned(ctx context.Context, clientID primitive.ObjectID, sessionID string) (*domain.WorkoutSession, error) {
	stored, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if stored.ClientID != clientID.Hex() {
		return nil, ErrSessionNotBelongToClient
	}
	return stored, nil
}

// --- Finished sessions ---

// finish runs once per session after it reaches a terminal phase: fully
// performed assignments are marked completed and the final snapshot is
// archived to object storage.
func (s *sessionService) finish(h *sessionHost, snap domain.SessionSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*s.opts.WriteTimeout)
	defer cancel()

	if err := h.writer.Flush(ctx); err != nil {
		h.log.Error().Err(err).Msg("Final session snapshot not stored")
	}
	s.markAssignmentsCompleted(ctx, h, snap)
	if s.opts.Archive && s.fileStorage != nil {
		s.archive(ctx, h, snap)
	}
}

func (s *sessionService) markAssignmentsCompleted(ctx context.Context, h *sessionHost, snap domain.SessionSnapshot) {
	done := make(map[string]int, len(snap.Queue))
	for _, r := range snap.Records {
		if r.Status == domain.SetCompleted {
			done[r.EntryID]++
		}
	}
	var ids []primitive.ObjectID
	for _, q := range snap.Queue {
		if done[q.EntryID] != q.TargetSets {
			continue
		}
		id, err := primitive.ObjectIDFromHex(q.EntryID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}
	if err := s.assignmentRepo.MarkCompleted(ctx, ids); err != nil {
		h.log.Error().Err(err).Int("assignments", len(ids)).Msg("Failed to mark assignments completed")
		return
	}
	h.log.Info().Int("assignments", len(ids)).Msg("Assignments marked completed")
}

// ArchiveObjectKey is where the final snapshot of a session is stored.
func ArchiveObjectKey(clientID, sessionID string) string {
	return path.Join("sessions", clientID, sessionID+".json")
}

func (s *sessionService) archive(ctx context.Context, h *sessionHost, snap domain.SessionSnapshot) {
	body, err := json.MarshalIndent(domain.WorkoutSession{
		ID:          snap.SessionID,
		ClientID:    h.clientID,
		WorkoutID:   h.workoutID,
		SessionDate: h.sessionDate,
		Snapshot:    snap,
		UpdatedAt:   snap.LastMutatedAt,
	}, "", "  ")
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode session archive")
		return
	}

	key := ArchiveObjectKey(h.clientID, snap.SessionID)
	if err := s.fileStorage.PutObject(ctx, key, "application/json", body); err != nil {
		h.log.Error().Err(err).Str("objectKey", key).Msg("Failed to upload session archive")
		return
	}
	if err := s.sessionRepo.SetArchiveKey(ctx, snap.SessionID, key); err != nil {
		h.log.Error().Err(err).Str("objectKey", key).Msg("Failed to record session archive; removing object")
		if delErr := s.fileStorage.DeleteObject(ctx, key); delErr != nil {
			h.log.Error().Err(delErr).Str("objectKey", key).Msg("Failed to remove orphaned session archive")
		}
		return
	}
	h.log.Info().Str("objectKey", key).Msg("Session archived")
}

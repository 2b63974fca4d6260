package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/workout-session/internal/domain"
	"alcyxob/workout-session/internal/engine"
	"alcyxob/workout-session/internal/service"
)

// FallbackSelectWorkout tells the app to start the workout again when a
// stored session cannot be resumed.
const FallbackSelectWorkout = "select_workout"

// nowUTC picks the default day for progress queries.
var nowUTC = func() time.Time { return time.Now().UTC() }

type SessionHandler struct {
	sessionService service.SessionService
}

func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// --- DTOs ---

// ArchiveURLResponse carries a temporary download link.
type ArchiveURLResponse struct {
	URL string `json:"url"`
}

// --- Handler Methods ---

// SelectWorkout godoc
// @Summary Start a workout session
// @Description Builds a session from the workout's assignments and makes it the client's live session. A running session is left for later first.
// @Tags Session
// @Produce json
// @Security BearerAuth
// @Param workoutId path string true "Workout's ObjectID Hex"
// @Success 201 {object} domain.SessionSnapshot
// @Failure 400 {object} gin.H "Invalid workout ID format"
// @Failure 403 {object} gin.H "Workout not assigned to this client"
// @Failure 404 {object} gin.H "Workout not found"
// @Failure 422 {object} gin.H "Workout cannot be run"
// @Failure 503 {object} gin.H "Server shutting down"
// @Router /client/workouts/{workoutId}/sessions [post]
func (h *SessionHandler) SelectWorkout(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		return
	}
	workoutID, ok := objectIDParam(c, "workoutId", "Invalid workout ID format.")
	if !ok {
		return
	}

	snap, err := h.sessionService.SelectWorkout(c.Request.Context(), clientID, workoutID)
	if err != nil {
		respondWithServiceError(c, err, "Failed to start workout session.")
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// GetCurrent godoc
// @Summary Get the live session
// @Tags Session
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.SessionSnapshot
// @Failure 404 {object} gin.H "No active session"
// @Router /client/session [get]
func (h *SessionHandler) GetCurrent(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		return
	}
	snap, err := h.sessionService.Current(c.Request.Context(), clientID)
	if err != nil {
		respondWithServiceError(c, err, "Failed to read workout session.")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetProgress godoc
// @Summary Get progress of the live session
// @Tags Session
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.Progress
// @Failure 404 {object} gin.H "No active session"
// @Router /client/session/progress [get]
func (h *SessionHandler) GetProgress(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		return
	}
	progress, err := h.sessionService.Progress(c.Request.Context(), clientID)
	if err != nil {
		respondWithServiceError(c, err, "Failed to read workout progress.")
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Dispatch godoc
// @Summary Run a session action
// @Description Applies one action (complete_set, jump_to_exercise, extend_rest, ...) to the live session.
// @Tags Session
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param action body engine.Action true "Action and its arguments"
// @Success 200 {object} domain.SessionSnapshot
// @Failure 400 {object} gin.H "Malformed body"
// @Failure 404 {object} gin.H "No active session"
// @Failure 409 {object} gin.H "Action not allowed now"
// @Failure 422 {object} gin.H "Invalid target or value"
// @Router /client/session/actions [post]
func (h *SessionHandler) Dispatch(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		return
	}
	var action engine.Action
	if err := c.ShouldBindJSON(&action); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if action.Type == "" {
		abortWithError(c, http.StatusBadRequest, "action is required")
		return
	}

	snap, err := h.sessionService.Dispatch(c.Request.Context(), clientID, action)
	if err != nil {
		respondWithServiceError(c, err, "Failed to apply session action.")
		return
	}
	log.Debug().
		Str("clientId", clientID.Hex()).
		Str("action", string(action.Type)).
		Str("phase", phaseOf(snap)).
		Msg("Session action applied")
	c.JSON(http.StatusOK, snap)
}

// Leave godoc
// @Summary Leave the workout for later
// @Description Stores the live session and unloads it; resume it with its session ID.
// @Tags Session
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.SessionSnapshot
// @Failure 404 {object} gin.H "No active session"
// @Router /client/session/leave [post]
func (h *SessionHandler) Leave(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		return
	}
	snap, err := h.sessionService.Leave(c.Request.Context(), clientID)
	if err != nil {
		respondWithServiceError(c, err, "Failed to leave workout session.")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Resume godoc
// @Summary Resume a stored session
// @Tags Session
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} domain.SessionSnapshot
// @Failure 403 {object} gin.H "Session belongs to another client"
// @Failure 404 {object} gin.H "Session not found"
// @Failure 409 {object} gin.H "Session finished, or stored snapshot unusable (fallback: select_workout)"
// @Failure 503 {object} gin.H "Server shutting down"
// @Router /client/sessions/{sessionId}/resume [post]
func (h *SessionHandler) Resume(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		return
	}
	snap, err := h.sessionService.Resume(c.Request.Context(), clientID, c.Param("sessionId"))
	if err != nil {
		if errors.Is(err, engine.ErrSnapshotCorrupt) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error":    "Stored session cannot be resumed.",
				"fallback": FallbackSelectWorkout,
			})
			return
		}
		respondWithServiceError(c, err, "Failed to resume workout session.")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetWorkoutProgress godoc
// @Summary Get a workout's progress on a day
// @Description Reads the live session when it matches, otherwise the latest stored session of that workout and day.
// @Tags Session
// @Produce json
// @Security BearerAuth
// @Param workoutId path string true "Workout's ObjectID Hex"
// @Param date query string false "Day as YYYY-MM-DD (UTC), defaults to today"
// @Success 200 {object} domain.Progress
// @Failure 400 {object} gin.H "Invalid workout ID or date"
// @Failure 404 {object} gin.H "No session that day"
// @Router /client/workouts/{workoutId}/progress [get]
func (h *SessionHandler) GetWorkoutProgress(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		return
	}
	workoutID, ok := objectIDParam(c, "workoutId", "Invalid workout ID format.")
	if !ok {
		return
	}
	date := c.Query("date")
	if date == "" {
		date = nowUTC().Format(service.SessionDateLayout)
	}

	progress, err := h.sessionService.WorkoutProgress(c.Request.Context(), clientID, workoutID, date)
	if err != nil {
		respondWithServiceError(c, err, "Failed to read workout progress.")
		return
	}
	c.JSON(http.StatusOK, progress)
}

// GetArchiveURL godoc
// @Summary Get a download link for a finished session
// @Tags Session
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} ArchiveURLResponse
// @Failure 403 {object} gin.H "Session belongs to another client"
// @Failure 404 {object} gin.H "Session or archive not found"
// @Router /client/sessions/{sessionId}/archive [get]
func (h *SessionHandler) GetArchiveURL(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		return
	}
	url, err := h.sessionService.ArchiveURL(c.Request.Context(), clientID, c.Param("sessionId"))
	if err != nil {
		respondWithServiceError(c, err, "Failed to generate archive download URL.")
		return
	}
	c.JSON(http.StatusOK, ArchiveURLResponse{URL: url})
}

// StreamEvents godoc
// @Summary Stream live session updates
// @Description Server-sent events: "snapshot" after every change and "tick" for every timer second. Starts with the current snapshot.
// @Tags Session
// @Produce text/event-stream
// @Security BearerAuth
// @Failure 404 {object} gin.H "No active session"
// @Router /client/session/events [get]
func (h *SessionHandler) StreamEvents(c *gin.Context) {
	clientID, ok := clientIDFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	events, cancel, err := h.sessionService.Subscribe(ctx, clientID)
	if err != nil {
		respondWithServiceError(c, err, "Failed to open event stream.")
		return
	}
	defer cancel()

	snap, err := h.sessionService.Current(ctx, clientID)
	if err != nil {
		respondWithServiceError(c, err, "Failed to open event stream.")
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(service.EventSnapshot, service.Event{Type: service.EventSnapshot, Snapshot: snap})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-events:
			if !open {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// --- Helpers ---

func objectIDParam(c *gin.Context, name, message string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, message)
		return primitive.NilObjectID, false
	}
	return id, true
}

// respondWithServiceError maps service and engine errors onto HTTP statuses.
// Anything unknown is logged and reported as a 500 with fallback.
func respondWithServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNoActiveSession),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrWorkoutNotFound),
		errors.Is(err, service.ErrArchiveNotReady):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrWorkoutNotBelongToClient),
		errors.Is(err, service.ErrSessionNotBelongToClient):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidSessionDate):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSessionFinished),
		errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrSetAlreadyActive),
		errors.Is(err, engine.ErrRecordImmutable):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrInvalidTarget),
		errors.Is(err, engine.ErrInvalidValue),
		errors.Is(err, engine.ErrInvalidPlan),
		errors.Is(err, service.ErrWorkoutHasNoExercises):
		abortWithError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrServiceShuttingDown):
		abortWithError(c, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Session request failed")
		abortWithError(c, http.StatusInternalServerError, fallback)
	}
}

// phaseOf is used in request logs.
func phaseOf(snap *domain.SessionSnapshot) string {
	if snap == nil {
		return ""
	}
	return string(snap.Phase)
}

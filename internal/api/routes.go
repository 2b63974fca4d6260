package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alcyxob/workout-session/internal/domain"
	"alcyxob/workout-session/internal/service"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	sessionService service.SessionService,
) {
	sessionHandler := NewSessionHandler(sessionService)
	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- Client Session Routes ---
		// One live session per client; every route acts on the caller's own.
		clientGroup := protected.Group("/client")
		clientGroup.Use(RoleMiddleware(domain.RoleClient))
		{
			// POST /api/v1/client/workouts/{workoutId}/sessions
			clientGroup.POST("/workouts/:workoutId/sessions", sessionHandler.SelectWorkout)
			// GET /api/v1/client/workouts/{workoutId}/progress?date=YYYY-MM-DD
			clientGroup.GET("/workouts/:workoutId/progress", sessionHandler.GetWorkoutProgress)

			clientGroup.GET("/session", sessionHandler.GetCurrent)
			clientGroup.GET("/session/progress", sessionHandler.GetProgress)
			clientGroup.GET("/session/events", sessionHandler.StreamEvents)
			clientGroup.POST("/session/actions", sessionHandler.Dispatch)
			clientGroup.POST("/session/leave", sessionHandler.Leave)

			// POST /api/v1/client/sessions/{sessionId}/resume
			clientGroup.POST("/sessions/:sessionId/resume", sessionHandler.Resume)
			// GET /api/v1/client/sessions/{sessionId}/archive
			clientGroup.GET("/sessions/:sessionId/archive", sessionHandler.GetArchiveURL)
		}
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"alcyxob/workout-session/internal/api"
	"alcyxob/workout-session/internal/config"
	"alcyxob/workout-session/internal/engine"
	"alcyxob/workout-session/internal/logging"
	"alcyxob/workout-session/internal/repository/mongo"
	"alcyxob/workout-session/internal/service"
	"alcyxob/workout-session/internal/storage"
)

// @title Workout Session API
// @version 1.0
// @description Runs clients' workouts live: warmup, sets, rest timers, reordering and resume.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	logging.Setup(logging.Options{Level: "info"})
	log.Info().Msg("Starting Workout Session Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load config")
	}
	logging.Setup(logging.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	log.Info().
		Str("resumePolicy", cfg.Engine.ResumePolicy).
		Bool("archive", cfg.Persist.Archive).
		Msg("Configuration loaded")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not connect to MongoDB")
	}
	defer func() {
		log.Info().Msg("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Error().Err(err).Msg("Failed to disconnect MongoDB")
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Info().Str("database", cfg.Database.Name).Msg("Database connection established")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
			log.Error().Err(err).Msg("Index creation incomplete")
			return
		}
		log.Info().Msg("Index creation process completed")
	}()

	// --- Initialize Storage ---
	var fileStorage storage.FileStorage
	if cfg.Persist.Archive {
		fileStorage, err = storage.NewS3Storage(context.Background(), cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 storage")
		}
	}

	// --- Initialize Repositories ---
	workoutRepo := mongo.NewMongoWorkoutRepository(appDB)
	assignmentRepo := mongo.NewMongoAssignmentRepository(appDB)
	exerciseRepo := mongo.NewMongoExerciseRepository(appDB)
	sessionRepo := mongo.NewMongoSessionRepository(appDB)

	// --- Initialize Services ---
	planService := service.NewPlanService(workoutRepo, assignmentRepo, exerciseRepo, cfg.Engine.RestSeconds)
	sessionService := service.NewSessionService(planService, sessionRepo, assignmentRepo, fileStorage, service.SessionOptions{
		Engine: engine.Options{
			TickInterval:    cfg.Engine.TickInterval,
			WarmupSeconds:   cfg.Engine.WarmupSeconds,
			TrackSetElapsed: cfg.Engine.TrackSetElapsed,
			ResumePolicy:    engine.ResumePolicy(cfg.Engine.ResumePolicy),
		},
		WriteTimeout:     cfg.Persist.WriteTimeout,
		Archive:          cfg.Persist.Archive,
		ArchiveURLExpiry: cfg.Persist.ArchiveURLExpiry,
	})

	// --- Initialize Gin Engine ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger())
	api.SetupRoutes(router, cfg.JWT.Secret, sessionService)

	// --- Start HTTP Server ---
	// No WriteTimeout: the event stream stays open for the whole workout.
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe error")
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	// Live sessions are left for later so clients can resume after restart.
	if err := sessionService.Shutdown(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("Sessions did not shut down cleanly")
	}
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exiting")
}

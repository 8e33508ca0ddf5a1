package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/provigil/proctor-backend/internal/backend"
	"github.com/provigil/proctor-backend/internal/config"
	"github.com/provigil/proctor-backend/internal/database"
	"github.com/provigil/proctor-backend/internal/downstream"
	"github.com/provigil/proctor-backend/internal/handler"
	"github.com/provigil/proctor-backend/internal/logger"
	"github.com/provigil/proctor-backend/internal/repository"
	"github.com/provigil/proctor-backend/internal/router"
	"github.com/provigil/proctor-backend/internal/service"
	"github.com/provigil/proctor-backend/internal/validator"
	"github.com/provigil/proctor-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("backend", cfg.DefaultBackend).
		Msg("Starting Proctor Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	allowanceRepo := repository.NewAllowanceRepository(pool)
	reviewRepo := repository.NewReviewRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	// ─── Proctoring Backends ───────────────────────────────────────────
	registry := backend.NewRegistry(cfg.DefaultBackend)
	registry.Register(backend.NewNull())
	registry.Register(backend.NewMock())
	if cfg.VendorBaseURL != "" {
		registry.Register(backend.NewREST(cfg, log))
	}

	// ─── Downstream Platform Services ──────────────────────────────────
	platform := buildDownstream(cfg, rdb, log)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(userRepo, cfg, rdb)
	examService := service.NewExamService(examRepo, registry, log)
	allowanceService := service.NewAllowanceService(allowanceRepo, examRepo, userRepo, log)
	attemptService := service.NewAttemptService(
		attemptRepo, examRepo, userRepo, allowanceService, registry, platform, cfg, log)
	reviewService := service.NewReviewService(
		reviewRepo, attemptRepo, examRepo, attemptService, registry, cfg, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Exam:      handler.NewExamHandler(examService),
		Attempt:   handler.NewAttemptHandler(attemptService),
		Allowance: handler.NewAllowanceHandler(allowanceService),
		Review:    handler.NewReviewHandler(reviewService),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	emailWorker := worker.NewEmailWorker(rdb, cfg, log)
	go emailWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, platform.Instructor, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// buildDownstream wires the platform service clients: real HTTP clients
// where URLs are configured, logging no-ops otherwise. Email always goes
// through the Redis queue so the worker owns SMTP.
func buildDownstream(cfg *config.Config, rdb *redis.Client, log zerolog.Logger) downstream.Services {
	svcs := downstream.NoopServices(log)
	if cfg.CreditServiceURL != "" {
		svcs.Credit = downstream.NewHTTPCredit(cfg)
	}
	if cfg.GradesServiceURL != "" {
		svcs.Grades = downstream.NewHTTPGrades(cfg)
	}
	if cfg.InstructorServiceURL != "" {
		svcs.Instructor = downstream.NewHTTPInstructor(cfg)
	}
	svcs.Email = downstream.NewRedisEmailSender(rdb)
	return svcs
}

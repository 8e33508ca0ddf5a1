package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/provigil/proctor-backend/internal/backend"
	"github.com/provigil/proctor-backend/internal/config"
	"github.com/provigil/proctor-backend/internal/database"
	"github.com/provigil/proctor-backend/internal/downstream"
	"github.com/provigil/proctor-backend/internal/logger"
	"github.com/provigil/proctor-backend/internal/repository"
	"github.com/provigil/proctor-backend/internal/service"
)

func main() {
	var (
		interval  time.Duration
		batchSize int
		once      bool
	)
	flag.DurationVar(&interval, "interval", time.Minute, "Delay between sweeps")
	flag.IntVar(&batchSize, "batch", 100, "Maximum attempts expired per sweep")
	flag.BoolVar(&once, "once", false, "Run a single sweep and exit")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log = log.With().Str("component", "expire_attempts").Logger()

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

	// ─── Wire the Attempt Engine ───────────────────────────────────────
	// Timeouts go through the same transition engine as the API server so
	// downstream effects (credit, email) fire for swept attempts too.
	examRepo := repository.NewExamRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	allowanceRepo := repository.NewAllowanceRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	registry := backend.NewRegistry(cfg.DefaultBackend)
	registry.Register(backend.NewNull())
	registry.Register(backend.NewMock())
	if cfg.VendorBaseURL != "" {
		registry.Register(backend.NewREST(cfg, log))
	}

	platform := downstream.NoopServices(log)
	if cfg.CreditServiceURL != "" {
		platform.Credit = downstream.NewHTTPCredit(cfg)
	}
	if cfg.GradesServiceURL != "" {
		platform.Grades = downstream.NewHTTPGrades(cfg)
	}
	if cfg.InstructorServiceURL != "" {
		platform.Instructor = downstream.NewHTTPInstructor(cfg)
	}
	platform.Email = downstream.NewRedisEmailSender(rdb)

	allowanceService := service.NewAllowanceService(allowanceRepo, examRepo, userRepo, log)
	attemptService := service.NewAttemptService(
		attemptRepo, examRepo, userRepo, allowanceService, registry, platform, cfg, log)

	// ─── Sweep Loop ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep := func() {
		total := 0
		for {
			n, err := attemptService.SweepOverdue(ctx, batchSize)
			if err != nil {
				log.Error().Err(err).Msg("Sweep failed")
				return
			}
			total += n
			if n < batchSize {
				break
			}
		}
		if total > 0 {
			log.Info().Int("expired", total).Msg("Sweep complete")
		}
	}

	sweep()
	if once {
		return
	}

	for {
		select {
		case sig := <-quit:
			log.Info().Str("signal", sig.String()).Msg("Shutting down")
			return
		case <-ticker.C:
			sweep()
		}
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corrigolabs/corrigo-backend/internal/ai"
	"github.com/corrigolabs/corrigo-backend/internal/config"
	"github.com/corrigolabs/corrigo-backend/internal/database"
	"github.com/corrigolabs/corrigo-backend/internal/handler"
	"github.com/corrigolabs/corrigo-backend/internal/logger"
	"github.com/corrigolabs/corrigo-backend/internal/mailer"
	"github.com/corrigolabs/corrigo-backend/internal/repository"
	"github.com/corrigolabs/corrigo-backend/internal/router"
	"github.com/corrigolabs/corrigo-backend/internal/service"
	"github.com/corrigolabs/corrigo-backend/internal/validator"
	"github.com/corrigolabs/corrigo-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Corrigo Backend")

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
	professorRepo := repository.NewProfessorRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	gradeRepo := repository.NewGradeRepository(pool)
	jobRepo := repository.NewGradingJobRepository(pool)
	operationRepo := repository.NewOperationRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	mail := mailer.New(cfg.ResendAPIKey, cfg.MailFrom, log)
	aiClient := ai.NewClient(cfg, log)

	authService := service.NewAuthService(cfg, professorRepo)
	examService := service.NewExamService(examRepo, questionRepo, log)
	submissionService := service.NewSubmissionService(examRepo, questionRepo, submissionRepo, gradeRepo, log)
	gradingService := service.NewGradingService(examRepo, questionRepo, submissionRepo, gradeRepo, log)
	finalizeService := service.NewFinalizeService(examRepo, questionRepo, submissionRepo, gradeRepo, operationRepo, mail, cfg.NotifyConcurrency, log)
	statsService := service.NewStatsService(examRepo, submissionRepo, gradeRepo, log)
	jobService := service.NewJobService(examRepo, jobRepo, rdb, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		Exam:       handler.NewExamHandler(examService, statsService),
		Submission: handler.NewSubmissionHandler(submissionService, examService),
		Grading:    handler.NewGradingHandler(gradingService, finalizeService),
		Job:        handler.NewJobHandler(jobService),
		WS:         handler.NewWSHandler(rdb, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Worker ──────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	gradingWorker := worker.NewGradingWorker(
		cfg, rdb, aiClient,
		professorRepo, examRepo, questionRepo, submissionRepo, gradeRepo, jobRepo,
		jobService, mail, log,
	)
	go gradingWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

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

	// 2. Stop the worker and let an in-flight job wind down.
	workerCancel()
	time.Sleep(2 * time.Second)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

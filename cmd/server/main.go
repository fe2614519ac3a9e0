package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/formcraft/internal/config"
	"github.com/stemsi/formcraft/internal/database"
	"github.com/stemsi/formcraft/internal/handler"
	"github.com/stemsi/formcraft/internal/logger"
	"github.com/stemsi/formcraft/internal/monitoring"
	"github.com/stemsi/formcraft/internal/repository"
	"github.com/stemsi/formcraft/internal/router"
	"github.com/stemsi/formcraft/internal/service"
	"github.com/stemsi/formcraft/internal/validator"
	"github.com/stemsi/formcraft/internal/worker"
)

const workerDrainTimeout = 10 * time.Second

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("storage", cfg.StorageDriver).
		Msg("Starting Formcraft")

	// ─── Initialize Validator & Metrics ────────────────────────────────
	validator.Setup()
	monitoring.Init()

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
	formRepo := repository.NewFormRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	formCache := repository.NewFormCache(rdb, cfg.DraftTTL)
	responseCache := repository.NewResponseCache(rdb, cfg.ResponseTTL)
	submissionQueue := repository.NewSubmissionQueue(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	storage, err := service.NewStorageProvider(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize media storage")
	}
	mediaService := service.NewMediaService(storage, cfg.MaxUploadBytes)
	editorService := service.NewEditorService(formRepo, formCache, log)
	respondentService := service.NewRespondentService(editorService, responseCache, submissionRepo, submissionQueue, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Form:     handler.NewFormHandler(editorService, respondentService, log),
		Response: handler.NewResponseHandler(respondentService, log),
		Media:    handler.NewMediaHandler(mediaService, log),
		WS:       handler.NewWSHandler(editorService, respondentService, log, cfg.AllowedOrigins),
		System:   handler.NewSystemHandler(pool, rdb, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	submissionWorker := worker.NewSubmissionWorker(rdb, submissionRepo, log)
	go func() {
		defer close(workerDone)
		submissionWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	// 2. Drop in-memory sessions. Drafts and answers stay in Redis.
	editorService.Shutdown()
	respondentService.Shutdown()

	// 3. Stop the worker and let it drain the submission queue.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(workerDrainTimeout):
		log.Warn().Msg("Submission worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/casafield/leadpipe/internal/audit"
	"github.com/casafield/leadpipe/internal/database"
	"github.com/casafield/leadpipe/internal/exports"
	"github.com/casafield/leadpipe/internal/leads"
	"github.com/casafield/leadpipe/internal/tasks"
	"github.com/casafield/leadpipe/pkg/config"
	"github.com/casafield/leadpipe/pkg/crypto"
	"github.com/casafield/leadpipe/pkg/queue"
	"github.com/casafield/leadpipe/pkg/util"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// retentionCron fires the daily sweep that purges audit logs past their
// retention date.
const retentionCron = "0 3 * * *"

func main() {
	// Load .env file
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting leadpipe worker")

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Encryptor for sensitive audit metadata
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - sensitive audit metadata will be unreadable after restart")
	}

	auditService := audit.NewService(db, encryptor, logger)
	leadService := leads.NewService(leads.NewRepository(db), nil, logger)
	exportService := exports.NewService(db, leadService, nil, cfg.Exports.Dir, logger)

	// Asynq client for the cron-driven retention sweep
	asynqClient := queue.NewClient(&cfg.Redis)
	defer asynqClient.Close()

	srv := queue.NewServer(&cfg.Redis, 10)

	handler := tasks.NewHandler(auditService, exportService, logger)
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Daily retention sweep
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(retentionCron, func() {
		if _, err := asynqClient.Enqueue(tasks.NewRetentionSweepTask(), asynq.Queue("low")); err != nil {
			logger.Error("enqueueing retention sweep", "error", err)
		}
	}); err != nil {
		logger.Error("registering retention sweep", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	if next, err := util.NextCronTime(retentionCron, time.Now()); err == nil {
		logger.Info("retention sweep scheduled", "next_run", next)
	}

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		scheduler.Stop()
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	<-ctx.Done()

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}

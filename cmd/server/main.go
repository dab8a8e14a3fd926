package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/casafield/leadpipe/internal/access"
	"github.com/casafield/leadpipe/internal/api"
	"github.com/casafield/leadpipe/internal/audit"
	"github.com/casafield/leadpipe/internal/auth"
	"github.com/casafield/leadpipe/internal/database"
	"github.com/casafield/leadpipe/pkg/config"
	"github.com/casafield/leadpipe/pkg/queue"
	"github.com/casafield/leadpipe/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

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

	logger.Info("starting leadpipe server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis", "error", err)
		redisClient = nil
	}

	// Asynq client feeds the audit channel and export jobs. Without Redis
	// the recorder degrades to a no-op and exports cannot run.
	asynqClient := queue.NewClient(&cfg.Redis)
	inspector := queue.NewInspector(&cfg.Redis)
	if redisClient == nil {
		asynqClient = nil
		inspector = nil
		logger.Warn("Redis unavailable, audit events and exports are disabled")
	}

	checker := access.NewChecker(access.DefaultRolePermissions())
	recorder := audit.NewRecorder(asynqClient, logger)

	var google *auth.GoogleVerifier
	if cfg.Google.Enabled() {
		google = auth.NewGoogleVerifier(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	} else {
		logger.Info("Google sign-in disabled, GOOGLE_CLIENT_ID not set")
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, checker, recorder, google)

	router := api.NewRouter(api.RouterConfig{
		DB:            db,
		Redis:         redisClient,
		Logger:        logger,
		JWTService:    jwtService,
		AuthService:   authService,
		Checker:       checker,
		Recorder:      recorder,
		AuditService:  audit.NewService(db, nil, logger),
		AsynqClient:   asynqClient,
		Inspector:     inspector,
		ExportDir:     cfg.Exports.Dir,
		RateLimitReqs: cfg.RateLimit.Requests,
		RateLimitSecs: cfg.RateLimit.WindowSeconds,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if asynqClient != nil {
		asynqClient.Close()
	}
	if inspector != nil {
		inspector.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}

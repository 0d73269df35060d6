package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"loginguard/internal/config"
	httpserver "loginguard/internal/http"
	"loginguard/internal/notification"
	"loginguard/pkg/auth"
	"loginguard/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	// Initialize repositories
	usersRepo := repository.NewUsersRepository(db)
	sessionsRepo := repository.NewSessionsRepository(db)
	tokensRepo := repository.NewTokensRepository(db)

	// Attempt tracker and lockout notifier. With Redis configured the
	// tracker and the event queue are shared across replicas; without
	// it both stay in-process.
	var tracker auth.AttemptTracker
	var notifier auth.LockoutNotifier

	var dispatcher *notification.Dispatcher
	var worker *notification.LockoutWorker

	if cfg.HasRedis() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		tracker = auth.NewRedisTracker(redisClient, cfg.MaxLoginAttempts, cfg.LockoutWindow)

		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		notifier = notification.NewAsynqNotifier(redisOpt)
		worker = notification.NewLockoutWorker(redisOpt, usersRepo, logger)
		worker.Start()

		logger.Info("redis attempt tracker and lockout queue enabled", "addr", cfg.RedisAddr)
	} else {
		tracker = auth.NewMemoryTracker(cfg.MaxLoginAttempts, cfg.LockoutWindow)
		dispatcher = notification.NewDispatcher(usersRepo, logger, 64)
		notifier = dispatcher

		logger.Info("in-process attempt tracker and lockout dispatcher enabled")
	}

	// Initialize services
	policy := auth.NewLockoutPolicy(usersRepo, tracker, notifier, logger)
	sessionService := auth.NewSessionService(sessionsRepo, cfg.SessionTTL)
	tokenService := auth.NewTokenService(auth.TokenConfig{
		JWTSecret:       []byte(cfg.JWTSecret),
		Issuer:          cfg.JWTIssuer,
		TokenTTL:        cfg.TokenTTL,
		MaxActiveTokens: cfg.MaxActiveTokens,
	}, tokensRepo)

	// Periodic cleanup of expired sessions and token rows
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go runJanitor(janitorCtx, logger, sessionsRepo, tokensRepo)

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:             logger,
		Policy:             policy,
		SessionService:     sessionService,
		TokenService:       tokenService,
		RateLimit:          cfg.RateLimit,
		SecurityHeaders:    cfg.SecurityHeaders,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	stopJanitor()

	// Drain pending lockout events before exiting so threshold
	// crossings observed during shutdown still flag their accounts.
	if dispatcher != nil {
		dispatcher.Close()
	}
	if worker != nil {
		worker.Shutdown()
	}

	logger.Info("server stopped")
}

// runJanitor deletes long-expired session and token rows every hour.
func runJanitor(ctx context.Context, logger *slog.Logger, sessions *repository.SessionsRepository, tokens *repository.TokensRepository) {
	const retention = 24 * time.Hour

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := sessions.DeleteExpired(ctx, retention); err != nil {
				logger.Error("session cleanup failed", "error", err)
			} else if n > 0 {
				logger.Info("expired sessions deleted", "count", n)
			}
			if n, err := tokens.DeleteExpired(ctx, retention); err != nil {
				logger.Error("token cleanup failed", "error", err)
			} else if n > 0 {
				logger.Info("expired tokens deleted", "count", n)
			}
		}
	}
}

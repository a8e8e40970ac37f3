package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shax201/mock-test-v1-sub003/internal/cache"
	"github.com/shax201/mock-test-v1-sub003/internal/config"
	"github.com/shax201/mock-test-v1-sub003/internal/handlers"
	"github.com/shax201/mock-test-v1-sub003/internal/models"
	"github.com/shax201/mock-test-v1-sub003/internal/repositories"
	"github.com/shax201/mock-test-v1-sub003/internal/repositories/postgres"
	"github.com/shax201/mock-test-v1-sub003/internal/services"
	"github.com/shax201/mock-test-v1-sub003/internal/utils"
	"github.com/shax201/mock-test-v1-sub003/pkg"
)

// sweepInterval is how often expired in-progress sessions get closed out.
const sweepInterval = time.Minute

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var appLogger utils.Logger
	if cfg.Environment == "production" {
		appLogger = utils.NewDefaultLogger()
		gin.SetMode(gin.ReleaseMode)
	} else {
		appLogger = utils.NewDevelopmentLogger()
	}
	slogLogger := utils.ToSlogLogger(appLogger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		slogLogger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Test{},
		&models.TestPart{},
		&models.Question{},
		&models.BandScoreRange{},
		&models.TestSession{},
	); err != nil {
		slogLogger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		slogLogger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	publisher, err := cfg.Events.CreateEventPublisher(slogLogger)
	if err != nil {
		slogLogger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	repo := postgres.NewRepository(db)
	cacheService := cache.NewRedisCache(redisClient, slogLogger)
	serviceManager := services.NewServiceManager(repo, cacheService, publisher, cfg, slogLogger)
	validator := utils.NewValidator()

	handlers.InitAuth(cfg)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(appLogger))

	handlerManager := handlers.NewHandlerManager(serviceManager, repo, validator, appLogger)
	handlerManager.SetupRoutes(router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runExpirySweeper(ctx, repo, serviceManager.Session(), cfg.SubmitGrace, slogLogger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slogLogger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogLogger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slogLogger.Info("Shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slogLogger.Error("Forced shutdown", "error", err)
	}

	if err := repo.Close(); err != nil {
		slogLogger.Error("Failed to close database", "error", err)
	}

	slogLogger.Info("Server stopped")
}

// runExpirySweeper closes sessions whose deadline passed without a submit so
// scoring does not depend on the client coming back.
func runExpirySweeper(
	ctx context.Context,
	repo repositories.Repository,
	sessionService services.SessionService,
	grace time.Duration,
	logger *slog.Logger,
) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-grace)
			expired, err := repo.Session().GetExpired(ctx, cutoff, 100)
			if err != nil {
				logger.Error("Expiry sweep query failed", "error", err)
				continue
			}

			for _, session := range expired {
				if err := sessionService.HandleTimeout(ctx, session.ID, 0); err != nil {
					logger.Error("Failed to time out session",
						"session_id", session.ID, "error", err)
				}
			}

			if len(expired) > 0 {
				logger.Info("Expiry sweep closed sessions", "count", len(expired))
			}
		}
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/cache"
	"github.com/SAP-F-2025/assessment-runner/internal/client"
	"github.com/SAP-F-2025/assessment-runner/internal/config"
	"github.com/SAP-F-2025/assessment-runner/internal/handlers"
	"github.com/SAP-F-2025/assessment-runner/internal/repositories"
	"github.com/SAP-F-2025/assessment-runner/internal/repositories/postgres"
	"github.com/SAP-F-2025/assessment-runner/internal/services"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/SAP-F-2025/assessment-runner/internal/validator"
	"github.com/SAP-F-2025/assessment-runner/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.NewLogger("development").Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Environment)
	appLogger := utils.NewSlogLogger(logger)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Session contexts live in Redis when configured so several runner
	// instances can share logins.
	var store cache.CacheService
	if cfg.RedisURL != "" {
		rdb, err := pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		store = cache.NewRedisCache(rdb, logger)
	} else {
		logger.Warn("REDIS_URL not set, keeping session contexts in memory")
		store = cache.NewMemoryCache()
	}

	audit := repositories.NewNoopSessionAuditRepository()
	if cfg.DatabaseURL != "" {
		db, err := pkg.InitDatabase(cfg)
		if err != nil {
			logger.Error("Failed to initialize audit journal", "error", err)
			os.Exit(1)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		audit = postgres.NewSessionAuditPostgreSQL(db)
	} else {
		logger.Warn("DATABASE_URL not set, session journal disabled")
	}

	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	backend, err := client.New(client.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("Failed to create backend client", "error", err)
		os.Exit(1)
	}
	backends := services.ClientBackend(backend)

	v := validator.New()
	recorder := services.NewSessionRecorder(publisher, audit, logger)
	manager := services.NewSessionManager(cfg.SessionTTL, logger)

	sessionService := services.NewSessionService(services.SessionServiceDeps{
		Backends:  backends,
		Manager:   manager,
		Recorder:  recorder,
		Validator: v,
		Logger:    logger,
	}, cfg.SessionService())

	hm := handlers.NewHandlerManager(handlers.HandlerDeps{
		Sessions:   sessionService,
		Accounts:   services.NewAccountService(backend, backends, manager, recorder, logger),
		Exports:    services.NewExportService(recorder, logger),
		Recorder:   recorder,
		Backends:   backends,
		Cache:      store,
		Validator:  v,
		Logger:     appLogger,
		ContextTTL: cfg.SessionContextTTL,
		MaxUpload:  cfg.MaxUploadBytes,
	})

	stop := make(chan struct{})
	go manager.Run(cfg.SweepInterval, stop)
	if cfg.DatabaseURL != "" && cfg.AuditRetention > 0 {
		go recorder.RunRetention(cfg.AuditRetention, 24*time.Hour, stop)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(hm, appLogger),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		logger.Info("Assessment runner listening",
			"port", cfg.Port,
			"backend", cfg.BackendURL,
			"environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	logger.Info("Shutting down")
	close(stop)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}

	// Pending answer writes are drained before the process exits.
	if n := manager.CloseAll(shutdownCtx); n > 0 {
		logger.Info("Flushed open sessions", "count", n)
	}
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/causeway-service/causeway_service/internal/api/routes"
	"github.com/causeway-service/causeway_service/internal/infrastructure/config"
	"github.com/causeway-service/causeway_service/internal/infrastructure/database"
	"github.com/causeway-service/causeway_service/internal/infrastructure/di"
	"github.com/causeway-service/causeway_service/pkg/graceful"
	"github.com/causeway-service/causeway_service/pkg/logger"
	"github.com/causeway-service/causeway_service/pkg/retry"
	"github.com/causeway-service/causeway_service/pkg/tracing"
)

// @title Causeway Service API
// @version 1.0
// @description Rule validation and cross-chain bridge lock lifecycle API

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// shutdownFunc adapts a plain stop callback to graceful.Shutdowner
type shutdownFunc func() error

func (f shutdownFunc) Shutdown(time.Duration) error { return f() }

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)

	// Initialize OpenTelemetry tracing
	tracingShutdown, err := tracing.InitTracer(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}
	defer tracingShutdown(context.Background())

	// The database may come up after us; retry the initial connection
	connected, err := retry.DoWithResult(context.Background(), retry.DefaultPolicy(), log.Zap(),
		func() (interface{}, error) {
			return database.NewConnection(cfg.Database)
		})
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	db := connected.(*sql.DB)

	// Run migrations
	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Build dependency injection container
	container, err := di.NewContainer(cfg, db, log)
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}

	// Initialize router with DI container
	router := routes.SetupRoutes(container)

	// Background workers share a context cancelled during shutdown
	workerCtx, stopWorkers := context.WithCancel(context.Background())

	go container.LockTimeoutWorker.Start(workerCtx)
	go container.EventDispatcher.Start(workerCtx)
	go database.ReportPoolStats(workerCtx, db, 30*time.Second)

	if err := container.ConsistencyAudit.Start(); err != nil {
		log.Fatal("Failed to start consistency audit worker", "error", err)
	}
	if err := container.OutboxRetention.Start(); err != nil {
		log.Fatal("Failed to start outbox retention worker", "error", err)
	}
	log.Info("Background workers started")

	// Create server with enhanced configuration
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// Start server in goroutine
	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
			"read_timeout", cfg.Server.ReadTimeout,
			"write_timeout", cfg.Server.WriteTimeout,
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Block until SIGINT/SIGTERM. Workers stop first; anything still
	// sitting in the outbox is dispatched on the next boot.
	shutdown := graceful.NewShutdownManager(server, db, log)
	shutdown.Register(shutdownFunc(func() error {
		stopWorkers()
		container.LockTimeoutWorker.Stop()
		container.EventDispatcher.Stop()
		container.ConsistencyAudit.Stop()
		container.OutboxRetention.Stop()
		return nil
	}))
	shutdown.Register(shutdownFunc(container.Close))
	shutdown.WaitForShutdown()
}

package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobby-s-dev/water-demand/internal/api"
	"github.com/bobby-s-dev/water-demand/internal/config"
	"github.com/bobby-s-dev/water-demand/internal/logging"
	"github.com/bobby-s-dev/water-demand/internal/scheduler"
	"github.com/bobby-s-dev/water-demand/internal/services"
	"github.com/bobby-s-dev/water-demand/internal/store"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	// Bootstrap logger until the configured one is built
	bootstrap, _ := zap.NewProduction()
	zap.ReplaceGlobals(bootstrap)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		bootstrap.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := logging.New(cfg.Server.LogLevel, cfg.Server.LogFile)
	if err != nil {
		bootstrap.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting Water Demand Prediction Service")

	schema, err := cfg.FeatureSchema()
	if err != nil {
		logger.Fatal("Failed to resolve feature schema", zap.Error(err))
	}

	// Optional prediction history
	var history *store.Store
	if cfg.Database.Path != "" {
		history, err = store.Open(cfg.Database.Path, logger)
		if err != nil {
			logger.Fatal("Failed to open prediction history", zap.Error(err))
		}
		defer history.Close()
	}

	// Load model and reference dataset
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 2*time.Minute)
	var recorder services.HistoryRecorder
	if history != nil {
		recorder = history
	}
	facade, err := services.NewFacade(loadCtx, cfg, schema, recorder, logger)
	cancelLoad()
	if err != nil {
		logger.Fatal("Failed to initialize model", zap.Error(err))
	}

	// Initialize scheduler
	probeScheduler := scheduler.NewScheduler(facade, cfg.Probe.Schedule, cfg.Probe.Timeout, logger)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		JSONEncoder:  json.Marshal,
		ErrorHandler: api.ErrorHandler,
	})

	// Setup handlers and routes
	var reader api.HistoryReader
	if history != nil {
		reader = history
	}
	handler := api.NewHandler(facade, probeScheduler, reader, logger)
	api.SetupRoutes(app, handler, logger)

	// Start scheduler
	if err := probeScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop scheduler
	probeScheduler.Stop()

	// Shutdown Fiber app
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}

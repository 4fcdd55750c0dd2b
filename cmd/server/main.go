// Package main is the entry point for the aurum gold market analysis service.
//
// The service serves price, news and AI analysis artifacts over HTTP. Reads
// never wait on a language model: they are answered from the two-layer cache,
// the database or a built-in default while a background refresh runs on the
// shared worker pool. The scheduler keeps the artifacts warm on its own cadence.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/aurum/internal/config"
	"github.com/aristath/aurum/internal/di"
	"github.com/aristath/aurum/internal/server"
	"github.com/aristath/aurum/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().
		Str("data_dir", cfg.DataDir).
		Bool("scheduler", cfg.Scheduler.Enabled).
		Msg("Starting aurum")

	// Wire all dependencies: storage, repositories, services, jobs
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// The pool must run before anything can submit to it
	container.WorkerPool.Start()

	// Produce whatever has never been cached; reads meanwhile serve defaults
	container.Coordinator.Warm()

	var scheduler server.JobLister
	if container.Scheduler != nil {
		container.Scheduler.Start()
		scheduler = container.Scheduler
	}

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		DataDir:   cfg.DataDir,
		RateLimit: cfg.RateLimit,
		Analysis:  container.Coordinator,
		Prices:    container.MarketService,
		News:      container.NewsService,
		Updates:   container.UpdateLog,
		Cache:     container.Cache,
		DB:        container.DB,
		Pool:      container.WorkerPool,
		Scheduler: scheduler,
		Bus:       container.Bus,
		Metrics:   container.Metrics,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting requests before the pool drains, then let running
	// productions finish so their leases are released and results cached
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if container.Scheduler != nil {
		container.Scheduler.Stop()
	}

	if err := container.WorkerPool.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Worker pool did not drain before timeout")
	}

	log.Info().Msg("Server stopped")
}

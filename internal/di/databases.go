// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/aurum/internal/cache"
	"github.com/aristath/aurum/internal/config"
	"github.com/aristath/aurum/internal/database"
	"github.com/aristath/aurum/internal/events"
	"github.com/aristath/aurum/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens aurum.db, applies its schema and creates the
// infrastructure every later stage depends on: metrics, event bus and the
// two-layer cache.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	container.Registry = prometheus.NewRegistry()
	container.Metrics = metrics.NewMetrics(container.Registry)
	container.Bus = events.NewBus(log)

	// aurum.db - price bars, news, factors, institutions, snapshots, update log
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "aurum.db"),
		Profile: database.ProfileStandard,
		Name:    "aurum",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize aurum database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate aurum database: %w", err)
	}
	container.DB = db

	store, err := cache.NewStore(cfg.CacheDir, log, cache.WithMetrics(container.Metrics))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache store: %w", err)
	}
	container.Cache = store

	log.Info().
		Str("db", db.Path()).
		Str("cache_dir", store.Dir()).
		Msg("Storage initialized")

	return container, nil
}

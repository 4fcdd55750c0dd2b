// Package di provides dependency injection type definitions.
//
// The Container holds every long-lived component of the service and is the
// single place where cmd/server looks them up.
package di

import (
	"github.com/aristath/aurum/internal/analysis"
	"github.com/aristath/aurum/internal/cache"
	"github.com/aristath/aurum/internal/clients/llm"
	crawler "github.com/aristath/aurum/internal/clients/news"
	"github.com/aristath/aurum/internal/clients/quotes"
	"github.com/aristath/aurum/internal/database"
	"github.com/aristath/aurum/internal/events"
	"github.com/aristath/aurum/internal/market"
	"github.com/aristath/aurum/internal/metrics"
	"github.com/aristath/aurum/internal/news"
	"github.com/aristath/aurum/internal/refresh"
	"github.com/aristath/aurum/internal/reliability"
	"github.com/aristath/aurum/internal/scheduler"
	"github.com/aristath/aurum/internal/updatelog"
	"github.com/aristath/aurum/internal/work"
	"github.com/prometheus/client_golang/prometheus"
)

// Container holds all application dependencies
type Container struct {
	// Storage
	DB    *database.DB
	Cache *cache.Store

	// Infrastructure
	Bus        *events.Bus
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	WorkerPool *work.Pool

	// Repositories
	MarketRepo      *market.Repository
	NewsRepo        *news.Repository
	FactorRepo      *analysis.FactorRepository
	InstitutionRepo *analysis.InstitutionRepository
	SnapshotRepo    *analysis.SnapshotRepository
	UpdateLog       *updatelog.Repository

	// Clients
	Quotes    *quotes.Chain
	Providers []llm.Provider
	Crawler   *crawler.Crawler

	// Services
	MarketService *market.Service
	NewsService   *news.Service
	Analysis      *analysis.Registry
	Coordinator   *refresh.Coordinator
	Backup        *reliability.BackupService // nil when backups are not configured

	// Scheduling
	Scheduler *scheduler.Scheduler // nil when the scheduler is disabled
}

// Close releases the database. Callers stop the scheduler and the pool first.
func (c *Container) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

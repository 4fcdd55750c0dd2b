package di

import (
	"fmt"
	"time"

	"github.com/aristath/aurum/internal/cache"
	"github.com/aristath/aurum/internal/config"
	"github.com/aristath/aurum/internal/market"
	"github.com/aristath/aurum/internal/scheduler"
	"github.com/rs/zerolog"
)

const (
	// Expired cache files are kept this long as the last-good fallback
	cacheRetention = 7 * 24 * time.Hour

	// Snapshots kept per analysis kind by the maintenance job
	snapshotsKept = 200
)

// RegisterJobs creates the scheduler and registers every proactive job on it.
// It leaves container.Scheduler nil when scheduling is disabled.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if !cfg.Scheduler.Enabled {
		log.Info().Msg("Scheduler disabled, artifacts are refreshed on demand only")
		return nil
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.Scheduler.Timezone, err)
	}

	sched := scheduler.New(container.WorkerPool, loc, container.Metrics, container.Bus, log)

	type entry struct {
		schedule string
		job      scheduler.Job
	}
	entries := []entry{
		{cfg.Scheduler.PriceCron, scheduler.NewUpdatePriceJob(market.Gold, container.MarketService, container.UpdateLog, container.Metrics, container.Bus, log)},
		{cfg.Scheduler.PriceCron, scheduler.NewUpdatePriceJob(market.DollarIndex, container.MarketService, container.UpdateLog, container.Metrics, container.Bus, log)},
		{cfg.Scheduler.NewsCron, scheduler.NewUpdateNewsJob(container.NewsService, container.UpdateLog, log)},
		{cfg.Scheduler.AIAnalysisCron, scheduler.NewUpdateAnalysisJob(
			container.Coordinator,
			container.Analysis.Kinds(),
			cfg.Scheduler.ProducerTimeout,
			container.UpdateLog,
			log,
		)},
		{cfg.Scheduler.CacheCleanup, cache.NewCleanupJob(container.Cache, cacheRetention, log)},
		{cfg.Scheduler.WALCheckpoint, scheduler.NewWALCheckpointJob(container.DB, container.SnapshotRepo, snapshotsKept, log)},
	}
	if container.Backup != nil {
		entries = append(entries, entry{cfg.Scheduler.BackupCron, scheduler.NewBackupJob(container.Backup, container.UpdateLog, log)})
	}

	for _, e := range entries {
		if err := sched.AddJob(e.schedule, e.job); err != nil {
			return fmt.Errorf("failed to register job %s: %w", e.job.Name(), err)
		}
	}

	container.Scheduler = sched
	log.Info().Int("jobs", len(entries)).Msg("Jobs registered")
	return nil
}

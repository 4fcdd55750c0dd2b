package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CleanupJob removes expired memory entries, orphaned temp files and cache
// files that expired more than Retain ago.
type CleanupJob struct {
	store  *Store
	retain time.Duration
	log    zerolog.Logger
}

// NewCleanupJob creates a new cache cleanup job.
func NewCleanupJob(store *Store, retain time.Duration, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		store:  store,
		retain: retain,
		log:    log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Run executes the cleanup.
func (j *CleanupJob) Run(ctx context.Context) error {
	res, err := j.store.DeleteExpired(j.retain)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to clean up cache")
		return err
	}

	if res.Memory+res.Files+res.Temps > 0 {
		j.log.Info().
			Int("memory", res.Memory).
			Int("files", res.Files).
			Int("temps", res.Temps).
			Msg("Cleaned up expired cache entries")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}

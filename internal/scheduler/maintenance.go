package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// WALCheckpointJob truncates the WAL and trims the snapshot history
type WALCheckpointJob struct {
	db        Checkpointer
	snapshots SnapshotPruner
	keep      int
	log       zerolog.Logger
}

// NewWALCheckpointJob creates the daily database maintenance job. Snapshots
// beyond keep per kind are deleted; keep <= 0 disables pruning.
func NewWALCheckpointJob(db Checkpointer, snapshots SnapshotPruner, keep int, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		db:        db,
		snapshots: snapshots,
		keep:      keep,
		log:       log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes the maintenance
func (j *WALCheckpointJob) Run(ctx context.Context) error {
	if j.snapshots != nil && j.keep > 0 {
		n, err := j.snapshots.Prune(ctx, j.keep)
		if err != nil {
			j.log.Warn().Err(err).Msg("Failed to prune analysis snapshots")
		} else if n > 0 {
			j.log.Info().Int64("deleted", n).Msg("Pruned analysis snapshots")
		}
	}

	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	j.log.Debug().Msg("WAL checkpoint completed")
	return nil
}

// BackupJob uploads an archive of the data directory
type BackupJob struct {
	backup  Backuper
	updates UpdateRecorder
	log     zerolog.Logger
}

// NewBackupJob creates the backup job
func NewBackupJob(backup Backuper, updates UpdateRecorder, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backup:  backup,
		updates: updates,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup
func (j *BackupJob) Run(ctx context.Context) error {
	start := time.Now()
	key, err := j.backup.Backup(ctx)
	records := 0
	if err == nil {
		records = 1
	}
	if recErr := j.updates.Record(ctx, "backup", records, time.Since(start), err); recErr != nil {
		j.log.Warn().Err(recErr).Msg("Failed to write update log")
	}
	if err != nil {
		return err
	}
	j.log.Info().Str("key", key).Msg("Backup uploaded")
	return nil
}

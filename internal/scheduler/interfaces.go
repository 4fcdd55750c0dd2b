package scheduler

import (
	"context"
	"time"

	"github.com/aristath/aurum/internal/artifact"
	"github.com/aristath/aurum/internal/market"
	"github.com/aristath/aurum/internal/news"
	"github.com/aristath/aurum/internal/work"
)

// Submitter queues work on the shared pool
type Submitter interface {
	Submit(name string, fn work.TaskFunc) bool
}

// PriceIngester defines the contract for the daily bar merge
// Used by scheduler to enable testing with mocks
type PriceIngester interface {
	IngestDaily(ctx context.Context, inst market.Instrument) (market.MergeResult, error)
}

// NewsIngester defines the contract for news ingestion
type NewsIngester interface {
	Ingest(ctx context.Context) (news.IngestResult, error)
}

// ArtifactRunner defines the contract for lease-guarded artifact production
type ArtifactRunner interface {
	RunNow(ctx context.Context, kind, trigger string) (artifact.Outcome, bool, error)
}

// UpdateRecorder defines the contract for the update log
type UpdateRecorder interface {
	Record(ctx context.Context, dataType string, records int, took time.Duration, runErr error) error
	RecordSkip(ctx context.Context, dataType, reason string) error
}

// Checkpointer defines the contract for WAL maintenance
type Checkpointer interface {
	WALCheckpoint(mode string) error
}

// SnapshotPruner trims the analysis snapshot history
type SnapshotPruner interface {
	Prune(ctx context.Context, keep int) (int64, error)
}

// Backuper uploads a backup archive and returns its object key
type Backuper interface {
	Backup(ctx context.Context) (string, error)
}

package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// UpdateNewsJob crawls the configured news feeds
type UpdateNewsJob struct {
	news    NewsIngester
	updates UpdateRecorder
	log     zerolog.Logger
}

// NewUpdateNewsJob creates a news update job
func NewUpdateNewsJob(news NewsIngester, updates UpdateRecorder, log zerolog.Logger) *UpdateNewsJob {
	return &UpdateNewsJob{
		news:    news,
		updates: updates,
		log:     log.With().Str("job", "update_news").Logger(),
	}
}

// Name returns the job name
func (j *UpdateNewsJob) Name() string {
	return "update_news"
}

// Run executes the news update
func (j *UpdateNewsJob) Run(ctx context.Context) error {
	start := time.Now()
	res, err := j.news.Ingest(ctx)
	took := time.Since(start)

	if recErr := j.updates.Record(ctx, "news", res.Inserted, took, err); recErr != nil {
		j.log.Warn().Err(recErr).Msg("Failed to write update log")
	}
	if err != nil {
		return err
	}

	j.log.Info().
		Int("fetched", res.Fetched).
		Int("inserted", res.Inserted).
		Int("failed_feeds", res.Failed).
		Dur("took", took).
		Msg("News updated")
	return nil
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/aurum/internal/artifact"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// UpdateAnalysisJob regenerates every artifact in order, one after another,
// inside a single pool slot. Kinds whose production is already in flight are
// skipped.
type UpdateAnalysisJob struct {
	runner  ArtifactRunner
	kinds   []string
	timeout time.Duration
	updates UpdateRecorder
	log     zerolog.Logger
}

// NewUpdateAnalysisJob creates the analysis job. kinds are produced in the
// given order; timeout bounds each production.
func NewUpdateAnalysisJob(runner ArtifactRunner, kinds []string, timeout time.Duration, updates UpdateRecorder, log zerolog.Logger) *UpdateAnalysisJob {
	return &UpdateAnalysisJob{
		runner:  runner,
		kinds:   kinds,
		timeout: timeout,
		updates: updates,
		log:     log.With().Str("job", "update_ai_analysis").Logger(),
	}
}

// Name returns the job name
func (j *UpdateAnalysisJob) Name() string {
	return "update_ai_analysis"
}

// Run executes the analysis update
func (j *UpdateAnalysisJob) Run(ctx context.Context) error {
	start := time.Now()
	var result *multierror.Error
	produced, skipped := 0, 0

	for _, kind := range j.kinds {
		if ctx.Err() != nil {
			result = multierror.Append(result, ctx.Err())
			break
		}

		out, ran, err := j.produce(ctx, kind)
		switch {
		case err != nil:
			result = multierror.Append(result, err)
		case !ran:
			skipped++
			j.log.Info().Str("kind", kind).Msg("Production already in flight, skipping")
		case out.State != artifact.StateDone:
			result = multierror.Append(result, fmt.Errorf("%s: %w", kind, out.Err))
		default:
			produced++
			j.log.Info().Str("kind", kind).Str("provider", out.Provider).Msg("Artifact refreshed")
		}
	}

	err := result.ErrorOrNil()
	if recErr := j.updates.Record(ctx, "ai_analysis", produced, time.Since(start), err); recErr != nil {
		j.log.Warn().Err(recErr).Msg("Failed to write update log")
	}

	j.log.Info().
		Int("produced", produced).
		Int("skipped", skipped).
		Int("failed", len(j.kinds)-produced-skipped).
		Dur("took", time.Since(start)).
		Msg("Analysis update completed")

	return err
}

func (j *UpdateAnalysisJob) produce(ctx context.Context, kind string) (artifact.Outcome, bool, error) {
	if j.timeout <= 0 {
		return j.runner.RunNow(ctx, kind, artifact.TriggerSchedule)
	}
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	return j.runner.RunNow(ctx, kind, artifact.TriggerSchedule)
}

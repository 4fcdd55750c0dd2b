package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/aristath/aurum/internal/events"
	"github.com/aristath/aurum/internal/market"
	"github.com/aristath/aurum/internal/metrics"
	"github.com/rs/zerolog"
)

// UpdatePriceJob merges the current quote of one instrument into today's bar.
// Weekends are skipped and logged.
type UpdatePriceJob struct {
	inst    market.Instrument
	prices  PriceIngester
	updates UpdateRecorder
	metrics *metrics.Metrics
	bus     *events.Bus
	log     zerolog.Logger
}

// NewUpdatePriceJob creates a price update job for inst
func NewUpdatePriceJob(inst market.Instrument, prices PriceIngester, updates UpdateRecorder, m *metrics.Metrics, bus *events.Bus, log zerolog.Logger) *UpdatePriceJob {
	j := &UpdatePriceJob{inst: inst, prices: prices, updates: updates, metrics: m, bus: bus}
	j.log = log.With().Str("job", j.Name()).Logger()
	return j
}

// Name returns the job name
func (j *UpdatePriceJob) Name() string {
	if j.inst == market.DollarIndex {
		return "update_dollar_index"
	}
	return "update_prices"
}

func (j *UpdatePriceJob) dataType() string {
	if j.inst == market.DollarIndex {
		return "dollar_index"
	}
	return "gold_price"
}

// Run executes the price update
func (j *UpdatePriceJob) Run(ctx context.Context) error {
	start := time.Now()
	res, err := j.prices.IngestDaily(ctx, j.inst)
	took := time.Since(start)

	if errors.Is(err, market.ErrNotTradingDay) {
		j.log.Info().Msg("Not a trading day, skipping price update")
		j.metrics.Skipped(j.Name())
		j.bus.Emit("scheduler", &events.JobSkippedData{Job: j.Name(), Reason: "not a trading day"})
		j.record(j.updates.RecordSkip(ctx, j.dataType(), "not a trading day"))
		return nil
	}

	records := 0
	if err == nil {
		records = 1
	}
	j.record(j.updates.Record(ctx, j.dataType(), records, took, err))

	if err != nil {
		return err
	}

	j.log.Info().
		Str("date", res.Bar.Date).
		Float64("close", res.Bar.Close).
		Dur("took", took).
		Msg("Price bar updated")
	return nil
}

func (j *UpdatePriceJob) record(err error) {
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to write update log")
	}
}

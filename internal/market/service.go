package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/aurum/internal/cache"
	"github.com/aristath/aurum/internal/events"
	"github.com/rs/zerolog"
)

// ErrNotTradingDay is returned by IngestDaily on weekends.
var ErrNotTradingDay = errors.New("not a trading day")

// QuoteFetcher is the quote source capability consumed by the service.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, inst Instrument) (Quote, error)
}

// Service owns the daily bar pipeline and the cached price views.
type Service struct {
	repo     *Repository
	quotes   QuoteFetcher
	cache    *cache.Store
	bus      *events.Bus
	ytdStart float64
	loc      *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates a new price service. loc is the trading calendar's timezone.
func NewService(repo *Repository, quotes QuoteFetcher, store *cache.Store, bus *events.Bus, ytdStart float64, loc *time.Location, log zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		quotes:   quotes,
		cache:    store,
		bus:      bus,
		ytdStart: ytdStart,
		loc:      loc,
		now:      time.Now,
		log:      log.With().Str("service", "market").Logger(),
	}
}

// MergeResult describes the bar written by IngestDaily.
type MergeResult struct {
	Bar        PriceBar          `json:"bar"`
	Quote      Quote             `json:"quote"`
	Statistics *PeriodStatistics `json:"statistics,omitempty"`
}

// IngestDaily fetches the current quote for inst and merges it into today's bar.
// For gold the period statistics are recomputed and cached afterwards.
func (s *Service) IngestDaily(ctx context.Context, inst Instrument) (MergeResult, error) {
	today := s.now().In(s.loc)
	if !IsTradingDay(today) {
		return MergeResult{}, ErrNotTradingDay
	}

	q, err := s.quotes.FetchQuote(ctx, inst)
	if err != nil {
		return MergeResult{}, fmt.Errorf("failed to fetch %s quote: %w", inst, err)
	}
	if inst == DollarIndex {
		// The dollar index feed has no intraday range, approximate it from the previous close
		q = approximateRange(q)
	}

	series, err := s.repo.Series(ctx, inst, "")
	if err != nil {
		return MergeResult{}, err
	}

	merged := MergeQuote(series, q, today)
	date := DateOf(today)
	idx := merged.Find(date)
	if idx < 0 {
		return MergeResult{}, fmt.Errorf("merge produced no bar for %s", date)
	}

	touched := []PriceBar{merged[idx]}
	if idx+1 < len(merged) {
		touched = append(touched, merged[idx+1])
	}
	if err := s.repo.Upsert(ctx, inst, touched...); err != nil {
		return MergeResult{}, err
	}

	res := MergeResult{Bar: merged[idx], Quote: q}
	s.log.Info().
		Str("instrument", string(inst)).
		Str("date", date).
		Str("source", q.Source).
		Float64("open", res.Bar.Open).
		Float64("high", res.Bar.High).
		Float64("low", res.Bar.Low).
		Float64("close", res.Bar.Close).
		Float64("change_percent", res.Bar.ChangePercent).
		Msg("Merged quote into daily bar")

	if inst == Gold {
		stats := RecomputeStatistics(merged, today)
		res.Statistics = &stats
		s.cacheSet(cache.KeyPeriodStatistics, stats)
		if err := s.cache.Clear(cache.KeyPriceInfo); err != nil {
			s.log.Warn().Err(err).Msg("Failed to invalidate price info")
		}
		s.log.Info().
			Float64("period_high", stats.PeriodHigh).
			Str("period_high_date", stats.PeriodHighDate).
			Float64("period_low", stats.PeriodLow).
			Str("period_low_date", stats.PeriodLowDate).
			Float64("volatility_range", stats.VolatilityRangePct).
			Msg("Period statistics updated")
	}

	s.bus.Emit("market", &events.PriceBarMergedData{
		Instrument: string(inst),
		Date:       date,
		Close:      res.Bar.Close,
		Change:     res.Bar.ChangePercent,
		Source:     q.Source,
	})

	return res, nil
}

// approximateRange fills open/high/low from price and previous close.
func approximateRange(q Quote) Quote {
	if q.PreviousClose <= 0 {
		return q
	}
	if q.Open <= 0 {
		q.Open = q.PreviousClose
	}
	if q.High <= 0 {
		q.High = max(q.Price, q.PreviousClose)
	}
	if q.Low <= 0 {
		q.Low = min(q.Price, q.PreviousClose)
	}
	return q
}

// QuoteView is a quote annotated with where it came from.
type QuoteView struct {
	Quote
	DataSource string `json:"data_source"` // memory, file, realtime, stale, database
}

// RealtimeQuote serves the cached quote (30s), otherwise fetches one. When
// every source fails it falls back to the last cached quote, then the latest bar.
func (s *Service) RealtimeQuote(ctx context.Context, inst Instrument) (QuoteView, error) {
	key := quoteKey(inst)
	if e, src, ok := s.cache.Get(key); ok {
		var q Quote
		if err := e.Decode(&q); err == nil {
			return QuoteView{Quote: q, DataSource: string(src)}, nil
		}
	}

	q, fetchErr := s.quotes.FetchQuote(ctx, inst)
	if fetchErr == nil {
		s.cacheSet(key, q)
		return QuoteView{Quote: q, DataSource: "realtime"}, nil
	}
	s.log.Warn().Err(fetchErr).Str("instrument", string(inst)).Msg("All quote sources failed, falling back")

	if e, _, ok := s.cache.GetStale(key); ok {
		var q Quote
		if err := e.Decode(&q); err == nil {
			return QuoteView{Quote: q, DataSource: "stale"}, nil
		}
	}

	bar, ok, err := s.repo.Latest(ctx, inst)
	if err != nil {
		return QuoteView{}, err
	}
	if !ok {
		return QuoteView{}, fetchErr
	}
	t, _ := time.ParseInLocation(DateLayout, bar.Date, s.loc)
	return QuoteView{
		Quote: Quote{
			Instrument:    inst,
			Price:         bar.Close,
			Open:          bar.Open,
			High:          bar.High,
			Low:           bar.Low,
			ChangePercent: bar.ChangePercent,
			Timestamp:     t,
			Source:        "database",
		},
		DataSource: "database",
	}, nil
}

func quoteKey(inst Instrument) string {
	if inst == DollarIndex {
		return cache.KeyDollarQuote
	}
	return cache.KeyRealtimeQuote
}

// PriceInfo is the hero summary shown above the analysis sections.
type PriceInfo struct {
	Price         float64      `json:"price"`
	ChangePercent float64      `json:"change_percent"`
	YTDReturn     float64      `json:"ytd_return"`
	YTDStartPrice float64      `json:"ytd_start_price"`
	Status        MarketStatus `json:"market_status"`
	LatestBar     *PriceBar    `json:"latest_bar,omitempty"`
	Source        string       `json:"source"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// PriceInfo builds (and caches for 5 minutes) the current price summary.
func (s *Service) PriceInfo(ctx context.Context) (PriceInfo, error) {
	if e, _, ok := s.cache.Get(cache.KeyPriceInfo); ok {
		var info PriceInfo
		if err := e.Decode(&info); err == nil {
			return info, nil
		}
	}

	q, err := s.RealtimeQuote(ctx, Gold)
	if err != nil {
		return PriceInfo{}, err
	}

	info := PriceInfo{
		Price:         q.Price,
		ChangePercent: q.ChangePercent,
		YTDReturn:     YTDReturn(q.Price, s.ytdStart),
		YTDStartPrice: s.ytdStart,
		Source:        q.DataSource,
		UpdatedAt:     s.now(),
	}
	if info.ChangePercent == 0 && q.PreviousClose > 0 {
		info.ChangePercent = round((q.Price-q.PreviousClose)/q.PreviousClose*100, 2)
	}
	info.Status = ClassifyChange(info.ChangePercent)

	if bar, ok, err := s.repo.Latest(ctx, Gold); err == nil && ok {
		info.LatestBar = &bar
	}

	s.cacheSet(cache.KeyPriceInfo, info)
	return info, nil
}

// Statistics returns the cached period statistics, recomputing from the store on a miss.
func (s *Service) Statistics(ctx context.Context) (PeriodStatistics, error) {
	if e, _, ok := s.cache.Get(cache.KeyPeriodStatistics); ok {
		var stats PeriodStatistics
		if err := e.Decode(&stats); err == nil {
			return stats, nil
		}
	}

	series, err := s.repo.Series(ctx, Gold, "")
	if err != nil {
		return PeriodStatistics{}, err
	}
	stats := RecomputeStatistics(series, s.now().In(s.loc))
	if stats.Bars > 0 {
		s.cacheSet(cache.KeyPeriodStatistics, stats)
	}
	return stats, nil
}

// History returns the last days of bars for inst.
func (s *Service) History(ctx context.Context, inst Instrument, days int) (Series, error) {
	if !inst.Valid() {
		return nil, fmt.Errorf("unknown instrument: %s", inst)
	}
	if days <= 0 {
		return s.repo.Series(ctx, inst, "")
	}
	return s.repo.Recent(ctx, inst, days, s.now().In(s.loc))
}

// Indicators computes technical indicators over the last year of gold bars.
func (s *Service) Indicators(ctx context.Context) (Indicators, error) {
	series, err := s.repo.Recent(ctx, Gold, 365, s.now().In(s.loc))
	if err != nil {
		return Indicators{}, err
	}
	return ComputeIndicators(series), nil
}

// CorrelationResult is the gold/dollar-index return correlation over a window.
type CorrelationResult struct {
	Days         int     `json:"days"`
	Observations int     `json:"observations"`
	Coefficient  float64 `json:"coefficient"`
}

// Correlation computes the gold vs dollar index correlation over the last days.
func (s *Service) Correlation(ctx context.Context, days int) (CorrelationResult, error) {
	if days <= 0 {
		days = 90
	}
	asOf := s.now().In(s.loc)
	gold, err := s.repo.Recent(ctx, Gold, days, asOf)
	if err != nil {
		return CorrelationResult{}, err
	}
	dxy, err := s.repo.Recent(ctx, DollarIndex, days, asOf)
	if err != nil {
		return CorrelationResult{}, err
	}
	c, n := Correlation(gold, dxy)
	return CorrelationResult{Days: days, Observations: n, Coefficient: c}, nil
}

func (s *Service) cacheSet(key string, v interface{}) {
	if err := s.cache.Set(key, v); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache value")
	}
}

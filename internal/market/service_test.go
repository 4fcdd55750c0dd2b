package market

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aristath/aurum/internal/cache"
	"github.com/aristath/aurum/internal/database"
	"github.com/aristath/aurum/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuotes struct {
	mu    sync.Mutex
	quote Quote
	err   error
	calls int
}

func (s *stubQuotes) FetchQuote(_ context.Context, inst Instrument) (Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	q := s.quote
	q.Instrument = inst
	return q, s.err
}

type fixture struct {
	svc    *Service
	repo   *Repository
	store  *cache.Store
	quotes *stubQuotes
	bus    *events.Bus
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "aurum.db"), Name: "aurum"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	store, err := cache.NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	repo := NewRepository(db.Conn())
	quotes := &stubQuotes{}
	bus := events.NewBus(zerolog.Nop())
	svc := NewService(repo, quotes, store, bus, 2633, shanghai, zerolog.Nop())
	svc.now = func() time.Time { return now }

	return &fixture{svc: svc, repo: repo, store: store, quotes: quotes, bus: bus}
}

func TestRepository_UpsertAndSeries(t *testing.T) {
	f := newFixture(t, day(2025, 6, 3))
	ctx := context.Background()

	require.NoError(t, f.repo.Upsert(ctx, Gold,
		PriceBar{Date: "2025-06-03", Close: 3310},
		PriceBar{Date: "2025-06-02", Close: 3300},
	))
	require.NoError(t, f.repo.Upsert(ctx, Gold, PriceBar{Date: "2025-06-03", Close: 3320}))

	series, err := f.repo.Series(ctx, Gold, "")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "2025-06-02", series[0].Date)
	assert.Equal(t, 3320.0, series[1].Close)

	dxy, err := f.repo.Series(ctx, DollarIndex, "")
	require.NoError(t, err)
	assert.Empty(t, dxy)

	latest, ok, err := f.repo.Latest(ctx, Gold)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2025-06-03", latest.Date)
}

func TestRepository_UnknownInstrument(t *testing.T) {
	f := newFixture(t, day(2025, 6, 3))
	err := f.repo.Upsert(context.Background(), Instrument("silver"), PriceBar{Date: "2025-06-03"})
	assert.Error(t, err)
}

func TestRepository_UpsertCancelledContextWritesNothing(t *testing.T) {
	f := newFixture(t, day(2025, 6, 3))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.repo.Upsert(ctx, Gold, PriceBar{Date: "2025-06-03", Close: 3310})
	require.Error(t, err)

	series, err := f.repo.Series(context.Background(), Gold, "")
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestService_IngestDaily(t *testing.T) {
	f := newFixture(t, day(2025, 6, 3))
	ctx := context.Background()
	require.NoError(t, f.repo.Upsert(ctx, Gold,
		PriceBar{Date: "2025-01-02", High: 2650, Low: 2633, Close: 2640},
		PriceBar{Date: "2025-06-02", High: 2990, Low: 2950, Close: 2970},
	))
	require.NoError(t, f.store.Set(cache.KeyPriceInfo, map[string]float64{"price": 1}))

	var merged []*events.PriceBarMergedData
	f.bus.Subscribe(func(e *events.Event) {
		merged = append(merged, e.Data.(*events.PriceBarMergedData))
	}, events.PriceBarMerged)

	f.quotes.quote = Quote{Price: 2995, Open: 2972, High: 3000, Low: 2965, Source: "sina"}

	res, err := f.svc.IngestDaily(ctx, Gold)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-03", res.Bar.Date)
	assert.Equal(t, 2995.0, res.Bar.Close)
	require.NotNil(t, res.Statistics)
	assert.Equal(t, 13.94, res.Statistics.VolatilityRangePct)

	var stats PeriodStatistics
	e, _, ok := f.store.Get(cache.KeyPeriodStatistics)
	require.True(t, ok)
	require.NoError(t, e.Decode(&stats))
	assert.Equal(t, "2025-06-03", stats.PeriodHighDate)
	assert.False(t, f.store.Exists(cache.KeyPriceInfo), "price info is invalidated")

	require.Len(t, merged, 1)
	assert.Equal(t, "sina", merged[0].Source)

	// Running again with the same quote leaves exactly one bar for the day.
	_, err = f.svc.IngestDaily(ctx, Gold)
	require.NoError(t, err)
	series, err := f.repo.Series(ctx, Gold, "2025-06-03")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, res.Bar, series[0])
}

func TestService_IngestDaily_Weekend(t *testing.T) {
	f := newFixture(t, day(2025, 6, 7))
	_, err := f.svc.IngestDaily(context.Background(), Gold)
	assert.ErrorIs(t, err, ErrNotTradingDay)
	assert.Zero(t, f.quotes.calls)
}

func TestService_IngestDaily_DollarIndexApproximatesRange(t *testing.T) {
	f := newFixture(t, day(2025, 6, 3))
	f.quotes.quote = Quote{Price: 98.5, PreviousClose: 99.0, Source: "sina_dxy"}

	res, err := f.svc.IngestDaily(context.Background(), DollarIndex)
	require.NoError(t, err)
	assert.Equal(t, 99.0, res.Bar.Open)
	assert.Equal(t, 99.0, res.Bar.High)
	assert.Equal(t, 98.5, res.Bar.Low)
	assert.Nil(t, res.Statistics)
	assert.False(t, f.store.Exists(cache.KeyPeriodStatistics))
}

func TestService_IngestDaily_FetchError(t *testing.T) {
	f := newFixture(t, day(2025, 6, 3))
	f.quotes.err = errors.New("all sources down")

	_, err := f.svc.IngestDaily(context.Background(), Gold)
	assert.Error(t, err)

	series, err := f.repo.Series(context.Background(), Gold, "")
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestService_RealtimeQuote_CachesAndFallsBack(t *testing.T) {
	f := newFixture(t, day(2025, 6, 3))
	ctx := context.Background()
	f.quotes.quote = Quote{Price: 3300, Source: "eastmoney"}

	v, err := f.svc.RealtimeQuote(ctx, Gold)
	require.NoError(t, err)
	assert.Equal(t, "realtime", v.DataSource)

	v, err = f.svc.RealtimeQuote(ctx, Gold)
	require.NoError(t, err)
	assert.Equal(t, "memory", v.DataSource)
	assert.Equal(t, 1, f.quotes.calls)

	f.quotes.err = errors.New("down")
	require.NoError(t, f.store.Clear(cache.KeyRealtimeQuote))
	require.NoError(t, f.repo.Upsert(ctx, Gold, PriceBar{Date: "2025-06-02", Close: 3290}))

	v, err = f.svc.RealtimeQuote(ctx, Gold)
	require.NoError(t, err)
	assert.Equal(t, "database", v.DataSource)
	assert.Equal(t, 3290.0, v.Price)
}

func TestService_RealtimeQuote_NoFallback(t *testing.T) {
	f := newFixture(t, day(2025, 6, 3))
	f.quotes.err = errors.New("down")

	_, err := f.svc.RealtimeQuote(context.Background(), DollarIndex)
	assert.Error(t, err)
}

func TestService_PriceInfo(t *testing.T) {
	f := newFixture(t, day(2025, 6, 3))
	f.quotes.quote = Quote{Price: 3334, PreviousClose: 3300, Source: "sina"}

	info, err := f.svc.PriceInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 26.62, info.YTDReturn)
	assert.Equal(t, 1.03, info.ChangePercent)
	assert.Equal(t, StatusStrongUp, info.Status)
	assert.True(t, f.store.Exists(cache.KeyPriceInfo))
}

func TestService_StatisticsRecomputesOnMiss(t *testing.T) {
	f := newFixture(t, day(2025, 6, 3))
	ctx := context.Background()
	require.NoError(t, f.repo.Upsert(ctx, Gold,
		PriceBar{Date: "2025-06-02", High: 110, Low: 100, Close: 105},
	))

	stats, err := f.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10.0, stats.VolatilityRangePct)
	assert.True(t, f.store.Exists(cache.KeyPeriodStatistics))
}

func TestService_Correlation(t *testing.T) {
	f := newFixture(t, day(2025, 6, 10))
	ctx := context.Background()
	for i, p := range []float64{100, 102, 101, 105, 104} {
		date := DateOf(day(2025, 6, 2+i))
		require.NoError(t, f.repo.Upsert(ctx, Gold, PriceBar{Date: date, Close: p}))
		require.NoError(t, f.repo.Upsert(ctx, DollarIndex, PriceBar{Date: date, Close: 200 - p}))
	}

	res, err := f.svc.Correlation(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Observations)
	assert.Less(t, res.Coefficient, -0.9)
}

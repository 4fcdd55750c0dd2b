package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/aristath/aurum/internal/cache"
	"github.com/aristath/aurum/internal/events"
	"github.com/aristath/aurum/internal/market"
	"github.com/aristath/aurum/internal/metrics"
	"github.com/aristath/aurum/internal/news"
	"github.com/aristath/aurum/internal/refresh"
	"github.com/aristath/aurum/internal/updatelog"
	"github.com/aristath/aurum/internal/work"
)

type stubAnalysis struct {
	force     bool
	refreshed []string
}

func (s *stubAnalysis) Read(ctx context.Context, kind string, force bool) (refresh.Response, error) {
	if kind == "horoscope" {
		return refresh.Response{}, refresh.ErrUnknownKind
	}
	s.force = force
	return refresh.Response{
		Data:     map[string]string{"kind": kind},
		Metadata: refresh.Metadata{Source: refresh.SourceDefault, Status: refresh.StatusAnalyzing},
	}, nil
}

func (s *stubAnalysis) Refresh(kind string) (bool, error) {
	if kind == "horoscope" {
		return false, refresh.ErrUnknownKind
	}
	s.refreshed = append(s.refreshed, kind)
	return len(s.refreshed) == 1, nil
}

func (s *stubAnalysis) InFlight() []refresh.Lease {
	return []refresh.Lease{{Key: cache.KeyBullishFactors, Kind: "bullish", Token: "t"}}
}

type stubPrices struct {
	days int
	inst market.Instrument
}

func (s *stubPrices) RealtimeQuote(ctx context.Context, inst market.Instrument) (market.QuoteView, error) {
	if inst == market.DollarIndex {
		return market.QuoteView{}, errors.New("all sources failed")
	}
	return market.QuoteView{Quote: market.Quote{Price: 3334.5}, DataSource: "realtime"}, nil
}

func (s *stubPrices) PriceInfo(context.Context) (market.PriceInfo, error) {
	return market.PriceInfo{Price: 3334.5, Status: market.StatusStrongUp}, nil
}

func (s *stubPrices) History(ctx context.Context, inst market.Instrument, days int) (market.Series, error) {
	s.days, s.inst = days, inst
	return nil, nil
}

func (s *stubPrices) Statistics(context.Context) (market.PeriodStatistics, error) {
	return market.PeriodStatistics{PeriodHigh: 3500, PeriodLow: 2633}, nil
}

func (s *stubPrices) Indicators(context.Context) (market.Indicators, error) {
	return market.Indicators{LastClose: 3334}, nil
}

func (s *stubPrices) Correlation(ctx context.Context, days int) (market.CorrelationResult, error) {
	return market.CorrelationResult{Days: days, Coefficient: -0.42}, nil
}

type stubNews struct{ filter news.Filter }

func (s *stubNews) List(ctx context.Context, f news.Filter) ([]news.Item, error) {
	s.filter = f
	return []news.Item{{Title: "Gold hits record", Source: "FX168"}}, nil
}

func (s *stubNews) Summary(context.Context) (news.SentimentSummary, error) {
	return news.SentimentSummary{Positive: 2, Total: 2}, nil
}

type stubUpdates struct{}

func (stubUpdates) Recent(ctx context.Context, dataType string, limit int) ([]updatelog.Entry, error) {
	return []updatelog.Entry{{DataType: "news", Status: updatelog.StatusSuccess}}, nil
}

type stubPool struct{}

func (stubPool) Stats() work.Stats { return work.Stats{Workers: 3, QueueSize: 32} }

type fixture struct {
	srv      *Server
	analysis *stubAnalysis
	prices   *stubPrices
	news     *stubNews
	store    *cache.Store
	bus      *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := cache.NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	f := &fixture{
		analysis: &stubAnalysis{},
		prices:   &stubPrices{},
		news:     &stubNews{},
		store:    store,
		bus:      events.NewBus(zerolog.Nop()),
	}
	f.srv = New(Config{
		Log:      zerolog.Nop(),
		DevMode:  true,
		Analysis: f.analysis,
		Prices:   f.prices,
		News:     f.news,
		Updates:  stubUpdates{},
		Cache:    store,
		Pool:     stubPool{},
		Bus:      f.bus,
		Metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	var body map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec, body := f.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestGetAnalysis(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/analysis/bullish")
	require.Equal(t, http.StatusOK, rec.Code)
	meta := body["metadata"].(map[string]interface{})
	assert.Equal(t, "analyzing", meta["status"])
	assert.Equal(t, "default", meta["source"])
	assert.Equal(t, false, meta["cached"])
	assert.False(t, f.analysis.force)

	_, _ = f.do(t, http.MethodGet, "/api/analysis/bullish?refresh=true")
	assert.True(t, f.analysis.force)

	rec, _ = f.do(t, http.MethodGet, "/api/analysis/bullish?refresh=maybe")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/analysis/horoscope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"], "unknown analysis kind")
}

func TestRefreshAnalysis(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/analysis/advice/refresh")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, true, body["scheduled"])

	_, body = f.do(t, http.MethodPost, "/api/analysis/advice/refresh")
	assert.Equal(t, false, body["scheduled"])

	rec, _ = f.do(t, http.MethodPost, "/api/analysis/horoscope/refresh")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPriceEndpoints(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/prices/realtime")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3334.5, body["price"])
	assert.Equal(t, "realtime", body["data_source"])

	rec, _ = f.do(t, http.MethodGet, "/api/prices/realtime?series=dollar_index")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/prices/realtime?series=silver")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/prices/history?days=90&series=dollar_index")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 90, f.prices.days)
	assert.Equal(t, market.DollarIndex, f.prices.inst)
	assert.Empty(t, body["bars"])

	rec, _ = f.do(t, http.MethodGet, "/api/prices/history?days=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, body = f.do(t, http.MethodGet, "/api/prices/statistics")
	assert.Equal(t, 3500.0, body["period_high"])

	_, body = f.do(t, http.MethodGet, "/api/prices/correlation?days=30")
	assert.Equal(t, 30.0, body["days"])

	_, body = f.do(t, http.MethodGet, "/api/prices/info")
	assert.Equal(t, "strong_up", body["market_status"])
}

func TestNewsEndpoints(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/news?limit=5&source=FX168&sentiment=positive")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["count"])
	assert.Equal(t, news.Filter{Limit: 5, Source: "FX168", Sentiment: "positive"}, f.news.filter)

	rec, _ = f.do(t, http.MethodGet, "/api/news?sentiment=ecstatic")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, body = f.do(t, http.MethodGet, "/api/news/sentiment")
	assert.Equal(t, 2.0, body["positive"])
}

func TestCacheEndpoints(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(cache.KeyBullishFactors, map[string]string{"a": "b"}))
	require.NoError(t, f.store.Set(cache.KeyMarketSummary, map[string]string{"a": "b"}))

	var cleared []string
	f.bus.Subscribe(func(e *events.Event) {
		cleared = append(cleared, e.Data.(*events.CacheClearedData).Key)
	}, events.CacheCleared)

	rec, body := f.do(t, http.MethodGet, "/api/cache/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["memory_cache_keys"], 2)

	rec, _ = f.do(t, http.MethodDelete, "/api/cache/"+cache.KeyBullishFactors)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.store.Exists(cache.KeyBullishFactors))

	rec, _ = f.do(t, http.MethodDelete, "/api/cache/Not-A-Key")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, "/api/cache")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.store.Exists(cache.KeyMarketSummary))
	assert.Equal(t, []string{cache.KeyBullishFactors, ""}, cleared)
}

func TestSystemEndpoints(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodGet, "/api/system/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Len(t, body["leases"], 1)
	assert.Equal(t, 3.0, body["pool"].(map[string]interface{})["workers"])

	rec, body = f.do(t, http.MethodGet, "/api/system/updates?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["count"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.do(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "aurum_")
}

func TestEventStream(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/ws?types=" + string(events.ArtifactRefreshed)
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() streamMessage {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg streamMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	assert.Equal(t, "connected", read().Type)

	require.Eventually(t, func() bool {
		return f.bus.SubscriberCount(events.ArtifactRefreshed) == 1
	}, time.Second, 5*time.Millisecond)

	f.bus.Emit("artifact", &events.ArtifactRefreshStartedData{Kind: "bullish", Trigger: "miss"})
	f.bus.Emit("artifact", &events.ArtifactRefreshedData{Kind: "bullish", Source: "realtime"})

	msg := read()
	assert.Equal(t, string(events.ArtifactRefreshed), msg.Type)
	assert.Equal(t, "artifact", msg.Module)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t)
	srv := New(Config{
		Log:       zerolog.Nop(),
		DevMode:   true,
		RateLimit: 3,
		Analysis:  f.analysis,
		Prices:    f.prices,
		News:      f.news,
		Updates:   stubUpdates{},
		Cache:     f.store,
		Pool:      stubPool{},
		Bus:       f.bus,
		Metrics:   metrics.NewMetrics(prometheus.NewRegistry()),
	})

	get := func(path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = ip + ":40000"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get("/api/analysis/bullish", "203.0.113.7").Code)
	}

	rec := get("/api/analysis/bullish", "203.0.113.7")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "20", rec.Header().Get("Retry-After"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 20, body["retry_after"])
	assert.NotEmpty(t, body["error"])

	// Budgets are per client
	assert.Equal(t, http.StatusOK, get("/api/analysis/bullish", "203.0.113.8").Code)

	// The forwarded address is the client once RealIP has run
	req := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	req.RemoteAddr = "203.0.113.7:40000"
	req.Header.Set("X-Real-IP", "198.51.100.4")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health checks stay outside the budget
	assert.Equal(t, http.StatusOK, get("/health", "203.0.113.7").Code)
}

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/aurum/internal/artifact"
	"github.com/aristath/aurum/internal/events"
	"github.com/aristath/aurum/internal/market"
	"github.com/aristath/aurum/internal/news"
	"github.com/aristath/aurum/internal/work"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// inlinePool runs tasks synchronously, or rejects them when full is set.
type inlinePool struct {
	mu    sync.Mutex
	full  bool
	names []string
	errs  []error
}

func (p *inlinePool) Submit(name string, fn work.TaskFunc) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.full {
		return false
	}
	p.names = append(p.names, name)
	p.errs = append(p.errs, fn(context.Background()))
	return true
}

type namedJob struct {
	name string
	runs int
}

func (j *namedJob) Name() string { return j.name }

func (j *namedJob) Run(ctx context.Context) error {
	j.runs++
	return nil
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, dataType string, records int, took time.Duration, runErr error) error {
	args := m.Called(dataType, records, runErr)
	return args.Error(0)
}

func (m *MockRecorder) RecordSkip(ctx context.Context, dataType, reason string) error {
	args := m.Called(dataType, reason)
	return args.Error(0)
}

func shanghai(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	return loc
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(&inlinePool{}, shanghai(t), nil, nil, zerolog.Nop())

	require.NoError(t, s.AddJob("30 6 * * *", &namedJob{name: "update_prices"}))
	assert.Error(t, s.AddJob("30 6 * * *", &namedJob{name: "update_prices"}), "duplicate name")
	assert.Error(t, s.AddJob("not a schedule", &namedJob{name: "broken"}))

	s.Start()
	defer s.Stop()

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "update_prices", jobs[0].Name)
	assert.Equal(t, "30 6 * * *", jobs[0].Schedule)

	next := jobs[0].Next.In(shanghai(t))
	assert.Equal(t, 6, next.Hour())
	assert.Equal(t, 30, next.Minute())
}

func TestScheduler_RunNowSubmitsToPool(t *testing.T) {
	pool := &inlinePool{}
	s := New(pool, time.UTC, nil, nil, zerolog.Nop())
	job := &namedJob{name: "update_news"}
	require.NoError(t, s.AddJob("@hourly", job))

	require.NoError(t, s.RunNow("update_news"))
	assert.Equal(t, 1, job.runs)
	assert.Equal(t, []string{"job:update_news"}, pool.names)

	assert.Error(t, s.RunNow("missing"))
}

func TestScheduler_FullPoolSkipsJob(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	var skipped []*events.JobSkippedData
	bus.Subscribe(func(e *events.Event) {
		skipped = append(skipped, e.Data.(*events.JobSkippedData))
	}, events.JobSkipped)

	s := New(&inlinePool{full: true}, time.UTC, nil, bus, zerolog.Nop())
	job := &namedJob{name: "update_ai_analysis"}
	require.NoError(t, s.AddJob("@hourly", job))

	assert.Error(t, s.RunNow("update_ai_analysis"))
	assert.Equal(t, 0, job.runs)
	require.Len(t, skipped, 1)
	assert.Equal(t, "update_ai_analysis", skipped[0].Job)
}

type stubPrices struct {
	res  market.MergeResult
	err  error
	inst market.Instrument
}

func (s *stubPrices) IngestDaily(ctx context.Context, inst market.Instrument) (market.MergeResult, error) {
	s.inst = inst
	return s.res, s.err
}

func TestUpdatePriceJob(t *testing.T) {
	t.Run("success records one bar", func(t *testing.T) {
		rec := new(MockRecorder)
		rec.On("Record", "gold_price", 1, nil).Return(nil)
		prices := &stubPrices{res: market.MergeResult{Bar: market.PriceBar{Date: "2025-06-02", Close: 3334}}}

		job := NewUpdatePriceJob(market.Gold, prices, rec, nil, nil, zerolog.Nop())
		assert.Equal(t, "update_prices", job.Name())
		require.NoError(t, job.Run(context.Background()))
		assert.Equal(t, market.Gold, prices.inst)
		rec.AssertExpectations(t)
	})

	t.Run("weekend is skipped", func(t *testing.T) {
		rec := new(MockRecorder)
		rec.On("RecordSkip", "dollar_index", "not a trading day").Return(nil)
		bus := events.NewBus(zerolog.Nop())
		var got int
		bus.Subscribe(func(*events.Event) { got++ }, events.JobSkipped)

		job := NewUpdatePriceJob(market.DollarIndex, &stubPrices{err: market.ErrNotTradingDay}, rec, nil, bus, zerolog.Nop())
		assert.Equal(t, "update_dollar_index", job.Name())
		require.NoError(t, job.Run(context.Background()))
		assert.Equal(t, 1, got)
		rec.AssertExpectations(t)
		rec.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failure is recorded and returned", func(t *testing.T) {
		boom := errors.New("all quote sources failed")
		rec := new(MockRecorder)
		rec.On("Record", "gold_price", 0, boom).Return(nil)

		job := NewUpdatePriceJob(market.Gold, &stubPrices{err: boom}, rec, nil, nil, zerolog.Nop())
		assert.ErrorIs(t, job.Run(context.Background()), boom)
		rec.AssertExpectations(t)
	})
}

type stubNews struct {
	res news.IngestResult
	err error
}

func (s *stubNews) Ingest(context.Context) (news.IngestResult, error) { return s.res, s.err }

func TestUpdateNewsJob(t *testing.T) {
	rec := new(MockRecorder)
	rec.On("Record", "news", 4, nil).Return(errors.New("db locked"))

	job := NewUpdateNewsJob(&stubNews{res: news.IngestResult{Fetched: 10, Inserted: 4}}, rec, zerolog.Nop())
	require.NoError(t, job.Run(context.Background()), "update log failures do not fail the job")
	rec.AssertExpectations(t)
}

type stubRunner struct {
	order  []string
	busy   map[string]bool
	failed map[string]bool
}

func (s *stubRunner) RunNow(ctx context.Context, kind, trigger string) (artifact.Outcome, bool, error) {
	if trigger != artifact.TriggerSchedule {
		return artifact.Outcome{}, false, errors.New("unexpected trigger")
	}
	if _, ok := ctx.Deadline(); !ok {
		return artifact.Outcome{}, false, errors.New("missing deadline")
	}
	if s.busy[kind] {
		return artifact.Outcome{}, false, nil
	}
	s.order = append(s.order, kind)
	if s.failed[kind] {
		return artifact.Outcome{State: artifact.StateFailed, Err: errors.New("providers down")}, true, nil
	}
	return artifact.Outcome{State: artifact.StateDone, Provider: "zhipu"}, true, nil
}

func TestUpdateAnalysisJob(t *testing.T) {
	kinds := []string{"bullish", "bearish", "institutions", "advice", "summary"}

	t.Run("runs every kind in order", func(t *testing.T) {
		runner := &stubRunner{}
		rec := new(MockRecorder)
		rec.On("Record", "ai_analysis", 5, nil).Return(nil)

		job := NewUpdateAnalysisJob(runner, kinds, time.Minute, rec, zerolog.Nop())
		require.NoError(t, job.Run(context.Background()))
		assert.Equal(t, kinds, runner.order)
		rec.AssertExpectations(t)
	})

	t.Run("in-flight kinds are skipped and failures aggregated", func(t *testing.T) {
		runner := &stubRunner{busy: map[string]bool{"bearish": true}, failed: map[string]bool{"advice": true}}
		rec := new(MockRecorder)
		rec.On("Record", "ai_analysis", 3, mock.Anything).Return(nil)

		job := NewUpdateAnalysisJob(runner, kinds, time.Minute, rec, zerolog.Nop())
		err := job.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "advice")
		assert.Equal(t, []string{"bullish", "institutions", "advice", "summary"}, runner.order)
		rec.AssertExpectations(t)
	})
}

type stubDB struct {
	mode string
	err  error
}

func (s *stubDB) WALCheckpoint(mode string) error {
	s.mode = mode
	return s.err
}

type stubPruner struct{ keep int }

func (s *stubPruner) Prune(ctx context.Context, keep int) (int64, error) {
	s.keep = keep
	return 3, nil
}

func TestWALCheckpointJob(t *testing.T) {
	db, pruner := &stubDB{}, &stubPruner{}
	job := NewWALCheckpointJob(db, pruner, 50, zerolog.Nop())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, "TRUNCATE", db.mode)
	assert.Equal(t, 50, pruner.keep)

	db.err = errors.New("database is locked")
	assert.ErrorIs(t, job.Run(context.Background()), db.err)
}

type stubBackup struct{ err error }

func (s *stubBackup) Backup(context.Context) (string, error) {
	return "aurum-backup-2025-06-02.tar.gz", s.err
}

func TestBackupJob(t *testing.T) {
	rec := new(MockRecorder)
	rec.On("Record", "backup", 1, nil).Return(nil)
	require.NoError(t, NewBackupJob(&stubBackup{}, rec, zerolog.Nop()).Run(context.Background()))

	boom := errors.New("bucket missing")
	rec = new(MockRecorder)
	rec.On("Record", "backup", 0, boom).Return(nil)
	assert.ErrorIs(t, NewBackupJob(&stubBackup{err: boom}, rec, zerolog.Nop()).Run(context.Background()), boom)
	rec.AssertExpectations(t)
}

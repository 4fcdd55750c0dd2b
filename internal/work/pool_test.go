package work

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_Defaults(t *testing.T) {
	p := NewPool(Config{}, nil, zerolog.Nop())

	stats := p.Stats()
	assert.Equal(t, DefaultWorkers, stats.Workers)
	assert.Equal(t, DefaultQueueSize, stats.QueueSize)
	assert.Equal(t, TaskTimeout, p.cfg.Timeout)
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	p := NewPool(Config{Workers: 2, QueueSize: 8}, nil, zerolog.Nop())
	p.Start()

	var wg sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		ok := p.Submit("count", func(ctx context.Context) error {
			defer wg.Done()
			ran.Add(1)
			return nil
		})
		require.True(t, ok)
	}

	wg.Wait()
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, int64(5), p.Stats().Completed)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(Config{Workers: 2, QueueSize: 16}, nil, zerolog.Nop())
	p.Start()

	var current, peak atomic.Int32
	for i := 0; i < 8; i++ {
		p.Submit("busy", func(ctx context.Context) error {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
			return nil
		})
	}

	require.NoError(t, p.Stop(context.Background()))
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int64(8), p.Stats().Completed)
}

func TestPool_RejectsWhenQueueFull(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 1}, nil, zerolog.Nop())

	// Not started: the single queue slot fills and stays full.
	assert.True(t, p.Submit("first", func(ctx context.Context) error { return nil }))
	assert.False(t, p.Submit("second", func(ctx context.Context) error { return nil }))
	assert.Equal(t, int64(1), p.Stats().Rejected)
	assert.Equal(t, 1, p.Stats().QueueDepth)
}

func TestPool_RejectsAfterStop(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 4}, nil, zerolog.Nop())
	p.Start()
	require.NoError(t, p.Stop(context.Background()))

	assert.False(t, p.Submit("late", func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, p.Stop(context.Background()), ErrPoolStopped)
}

func TestPool_StopDrainsQueue(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 4}, nil, zerolog.Nop())

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		require.True(t, p.Submit("queued", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	p.Start()

	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, int32(3), ran.Load())
}

func TestPool_TaskTimeout(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 1, Timeout: 20 * time.Millisecond}, nil, zerolog.Nop())
	p.Start()

	done := make(chan error, 1)
	p.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("task was not cancelled")
	}

	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, int64(1), p.Stats().Failed)
}

func TestPool_StopCancelsRunningTasksOnDeadline(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 1, Timeout: time.Minute}, nil, zerolog.Nop())
	p.Start()

	started := make(chan struct{})
	p.Submit("stuck", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Stop(ctx), context.DeadlineExceeded)
}

func TestPool_RecoversFromPanic(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 4}, nil, zerolog.Nop())
	p.Start()

	p.Submit("boom", func(ctx context.Context) error { panic("bad") })
	var after atomic.Bool
	p.Submit("after", func(ctx context.Context) error {
		after.Store(true)
		return nil
	})

	require.NoError(t, p.Stop(context.Background()))
	assert.True(t, after.Load(), "worker survives a panicking task")
	assert.Equal(t, int64(1), p.Stats().Failed)
}

func TestPool_StatsReportsRunning(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 1}, nil, zerolog.Nop())
	p.Start()

	release := make(chan struct{})
	started := make(chan struct{})
	p.Submit("refresh:bullish_factors", func(ctx context.Context) error {
		close(started)
		<-release
		return errors.New("failed anyway")
	})
	<-started

	running := p.Stats().Running
	require.Len(t, running, 1)
	assert.Equal(t, "refresh:bullish_factors", running[0].Name)

	close(release)
	require.NoError(t, p.Stop(context.Background()))
	assert.Empty(t, p.Stats().Running)
	assert.Equal(t, int64(1), p.Stats().Failed)
}

func TestPanicError(t *testing.T) {
	var err error = &PanicError{Task: "x", Value: "bad"}
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, err.Error(), "task x panicked: bad")
}

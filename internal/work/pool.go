package work

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/aurum/internal/metrics"
	"github.com/rs/zerolog"
)

var (
	// ErrPoolStopped is returned by Stop when called twice.
	ErrPoolStopped = errors.New("work pool already stopped")
	// ErrQueueFull describes a task Submit turned away.
	ErrQueueFull = errors.New("work queue full")
)

// Config sizes a Pool.
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Pool executes tasks on a fixed number of workers fed by a bounded queue.
type Pool struct {
	cfg     Config
	queue   chan *Task
	metrics *metrics.Metrics
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	started  bool
	stopped  bool
	running  map[int]Running
	complete atomic.Int64
	failed   atomic.Int64
	rejected atomic.Int64
}

// NewPool creates a pool. Zero config values fall back to the defaults.
func NewPool(cfg Config, m *metrics.Metrics, log zerolog.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = TaskTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:     cfg,
		queue:   make(chan *Task, cfg.QueueSize),
		metrics: m,
		log:     log.With().Str("component", "work_pool").Logger(),
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[int]Running),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Info().
		Int("workers", p.cfg.Workers).
		Int("queue_size", p.cfg.QueueSize).
		Dur("timeout", p.cfg.Timeout).
		Msg("Work pool started")
}

// Submit queues a task without blocking. It returns false when the queue is
// full or the pool has been stopped.
func (p *Pool) Submit(name string, fn TaskFunc) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.reject(name, "stopped")
		return false
	}

	task := &Task{Name: name, Run: fn, QueuedAt: time.Now()}
	select {
	case p.queue <- task:
		p.metrics.SetQueueDepth(len(p.queue))
		p.log.Debug().Str("task", name).Int("queue_depth", len(p.queue)).Msg("Task queued")
		return true
	default:
		p.reject(name, "queue full")
		return false
	}
}

func (p *Pool) reject(name, reason string) {
	p.rejected.Add(1)
	p.metrics.Rejected()
	p.log.Warn().Str("task", name).Str("reason", reason).Msg("Task rejected")
}

// Stop stops accepting tasks, drains the queue and waits for the workers.
// When ctx expires before the drain finishes, running tasks are cancelled
// and ctx's error is returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.stopped = true
	close(p.queue)
	started := p.started
	p.mu.Unlock()

	if !started {
		p.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.log.Info().Msg("Work pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		p.log.Warn().Msg("Work pool stopped before the queue drained")
		return ctx.Err()
	}
}

// Stats reports queue depth, running tasks and counters.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	running := make([]Running, 0, len(p.running))
	for _, r := range p.running {
		running = append(running, r)
	}
	p.mu.RUnlock()

	sort.Slice(running, func(i, j int) bool { return running[i].StartedAt.Before(running[j].StartedAt) })

	return Stats{
		Workers:    p.cfg.Workers,
		QueueSize:  p.cfg.QueueSize,
		QueueDepth: len(p.queue),
		Running:    running,
		Completed:  p.complete.Load(),
		Failed:     p.failed.Load(),
		Rejected:   p.rejected.Load(),
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for task := range p.queue {
		p.metrics.SetQueueDepth(len(p.queue))
		p.execute(id, task)
	}
}

func (p *Pool) execute(id int, task *Task) {
	p.mu.Lock()
	p.running[id] = Running{Name: task.Name, StartedAt: time.Now()}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.running, id)
		p.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := p.run(ctx, task)
	took := time.Since(start)

	switch {
	case err == nil:
		p.complete.Add(1)
		p.log.Debug().Str("task", task.Name).Dur("took", took).Msg("Task completed")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		p.failed.Add(1)
		p.log.Error().Str("task", task.Name).Dur("took", took).Msg("Task timed out")
	default:
		p.failed.Add(1)
		p.log.Error().Err(err).Str("task", task.Name).Dur("took", took).Msg("Task failed")
	}
}

// run invokes the task body, converting a panic into an error so one bad
// task cannot take a worker down.
func (p *Pool) run(ctx context.Context, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: task.Name, Value: r}
		}
	}()
	return task.Run(ctx)
}

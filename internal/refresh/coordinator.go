// Package refresh serves analysis artifacts from the cache and schedules
// background production on misses, with at most one production per key in
// flight.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/aurum/internal/artifact"
	"github.com/aristath/aurum/internal/cache"
	"github.com/aristath/aurum/internal/events"
	"github.com/aristath/aurum/internal/metrics"
	"github.com/aristath/aurum/internal/work"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrUnknownKind is returned for an artifact kind with no registered producer.
var ErrUnknownKind = errors.New("unknown analysis kind")

// Status is reported in Metadata.Status.
type Status string

const (
	StatusReady     Status = "ready"
	StatusAnalyzing Status = "analyzing"
	StatusStale     Status = "stale"
	StatusFailed    Status = "failed"
)

// Sources reported in Metadata.Source besides the cache layers.
const (
	SourceDatabase = "database"
	SourceRealtime = "realtime"
	SourceDefault  = "default"
)

const (
	messageAnalyzing = "AI分析进行中，请稍后刷新"
	messageStale     = "实时分析失败，返回最近一次缓存结果"
	messageFailed    = "实时分析失败，返回默认数据"
	messageInFlight  = "AI分析进行中，返回最近一次缓存结果"
)

// tierTimeout bounds the database tier so a busy database cannot stall a read.
const tierTimeout = 40 * time.Millisecond

// Runners looks up the producer for a kind.
type Runners interface {
	Get(kind string) (artifact.Runner, bool)
	Kinds() []string
}

// Submitter queues background work. *work.Pool satisfies it.
type Submitter interface {
	Submit(name string, fn work.TaskFunc) bool
}

// Tier is an optional read layer consulted after the cache and before the
// default. It returns false when it cannot serve the key.
type Tier func(ctx context.Context) (interface{}, bool)

// Metadata describes where a response came from.
type Metadata struct {
	Cached      bool       `json:"cached"`
	Source      string     `json:"source"`
	Status      Status     `json:"status"`
	GeneratedAt *time.Time `json:"generated_at"`
	Message     string     `json:"message,omitempty"`
	Provider    string     `json:"provider,omitempty"`
}

// Response is the body served for an analysis read.
type Response struct {
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
}

// Lease marks a background production in flight for a cache key.
type Lease struct {
	Key        string    `json:"key"`
	Kind       string    `json:"kind"`
	Token      string    `json:"token"`
	Trigger    string    `json:"trigger"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Coordinator implements the read path and lease-guarded refreshes.
type Coordinator struct {
	runners Runners
	cache   *cache.Store
	pool    Submitter
	tiers   map[string]Tier
	metrics *metrics.Metrics
	bus     *events.Bus
	log     zerolog.Logger

	mu     sync.Mutex
	leases map[string]Lease
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTier adds a read tier for a cache key.
func WithTier(key string, tier Tier) Option {
	return func(c *Coordinator) { c.tiers[key] = tier }
}

// WithMetrics records the number of live leases.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithBus reports productions that could not be scheduled.
func WithBus(bus *events.Bus) Option {
	return func(c *Coordinator) { c.bus = bus }
}

// NewCoordinator creates a coordinator.
func NewCoordinator(runners Runners, store *cache.Store, pool Submitter, log zerolog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		runners: runners,
		cache:   store,
		pool:    pool,
		tiers:   make(map[string]Tier),
		log:     log.With().Str("component", "refresh").Logger(),
		leases:  make(map[string]Lease),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read serves kind. With force the producer runs synchronously under the key's
// lease and a failed run falls back to the last cached payload, then to the
// default; if a production is already in flight the last payload is served
// without starting another. Without
// force a cache miss returns the default immediately and schedules a
// background production.
func (c *Coordinator) Read(ctx context.Context, kind string, force bool) (Response, error) {
	runner, ok := c.runners.Get(kind)
	if !ok {
		return Response{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	if force {
		return c.forced(ctx, runner), nil
	}

	if e, src, ok := c.cache.Get(runner.Key()); ok {
		return cachedResponse(e, string(src), StatusReady, ""), nil
	}

	if tier, ok := c.tiers[runner.Key()]; ok {
		tierCtx, cancel := context.WithTimeout(ctx, tierTimeout)
		payload, ok := tier(tierCtx)
		cancel()
		if ok {
			return Response{
				Data:     payload,
				Metadata: Metadata{Cached: true, Source: SourceDatabase, Status: StatusReady},
			}, nil
		}
	}

	c.schedule(runner, artifact.TriggerMiss)
	return Response{
		Data: runner.DefaultPayload(),
		Metadata: Metadata{
			Source:  SourceDefault,
			Status:  StatusAnalyzing,
			Message: messageAnalyzing,
		},
	}, nil
}

func (c *Coordinator) forced(ctx context.Context, runner artifact.Runner) Response {
	lease, ok := c.acquire(runner, artifact.TriggerForce)
	if !ok {
		// Another production owns the key; serve the last payload instead of racing it
		c.log.Info().Str("kind", runner.Kind()).Msg("Forced refresh joined an in-flight production")
		if e, src, ok := c.cache.GetStale(runner.Key()); ok {
			return cachedResponse(e, string(src), StatusStale, messageInFlight)
		}
		return Response{
			Data:     runner.DefaultPayload(),
			Metadata: Metadata{Source: SourceDefault, Status: StatusAnalyzing, Message: messageAnalyzing},
		}
	}
	defer c.release(lease)

	out := runner.Run(ctx, artifact.TriggerForce)
	if out.State == artifact.StateDone {
		produced := out.ProducedAt
		return Response{
			Data: out.Payload,
			Metadata: Metadata{
				Source:      SourceRealtime,
				Status:      StatusReady,
				GeneratedAt: &produced,
				Provider:    out.Provider,
			},
		}
	}

	c.log.Warn().Err(out.Err).Str("kind", runner.Kind()).Msg("Forced refresh failed, serving fallback")
	if e, src, ok := c.cache.GetStale(runner.Key()); ok {
		return cachedResponse(e, string(src), StatusStale, messageStale)
	}
	return Response{
		Data:     out.Payload,
		Metadata: Metadata{Source: SourceDefault, Status: StatusFailed, Message: messageFailed},
	}
}

func cachedResponse(e cache.Entry, source string, status Status, message string) Response {
	produced := e.ProducedAt
	return Response{
		Data: e.Payload,
		Metadata: Metadata{
			Cached:      true,
			Source:      source,
			Status:      status,
			GeneratedAt: &produced,
			Message:     message,
		},
	}
}

// Refresh schedules a background production for kind. It reports false when
// one is already in flight or the pool is full.
func (c *Coordinator) Refresh(kind string) (bool, error) {
	runner, ok := c.runners.Get(kind)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return c.schedule(runner, artifact.TriggerManual), nil
}

// Warm schedules a background production for every kind whose cache entry is
// missing or expired. It returns the kinds that were scheduled.
func (c *Coordinator) Warm() []string {
	var scheduled []string
	for _, kind := range c.runners.Kinds() {
		runner, ok := c.runners.Get(kind)
		if !ok || c.cache.Exists(runner.Key()) {
			continue
		}
		if c.schedule(runner, artifact.TriggerWarmup) {
			scheduled = append(scheduled, kind)
		}
	}
	c.log.Info().Strs("kinds", scheduled).Msg("Cache warmup scheduled")
	return scheduled
}

// RunNow produces kind on the calling goroutine under a lease. It reports
// false without running when a production for the key is already in flight.
func (c *Coordinator) RunNow(ctx context.Context, kind, trigger string) (artifact.Outcome, bool, error) {
	runner, ok := c.runners.Get(kind)
	if !ok {
		return artifact.Outcome{}, false, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	lease, ok := c.acquire(runner, trigger)
	if !ok {
		return artifact.Outcome{}, false, nil
	}
	defer c.release(lease)

	return runner.Run(ctx, trigger), true, nil
}

func (c *Coordinator) schedule(runner artifact.Runner, trigger string) bool {
	lease, ok := c.acquire(runner, trigger)
	if !ok {
		c.log.Debug().Str("kind", runner.Kind()).Msg("Production already in flight")
		return false
	}

	submitted := c.pool.Submit("refresh:"+runner.Key(), func(ctx context.Context) error {
		defer c.release(lease)
		out := runner.Run(ctx, trigger)
		if out.State != artifact.StateDone {
			return out.Err
		}
		return nil
	})
	if !submitted {
		c.release(lease)
		c.log.Warn().Str("kind", runner.Kind()).Msg("Work pool full, production not scheduled")
		c.bus.EmitError("refresh", work.ErrQueueFull, map[string]interface{}{"kind": runner.Kind()})
		return false
	}

	c.log.Info().Str("kind", runner.Kind()).Str("trigger", trigger).Str("lease", lease.Token).Msg("Production scheduled")
	return true
}

func (c *Coordinator) acquire(runner artifact.Runner, trigger string) (Lease, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, held := c.leases[runner.Key()]; held {
		return Lease{}, false
	}
	lease := Lease{
		Key:        runner.Key(),
		Kind:       runner.Kind(),
		Token:      uuid.New().String(),
		Trigger:    trigger,
		AcquiredAt: time.Now(),
	}
	c.leases[lease.Key] = lease
	c.metrics.SetLeases(len(c.leases))
	return lease, true
}

// release drops the lease only if it is still the holder's.
func (c *Coordinator) release(lease Lease) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.leases[lease.Key]; ok && cur.Token == lease.Token {
		delete(c.leases, lease.Key)
	}
	c.metrics.SetLeases(len(c.leases))
}

// InFlight lists live leases, oldest first.
func (c *Coordinator) InFlight() []Lease {
	c.mu.Lock()
	out := make([]Lease, 0, len(c.leases))
	for _, l := range c.leases {
		out = append(out, l)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AcquiredAt.Before(out[j].AcquiredAt) })
	return out
}

// Package artifact produces AI analysis artifacts: it assembles context,
// calls generation providers in priority order, validates and persists the
// result, and writes it to the cache.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aristath/aurum/internal/cache"
	"github.com/aristath/aurum/internal/clients/llm"
	"github.com/aristath/aurum/internal/events"
	"github.com/aristath/aurum/internal/metrics"
	"github.com/rs/zerolog"
)

// State is a step of a production run.
type State string

const (
	StateIdle              State = "idle"
	StateAssemblingContext State = "assembling_context"
	StateGenerating        State = "generating"
	StateValidating        State = "validating"
	StatePersisting        State = "persisting"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// Source says whether a payload was generated or is the static default.
type Source string

const (
	SourceRealtime Source = "realtime"
	SourceDefault  Source = "default"
)

// Triggers recorded on ArtifactRefreshStarted events.
const (
	TriggerMiss     = "miss"
	TriggerForce    = "force"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerWarmup   = "warmup"
)

// Options tune the generation request.
type Options struct {
	System      string
	Temperature float64
	// FallbackTemperature is used for every provider after the first. Zero means Temperature.
	FallbackTemperature float64
	MaxTokens           int
	// WebSearch is requested from the primary provider only.
	WebSearch bool
}

// Definition describes one artifact kind.
type Definition[T any] struct {
	Kind string
	Key  string

	BuildContext func(ctx context.Context) (string, error)
	Prompt       func(promptContext string) string
	Validate     func(*T) error
	Persist      func(ctx context.Context, payload *T) error
	Default      func() T

	Options Options
}

// SnapshotStore keeps the history of produced payloads.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, kind string, payload json.RawMessage, source string) error
}

// Deps are the collaborators shared by every producer.
type Deps struct {
	Providers []llm.Provider
	Cache     *cache.Store
	Snapshots SnapshotStore
	Metrics   *metrics.Metrics
	Bus       *events.Bus
	Log       zerolog.Logger
}

// Result is the outcome of Produce.
type Result[T any] struct {
	State      State
	Source     Source
	Provider   string
	Err        error
	Payload    T
	ProducedAt time.Time
}

// Outcome is a Result with the payload type erased.
type Outcome struct {
	State      State
	Source     Source
	Provider   string
	Err        error
	Payload    interface{}
	ProducedAt time.Time
}

// Runner is the type-erased view of a Producer used by the refresh coordinator
// and the scheduler.
type Runner interface {
	Kind() string
	Key() string
	Run(ctx context.Context, trigger string) Outcome
	DefaultPayload() interface{}
}

// Producer runs the production state machine for one artifact kind.
type Producer[T any] struct {
	def  Definition[T]
	deps Deps
	log  zerolog.Logger
}

// NewProducer creates a producer for def.
func NewProducer[T any](def Definition[T], deps Deps) *Producer[T] {
	return &Producer[T]{
		def:  def,
		deps: deps,
		log:  deps.Log.With().Str("component", "producer").Str("kind", def.Kind).Logger(),
	}
}

func (p *Producer[T]) Kind() string { return p.def.Kind }

func (p *Producer[T]) Key() string { return p.def.Key }

// DefaultPayload returns the static default payload.
func (p *Producer[T]) DefaultPayload() interface{} {
	return p.def.Default()
}

// Run implements Runner.
func (p *Producer[T]) Run(ctx context.Context, trigger string) Outcome {
	r := p.produce(ctx, trigger)
	return Outcome{
		State:      r.State,
		Source:     r.Source,
		Provider:   r.Provider,
		Err:        r.Err,
		Payload:    r.Payload,
		ProducedAt: r.ProducedAt,
	}
}

// Produce runs a full production. It never fails: when every provider fails
// the result carries the static default with Source=default and the last error.
// Defaults are not cached.
func (p *Producer[T]) Produce(ctx context.Context) Result[T] {
	return p.produce(ctx, TriggerManual)
}

func (p *Producer[T]) produce(ctx context.Context, trigger string) Result[T] {
	start := time.Now()
	p.deps.Bus.Emit("artifact", &events.ArtifactRefreshStartedData{Kind: p.def.Kind, Trigger: trigger})
	p.log.Info().Str("trigger", trigger).Msg("Production started")

	p.enter(StateAssemblingContext)
	promptCtx, err := p.def.BuildContext(ctx)
	if err != nil {
		return p.fail(start, err)
	}
	prompt := p.def.Prompt(promptCtx)

	if len(p.deps.Providers) == 0 {
		return p.fail(start, ErrNoProvider)
	}

	var lastErr error
	for i, provider := range p.deps.Providers {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		p.enter(StateGenerating)
		text, err := provider.Complete(ctx, p.request(i, prompt))
		if err != nil {
			p.log.Warn().Err(err).Str("provider", provider.Name()).Msg("Generation failed, trying next provider")
			lastErr = err
			continue
		}

		p.enter(StateValidating)
		var payload T
		if err := ExtractJSON(text, &payload); err != nil {
			lastErr = &ParseError{Provider: provider.Name(), Err: err}
			p.log.Warn().Err(lastErr).Msg("Generation result rejected")
			continue
		}
		if p.def.Validate != nil {
			if err := p.def.Validate(&payload); err != nil {
				lastErr = &ParseError{Provider: provider.Name(), Err: err}
				p.log.Warn().Err(lastErr).Msg("Generation result rejected")
				continue
			}
		}

		return p.commit(ctx, start, provider.Name(), payload)
	}

	return p.fail(start, lastErr)
}

func (p *Producer[T]) request(i int, prompt string) llm.Request {
	o := p.def.Options
	req := llm.Request{
		System:      o.System,
		Prompt:      prompt,
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
	}
	if i == 0 {
		req.WebSearch = o.WebSearch
	} else if o.FallbackTemperature > 0 {
		req.Temperature = o.FallbackTemperature
	}
	return req
}

// commit persists and caches a validated payload.
func (p *Producer[T]) commit(ctx context.Context, start time.Time, provider string, payload T) Result[T] {
	p.enter(StatePersisting)
	res := Result[T]{
		State:    StateDone,
		Source:   SourceRealtime,
		Provider: provider,
		Payload:  payload,
	}

	if p.def.Persist != nil {
		if err := p.def.Persist(ctx, &payload); err != nil {
			res.Err = &PersistenceError{Key: p.def.Key, Err: err}
			p.log.Error().Err(err).Msg("Failed to persist payload, caching anyway")
		}
	}

	if err := p.deps.Cache.Set(p.def.Key, payload); err != nil {
		var cwe *cache.CacheWriteError
		if !errors.As(err, &cwe) {
			// Nothing reached the cache.
			return p.fail(start, err)
		}
		res.Err = err
		p.log.Warn().Err(err).Msg("Cache file write failed, memory layer updated")
	}
	if e, _, ok := p.deps.Cache.GetStale(p.def.Key); ok {
		res.ProducedAt = e.ProducedAt
	}

	if p.deps.Snapshots != nil {
		if raw, err := json.Marshal(payload); err == nil {
			if err := p.deps.Snapshots.SaveSnapshot(ctx, p.def.Kind, raw, string(SourceRealtime)); err != nil {
				p.log.Warn().Err(err).Msg("Failed to save snapshot")
			}
		}
	}

	p.enter(StateDone)
	took := time.Since(start)
	p.deps.Metrics.Production(p.def.Kind, string(StateDone), string(SourceRealtime), took)
	p.deps.Bus.Emit("artifact", &events.ArtifactRefreshedData{
		Kind:       p.def.Kind,
		Source:     string(SourceRealtime),
		DurationMs: float64(took.Milliseconds()),
	})
	p.log.Info().
		Str("provider", provider).
		Dur("took", took).
		Msg("Production finished")
	return res
}

func (p *Producer[T]) fail(start time.Time, err error) Result[T] {
	p.enter(StateFailed)
	took := time.Since(start)
	p.deps.Metrics.Production(p.def.Kind, string(StateFailed), string(SourceDefault), took)

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	p.deps.Bus.Emit("artifact", &events.ArtifactRefreshFailedData{
		Kind:  p.def.Kind,
		State: string(StateFailed),
		Error: msg,
	})
	p.log.Error().Err(err).Dur("took", took).Msg("Production failed, serving default")

	return Result[T]{
		State:   StateFailed,
		Source:  SourceDefault,
		Err:     err,
		Payload: p.def.Default(),
	}
}

func (p *Producer[T]) enter(s State) {
	p.deps.Metrics.Transition(p.def.Kind, string(s))
	p.log.Debug().Str("state", string(s)).Msg("State transition")
}

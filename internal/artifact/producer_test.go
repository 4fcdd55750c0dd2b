package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/aristath/aurum/internal/cache"
	"github.com/aristath/aurum/internal/clients/llm"
	"github.com/aristath/aurum/internal/events"
	testingpkg "github.com/aristath/aurum/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type factors struct {
	Items   []string `json:"items"`
	Summary string   `json:"summary"`
}

type snapshotRecorder struct {
	mu    sync.Mutex
	kinds []string
}

func (s *snapshotRecorder) SaveSnapshot(_ context.Context, kind string, _ json.RawMessage, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
	return nil
}

func testDefinition(persistErr error) Definition[factors] {
	return Definition[factors]{
		Kind:         "bullish",
		Key:          cache.KeyBullishFactors,
		BuildContext: func(context.Context) (string, error) { return "gold at 3300", nil },
		Prompt:       func(c string) string { return "analyse: " + c },
		Validate: func(f *factors) error {
			if len(f.Items) == 0 {
				return errors.New("no items")
			}
			return nil
		},
		Persist: func(context.Context, *factors) error { return persistErr },
		Default: func() factors { return factors{Summary: "default"} },
		Options: Options{Temperature: 0.3, FallbackTemperature: 0.7, MaxTokens: 4096, WebSearch: true},
	}
}

func newStore(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestProduce_PrimarySucceeds(t *testing.T) {
	store := newStore(t)
	primary := testingpkg.NewMockProvider("zhipu")
	primary.On("Complete", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
		return r.WebSearch && r.Temperature == 0.3 && r.Prompt == "analyse: gold at 3300"
	})).Return("```json\n{\"items\":[\"rate cuts\"],\"summary\":\"up\"}\n```", nil)
	snaps := &snapshotRecorder{}

	p := NewProducer(testDefinition(nil), Deps{
		Providers: []llm.Provider{primary},
		Cache:     store,
		Snapshots: snaps,
		Log:       zerolog.Nop(),
	})
	res := p.Produce(context.Background())

	require.Equal(t, StateDone, res.State)
	assert.Equal(t, SourceRealtime, res.Source)
	assert.Equal(t, "zhipu", res.Provider)
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{"rate cuts"}, res.Payload.Items)
	assert.False(t, res.ProducedAt.IsZero())

	e, _, ok := store.Get(cache.KeyBullishFactors)
	require.True(t, ok)
	var cached factors
	require.NoError(t, e.Decode(&cached))
	assert.Equal(t, res.Payload, cached)
	assert.Equal(t, []string{"bullish"}, snaps.kinds)
	primary.AssertExpectations(t)
}

func TestProduce_FallsBackOnParseError(t *testing.T) {
	store := newStore(t)
	primary := testingpkg.NewMockProvider("zhipu")
	primary.On("Complete", mock.Anything, mock.Anything).Return("I cannot answer that.", nil)
	secondary := testingpkg.NewMockProvider("deepseek")
	secondary.On("Complete", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
		return !r.WebSearch && r.Temperature == 0.7
	})).Return(`Here you go: {"items":["etf inflows"],"summary":"up"} hope it helps`, nil)

	p := NewProducer(testDefinition(nil), Deps{
		Providers: []llm.Provider{primary, secondary},
		Cache:     store,
		Log:       zerolog.Nop(),
	})
	res := p.Produce(context.Background())

	require.Equal(t, StateDone, res.State)
	assert.Equal(t, "deepseek", res.Provider)
	assert.Equal(t, []string{"etf inflows"}, res.Payload.Items)
	secondary.AssertExpectations(t)
}

func TestProduce_ValidationFailureIsParseError(t *testing.T) {
	store := newStore(t)
	primary := testingpkg.NewMockProvider("zhipu")
	primary.On("Complete", mock.Anything, mock.Anything).Return(`{"items":[],"summary":"empty"}`, nil)

	p := NewProducer(testDefinition(nil), Deps{
		Providers: []llm.Provider{primary},
		Cache:     store,
		Log:       zerolog.Nop(),
	})
	res := p.Produce(context.Background())

	assert.Equal(t, StateFailed, res.State)
	var pe *ParseError
	require.True(t, errors.As(res.Err, &pe))
	assert.Equal(t, "zhipu", pe.Provider)
}

func TestProduce_AllProvidersFailServesDefault(t *testing.T) {
	store := newStore(t)
	primary := testingpkg.NewMockProvider("zhipu")
	primary.On("Complete", mock.Anything, mock.Anything).Return("", llm.ErrProviderTimeout)
	secondary := testingpkg.NewMockProvider("deepseek")
	secondary.On("Complete", mock.Anything, mock.Anything).Return("", &llm.ProviderError{Provider: "deepseek", Status: 500, Err: errors.New("boom")})

	bus := events.NewBus(zerolog.Nop())
	var failed []*events.ArtifactRefreshFailedData
	bus.Subscribe(func(e *events.Event) {
		failed = append(failed, e.Data.(*events.ArtifactRefreshFailedData))
	}, events.ArtifactRefreshFailed)

	p := NewProducer(testDefinition(nil), Deps{
		Providers: []llm.Provider{primary, secondary},
		Cache:     store,
		Bus:       bus,
		Log:       zerolog.Nop(),
	})
	res := p.Produce(context.Background())

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, SourceDefault, res.Source)
	assert.Equal(t, "default", res.Payload.Summary)
	var pe *llm.ProviderError
	assert.True(t, errors.As(res.Err, &pe))
	assert.False(t, store.Exists(cache.KeyBullishFactors), "defaults must not be cached")
	require.Len(t, failed, 1)
	assert.Equal(t, "bullish", failed[0].Kind)
}

func TestProduce_NoProviders(t *testing.T) {
	p := NewProducer(testDefinition(nil), Deps{Cache: newStore(t), Log: zerolog.Nop()})
	res := p.Produce(context.Background())
	assert.ErrorIs(t, res.Err, ErrNoProvider)
	assert.Equal(t, SourceDefault, res.Source)
}

func TestProduce_ContextErrorFails(t *testing.T) {
	def := testDefinition(nil)
	def.BuildContext = func(context.Context) (string, error) { return "", errors.New("db locked") }
	primary := testingpkg.NewMockProvider("zhipu")

	p := NewProducer(def, Deps{Providers: []llm.Provider{primary}, Cache: newStore(t), Log: zerolog.Nop()})
	res := p.Produce(context.Background())

	assert.Equal(t, StateFailed, res.State)
	assert.EqualError(t, res.Err, "db locked")
	assert.Zero(t, primary.Calls())
}

func TestProduce_PersistenceErrorStillCaches(t *testing.T) {
	store := newStore(t)
	primary := testingpkg.NewMockProvider("zhipu")
	primary.On("Complete", mock.Anything, mock.Anything).Return(`{"items":["x"]}`, nil)

	p := NewProducer(testDefinition(errors.New("constraint failed")), Deps{
		Providers: []llm.Provider{primary},
		Cache:     store,
		Log:       zerolog.Nop(),
	})
	res := p.Produce(context.Background())

	assert.Equal(t, StateDone, res.State)
	var pe *PersistenceError
	require.True(t, errors.As(res.Err, &pe))
	assert.Equal(t, cache.KeyBullishFactors, pe.Key)
	assert.True(t, store.Exists(cache.KeyBullishFactors))
}

func TestRun_ErasesPayloadType(t *testing.T) {
	primary := testingpkg.NewMockProvider("zhipu")
	primary.On("Complete", mock.Anything, mock.Anything).Return(`{"items":["x"]}`, nil)

	var r Runner = NewProducer(testDefinition(nil), Deps{
		Providers: []llm.Provider{primary},
		Cache:     newStore(t),
		Log:       zerolog.Nop(),
	})
	out := r.Run(context.Background(), TriggerSchedule)

	assert.Equal(t, "bullish", r.Kind())
	assert.Equal(t, cache.KeyBullishFactors, r.Key())
	assert.Equal(t, factors{Items: []string{"x"}}, out.Payload)
	assert.Equal(t, factors{Summary: "default"}, r.DefaultPayload())
}

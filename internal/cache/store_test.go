package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type factorsPayload struct {
	Items   []string `json:"items"`
	Summary string   `json:"summary"`
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s, err := NewStore(t.TempDir(), zerolog.Nop(), opts...)
	require.NoError(t, err)
	return s, clock
}

func TestStore_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	in := factorsPayload{Items: []string{"rate cuts", "central bank buying"}, Summary: "bullish"}

	require.NoError(t, s.Set(KeyBullishFactors, in))

	e, src, ok := s.Get(KeyBullishFactors)
	require.True(t, ok)
	assert.Equal(t, SourceMemory, src)

	var out factorsPayload
	require.NoError(t, e.Decode(&out))
	assert.Equal(t, in, out)
	assert.True(t, s.Exists(KeyBullishFactors))
}

func TestStore_Expiry(t *testing.T) {
	s, clock := newTestStore(t)
	require.NoError(t, s.Set(KeyRealtimeQuote, map[string]float64{"price": 3300}))

	clock.Advance(TTLRealtimeQuote - time.Second)
	assert.True(t, s.Exists(KeyRealtimeQuote))

	clock.Advance(2 * time.Second)
	_, _, ok := s.Get(KeyRealtimeQuote)
	assert.False(t, ok)

	// Expired values remain available as the last-good fallback
	e, _, ok := s.GetStale(KeyRealtimeQuote)
	require.True(t, ok)
	assert.JSONEq(t, `{"price":3300}`, string(e.Payload))
}

func TestStore_FileLayerSharedAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	clock := &fakeClock{now: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}

	writer, err := NewStore(dir, zerolog.Nop(), WithClock(clock.Now))
	require.NoError(t, err)
	reader, err := NewStore(dir, zerolog.Nop(), WithClock(clock.Now))
	require.NoError(t, err)

	require.NoError(t, writer.Set(KeyInstitutions, map[string]int{"count": 6}))

	e, src, ok := reader.Get(KeyInstitutions)
	require.True(t, ok)
	assert.Equal(t, SourceFile, src)
	assert.JSONEq(t, `{"count":6}`, string(e.Payload))
	assert.WithinDuration(t, clock.Now(), e.ProducedAt, time.Microsecond)

	// Repopulated into memory on the file hit
	_, src, ok = reader.Get(KeyInstitutions)
	require.True(t, ok)
	assert.Equal(t, SourceMemory, src)

	clock.Advance(TTLInstitutions + time.Second)
	_, _, ok = reader.Get(KeyInstitutions)
	assert.False(t, ok)
}

func TestStore_FileFormat(t *testing.T) {
	s, clock := newTestStore(t)
	require.NoError(t, s.Set(KeyMarketSummary, map[string]string{"consensus": "cautiously bullish"}))

	raw, err := os.ReadFile(filepath.Join(s.Dir(), KeyMarketSummary+".json"))
	require.NoError(t, err)

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.JSONEq(t, `{"consensus":"cautiously bullish"}`, string(env["data"]))

	var ts float64
	require.NoError(t, json.Unmarshal(env["_timestamp"], &ts))
	assert.InDelta(t, float64(clock.Now().Unix()), ts, 0.001)
	assert.Contains(t, env, "_createdAt")
}

func TestStore_ConcurrentSetIsAtomic(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)
	reader, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)

	big := func(tag string) factorsPayload {
		items := make([]string, 2000)
		for i := range items {
			items[i] = fmt.Sprintf("%s-%d", tag, i)
		}
		return factorsPayload{Items: items, Summary: tag}
	}
	a, b := big("A"), big("B")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); assert.NoError(t, s.Set(KeyBullishFactors, a)) }()
		go func() { defer wg.Done(); assert.NoError(t, s.Set(KeyBullishFactors, b)) }()
	}

	// Cross-process style readers only see the file layer
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			e, err := reader.files.read(KeyBullishFactors)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if !assert.NoError(t, err) {
				return
			}
			var got factorsPayload
			if !assert.NoError(t, json.Unmarshal(e.Payload, &got)) {
				return
			}
			assert.True(t, got.Summary == "A" || got.Summary == "B")
			assert.Equal(t, got.Summary+"-1999", got.Items[1999])
		}
	}()
	wg.Wait()
	<-done

	e, _, ok := s.Get(KeyBullishFactors)
	require.True(t, ok)
	var final factorsPayload
	require.NoError(t, e.Decode(&final))
	assert.True(t, final.Summary == "A" || final.Summary == "B")
	for _, item := range final.Items {
		assert.Equal(t, final.Summary, item[:1])
	}

	keys, err := s.files.keys()
	require.NoError(t, err)
	assert.Equal(t, []string{KeyBullishFactors}, keys)
}

func TestStore_SetFileFailureStillUpdatesMemory(t *testing.T) {
	s, _ := newTestStore(t)
	s.files.dir = filepath.Join(s.files.dir, "missing", "nested")

	err := s.Set(KeyInvestmentAdvice, map[string]string{"k": "v"})
	require.Error(t, err)

	var cwe *CacheWriteError
	require.True(t, errors.As(err, &cwe))
	assert.Equal(t, KeyInvestmentAdvice, cwe.Key)

	_, src, ok := s.Get(KeyInvestmentAdvice)
	require.True(t, ok)
	assert.Equal(t, SourceMemory, src)
}

func TestStore_CorruptFileIsAMiss(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), KeyBearishFactors+".json"), []byte(`{"data": [1,2`), 0644))

	_, _, ok := s.Get(KeyBearishFactors)
	assert.False(t, ok)
}

func TestStore_InvalidKeys(t *testing.T) {
	s, _ := newTestStore(t)

	for _, key := range []string{"", "../etc/passwd", "UPPER", "a/b", "with space"} {
		t.Run(key, func(t *testing.T) {
			err := s.Set(key, 1)
			assert.ErrorIs(t, err, ErrInvalidKey)
			_, _, ok := s.Get(key)
			assert.False(t, ok)
			assert.ErrorIs(t, s.Clear(key), ErrInvalidKey)
		})
	}
}

func TestStore_SetRejectsInvalidRawJSON(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Error(t, s.Set(KeyMarketSummary, json.RawMessage(`{"broken"`)))
	assert.NoError(t, s.Set(KeyMarketSummary, json.RawMessage(`{"ok":true}`)))
}

func TestStore_ClearAndClearAll(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Set(KeyBullishFactors, 1))
	require.NoError(t, s.Set(KeyBearishFactors, 2))

	require.NoError(t, s.Clear(KeyBullishFactors))
	assert.False(t, s.Exists(KeyBullishFactors))
	assert.True(t, s.Exists(KeyBearishFactors))
	_, err := os.Stat(filepath.Join(s.Dir(), KeyBullishFactors+".json"))
	assert.True(t, os.IsNotExist(err))

	// Clearing a missing key is not an error
	assert.NoError(t, s.Clear("never_set"))

	s.ClearAll()
	assert.False(t, s.Exists(KeyBearishFactors))
	st := s.Status()
	assert.Empty(t, st.MemoryKeys)
	assert.Empty(t, st.FileKeys)
}

func TestStore_Status(t *testing.T) {
	s, clock := newTestStore(t)
	require.NoError(t, s.Set(KeyRealtimeQuote, 1))
	require.NoError(t, s.Set(KeyMarketSummary, 2))
	clock.Advance(time.Minute)

	st := s.Status()
	assert.Equal(t, []string{KeyMarketSummary, KeyRealtimeQuote}, st.MemoryKeys)
	assert.Equal(t, []string{KeyMarketSummary, KeyRealtimeQuote}, st.FileKeys)
	require.Len(t, st.Entries, 2)
	assert.True(t, st.Entries[0].Fresh)
	assert.False(t, st.Entries[1].Fresh)
}

func TestStore_TTLOverride(t *testing.T) {
	s, clock := newTestStore(t, WithTTLs(map[string]time.Duration{KeyMarketSummary: time.Minute}))
	assert.Equal(t, time.Minute, s.TTL(KeyMarketSummary))
	assert.Equal(t, TTLDefault, s.TTL("something_else"))

	require.NoError(t, s.Set(KeyMarketSummary, 1))
	clock.Advance(2 * time.Minute)
	assert.False(t, s.Exists(KeyMarketSummary))
}

func TestCleanupJob(t *testing.T) {
	s, clock := newTestStore(t)
	require.NoError(t, s.Set(KeyRealtimeQuote, 1))
	require.NoError(t, s.Set(KeyBullishFactors, 2))

	orphan := filepath.Join(s.Dir(), "bullish_factors.123.tmp")
	require.NoError(t, os.WriteFile(orphan, []byte("partial"), 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(orphan, old, old))

	clock.Advance(time.Hour)

	job := NewCleanupJob(s, 10*time.Minute, zerolog.Nop())
	assert.Equal(t, "cache_cleanup", job.Name())
	require.NoError(t, job.Run(context.Background()))

	_, err := os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))

	// Quote expired 59.5 minutes ago: removed. Factors are still fresh.
	st := s.Status()
	assert.Equal(t, []string{KeyBullishFactors}, st.FileKeys)
	assert.Equal(t, []string{KeyBullishFactors}, st.MemoryKeys)
}

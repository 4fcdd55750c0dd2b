// Package cache provides the two-layer artifact cache: an in-process memory
// layer in front of a per-key JSON file layer shared by every process that
// points at the same directory.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aristath/aurum/internal/metrics"
	"github.com/rs/zerolog"
)

// Store is the TieredCacheStore. Construct one per process and inject it.
type Store struct {
	memory  *memoryLayer
	files   *fileLayer
	ttls    map[string]time.Duration
	fallTTL time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTLs overrides the per-key TTL table.
func WithTTLs(ttls map[string]time.Duration) Option {
	return func(s *Store) {
		for k, v := range ttls {
			s.ttls[k] = v
		}
	}
}

// WithClock replaces time.Now, used by tests to move past TTLs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics records lookups and writes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a store persisting to dir.
func NewStore(dir string, log zerolog.Logger, opts ...Option) (*Store, error) {
	files, err := newFileLayer(dir)
	if err != nil {
		return nil, err
	}

	s := &Store{
		memory:  newMemoryLayer(),
		files:   files,
		ttls:    make(map[string]time.Duration, len(DefaultTTLs)),
		fallTTL: TTLDefault,
		now:     time.Now,
		log:     log.With().Str("component", "cache").Logger(),
	}
	for k, v := range DefaultTTLs {
		s.ttls[k] = v
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Dir returns the persistent layer directory.
func (s *Store) Dir() string {
	return s.files.dir
}

// TTL returns the time-to-live applied to key.
func (s *Store) TTL(key string) time.Duration {
	if ttl, ok := s.ttls[key]; ok {
		return ttl
	}
	return s.fallTTL
}

// Get returns a fresh entry and the layer that served it.
// The memory layer is consulted first; a fresh file hit repopulates it.
func (s *Store) Get(key string) (Entry, Source, bool) {
	if validateKey(key) != nil {
		return Entry{}, "", false
	}
	now := s.now()
	ttl := s.TTL(key)

	if e, ok := s.memory.get(key); ok {
		e.TTL = ttl
		if e.FreshAt(now) {
			s.metrics.CacheLookup(string(SourceMemory))
			return e, SourceMemory, true
		}
	}

	e, err := s.files.read(key)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to read cache file")
		}
		s.metrics.CacheLookup("miss")
		return Entry{}, "", false
	}
	e.TTL = ttl
	if !e.FreshAt(now) {
		s.metrics.CacheLookup("miss")
		return Entry{}, "", false
	}

	s.memory.put(e)
	s.metrics.CacheLookup(string(SourceFile))
	return e, SourceFile, true
}

// GetStale returns the newest entry held by either layer regardless of TTL.
// Used as the last-good fallback when a forced refresh fails.
func (s *Store) GetStale(key string) (Entry, Source, bool) {
	if validateKey(key) != nil {
		return Entry{}, "", false
	}
	ttl := s.TTL(key)

	mem, memOK := s.memory.get(key)
	file, err := s.files.read(key)
	fileOK := err == nil

	switch {
	case memOK && (!fileOK || !file.ProducedAt.After(mem.ProducedAt)):
		mem.TTL = ttl
		return mem, SourceMemory, true
	case fileOK:
		file.TTL = ttl
		return file, SourceFile, true
	default:
		return Entry{}, "", false
	}
}

// Exists reports whether a fresh value is held for key.
func (s *Store) Exists(key string) bool {
	_, _, ok := s.Get(key)
	return ok
}

// Set stores payload under key in both layers with a single ProducedAt.
// The memory layer is always updated; a failed file write is returned as
// *CacheWriteError so callers can log it and carry on.
func (s *Store) Set(key string, payload interface{}) error {
	if err := validateKey(key); err != nil {
		return err
	}

	raw, err := marshalPayload(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", key, err)
	}

	e := Entry{
		Key:        key,
		Payload:    raw,
		ProducedAt: s.now().Round(time.Microsecond),
		TTL:        s.TTL(key),
	}

	s.memory.put(e)
	s.metrics.CacheWrite("memory", nil)

	if err := s.files.write(e); err != nil {
		s.metrics.CacheWrite("file", err)
		return &CacheWriteError{Key: key, Err: err}
	}
	s.metrics.CacheWrite("file", nil)

	s.log.Debug().Str("key", key).Int("bytes", len(raw)).Msg("Cached value")
	return nil
}

// Clear removes key from both layers. A failure to remove the file is logged.
func (s *Store) Clear(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.memory.delete(key)
	if err := s.files.remove(key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to remove cache file")
	}
	return nil
}

// ClearAll empties both layers, best-effort.
func (s *Store) ClearAll() {
	s.memory.clear()

	keys, err := s.files.keys()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to list cache files")
		return
	}
	for _, key := range keys {
		if err := s.files.remove(key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to remove cache file")
		}
	}
	s.log.Info().Int("files", len(keys)).Msg("Cache cleared")
}

// Status describes what each layer currently holds.
type Status struct {
	MemoryKeys []string  `json:"memory_cache_keys"`
	FileKeys   []string  `json:"file_cache_keys"`
	CacheDir   string    `json:"cache_dir"`
	Entries    []KeyInfo `json:"entries"`
}

// KeyInfo is the per-key view of the persistent layer.
type KeyInfo struct {
	Key        string    `json:"key"`
	ProducedAt time.Time `json:"produced_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Fresh      bool      `json:"fresh"`
}

// Status lists the keys held by each layer.
func (s *Store) Status() Status {
	st := Status{
		MemoryKeys: s.memory.keys(),
		CacheDir:   s.files.dir,
	}

	keys, err := s.files.keys()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to list cache files")
	}
	st.FileKeys = keys

	now := s.now()
	for _, key := range keys {
		e, err := s.files.read(key)
		if err != nil {
			continue
		}
		e.TTL = s.TTL(key)
		st.Entries = append(st.Entries, KeyInfo{
			Key:        key,
			ProducedAt: e.ProducedAt,
			ExpiresAt:  e.ExpiresAt(),
			Fresh:      e.FreshAt(now),
		})
	}
	return st
}

// CleanupResult counts what DeleteExpired removed.
type CleanupResult struct {
	Memory int
	Files  int
	Temps  int
}

// DeleteExpired drops expired memory entries and orphaned temp files.
// Expired files whose TTL lapsed longer than retain ago are removed as well;
// younger ones stay on disk as the last-good fallback.
func (s *Store) DeleteExpired(retain time.Duration) (CleanupResult, error) {
	now := s.now()
	res := CleanupResult{Memory: s.memory.deleteExpired(now)}

	// Temp file ages come from the filesystem clock, not the injected one
	temps, err := s.files.removeOrphanTemps(time.Now(), time.Minute)
	if err != nil {
		return res, fmt.Errorf("failed to remove temp files: %w", err)
	}
	res.Temps = temps

	keys, err := s.files.keys()
	if err != nil {
		return res, fmt.Errorf("failed to list cache files: %w", err)
	}
	for _, key := range keys {
		e, err := s.files.read(key)
		if err != nil {
			continue
		}
		e.TTL = s.TTL(key)
		if now.Sub(e.ExpiresAt()) > retain {
			if err := s.files.remove(key); err == nil {
				res.Files++
			}
		}
	}

	return res, nil
}

func marshalPayload(payload interface{}) (json.RawMessage, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		if !json.Valid(p) {
			return nil, errors.New("payload is not valid JSON")
		}
		return p, nil
	case []byte:
		if !json.Valid(p) {
			return nil, errors.New("payload is not valid JSON")
		}
		return json.RawMessage(p), nil
	default:
		return json.Marshal(payload)
	}
}

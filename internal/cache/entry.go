package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Source names the layer a cached value was served from.
type Source string

const (
	SourceMemory Source = "memory"
	SourceFile   Source = "file"
)

// Entry is a cached payload with the instant it was produced.
type Entry struct {
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	ProducedAt time.Time       `json:"produced_at"`
	TTL        time.Duration   `json:"ttl"`
}

// ExpiresAt returns ProducedAt + TTL
func (e Entry) ExpiresAt() time.Time {
	return e.ProducedAt.Add(e.TTL)
}

// FreshAt reports whether the entry is still within its TTL at now.
func (e Entry) FreshAt(now time.Time) bool {
	return e.ExpiresAt().After(now)
}

// Decode unmarshals the payload into v.
func (e Entry) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode cached %s: %w", e.Key, err)
	}
	return nil
}

// ErrInvalidKey is returned for keys that cannot safely name a cache file.
var ErrInvalidKey = errors.New("invalid cache key")

// CacheWriteError reports a failed write to the persistent layer.
// The memory layer has already been updated when this is returned.
type CacheWriteError struct {
	Key string
	Err error
}

func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("cache write failed for %s: %v", e.Key, e.Err)
}

func (e *CacheWriteError) Unwrap() error {
	return e.Err
}

var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]{0,127}$`)

// validateKey ensures the key is a plain file stem.
// This prevents path traversal through keys taken from request URLs.
func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	fileExt = ".json"
	tmpExt  = ".tmp"
)

// fileEnvelope is the on-disk format shared with every process reading the cache directory.
type fileEnvelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp float64         `json:"_timestamp"` // epoch seconds
	CreatedAt string          `json:"_createdAt"`
}

// fileLayer persists one JSON file per key. Writes go to a unique temp file in
// the same directory and are renamed over the target, so readers in any process
// see either the previous or the new file, never a partial one.
type fileLayer struct {
	dir string
}

func newFileLayer(dir string) (*fileLayer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &fileLayer{dir: dir}, nil
}

func (f *fileLayer) path(key string) string {
	return filepath.Join(f.dir, key+fileExt)
}

// read returns the stored entry without TTL applied. A missing file yields os.ErrNotExist.
func (f *fileLayer) read(key string) (Entry, error) {
	raw, err := os.ReadFile(f.path(key))
	if err != nil {
		return Entry{}, err
	}

	var env fileEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Entry{}, fmt.Errorf("failed to parse cache file %s: %w", key, err)
	}
	if len(env.Data) == 0 {
		return Entry{}, fmt.Errorf("cache file %s has no data", key)
	}

	return Entry{Key: key, Payload: env.Data, ProducedAt: fromEpoch(env.Timestamp)}, nil
}

func (f *fileLayer) write(e Entry) (err error) {
	body, err := json.Marshal(fileEnvelope{
		Data:      e.Payload,
		Timestamp: toEpoch(e.ProducedAt),
		CreatedAt: e.ProducedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache envelope: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, e.Key+".*"+tmpExt)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmpName, f.path(e.Key)); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (f *fileLayer) remove(key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// keys lists the keys with a committed file, ignoring temp files.
func (f *fileLayer) keys() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(keys)
	return keys, nil
}

// removeOrphanTemps deletes temp files older than maxAge, left behind by a crashed writer.
func (f *fileLayer) removeOrphanTemps(now time.Time, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), tmpExt) {
			continue
		}
		info, err := de.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if os.Remove(filepath.Join(f.dir, de.Name())) == nil {
			removed++
		}
	}
	return removed, nil
}

func toEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromEpoch(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))).Round(time.Microsecond)
}

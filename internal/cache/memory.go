package cache

import (
	"sort"
	"sync"
	"time"
)

// memoryLayer is the in-process layer. Entries are replaced whole, never mutated.
type memoryLayer struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func newMemoryLayer() *memoryLayer {
	return &memoryLayer{entries: make(map[string]Entry)}
}

func (m *memoryLayer) get(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok
}

// put stores e unless a newer entry for the same key is already present.
func (m *memoryLayer) put(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.entries[e.Key]; ok && cur.ProducedAt.After(e.ProducedAt) {
		return
	}
	m.entries[e.Key] = e
}

func (m *memoryLayer) delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *memoryLayer) clear() {
	m.mu.Lock()
	m.entries = make(map[string]Entry)
	m.mu.Unlock()
}

func (m *memoryLayer) deleteExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if !e.FreshAt(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

func (m *memoryLayer) keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

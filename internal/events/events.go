// Package events carries lifecycle notifications (artifact refreshes, price
// merges, news ingestion) from background work to subscribers such as the
// websocket stream.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	ArtifactRefreshStarted EventType = "ARTIFACT_REFRESH_STARTED"
	ArtifactRefreshed      EventType = "ARTIFACT_REFRESHED"
	ArtifactRefreshFailed  EventType = "ARTIFACT_REFRESH_FAILED"
	PriceBarMerged         EventType = "PRICE_BAR_MERGED"
	NewsIngested           EventType = "NEWS_INGESTED"
	CacheCleared           EventType = "CACHE_CLEARED"
	JobSkipped             EventType = "JOB_SKIPPED"
	ErrorOccurred          EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type, in declaration order.
var AllTypes = []EventType{
	ArtifactRefreshStarted,
	ArtifactRefreshed,
	ArtifactRefreshFailed,
	PriceBarMerged,
	NewsIngested,
	CacheCleared,
	JobSkipped,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// Handler receives events. Handlers run on the emitting goroutine and must not block.
type Handler func(*Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans events out to subscribers and logs every emission.
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType][]subscription
	nextID uint64
	log    zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[EventType][]subscription),
		log:  log.With().Str("service", "events").Logger(),
	}
}

// Subscribe registers handler for the given types and returns a func that removes it.
func (b *Bus) Subscribe(handler Handler, types ...EventType) (unsubscribe func()) {
	if len(types) == 0 {
		types = AllTypes
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	for _, t := range types {
		b.subs[t] = append(b.subs[t], subscription{id: id, handler: handler})
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for _, t := range types {
				list := b.subs[t]
				for i, s := range list {
					if s.id == id {
						b.subs[t] = append(list[:i:i], list[i+1:]...)
						break
					}
				}
			}
		})
	}
}

// Emit publishes data from module to every subscriber of its type.
func (b *Bus) Emit(module string, data EventData) {
	if b == nil || data == nil {
		return
	}

	event := &Event{
		ID:        uuid.NewString(),
		Type:      data.EventType(),
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	if e := b.log.Debug(); e.Enabled() {
		eventJSON, _ := json.Marshal(event)
		e.Str("event_type", string(event.Type)).
			Str("module", module).
			RawJSON("event", eventJSON).
			Msg("Event emitted")
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[event.Type]))
	for _, s := range b.subs[event.Type] {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// EmitError emits an ErrorOccurred event
func (b *Bus) EmitError(module string, err error, context map[string]interface{}) {
	if err == nil {
		return
	}
	b.Emit(module, &ErrorData{Error: err.Error(), Context: context})
}

// SubscriberCount returns the number of handlers registered for t.
func (b *Bus) SubscriberCount(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[t])
}

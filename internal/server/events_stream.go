package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/aurum/internal/events"
)

const (
	streamBuffer    = 100
	heartbeatPeriod = 30 * time.Second
	writeTimeout    = 5 * time.Second
)

// EventsStreamHandler streams bus events to websocket clients.
type EventsStreamHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler.
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus: bus,
		log: log.With().Str("component", "events_stream").Logger(),
	}
}

type streamMessage struct {
	Type      string      `json:"type"`
	Module    string      `json:"module,omitempty"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// ServeHTTP handles GET /api/events/ws?types=A,B requests.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		http.Error(w, "Event stream unavailable", http.StatusServiceUnavailable)
		return
	}

	var types []events.EventType
	if filter := r.URL.Query().Get("types"); filter != "" {
		for _, t := range strings.Split(filter, ",") {
			types = append(types, events.EventType(strings.TrimSpace(t)))
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// Reads are only needed to observe the client's close frame.
	ctx := conn.CloseRead(r.Context())

	eventChan := make(chan *events.Event, streamBuffer)
	unsubscribe := h.bus.Subscribe(func(e *events.Event) {
		select {
		case eventChan <- e:
		default:
			h.log.Warn().Str("event_type", string(e.Type)).Msg("Event channel full, dropping event")
		}
	}, types...)
	defer unsubscribe()

	h.log.Info().Int("types", len(types)).Msg("Client connected to event stream")

	if err := h.send(ctx, conn, streamMessage{Type: "connected", Timestamp: time.Now().Format(time.RFC3339)}); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case e := <-eventChan:
			msg := streamMessage{
				Type:      string(e.Type),
				Module:    e.Module,
				Timestamp: e.Timestamp.Format(time.RFC3339),
				Data:      e.Data,
			}
			if err := h.send(ctx, conn, msg); err != nil {
				return
			}

		case <-heartbeat.C:
			if err := h.send(ctx, conn, streamMessage{Type: "heartbeat", Timestamp: time.Now().Format(time.RFC3339)}); err != nil {
				return
			}
		}
	}
}

func (h *EventsStreamHandler) send(ctx context.Context, conn *websocket.Conn, msg streamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write to event stream")
		return err
	}
	return nil
}

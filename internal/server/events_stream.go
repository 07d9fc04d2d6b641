package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/stockwatch/internal/events"
	"github.com/aristath/stockwatch/internal/httpjson"
	"github.com/rs/zerolog"
)

const (
	subscriptionBuffer = 100
	heartbeatInterval  = 30 * time.Second
)

// parseTypes reads a comma-separated ?types= filter. An empty filter selects
// every type; unknown names are rejected.
func parseTypes(raw string) ([]events.EventType, error) {
	if strings.TrimSpace(raw) == "" {
		return events.AllTypes, nil
	}

	known := make(map[events.EventType]bool, len(events.AllTypes))
	for _, t := range events.AllTypes {
		known[t] = true
	}

	var types []events.EventType
	for _, part := range strings.Split(raw, ",") {
		t := events.EventType(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if !known[t] {
			return nil, fmt.Errorf("unknown event type %q", t)
		}
		types = append(types, t)
	}
	return types, nil
}

// subscription buffers bus events for one client. Events are dropped, not
// queued, when the client falls behind.
type subscription struct {
	ch      chan *events.Event
	cancels []func()
}

func subscribe(bus *events.Bus, types []events.EventType, log zerolog.Logger) *subscription {
	sub := &subscription{ch: make(chan *events.Event, subscriptionBuffer)}
	for _, t := range types {
		sub.cancels = append(sub.cancels, bus.Subscribe(t, func(e *events.Event) {
			select {
			case sub.ch <- e:
			default:
				log.Warn().Str("event_type", string(e.Type)).Msg("Event channel full, dropping event")
			}
		}))
	}
	return sub
}

func (s *subscription) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// EventsStreamHandler streams bus events as Server-Sent Events.
type EventsStreamHandler struct {
	bus       *events.Bus
	heartbeat time.Duration
	log       zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler.
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus:       bus,
		heartbeat: heartbeatInterval,
		log:       log.With().Str("handler", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream?types=a,b
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	types, err := parseTypes(r.URL.Query().Get("types"))
	if err != nil {
		httpjson.WriteError(w, h.log, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpjson.WriteError(w, h.log, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := subscribe(h.bus, types, h.log)
	defer sub.Close()

	h.log.Debug().Int("types", len(types)).Msg("Client connected to event stream")

	h.send(w, map[string]interface{}{"type": "connected"})
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Debug().Msg("Client disconnected from event stream")
			return
		case e := <-sub.ch:
			h.send(w, e)
			flusher.Flush()
		case <-heartbeat.C:
			h.send(w, map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			flusher.Flush()
		}
	}
}

func (h *EventsStreamHandler) send(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

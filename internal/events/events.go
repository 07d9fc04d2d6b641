// Package events provides the in-process event bus used to push ledger and
// market updates to connected clients.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType identifies a kind of event.
type EventType string

const (
	TransactionCreated  EventType = "transaction_created"
	TransactionDeleted  EventType = "transaction_deleted"
	ImportCompleted     EventType = "import_completed"
	InstrumentChanged   EventType = "instrument_changed"
	DividendRecorded    EventType = "dividend_recorded"
	PricesUpdated       EventType = "prices_updated"
	AlertTriggered      EventType = "alert_triggered"
	BackupCompleted     EventType = "backup_completed"
	FundamentalsUpdated EventType = "fundamentals_updated"
)

// AllTypes lists every event type the bus carries.
var AllTypes = []EventType{
	TransactionCreated,
	TransactionDeleted,
	ImportCompleted,
	InstrumentChanged,
	DividendRecorded,
	PricesUpdated,
	AlertTriggered,
	BackupCompleted,
	FundamentalsUpdated,
}

// Event is a single published event.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Module    string      `json:"module"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Handler receives events. Handlers run synchronously on the publisher's
// goroutine and must not block.
type Handler func(*Event)

// Bus fans events out to subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[uint64]Handler
	nextID   uint64
	log      zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType]map[uint64]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers h for eventType and returns a function that removes it.
func (b *Bus) Subscribe(eventType EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[uint64]Handler)
	}
	b.handlers[eventType][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[eventType], id)
	}
}

// Publish delivers e to every subscriber of its type. A panicking handler is
// logged and skipped.
func (b *Bus) Publish(e *Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[e.Type]))
	for _, h := range b.handlers[e.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, e)
	}
}

func (b *Bus) deliver(h Handler, e *Event) {
	defer func() {
		if p := recover(); p != nil {
			b.log.Error().Interface("panic", p).Str("event_type", string(e.Type)).Msg("Event handler panicked")
		}
	}()
	h(e)
}

// SubscriberCount returns the number of handlers registered for eventType.
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Manager is the publishing side used by services.
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a manager publishing to bus.
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("component", "event_manager").Logger(),
	}
}

// Emit publishes an event with a fresh id and timestamp.
func (m *Manager) Emit(eventType EventType, module string, data interface{}) {
	e := &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Module:    module,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	m.log.Debug().Str("event_type", string(eventType)).Str("module", module).Msg("Emitting event")
	m.bus.Publish(e)
}

// Emitter is implemented by Manager; services depend on this interface.
type Emitter interface {
	Emit(eventType EventType, module string, data interface{})
}

// NopEmitter discards events.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(EventType, string, interface{}) {}

package events

import (
	"sync"
	"time"
)

// Domain event types published by the reservation engine.
const (
	TypeHoldCreated      = "hold.created"
	TypeHoldExtended     = "hold.extended"
	TypeHoldReleased     = "hold.released"
	TypeHoldExpired      = "hold.expired"
	TypeBookingConfirmed = "booking.confirmed"
	TypeSearchPerformed  = "search.performed"
)

// Event is a lightweight domain event. Payload carries the affected
// entity ids; consumers that need full state fetch it themselves.
type Event struct {
	Type      string
	SlotID    string
	ClientID  string
	BookingID string
	Count     int
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(event Event) error

// Bus provides in-process pub/sub for domain events.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

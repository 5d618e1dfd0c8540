// Package events is the in-process state-change bus. The engine publishes
// lifecycle events; any notification layer may subscribe. The core carries
// no dependency on a specific push mechanism.
package events

import (
	"sync"
	"time"

	"parkhive-bend/models"
)

// Type identifies a state-change event.
type Type string

// Event types
const (
	BookingConfirmed Type = "booking_confirmed"
	BookingCancelled Type = "booking_cancelled"
	BookingCompleted Type = "booking_completed"
	DisputeOpened    Type = "dispute_opened"
	DisputeResolved  Type = "dispute_resolved"
)

// Event carries the record that changed state.
type Event struct {
	Type    Type
	Booking *models.Booking
	Dispute *models.Dispute
	At      time.Time
}

// Handler consumes an event.
type Handler func(Event)

// Bus fans events out to subscribers. Dispatch is asynchronous; a slow
// subscriber never blocks an engine operation.
type Bus struct {
	mu   sync.RWMutex
	subs map[Type][]Handler
}

// NewBus returns a new Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Type][]Handler)}
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// Publish dispatches the event to all handlers registered for its type.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := b.subs[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		go h(e)
	}
}

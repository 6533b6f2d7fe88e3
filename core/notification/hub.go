// Package notification keeps an in-process bounded FIFO of the most recent
// activity events (enrollments, attendance marks...). Delivery transports
// are out of scope; clients poll the recent window.
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeEnrollment   = "enrollment"
	TypeUnenrollment = "unenrollment"
	TypeAttendance   = "attendance"
)

// DefaultCapacity is the number of events the hub retains.
const DefaultCapacity = 10

type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Hub is a fixed-capacity FIFO: publishing beyond capacity drops the oldest
// event. Safe for concurrent use.
type Hub struct {
	mu       sync.Mutex
	capacity int
	events   []Event
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub{
		capacity: capacity,
		events:   make([]Event, 0, capacity),
	}
}

func (h *Hub) Publish(typ, message string) Event {
	evt := Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, evt)
	if len(h.events) > h.capacity {
		h.events = h.events[len(h.events)-h.capacity:]
	}
	return evt
}

// Recent returns the retained events, newest first.
func (h *Hub) Recent() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, len(h.events))
	for i, evt := range h.events {
		out[len(h.events)-1-i] = evt
	}
	return out
}

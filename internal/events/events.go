package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"praxis/internal/model"
)

const (
	AppointmentBooked      = "appointment.booked"
	AppointmentRescheduled = "appointment.rescheduled"
	AppointmentCancelled   = "appointment.cancelled"
	AppointmentCompleted   = "appointment.completed"
	AppointmentNoShow      = "appointment.no_show"
)

// Event represents a lightweight domain event.
type Event struct {
	ID            string
	Type          string
	AppointmentID string
	Payload       []byte
	CreatedAt     time.Time
}

// NewAppointmentEvent builds an event carrying the appointment as JSON.
func NewAppointmentEvent(eventType string, a *model.Appointment) (Event, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		AppointmentID: a.ID,
		Payload:       payload,
		CreatedAt:     time.Now(),
	}, nil
}

// Appointment decodes the payload of an appointment event.
func (e Event) Appointment() (*model.Appointment, error) {
	var a model.Appointment
	if err := json.Unmarshal(e.Payload, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type. Every handler runs even if
// an earlier one fails; the joined handler errors are returned.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
	EventBookingRejected  = "booking_rejected"
)

// BookingEventPayload is the booking snapshot sent to subscribers.
type BookingEventPayload struct {
	BookingID   string    `json:"booking_id,omitempty"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	BookedCount int       `json:"booked_count"`
	Remaining   int       `json:"remaining"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// DecodeBookingPayload unmarshals an event produced by PublishJSON.
func DecodeBookingPayload(event *Event) (BookingEventPayload, error) {
	var payload BookingEventPayload
	err := json.Unmarshal(event.Payload, &payload)
	return payload, err
}

type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

type EventHandler func(event *Event) error

// ErrorHandler receives handler failures; handlers never stop delivery.
type ErrorHandler func(event *Event, err error)

// EventBus is an in-process synchronous pub/sub.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     ErrorHandler
	nextID      int64
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs a callback for failed handlers.
func (b *EventBus) OnError(fn ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers handler for each of the given event types.
func (b *EventBus) SubscribeAll(handler EventHandler, eventTypes ...string) {
	for _, eventType := range eventTypes {
		b.Subscribe(eventType, handler)
	}
}

func (b *EventBus) Publish(event *Event) {
	b.mu.Lock()
	b.nextID++
	if event.ID == 0 {
		event.ID = b.nextID
	}
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.Unlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event. Safe on a nil bus.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// Package events is the in-process event bus the funnel uses to tell other
// modules about decisions without depending on them.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName identifies the event type; subscriptions are keyed by it.
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the id and timestamp shared by all events. The id lets
// handlers correlate the alerts they send with the decision that caused them.
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a new event.
func NewBaseEvent() BaseEvent {
	return BaseEvent{ID: uuid.New(), Timestamp: time.Now().UTC()}
}

// Handler processes events it subscribed to.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to subscribers.
type Bus interface {
	// Publish dispatches asynchronously; handler errors are logged, never returned.
	Publish(ctx context.Context, event Event)
	// PublishSync runs handlers inline and joins their errors.
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}

// Package events is the in-process publish/subscribe plumbing shared by the
// domain modules. Concrete event types live with the modules that emit them.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is anything that can travel over a Bus.
type Event interface {
	// EventName is the routing key subscribers register against.
	EventName() string
	EventID() uuid.UUID
	OccurredAt() time.Time
}

// BaseEvent carries the envelope fields every event embeds.
type BaseEvent struct {
	ID        uuid.UUID `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) EventID() uuid.UUID { return e.ID }

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps a fresh envelope.
func NewBaseEvent() BaseEvent {
	return BaseEvent{ID: uuid.New(), Timestamp: time.Now().UTC()}
}

// Handler reacts to a published event.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function subscribe.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus routes events to subscribers by EventName.
type Bus interface {
	// Publish delivers in the background; the caller never sees handler errors.
	Publish(ctx context.Context, event Event)
	// PublishSync delivers and returns the first handler error.
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}

package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// A nil *Bus drops everything, so optional publishers need no nil checks.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(RunStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case RunStartedEvent:
		event.Publish(b.dispatcher, e)
	case RunOutputEvent:
		event.Publish(b.dispatcher, e)
	case RunFinishedEvent:
		event.Publish(b.dispatcher, e)
	case RunKillRequestedEvent:
		event.Publish(b.dispatcher, e)
	case CredentialCleanupEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e RunFinishedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	if b == nil {
		return func() {}
	}
	switch h := handler.(type) {
	case func(RunStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RunOutputEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RunFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RunKillRequestedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CredentialCleanupEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

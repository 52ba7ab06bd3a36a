package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to channels.
// Huma's SSE handlers select on a channel, not a callback.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	if bus == nil {
		return func() {}
	}
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			// Slow consumer, drop
		}
	})
}

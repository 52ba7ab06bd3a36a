package events

import (
	"encoding/json"
	"testing"
	"time"
)

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		var zero T
		return zero
	}
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan RunStartedEvent, 1)

	unsub := bus.Subscribe(func(e RunStartedEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(RunStartedEvent{RunID: "r1", Tool: "echo", PID: 42})

	got := waitFor(t, received)
	if got.RunID != "r1" || got.PID != 42 {
		t.Errorf("got %+v", got)
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New()
	received1 := make(chan RunFinishedEvent, 1)
	received2 := make(chan RunFinishedEvent, 1)

	defer bus.Subscribe(func(e RunFinishedEvent) { received1 <- e })()
	defer bus.Subscribe(func(e RunFinishedEvent) { received2 <- e })()

	bus.Publish(RunFinishedEvent{RunID: "r1", Success: true})

	waitFor(t, received1)
	waitFor(t, received2)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan RunOutputEvent, 2)

	unsub := bus.Subscribe(func(e RunOutputEvent) { received <- e })
	bus.Publish(RunOutputEvent{Line: "first"})
	waitFor(t, received)

	unsub()
	bus.Publish(RunOutputEvent{Line: "second"})

	select {
	case e := <-received:
		t.Errorf("received %q after unsubscribe", e.Line)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestBus_NilIsNoop(t *testing.T) {
	var bus *Bus
	bus.Publish(RunStartedEvent{})
	bus.Subscribe(func(RunStartedEvent) {})()
	SubscribeToChannel[RunStartedEvent](bus, make(chan any))()
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)
	defer SubscribeToChannel[CredentialCleanupEvent](bus, ch)()

	bus.Publish(CredentialCleanupEvent{RunID: "r1", Result: "removed"})

	got, ok := waitFor(t, ch).(CredentialCleanupEvent)
	if !ok || got.Result != "removed" {
		t.Errorf("got %#v", got)
	}
}

func TestRunFinishedEventJSON(t *testing.T) {
	code := 2
	data, err := json.Marshal(RunFinishedEvent{RunID: "r1", ExitCode: &code})
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["exit_code"] != float64(2) {
		t.Errorf("exit_code = %v", m["exit_code"])
	}
	if _, ok := m["signal"]; ok {
		t.Error("empty signal should be omitted")
	}
	if _, ok := m["intentionally_killed"]; ok {
		t.Error("false intentionally_killed should be omitted")
	}
}

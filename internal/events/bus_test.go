package events

import (
	"errors"
	"testing"
	"time"
)

func waitFor(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
		return Event{}
	}
}

func TestSubscribeReceivesMatchingType(t *testing.T) {
	bus := NewEventBus()
	got := make(chan Event, 1)
	bus.Subscribe(EventPriceUpdate, func(e Event) { got <- e })

	tickTime := time.Date(2025, 6, 2, 9, 10, 3, 0, time.UTC)
	bus.PublishPriceUpdate("XAU_USD", 2331.70, 2331.95, tickTime)

	e := waitFor(t, got)
	if e.Type != EventPriceUpdate {
		t.Errorf("Expected price update, got %s", e.Type)
	}
	if e.Data["instrument"] != "XAU_USD" {
		t.Errorf("Wrong instrument: %v", e.Data["instrument"])
	}
	if e.Data["mid"] != (2331.70+2331.95)/2 {
		t.Errorf("Wrong mid: %v", e.Data["mid"])
	}
	if e.Timestamp.IsZero() {
		t.Error("Publish should stamp the event")
	}
}

func TestSubscribeIgnoresOtherTypes(t *testing.T) {
	bus := NewEventBus()
	got := make(chan Event, 1)
	bus.Subscribe(EventPriceUpdate, func(e Event) { got <- e })

	bus.PublishError("stream", "connect failed", errors.New("connection reset"))

	select {
	case e := <-got:
		t.Fatalf("Subscriber received unrelated event: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus()
	got := make(chan Event, 4)
	bus.SubscribeAll(func(e Event) { got <- e })

	bus.PublishAnalysisCompleted("XAU_USD", "M5", "Bullish", "Strong")
	bus.PublishError("analyze", "strategy generation failed", errors.New("API error 500"))

	seen := make(map[EventType]Event, 2)
	for i := 0; i < 2; i++ {
		e := waitFor(t, got)
		seen[e.Type] = e
	}

	if _, ok := seen[EventAnalysisCompleted]; !ok {
		t.Error("Catch-all subscriber missed the analysis event")
	}
	errEvent, ok := seen[EventError]
	if !ok {
		t.Fatal("Catch-all subscriber missed the error event")
	}
	if errEvent.Data["error"] != "API error 500" {
		t.Errorf("Error event missing cause: %v", errEvent.Data["error"])
	}
}

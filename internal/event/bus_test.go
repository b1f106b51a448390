package event

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Iron-Ham/surveyctl/internal/logging"
	"github.com/Iron-Ham/surveyctl/internal/mission"
)

func TestBus_Publish(t *testing.T) {
	bus := NewBus(nil)

	var received Event
	id := bus.Subscribe(TypeSessionChanged, func(e Event) {
		received = e
	})
	if id == "" {
		t.Fatal("Subscribe should return a non-empty ID")
	}

	s := mission.Session{MissionID: "42", Status: mission.StatusPaused, Revision: 3}
	bus.Publish(NewSessionChangedEvent(s, 1, CauseTelemetry))

	changed, ok := received.(SessionChangedEvent)
	if !ok {
		t.Fatalf("received %T, want SessionChangedEvent", received)
	}
	if changed.Session.Revision != 3 || changed.Cause != CauseTelemetry {
		t.Errorf("received %+v", changed)
	}
	if changed.Timestamp().IsZero() {
		t.Error("Timestamp() should be set")
	}
}

func TestBus_PublishNoMatchingHandlers(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe(TypeCommandFailed, func(e Event) {
		t.Error("Handler should not be called for non-matching event type")
	})

	bus.Publish(NewInconsistencyEvent("42", errors.New("x")))
}

func TestBus_SubscribeAllRunsAfterSpecific(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	bus.SubscribeAll(func(e Event) { order = append(order, "all:"+e.EventType()) })
	bus.Subscribe(TypeCommandFailed, func(e Event) { order = append(order, "specific") })

	bus.Publish(NewCommandFailedEvent("42", mission.ActionPause, errors.New("boom")))
	bus.Publish(NewInconsistencyEvent("42", errors.New("x")))

	want := "specific,all:command.failed,all:session.inconsistency"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("order = %q, want %q", got, want)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	calls := make(map[string]int)
	id1 := bus.Subscribe("test.event", func(e Event) { calls["one"]++ })
	bus.Subscribe("test.event", func(e Event) { calls["two"]++ })

	if !bus.Unsubscribe(id1) {
		t.Error("Unsubscribe should return true when subscription exists")
	}
	if bus.Unsubscribe(id1) {
		t.Error("Unsubscribe should return false the second time")
	}

	bus.Publish(newBaseEvent("test.event"))

	if calls["one"] != 0 || calls["two"] != 1 {
		t.Errorf("calls = %v, want only the remaining handler", calls)
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", bus.SubscriptionCount())
	}
}

func TestBus_UnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus(nil)

	var id string
	calls := 0
	id = bus.Subscribe("test.event", func(e Event) {
		calls++
		bus.Unsubscribe(id)
	})
	bus.Subscribe("test.event", func(e Event) { calls++ })

	bus.Publish(newBaseEvent("test.event"))
	bus.Publish(newBaseEvent("test.event"))

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe("event.one", func(e Event) {})
	bus.SubscribeAll(func(e Event) {})
	bus.Clear()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions after clear, got %d", bus.SubscriptionCount())
	}
}

func TestBus_HandlerPanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(logging.NewWriterLogger(&buf, logging.LevelDebug))

	calls := 0
	bus.Subscribe("test.event", func(e Event) {
		calls++
		panic("handler panic")
	})
	bus.Subscribe("test.event", func(e Event) {
		calls++
	})

	bus.Publish(newBaseEvent("test.event"))

	if calls != 2 {
		t.Errorf("Expected both handlers to be called despite panic, got %d calls", calls)
	}
	if !strings.Contains(buf.String(), "event handler panicked") {
		t.Errorf("panic was not logged: %s", buf.String())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	calls := 0
	bus.Subscribe("test.event", func(e Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			bus.Publish(newBaseEvent("test.event"))
		})
	}
	wg.Wait()

	if calls != 100 {
		t.Errorf("Expected 100 calls, got %d", calls)
	}
}

func TestBus_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus(nil)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			id := bus.Subscribe("test.event", func(e Event) {})
			bus.Unsubscribe(id)
		})
		wg.Go(func() {
			bus.Publish(newBaseEvent("test.event"))
		})
	}
	wg.Wait()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", bus.SubscriptionCount())
	}
}

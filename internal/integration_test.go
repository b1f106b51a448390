// Package internal contains integration tests that verify the live mission
// packages work together against an in-process survey service.
package internal

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/surveyctl/internal/errors"
	"github.com/Iron-Ham/surveyctl/internal/event"
	"github.com/Iron-Ham/surveyctl/internal/gateway"
	"github.com/Iron-Ham/surveyctl/internal/logging"
	"github.com/Iron-Ham/surveyctl/internal/mission"
	"github.com/Iron-Ham/surveyctl/internal/presenter"
	"github.com/Iron-Ham/surveyctl/internal/session"
	"github.com/Iron-Ham/surveyctl/internal/telemetry"
	"github.com/Iron-Ham/surveyctl/internal/testutil"
	"github.com/Iron-Ham/surveyctl/internal/tui"
)

// lockedBuffer collects renderer output written from another goroutine.
type lockedBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func openLive(t *testing.T, svc *testutil.FakeService, id string) *session.Session {
	t.Helper()
	log := logging.NopLogger()
	ch := telemetry.NewChannel(&telemetry.WebsocketDialer{URLTemplate: svc.TelemetryURL()}, telemetry.Config{
		Backoff: telemetry.NewConstantBackoff(10 * time.Millisecond),
		Logger:  log,
	})
	s, err := session.Open(context.Background(), id, session.Options{
		Gateway:   gateway.NewClient(svc.BaseURL(), gateway.WithLogger(log)),
		Telemetry: ch,
		Logger:    log,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestLiveMissionFlow flies a mission from planned to aborted through the
// operator controls, the telemetry stream and a reconnect, while the plain
// renderer follows along.
func TestLiveMissionFlow(t *testing.T) {
	svc := testutil.NewFakeService(t)
	svc.Put(testutil.Mission{
		ID:            "11",
		Name:          "Riverbank",
		Status:        mission.StatusPlanned,
		FlightPattern: mission.PatternGrid,
		AltitudeM:     90,
		Waypoints: []mission.Waypoint{
			{Lat: 48.85, Lon: 2.35, Altitude: 90, SequenceOrder: 1},
			{Lat: 48.86, Lon: 2.36, Altitude: 90, SequenceOrder: 2},
		},
	})

	s := openLive(t, svc, "11")

	var out lockedBuffer
	rendered := make(chan error, 1)
	go func() { rendered <- tui.RunPlain(context.Background(), s, &out) }()

	svc.WaitForStream(t)
	eventually(t, "stream connected", func() bool {
		return s.State().ConnectionState == mission.ConnectionConnected
	})

	view := presenter.Present(s.State())
	if len(view.Actions) != 2 || view.Actions[0].Label != "Start Mission" {
		t.Fatalf("planned actions = %+v", view.Actions)
	}

	if err := s.Send(context.Background(), mission.ActionStart); err != nil {
		t.Fatalf("Send(start) failed: %v", err)
	}
	eventually(t, "in progress", func() bool {
		st := s.State()
		return st.Status == mission.StatusInProgress && !st.HasPending()
	})

	svc.Send(t, "11", testutil.PositionFrame(48.855, 2.355))
	svc.Send(t, "11", testutil.ProgressFrame(50))
	eventually(t, "progress 50", func() bool { return s.State().ProgressPercent == 50 })

	// A stream regression is refused and reported as an inconsistency.
	inconsistent := make(chan error, 1)
	id := s.Subscribe(func(e event.Event) {
		if ev, ok := e.(event.InconsistencyEvent); ok {
			select {
			case inconsistent <- ev.Err:
			default:
			}
		}
	})
	defer s.Unsubscribe(id)
	svc.Send(t, "11", testutil.StatusFrame(mission.StatusPlanned))
	select {
	case err := <-inconsistent:
		if !errors.Is(err, errors.ErrIllegalTransition) {
			t.Errorf("inconsistency = %v, want an illegal transition", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("regression was not reported")
	}
	if got := s.State().Status; got != mission.StatusInProgress {
		t.Fatalf("status = %q after regression, want in_progress", got)
	}

	if err := s.Send(context.Background(), mission.ActionPause); err != nil {
		t.Fatalf("Send(pause) failed: %v", err)
	}
	eventually(t, "paused", func() bool {
		st := s.State()
		return st.Status == mission.StatusPaused && !st.HasPending()
	})

	// The mission is aborted elsewhere while the stream is down.
	svc.SetStatus("11", mission.StatusAborted)
	svc.DropStreams("11")

	select {
	case err := <-rendered:
		if err != nil {
			t.Fatalf("RunPlain() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("renderer should stop once the mission ended")
	}

	final := presenter.Present(s.State())
	if final.Banner == nil || final.Banner.Label != "Mission Aborted" {
		t.Errorf("banner = %+v, want Mission Aborted", final.Banner)
	}
	if len(final.Actions) != 0 {
		t.Errorf("actions = %+v, want none once aborted", final.Actions)
	}
	if final.Progress.Text != "50%" || !final.Position.Known {
		t.Errorf("telemetry lost across the re-fetch: %+v %+v", final.Progress, final.Position)
	}

	text := out.String()
	for _, want := range []string{"PLANNED", "IN PROGRESS", "PAUSED", "Mission Aborted"} {
		if !strings.Contains(text, want) {
			t.Errorf("renderer output missing %q:\n%s", want, text)
		}
	}
}

// TestLiveMissionRejectedCommand checks that a refusal from the service
// leaves the mission untouched and reaches subscribers with its reason.
func TestLiveMissionRejectedCommand(t *testing.T) {
	svc := testutil.NewFakeService(t)
	svc.Put(testutil.Mission{ID: "12", Status: mission.StatusInProgress})
	s := openLive(t, svc, "12")

	failed := make(chan event.CommandFailedEvent, 1)
	id := s.Subscribe(func(e event.Event) {
		if ev, ok := e.(event.CommandFailedEvent); ok {
			failed <- ev
		}
	})
	defer s.Unsubscribe(id)

	svc.QueueReply(testutil.Reply{Status: 400, Body: `{"detail":"Drone battery too low"}`})
	if err := s.Send(context.Background(), mission.ActionComplete); err != nil {
		t.Fatalf("Send(complete) failed: %v", err)
	}

	select {
	case ev := <-failed:
		if ev.Action != mission.ActionComplete {
			t.Errorf("action = %q", ev.Action)
		}
		if got := errors.UserMessage(ev.Err); got != "Drone battery too low" {
			t.Errorf("UserMessage = %q", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no command.failed event")
	}

	eventually(t, "pending cleared", func() bool { return !s.State().HasPending() })
	if got := s.State().Status; got != mission.StatusInProgress {
		t.Errorf("status = %q, want in_progress", got)
	}
}

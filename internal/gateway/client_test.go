package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Iron-Ham/surveyctl/internal/errors"
	"github.com/Iron-Ham/surveyctl/internal/mission"
	"github.com/Iron-Ham/surveyctl/internal/testutil"
)

func newService(t *testing.T) *testutil.FakeService {
	t.Helper()
	svc := testutil.NewFakeService(t)
	svc.Put(testutil.Mission{
		ID:            "42",
		Name:          "North field",
		Status:        mission.StatusInProgress,
		FlightPattern: mission.PatternGrid,
		AltitudeM:     120,
		Waypoints: []mission.Waypoint{
			{Lat: 51.5, Lon: -0.09, Altitude: 120, SequenceOrder: 1},
			{Lat: 51.51, Lon: -0.1, Altitude: 120, SequenceOrder: 2},
		},
	})
	return svc
}

func TestClient_FetchSnapshot(t *testing.T) {
	svc := newService(t)
	c := NewClient(svc.BaseURL() + "/")

	snap, err := c.FetchSnapshot(context.Background(), "42")
	if err != nil {
		t.Fatalf("FetchSnapshot failed: %v", err)
	}
	if snap.MissionID != "42" || snap.Status != mission.StatusInProgress {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(snap.Waypoints) != 2 {
		t.Errorf("len(Waypoints) = %d, want 2", len(snap.Waypoints))
	}
	if svc.Fetches("42") != 1 {
		t.Errorf("Fetches = %d, want 1", svc.Fetches("42"))
	}
}

func TestClient_Send(t *testing.T) {
	svc := newService(t)
	c := NewClient(svc.BaseURL())

	snap, err := c.Send(context.Background(), "42", mission.ActionPause)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if snap.Status != mission.StatusPaused {
		t.Errorf("Status = %q, want paused", snap.Status)
	}
	if got := svc.Controls(); len(got) != 1 || got[0] != "pause" {
		t.Errorf("Controls() = %v, want [pause]", got)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		reply      testutil.Reply
		wantTarget error
		wantReason string
	}{
		{
			name:       "string detail",
			reply:      testutil.Reply{Status: 400, Body: `{"detail":"Invalid action 'start' for current status 'completed'"}`},
			wantTarget: errors.ErrCommandRejected,
			wantReason: "Invalid action 'start' for current status 'completed'",
		},
		{
			name:       "validation detail list",
			reply:      testutil.Reply{Status: 422, Body: `{"detail":[{"loc":["body","action"],"msg":"string does not match regex"}]}`},
			wantTarget: errors.ErrCommandRejected,
			wantReason: "string does not match regex",
		},
		{
			name:       "no detail",
			reply:      testutil.Reply{Status: 409, Body: `oops`},
			wantTarget: errors.ErrCommandRejected,
			wantReason: "Conflict",
		},
		{
			name:       "server error",
			reply:      testutil.Reply{Status: 503, Body: `{"detail":"database down"}`},
			wantTarget: errors.ErrUnreachable,
		},
		{
			name:       "malformed body",
			reply:      testutil.Reply{Status: 200, Body: `{"id":42,"status":`},
			wantTarget: errors.ErrInvalidResponse,
		},
		{
			name:       "unknown status",
			reply:      testutil.Reply{Status: 200, Body: `{"id":42,"status":"hovering"}`},
			wantTarget: errors.ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t)
			svc.QueueReply(tt.reply)
			c := NewClient(svc.BaseURL())

			_, err := c.Send(context.Background(), "42", mission.ActionStart)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.wantTarget) {
				t.Fatalf("error %v is not %v", err, tt.wantTarget)
			}
			if tt.wantReason != "" {
				var rejected *errors.CommandRejectedError
				if !errors.As(err, &rejected) {
					t.Fatalf("error %T is not a CommandRejectedError", err)
				}
				if rejected.Reason != tt.wantReason {
					t.Errorf("Reason = %q, want %q", rejected.Reason, tt.wantReason)
				}
				if rejected.Action != "start" {
					t.Errorf("Action = %q, want start", rejected.Action)
				}
			}
		})
	}
}

func TestClient_RejectedByStateMachine(t *testing.T) {
	svc := newService(t)
	c := NewClient(svc.BaseURL())

	_, err := c.Send(context.Background(), "42", mission.ActionResume)
	var rejected *errors.CommandRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("error = %v, want CommandRejectedError", err)
	}
	if rejected.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", rejected.StatusCode)
	}
	if !errors.IsUserFacing(err) {
		t.Error("rejections should be user-facing")
	}
}

func TestClient_NotFound(t *testing.T) {
	svc := newService(t)
	c := NewClient(svc.BaseURL())

	_, err := c.FetchSnapshot(context.Background(), "999")
	var rejected *errors.CommandRejectedError
	if !errors.As(err, &rejected) || rejected.Reason != "Mission not found" {
		t.Fatalf("error = %v, want rejection with 'Mission not found'", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url + "/api")
	_, err := c.Send(context.Background(), "42", mission.ActionPause)
	if !errors.Is(err, errors.ErrUnreachable) {
		t.Fatalf("error = %v, want ErrUnreachable", err)
	}
	if !errors.IsRetryable(err) {
		t.Error("transport errors should be retryable")
	}
}

func TestClient_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.FetchSnapshot(context.Background(), "42")
	if !errors.Is(err, errors.ErrUnreachable) {
		t.Fatalf("error = %v, want ErrUnreachable", err)
	}
}

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		body   string
		status int
		want   string
	}{
		{`{"detail":"Mission not found"}`, 404, "Mission not found"},
		{`{"detail":[{"msg":"a"},{"msg":"b"}]}`, 422, "a; b"},
		{`{"detail":""}`, 400, "Bad Request"},
		{``, 418, "I'm a teapot"},
		{`{}`, 499, "HTTP 499"},
	}

	for _, tt := range tests {
		if got := errorDetail([]byte(tt.body), tt.status); got != tt.want {
			t.Errorf("errorDetail(%q, %d) = %q, want %q", tt.body, tt.status, got, tt.want)
		}
	}
}

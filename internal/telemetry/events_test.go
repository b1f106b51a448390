package telemetry

import (
	"testing"

	"github.com/Iron-Ham/surveyctl/internal/errors"
	"github.com/Iron-Ham/surveyctl/internal/mission"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Event
	}{
		{
			name:    "position",
			payload: `{"type":"drone_position_update","lat":51.505,"lon":-0.09}`,
			want:    DronePositionUpdate{Position: mission.Position{Lat: 51.505, Lon: -0.09}},
		},
		{
			name:    "progress",
			payload: `{"type":"mission_progress_update","percent_complete":40}`,
			want:    MissionProgressUpdate{Percent: 40},
		},
		{
			name:    "progress boundary",
			payload: `{"type":"mission_progress_update","percent_complete":100}`,
			want:    MissionProgressUpdate{Percent: 100},
		},
		{
			name:    "status",
			payload: `{"type":"mission_status_update","status":"paused"}`,
			want:    MissionStatusUpdate{Status: mission.StatusPaused},
		},
		{
			name:    "unknown type is ignored",
			payload: `{"type":"battery_update","percent":80}`,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeFrame([]byte(tt.payload))
			if err != nil {
				t.Fatalf("DecodeFrame failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeFrame() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `hello`},
		{"no type", `{"lat":1,"lon":2}`},
		{"position missing lon", `{"type":"drone_position_update","lat":1}`},
		{"position out of range", `{"type":"drone_position_update","lat":95,"lon":2}`},
		{"progress missing", `{"type":"mission_progress_update"}`},
		{"progress above 100", `{"type":"mission_progress_update","percent_complete":100.5}`},
		{"progress negative", `{"type":"mission_progress_update","percent_complete":-1}`},
		{"unknown status", `{"type":"mission_status_update","status":"landing"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeFrame([]byte(tt.payload))
			if err == nil {
				t.Fatalf("expected error, got event %#v", ev)
			}
			if !errors.Is(err, errors.ErrInvalidResponse) {
				t.Errorf("error %v should be a protocol error", err)
			}
			var perr *errors.ProtocolError
			if errors.As(err, &perr) && perr.Payload != tt.payload {
				t.Errorf("Payload = %q, want %q", perr.Payload, tt.payload)
			}
		})
	}
}

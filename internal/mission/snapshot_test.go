package mission

import (
	"strings"
	"testing"
)

const sampleMission = `{
  "id": 42,
  "name": "North field",
  "status": "in_progress",
  "flight_pattern": "grid",
  "flight_altitude_m": 120,
  "overlap_percentage": 70,
  "waypoints": [
    {"id": 2, "mission_id": 42, "latitude": 51.51, "longitude": -0.1, "altitude": 120, "sequence_order": 2},
    {"id": 1, "mission_id": 42, "latitude": 51.5, "longitude": -0.09, "altitude": 120, "sequence_order": 1}
  ],
  "drone": {"current_location_lat": 51.505, "current_location_lon": -0.09}
}`

func TestDecodeSnapshot(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(sampleMission))
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}

	if snap.MissionID != "42" {
		t.Errorf("MissionID = %q, want %q", snap.MissionID, "42")
	}
	if snap.Status != StatusInProgress {
		t.Errorf("Status = %q, want %q", snap.Status, StatusInProgress)
	}
	if snap.FlightPattern != PatternGrid {
		t.Errorf("FlightPattern = %q, want %q", snap.FlightPattern, PatternGrid)
	}
	if snap.AltitudeM != 120 {
		t.Errorf("AltitudeM = %v, want 120", snap.AltitudeM)
	}
	if len(snap.Waypoints) != 2 {
		t.Fatalf("len(Waypoints) = %d, want 2", len(snap.Waypoints))
	}
	if snap.Waypoints[0].SequenceOrder != 1 || snap.Waypoints[1].SequenceOrder != 2 {
		t.Errorf("waypoints not ordered by sequence: %+v", snap.Waypoints)
	}
	if snap.DronePosition == nil || snap.DronePosition.Lat != 51.505 {
		t.Errorf("DronePosition = %+v, want lat 51.505", snap.DronePosition)
	}
	if snap.ProgressPercent != nil {
		t.Errorf("ProgressPercent = %v, want nil", *snap.ProgressPercent)
	}
}

func TestDecodeSnapshot_StringIDAndProgress(t *testing.T) {
	snap, err := DecodeSnapshot([]byte(`{"id":"m-7","status":"paused","progress_percent":55.5}`))
	if err != nil {
		t.Fatalf("DecodeSnapshot failed: %v", err)
	}
	if snap.MissionID != "m-7" {
		t.Errorf("MissionID = %q, want %q", snap.MissionID, "m-7")
	}
	if snap.ProgressPercent == nil || *snap.ProgressPercent != 55.5 {
		t.Errorf("ProgressPercent = %v, want 55.5", snap.ProgressPercent)
	}
	if snap.DronePosition != nil {
		t.Errorf("DronePosition = %+v, want nil", snap.DronePosition)
	}
}

func TestDecodeSnapshot_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"not json", `<html>`, "decode mission snapshot"},
		{"unknown status", `{"id":1,"status":"hovering"}`, "unknown mission status"},
		{"missing status", `{"id":1}`, "unknown mission status"},
		{"progress out of range", `{"id":1,"status":"paused","progress_percent":140}`, "outside [0, 100]"},
		{"bad drone position", `{"id":1,"status":"paused","drone":{"current_location_lat":91,"current_location_lon":0}}`, "latitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSnapshot([]byte(tt.payload))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestPositionValidate(t *testing.T) {
	if err := (Position{Lat: 0, Lon: 180}).Validate(); err != nil {
		t.Errorf("boundary position rejected: %v", err)
	}
	if err := (Position{Lat: 0, Lon: -180.5}).Validate(); err == nil {
		t.Error("expected longitude error")
	}
}

package mission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// FlightPattern is the survey pattern a mission was planned with.
type FlightPattern string

const (
	PatternGrid       FlightPattern = "grid"
	PatternPerimeter  FlightPattern = "perimeter"
	PatternCrosshatch FlightPattern = "crosshatch"
)

// Position is a WGS84 coordinate.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the coordinate is finite and in range.
func (p Position) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return fmt.Errorf("position is not finite")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("longitude %v out of range", p.Lon)
	}
	return nil
}

// Waypoint is one point of the planned flight path.
type Waypoint struct {
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	Altitude      float64 `json:"altitude"`
	SequenceOrder int     `json:"sequence_order"`
}

// ValidateProgress checks that a progress percentage lies in [0, 100].
func ValidateProgress(percent float64) error {
	if math.IsNaN(percent) || percent < 0 || percent > 100 {
		return fmt.Errorf("progress %v outside [0, 100]", percent)
	}
	return nil
}

// Snapshot is the full, authoritative mission state returned by the service
// on load, on re-fetch and in response to every control action.
type Snapshot struct {
	MissionID     string
	Name          string
	Status        Status
	FlightPattern FlightPattern
	AltitudeM     float64
	Waypoints     []Waypoint

	// DronePosition is nil when the service does not know where the drone is.
	DronePosition *Position

	// ProgressPercent is nil when the payload carries no progress figure.
	ProgressPercent *float64
}

type wireSnapshot struct {
	ID              json.RawMessage `json:"id"`
	Name            string          `json:"name"`
	Status          string          `json:"status"`
	FlightPattern   string          `json:"flight_pattern"`
	FlightAltitudeM float64         `json:"flight_altitude_m"`
	Waypoints       []wireWaypoint  `json:"waypoints"`
	Drone           *wireDrone      `json:"drone"`
	ProgressPercent *float64        `json:"progress_percent"`
}

type wireWaypoint struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Altitude      float64 `json:"altitude"`
	SequenceOrder int     `json:"sequence_order"`
}

type wireDrone struct {
	Lat *float64 `json:"current_location_lat"`
	Lon *float64 `json:"current_location_lon"`
}

// DecodeSnapshot parses a mission payload. Waypoints are returned ordered by
// their sequence number.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return Snapshot{}, fmt.Errorf("decode mission snapshot: %w", err)
	}

	status, err := ParseStatus(w.Status)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		MissionID:     decodeID(w.ID),
		Name:          w.Name,
		Status:        status,
		FlightPattern: FlightPattern(strings.ToLower(w.FlightPattern)),
		AltitudeM:     w.FlightAltitudeM,
		Waypoints:     make([]Waypoint, 0, len(w.Waypoints)),
	}

	for _, wp := range w.Waypoints {
		snap.Waypoints = append(snap.Waypoints, Waypoint{
			Lat:           wp.Latitude,
			Lon:           wp.Longitude,
			Altitude:      wp.Altitude,
			SequenceOrder: wp.SequenceOrder,
		})
	}
	sort.SliceStable(snap.Waypoints, func(i, j int) bool {
		return snap.Waypoints[i].SequenceOrder < snap.Waypoints[j].SequenceOrder
	})

	if w.Drone != nil && w.Drone.Lat != nil && w.Drone.Lon != nil {
		pos := Position{Lat: *w.Drone.Lat, Lon: *w.Drone.Lon}
		if err := pos.Validate(); err != nil {
			return Snapshot{}, fmt.Errorf("drone position: %w", err)
		}
		snap.DronePosition = &pos
	}

	if w.ProgressPercent != nil {
		if err := ValidateProgress(*w.ProgressPercent); err != nil {
			return Snapshot{}, err
		}
		p := *w.ProgressPercent
		snap.ProgressPercent = &p
	}

	return snap, nil
}

// decodeID accepts the mission id as either a JSON number or string.
func decodeID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

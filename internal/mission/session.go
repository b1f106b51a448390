package mission

import "slices"

// ConnectionState is the lifecycle state of the telemetry stream.
type ConnectionState string

const (
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
)

// Session is the client's reconciled view of one mission. Values are
// immutable once published: every change produces a new Session.
type Session struct {
	MissionID string
	Status    Status

	// DronePosition is nil until a position is known.
	DronePosition *Position

	ProgressPercent float64

	// Waypoints are fixed when the session is loaded.
	Waypoints []Waypoint

	ConnectionState ConnectionState

	// Revision increases by one on every accepted change of mission state.
	Revision uint64

	Name          string
	FlightPattern FlightPattern
	AltitudeM     float64

	// PendingAction is the control action awaiting its response, if any.
	PendingAction Action
}

// NewSession seeds a session from the snapshot fetched at load.
func NewSession(snap Snapshot) Session {
	s := Session{
		MissionID:       snap.MissionID,
		Status:          snap.Status,
		Waypoints:       slices.Clone(snap.Waypoints),
		ConnectionState: ConnectionConnecting,
		Name:            snap.Name,
		FlightPattern:   snap.FlightPattern,
		AltitudeM:       snap.AltitudeM,
	}
	if snap.DronePosition != nil {
		pos := *snap.DronePosition
		s.DronePosition = &pos
	}
	if snap.ProgressPercent != nil {
		s.ProgressPercent = *snap.ProgressPercent
	}
	return s
}

// Clone returns a deep copy that shares no mutable memory with s.
func (s Session) Clone() Session {
	c := s
	c.Waypoints = slices.Clone(s.Waypoints)
	if s.DronePosition != nil {
		pos := *s.DronePosition
		c.DronePosition = &pos
	}
	return c
}

// HasPending reports whether a control action awaits its response.
func (s Session) HasPending() bool {
	return s.PendingAction != ""
}

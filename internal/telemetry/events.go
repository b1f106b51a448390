// Package telemetry maintains the streaming connection that carries live
// updates for one mission and turns its frames into typed events.
package telemetry

import (
	"encoding/json"
	"fmt"

	"github.com/Iron-Ham/surveyctl/internal/errors"
	"github.com/Iron-Ham/surveyctl/internal/mission"
)

// Event is one update delivered by a Channel.
type Event interface {
	telemetryEvent()
}

// DronePositionUpdate reports where the drone is.
type DronePositionUpdate struct {
	Position mission.Position
}

// MissionProgressUpdate reports survey completion in percent, within [0, 100].
type MissionProgressUpdate struct {
	Percent float64
}

// MissionStatusUpdate reports a status change observed by the service.
type MissionStatusUpdate struct {
	Status mission.Status
}

// ConnectionStateChanged reports a transition of the stream lifecycle.
// Err carries the cause when State is disconnected.
type ConnectionStateChanged struct {
	State mission.ConnectionState
	Err   error
}

func (DronePositionUpdate) telemetryEvent()    {}
func (MissionProgressUpdate) telemetryEvent()  {}
func (MissionStatusUpdate) telemetryEvent()    {}
func (ConnectionStateChanged) telemetryEvent() {}

// Frame type identifiers used on the wire.
const (
	FramePosition = "drone_position_update"
	FrameProgress = "mission_progress_update"
	FrameStatus   = "mission_status_update"
)

// frame is the union of all wire frames; each frame is a flat JSON object
// discriminated by "type".
type frame struct {
	Type            string   `json:"type"`
	Lat             *float64 `json:"lat"`
	Lon             *float64 `json:"lon"`
	PercentComplete *float64 `json:"percent_complete"`
	Status          string   `json:"status"`
}

// DecodeFrame parses one frame. It returns (nil, nil) for frame types it does
// not know, and a *errors.ProtocolError for frames it cannot use.
func DecodeFrame(data []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.NewProtocolError("decode frame", err).WithPayload(data)
	}

	switch f.Type {
	case FramePosition:
		if f.Lat == nil || f.Lon == nil {
			return nil, errors.NewProtocolError("position frame missing lat or lon", nil).WithPayload(data)
		}
		pos := mission.Position{Lat: *f.Lat, Lon: *f.Lon}
		if err := pos.Validate(); err != nil {
			return nil, errors.NewProtocolError("position frame", err).WithPayload(data)
		}
		return DronePositionUpdate{Position: pos}, nil

	case FrameProgress:
		if f.PercentComplete == nil {
			return nil, errors.NewProtocolError("progress frame missing percent_complete", nil).WithPayload(data)
		}
		if err := mission.ValidateProgress(*f.PercentComplete); err != nil {
			return nil, errors.NewProtocolError("progress frame", err).WithPayload(data)
		}
		return MissionProgressUpdate{Percent: *f.PercentComplete}, nil

	case FrameStatus:
		status, err := mission.ParseStatus(f.Status)
		if err != nil {
			return nil, errors.NewProtocolError("status frame", err).WithPayload(data)
		}
		return MissionStatusUpdate{Status: status}, nil

	case "":
		return nil, errors.NewProtocolError("frame has no type", nil).WithPayload(data)

	default:
		return nil, nil
	}
}

// String renders the event for logs.
func (e ConnectionStateChanged) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%v)", e.State, e.Err)
	}
	return string(e.State)
}

// Package event defines the notifications a live mission session publishes
// toward the UI layer.
package event

import (
	"time"

	"github.com/Iron-Ham/surveyctl/internal/mission"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "session.changed", "command.failed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeSessionChanged = "session.changed"
	TypeCommandFailed  = "command.failed"
	TypeInconsistency  = "session.inconsistency"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Session Events
// -----------------------------------------------------------------------------

// Cause describes what produced a session change.
type Cause string

const (
	CauseLoad       Cause = "load"
	CauseTelemetry  Cause = "telemetry"
	CauseConnection Cause = "connection"
	CauseCommand    Cause = "command"
	CauseRefetch    Cause = "refetch"
	CausePending    Cause = "pending"
)

// SessionChangedEvent is emitted after every accepted change, carrying the
// new immutable session value. Seq numbers published values in order,
// including connection and pending changes that leave Revision alone.
type SessionChangedEvent struct {
	baseEvent
	Session mission.Session
	Seq     uint64
	Cause   Cause
}

// NewSessionChangedEvent creates a SessionChangedEvent.
func NewSessionChangedEvent(s mission.Session, seq uint64, cause Cause) SessionChangedEvent {
	return SessionChangedEvent{
		baseEvent: newBaseEvent(TypeSessionChanged),
		Session:   s,
		Seq:       seq,
		Cause:     cause,
	}
}

// CommandFailedEvent is emitted when a control action fails. Err is the
// classified error; the session itself is unchanged.
type CommandFailedEvent struct {
	baseEvent
	MissionID string
	Action    mission.Action
	Err       error
}

// NewCommandFailedEvent creates a CommandFailedEvent.
func NewCommandFailedEvent(missionID string, action mission.Action, err error) CommandFailedEvent {
	return CommandFailedEvent{
		baseEvent: newBaseEvent(TypeCommandFailed),
		MissionID: missionID,
		Action:    action,
		Err:       err,
	}
}

// InconsistencyEvent is emitted when an update is refused by the state
// machine. It is diagnostic only and never shown to operators.
type InconsistencyEvent struct {
	baseEvent
	MissionID string
	Err       error
}

// NewInconsistencyEvent creates an InconsistencyEvent.
func NewInconsistencyEvent(missionID string, err error) InconsistencyEvent {
	return InconsistencyEvent{
		baseEvent: newBaseEvent(TypeInconsistency),
		MissionID: missionID,
		Err:       err,
	}
}

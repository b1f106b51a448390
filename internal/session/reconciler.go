package session

import (
	"github.com/Iron-Ham/surveyctl/internal/errors"
	"github.com/Iron-Ham/surveyctl/internal/mission"
	"github.com/Iron-Ham/surveyctl/internal/telemetry"
)

// Origin identifies where a snapshot came from and what the session looked
// like when it was requested.
type Origin struct {
	// Action is the control action the snapshot answers. Empty for re-fetches.
	Action mission.Action

	// StatusRevision is the revision of the last accepted status change at
	// the time the request was issued.
	StatusRevision uint64
}

func (o Origin) source() string {
	if o.Action == "" {
		return "refetch"
	}
	return "command:" + string(o.Action)
}

// Outcome describes the effect of one update.
type Outcome struct {
	// Changed is true when the session value changed.
	Changed bool

	// Rejected is the inconsistency that caused a status update or snapshot
	// to be refused. Nil when the update was applied or was a no-op.
	Rejected *errors.IllegalTransitionError

	// Ignored explains why a non-status update was dropped.
	Ignored string

	// Reconnected is true when a stream came back after a disconnect.
	Reconnected bool
}

// Reconciler holds the canonical session value and decides which updates are
// applied to it. It is not safe for concurrent use.
type Reconciler struct {
	cur mission.Session

	// statusRev is the revision at which Status last changed.
	statusRev uint64

	sawDisconnect bool
}

// NewReconciler seeds a reconciler from the snapshot fetched at load.
func NewReconciler(snap mission.Snapshot) *Reconciler {
	return &Reconciler{cur: mission.NewSession(snap)}
}

// Session returns a copy of the current session value.
func (r *Reconciler) Session() mission.Session {
	return r.cur.Clone()
}

// StatusRevision returns the revision of the last accepted status change.
// Requests record it when they are issued.
func (r *Reconciler) StatusRevision() uint64 {
	return r.statusRev
}

// ApplyTelemetry reconciles one event from the telemetry channel.
func (r *Reconciler) ApplyTelemetry(ev telemetry.Event) Outcome {
	switch ev := ev.(type) {
	case telemetry.MissionStatusUpdate:
		return r.applyStatus(ev.Status)
	case telemetry.MissionProgressUpdate:
		return r.applyProgress(ev.Percent)
	case telemetry.DronePositionUpdate:
		return r.applyPosition(ev.Position)
	case telemetry.ConnectionStateChanged:
		return r.applyConnection(ev.State)
	default:
		return Outcome{Ignored: "unknown event"}
	}
}

func (r *Reconciler) applyStatus(to mission.Status) Outcome {
	from := r.cur.Status
	if to == from {
		return Outcome{}
	}
	if !mission.CanTransition(from, to) {
		return Outcome{Rejected: errors.NewIllegalTransitionError(string(from), string(to), "stream")}
	}
	r.cur.Status = to
	r.bumpStatus()
	return Outcome{Changed: true}
}

func (r *Reconciler) applyProgress(percent float64) Outcome {
	switch {
	case r.cur.Status.IsTerminal():
		return Outcome{Ignored: "mission is " + string(r.cur.Status)}
	case percent < r.cur.ProgressPercent:
		return Outcome{Ignored: "progress went backwards"}
	case percent == r.cur.ProgressPercent:
		return Outcome{}
	}
	r.cur.ProgressPercent = percent
	r.bump()
	return Outcome{Changed: true}
}

func (r *Reconciler) applyPosition(pos mission.Position) Outcome {
	if r.cur.Status.IsTerminal() {
		return Outcome{Ignored: "mission is " + string(r.cur.Status)}
	}
	if r.cur.DronePosition != nil && *r.cur.DronePosition == pos {
		return Outcome{}
	}
	r.cur.DronePosition = &pos
	r.bump()
	return Outcome{Changed: true}
}

// applyConnection tracks the stream lifecycle. Connection state is not
// mission state, so it never moves the revision.
func (r *Reconciler) applyConnection(state mission.ConnectionState) Outcome {
	var out Outcome
	switch state {
	case mission.ConnectionDisconnected:
		r.sawDisconnect = true
	case mission.ConnectionConnected:
		if r.sawDisconnect {
			r.sawDisconnect = false
			out.Reconnected = true
		}
	}
	if r.cur.ConnectionState != state {
		r.cur.ConnectionState = state
		out.Changed = true
	}
	return out
}

// ApplySnapshot reconciles an authoritative snapshot returned by a control
// action or a re-fetch. The snapshot overwrites status, progress and
// position as a whole, or not at all.
//
// A snapshot may move the status forward along any path of the state
// machine. If a newer status change was accepted after the request was
// issued, the snapshot is stale and may only confirm the current status or,
// for a control action, move along that action's own edge.
func (r *Reconciler) ApplySnapshot(snap mission.Snapshot, origin Origin) Outcome {
	from, to := r.cur.Status, snap.Status
	stale := r.statusRev > origin.StatusRevision

	if to != from {
		var ok bool
		if stale {
			ok = origin.Action != "" &&
				mission.EdgeOf(origin.Action, from, to)
		} else {
			ok = mission.Reachable(from, to)
		}
		if !ok {
			return Outcome{Rejected: errors.NewIllegalTransitionError(string(from), string(to), origin.source()).WithStale(stale)}
		}
	}

	next := r.cur.Clone()
	wasTerminal := from.IsTerminal()
	next.Status = to
	if !wasTerminal {
		if snap.ProgressPercent != nil && *snap.ProgressPercent > next.ProgressPercent {
			next.ProgressPercent = *snap.ProgressPercent
		}
		if snap.DronePosition != nil {
			pos := *snap.DronePosition
			next.DronePosition = &pos
		}
	}
	if snap.Name != "" {
		next.Name = snap.Name
	}
	if snap.FlightPattern != "" {
		next.FlightPattern = snap.FlightPattern
	}
	if snap.AltitudeM != 0 {
		next.AltitudeM = snap.AltitudeM
	}

	if sameMissionState(r.cur, next) {
		return Outcome{}
	}
	r.cur = next
	if to != from {
		r.bumpStatus()
	} else {
		r.bump()
	}
	return Outcome{Changed: true}
}

// SetPending records the action awaiting its response. It does not move the
// revision.
func (r *Reconciler) SetPending(action mission.Action) Outcome {
	if r.cur.PendingAction == action {
		return Outcome{}
	}
	r.cur.PendingAction = action
	return Outcome{Changed: true}
}

func (r *Reconciler) bump() {
	r.cur.Revision++
}

func (r *Reconciler) bumpStatus() {
	r.cur.Revision++
	r.statusRev = r.cur.Revision
}

// sameMissionState compares the fields a snapshot may change.
func sameMissionState(a, b mission.Session) bool {
	if a.Status != b.Status || a.ProgressPercent != b.ProgressPercent {
		return false
	}
	if a.Name != b.Name || a.FlightPattern != b.FlightPattern || a.AltitudeM != b.AltitudeM {
		return false
	}
	switch {
	case a.DronePosition == nil && b.DronePosition == nil:
		return true
	case a.DronePosition == nil || b.DronePosition == nil:
		return false
	default:
		return *a.DronePosition == *b.DronePosition
	}
}

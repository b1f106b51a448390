// Package mission defines the vocabulary shared by every part of a live mission
// session: lifecycle statuses, control actions, the transition table that
// governs them, and the snapshot payload returned by the survey service.
package mission

import (
	"fmt"
	"slices"
	"strings"
)

// Status is the authoritative lifecycle status of a mission.
type Status string

const (
	// StatusPlanned is a mission that has been created but not started.
	StatusPlanned Status = "planned"

	// StatusStarting is a mission whose start has been accepted but whose
	// drone has not begun the survey yet.
	StatusStarting Status = "starting"

	// StatusInProgress is a mission whose drone is flying the survey.
	StatusInProgress Status = "in_progress"

	// StatusPaused is a mission whose drone is holding position.
	StatusPaused Status = "paused"

	// StatusCompleted is a mission that finished its survey.
	StatusCompleted Status = "completed"

	// StatusAborted is a mission that was stopped before completion.
	StatusAborted Status = "aborted"
)

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusPlanned,
		StatusStarting,
		StatusInProgress,
		StatusPaused,
		StatusCompleted,
		StatusAborted,
	}
}

// ParseStatus converts a wire value into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(AllStatuses(), s) {
		return "", fmt.Errorf("unknown mission status %q", raw)
	}
	return s, nil
}

// IsTerminal returns true if no transition leaves the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// String returns the wire representation of the status.
func (s Status) String() string {
	return string(s)
}

// Label returns the status as shown to operators, e.g. "IN PROGRESS".
func (s Status) Label() string {
	return strings.ToUpper(strings.ReplaceAll(string(s), "_", " "))
}

// Action is a control command an operator can issue against a mission.
type Action string

const (
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionAbort    Action = "abort"
	ActionComplete Action = "complete"
)

// AllActions returns every action in the order controls are offered.
func AllActions() []Action {
	return []Action{ActionStart, ActionPause, ActionResume, ActionComplete, ActionAbort}
}

// ParseAction converts user or wire input into an Action.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(AllActions(), a) {
		return "", fmt.Errorf("unknown mission action %q (want one of start, pause, resume, abort, complete)", raw)
	}
	return a, nil
}

// String returns the wire representation of the action.
func (a Action) String() string {
	return string(a)
}

// Edge is a single permitted status transition.
type Edge struct {
	From Status
	To   Status
}

// ValidTransitions lists, for every status, the statuses it may move to.
// Terminal statuses have no outgoing transitions.
var ValidTransitions = map[Status][]Status{
	StatusPlanned: {
		StatusStarting,   // start accepted, drone spinning up
		StatusInProgress, // service skipped the starting phase
	},
	StatusStarting: {
		StatusInProgress,
	},
	StatusInProgress: {
		StatusPaused,
		StatusCompleted,
		StatusAborted,
	},
	StatusPaused: {
		StatusInProgress,
		StatusAborted,
	},
	StatusCompleted: {},
	StatusAborted:   {},
}

// actionEdges maps each action to the transitions it is responsible for.
var actionEdges = map[Action][]Edge{
	ActionStart: {
		{From: StatusPlanned, To: StatusStarting},
		{From: StatusPlanned, To: StatusInProgress},
		{From: StatusStarting, To: StatusInProgress},
	},
	ActionPause: {
		{From: StatusInProgress, To: StatusPaused},
	},
	ActionResume: {
		{From: StatusPaused, To: StatusInProgress},
	},
	ActionComplete: {
		{From: StatusInProgress, To: StatusCompleted},
	},
	ActionAbort: {
		{From: StatusInProgress, To: StatusAborted},
		{From: StatusPaused, To: StatusAborted},
	},
}

// CanTransition reports whether moving from one status to another is a
// transition in ValidTransitions. Staying in the same status is not a
// transition.
func CanTransition(from, to Status) bool {
	targets, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(targets, to)
}

// Reachable reports whether to can be reached from from by one or more
// transitions. It lets an authoritative snapshot catch up on transitions the
// client never observed.
func Reachable(from, to Status) bool {
	seen := map[Status]bool{from: true}
	queue := []Status{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range ValidTransitions[cur] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// EdgeOf reports whether from->to is one of the transitions the action drives.
func EdgeOf(action Action, from, to Status) bool {
	return slices.Contains(actionEdges[action], Edge{From: from, To: to})
}

// Permits reports whether an operator may issue the action while the mission
// is in the given status. Starting is driven by the service alone, so no
// action is offered from it.
func Permits(status Status, action Action) bool {
	if status == StatusStarting {
		return false
	}
	for _, e := range actionEdges[action] {
		if e.From == status {
			return true
		}
	}
	return false
}

// AvailableActions returns the actions an operator may issue from status,
// in the order of AllActions.
func AvailableActions(status Status) []Action {
	var out []Action
	for _, a := range AllActions() {
		if Permits(status, a) {
			out = append(out, a)
		}
	}
	return out
}

// Package presenter derives what a live mission view shows from a session
// value. Everything here is pure: the same session always yields the same
// View.
package presenter

import (
	"fmt"
	"math"
	"strconv"

	"github.com/Iron-Ham/surveyctl/internal/mission"
)

// Tone is the semantic colour of a piece of the view. Renderers map tones to
// their own palette.
type Tone string

const (
	ToneNeutral   Tone = "neutral"
	TonePrimary   Tone = "primary"
	ToneSecondary Tone = "secondary"
	ToneInfo      Tone = "info"
	ToneSuccess   Tone = "success"
	ToneWarning   Tone = "warning"
	ToneError     Tone = "error"
)

var statusTones = map[mission.Status]Tone{
	mission.StatusPlanned:    ToneSecondary,
	mission.StatusStarting:   ToneInfo,
	mission.StatusInProgress: TonePrimary,
	mission.StatusPaused:     ToneWarning,
	mission.StatusCompleted:  ToneSuccess,
	mission.StatusAborted:    ToneError,
}

var actionLabels = map[mission.Action]struct {
	label string
	tone  Tone
}{
	mission.ActionStart:    {"Start Mission", ToneSuccess},
	mission.ActionPause:    {"Pause Mission", ToneWarning},
	mission.ActionResume:   {"Resume Mission", ToneSuccess},
	mission.ActionComplete: {"Complete Mission", TonePrimary},
	mission.ActionAbort:    {"Abort Mission", ToneError},
}

// Badge is a short label with a tone.
type Badge struct {
	Label string
	Tone  Tone
}

// ActionView is one control offered to the operator.
type ActionView struct {
	Action  mission.Action
	Label   string
	Tone    Tone
	Enabled bool
}

// Progress is the formatted survey progress.
type Progress struct {
	Percent  float64
	Fraction float64 // Percent / 100, for progress bars
	Text     string  // e.g. "40%"
}

// Position is the formatted drone position.
type Position struct {
	Known bool
	Text  string // "51.5050, -0.0900" or "unknown"
}

// Details describe the planned mission.
type Details struct {
	Pattern   string
	Altitude  string // e.g. "120m"
	Waypoints int
}

// View is everything a live mission screen needs.
type View struct {
	MissionID string
	Title     string
	Status    Badge

	// Actions are the controls the current status offers, in the order
	// start, pause, resume, complete, abort.
	Actions []ActionView

	// Pending names the action awaiting its response, e.g. "pause".
	Pending string

	Progress   Progress
	Position   Position
	Connection Badge

	// Banner is set once the mission has ended.
	Banner *Badge

	Details  Details
	Revision uint64
}

// Present derives the view for s.
func Present(s mission.Session) View {
	v := View{
		MissionID:  s.MissionID,
		Title:      title(s),
		Status:     StatusBadge(s.Status),
		Pending:    string(s.PendingAction),
		Progress:   FormatProgress(s.ProgressPercent),
		Position:   FormatPosition(s.DronePosition),
		Connection: ConnectionBadge(s.ConnectionState),
		Details: Details{
			Pattern:   pattern(s.FlightPattern),
			Altitude:  FormatAltitude(s.AltitudeM),
			Waypoints: len(s.Waypoints),
		},
		Revision: s.Revision,
	}

	for _, a := range mission.AvailableActions(s.Status) {
		meta := actionLabels[a]
		v.Actions = append(v.Actions, ActionView{
			Action:  a,
			Label:   meta.label,
			Tone:    meta.tone,
			Enabled: !s.HasPending(),
		})
	}

	switch s.Status {
	case mission.StatusCompleted:
		v.Banner = &Badge{Label: "Mission Completed", Tone: ToneSuccess}
	case mission.StatusAborted:
		v.Banner = &Badge{Label: "Mission Aborted", Tone: ToneError}
	}
	return v
}

// StatusBadge returns the status label and its tone.
func StatusBadge(s mission.Status) Badge {
	tone, ok := statusTones[s]
	if !ok {
		tone = ToneNeutral
	}
	return Badge{Label: s.Label(), Tone: tone}
}

// ConnectionBadge returns the connectivity badge for a stream state.
func ConnectionBadge(state mission.ConnectionState) Badge {
	switch state {
	case mission.ConnectionConnected:
		return Badge{Label: "LIVE", Tone: ToneSuccess}
	case mission.ConnectionConnecting:
		return Badge{Label: "CONNECTING", Tone: ToneWarning}
	default:
		return Badge{Label: "OFFLINE", Tone: ToneError}
	}
}

// FormatProgress clamps percent to [0, 100] and formats it with at most one
// decimal.
func FormatProgress(percent float64) Progress {
	if math.IsNaN(percent) {
		percent = 0
	}
	percent = math.Max(0, math.Min(100, percent))
	rounded := math.Round(percent*10) / 10
	return Progress{
		Percent:  percent,
		Fraction: percent / 100,
		Text:     strconv.FormatFloat(rounded, 'f', -1, 64) + "%",
	}
}

// FormatPosition renders a position with four decimals.
func FormatPosition(p *mission.Position) Position {
	if p == nil {
		return Position{Text: "unknown"}
	}
	return Position{Known: true, Text: fmt.Sprintf("%.4f, %.4f", p.Lat, p.Lon)}
}

// FormatAltitude renders an altitude in metres, e.g. "120m".
func FormatAltitude(m float64) string {
	if m == 0 {
		return "unknown"
	}
	return strconv.FormatFloat(m, 'f', -1, 64) + "m"
}

func title(s mission.Session) string {
	if s.Name == "" {
		return "Live Mission " + s.MissionID
	}
	return "Live Mission: " + s.Name
}

func pattern(p mission.FlightPattern) string {
	if p == "" {
		return "unknown"
	}
	return string(p)
}

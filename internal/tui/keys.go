package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/Iron-Ham/surveyctl/internal/mission"
)

// KeyMap defines the key bindings for the live mission view
type KeyMap struct {
	// Mission control
	Start    key.Binding
	Pause    key.Binding
	Resume   key.Binding
	Complete key.Binding
	Abort    key.Binding
	// Retry re-sends an action that failed to reach the service
	Retry key.Binding

	// Abort confirmation
	Confirm key.Binding
	Cancel  key.Binding

	// View
	Waypoints key.Binding
	Help      key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pause"),
		),
		Resume: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "resume"),
		),
		Complete: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "complete"),
		),
		Abort: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "abort"),
		),
		Retry: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "retry"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("n", "N", "esc"),
			key.WithHelp("n/esc", "cancel"),
		),
		Waypoints: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "waypoints"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ForAction returns the binding that issues action.
func (k KeyMap) ForAction(action mission.Action) key.Binding {
	switch action {
	case mission.ActionStart:
		return k.Start
	case mission.ActionPause:
		return k.Pause
	case mission.ActionResume:
		return k.Resume
	case mission.ActionComplete:
		return k.Complete
	default:
		return k.Abort
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Pause, k.Resume, k.Complete, k.Abort, k.Retry},
		{k.Waypoints, k.Help, k.Quit},
	}
}

// Package styles holds the lipgloss styles of the live mission view, built
// from a named color palette.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/surveyctl/internal/mission"
	"github.com/Iron-Ham/surveyctl/internal/presenter"
)

// Styles contains every style the TUI renders with.
type Styles struct {
	Palette *ColorPalette

	// Convenience styles for colors
	Primary lipgloss.Style
	Muted   lipgloss.Style
	Text    lipgloss.Style

	// Header
	Title  lipgloss.Style
	Header lipgloss.Style

	// Status badge (colored background set per tone)
	Badge lipgloss.Style

	// Panels
	Panel      lipgloss.Style
	PanelTitle lipgloss.Style
	Label      lipgloss.Style
	Value      lipgloss.Style

	// Action list
	ActionKey      lipgloss.Style
	ActionDisabled lipgloss.Style

	// Notices
	ErrorMsg   lipgloss.Style
	SuccessMsg lipgloss.Style
	WarningMsg lipgloss.Style

	// Banner shown once the mission ended
	Banner lipgloss.Style

	// Footer / status bar
	StatusBar lipgloss.Style
	HelpBar   lipgloss.Style
}

// New builds the styles for a theme. Unknown names use the default theme.
func New(theme string) *Styles {
	p := GetPalette(ThemeName(theme))
	return &Styles{
		Palette: p,

		Primary: lipgloss.NewStyle().Foreground(p.Primary),
		Muted:   lipgloss.NewStyle().Foreground(p.Muted),
		Text:    lipgloss.NewStyle().Foreground(p.Text),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Primary),

		Header: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(p.Border).
			MarginBottom(1),

		Badge: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Surface).
			Padding(0, 1).
			MarginLeft(1),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(0, 1),

		PanelTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Primary).
			MarginBottom(1),

		Label: lipgloss.NewStyle().
			Foreground(p.Muted).
			Width(11),

		Value: lipgloss.NewStyle().
			Foreground(p.Text),

		ActionKey: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Secondary),

		ActionDisabled: lipgloss.NewStyle().
			Foreground(p.Muted).
			Faint(true),

		ErrorMsg: lipgloss.NewStyle().
			Foreground(p.Error).
			Bold(true),

		SuccessMsg: lipgloss.NewStyle().
			Foreground(p.Success).
			Bold(true),

		WarningMsg: lipgloss.NewStyle().
			Foreground(p.Warning).
			Bold(true),

		Banner: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			MarginTop(1),

		StatusBar: lipgloss.NewStyle().
			Foreground(p.Text).
			Background(p.Surface).
			Padding(0, 1),

		HelpBar: lipgloss.NewStyle().
			Foreground(p.Muted).
			MarginTop(1),
	}
}

// ToneColor maps a presenter tone to a palette color.
func (s *Styles) ToneColor(t presenter.Tone) lipgloss.Color {
	switch t {
	case presenter.TonePrimary:
		return s.Palette.Primary
	case presenter.ToneSecondary:
		return s.Palette.Secondary
	case presenter.ToneInfo:
		return s.Palette.Info
	case presenter.ToneSuccess:
		return s.Palette.Success
	case presenter.ToneWarning:
		return s.Palette.Warning
	case presenter.ToneError:
		return s.Palette.Error
	default:
		return s.Palette.Muted
	}
}

// RenderBadge renders a badge on a background of its tone.
func (s *Styles) RenderBadge(b presenter.Badge) string {
	return s.Badge.Background(s.ToneColor(b.Tone)).Render(b.Label)
}

// Toned returns a foreground style in the tone's color.
func (s *Styles) Toned(t presenter.Tone) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.ToneColor(t))
}

// StatusIcon returns an icon for a mission status.
func StatusIcon(status mission.Status) string {
	switch status {
	case mission.StatusPlanned:
		return "○"
	case mission.StatusStarting:
		return "◔"
	case mission.StatusInProgress:
		return "●"
	case mission.StatusPaused:
		return "⏸"
	case mission.StatusCompleted:
		return "✓"
	case mission.StatusAborted:
		return "✗"
	default:
		return "●"
	}
}

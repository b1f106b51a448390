package styles

import (
	"slices"

	"github.com/charmbracelet/lipgloss"
)

// ThemeName represents a named color theme.
type ThemeName string

// Available theme names.
const (
	ThemeDefault    ThemeName = "default"    // Purple/green dark theme
	ThemeDracula    ThemeName = "dracula"    // Dracula theme colors
	ThemeNord       ThemeName = "nord"       // Nord theme - cool blue-gray
	ThemeGruvbox    ThemeName = "gruvbox"    // Gruvbox retro groove
	ThemeMonochrome ThemeName = "monochrome" // Grays only, for limited terminals
)

// BuiltinThemes returns all built-in theme names.
func BuiltinThemes() []string {
	return []string{
		string(ThemeDefault),
		string(ThemeDracula),
		string(ThemeNord),
		string(ThemeGruvbox),
		string(ThemeMonochrome),
	}
}

// IsValidTheme checks if a theme name is a built-in theme.
func IsValidTheme(name string) bool {
	return slices.Contains(BuiltinThemes(), name)
}

// ColorPalette defines the color scheme for a theme.
// All colors should meet WCAG AA contrast requirements (4.5:1 ratio).
type ColorPalette struct {
	// Primary accent color (titles, in-progress missions)
	Primary lipgloss.Color
	// Secondary accent color (planned missions, key hints)
	Secondary lipgloss.Color
	// Info color (starting missions)
	Info lipgloss.Color
	// Success color (live stream, completed missions)
	Success lipgloss.Color
	// Warning color (paused missions, reconnecting)
	Warning lipgloss.Color
	// Error color (aborted missions, offline, rejected actions)
	Error lipgloss.Color
	// Muted color (labels, de-emphasized text)
	Muted lipgloss.Color
	// Surface color (status bar background)
	Surface lipgloss.Color
	// Text color (primary text)
	Text lipgloss.Color
	// Border color (panel borders)
	Border lipgloss.Color
}

// DefaultPalette returns the default purple/green dark theme palette.
func DefaultPalette() *ColorPalette {
	return &ColorPalette{
		Primary:   lipgloss.Color("#A78BFA"), // Purple (violet-400)
		Secondary: lipgloss.Color("#F472B6"), // Pink
		Info:      lipgloss.Color("#60A5FA"), // Blue
		Success:   lipgloss.Color("#10B981"), // Green
		Warning:   lipgloss.Color("#F59E0B"), // Amber
		Error:     lipgloss.Color("#F87171"), // Red (red-400)
		Muted:     lipgloss.Color("#9CA3AF"), // Gray
		Surface:   lipgloss.Color("#1F2937"), // Dark surface
		Text:      lipgloss.Color("#F9FAFB"), // Light text
		Border:    lipgloss.Color("#6B7280"), // Gray-500
	}
}

// DraculaPalette returns the Dracula theme palette.
func DraculaPalette() *ColorPalette {
	return &ColorPalette{
		Primary:   lipgloss.Color("#BD93F9"), // Dracula purple
		Secondary: lipgloss.Color("#FF79C6"), // Dracula pink
		Info:      lipgloss.Color("#8BE9FD"), // Dracula cyan
		Success:   lipgloss.Color("#50FA7B"), // Dracula green
		Warning:   lipgloss.Color("#F1FA8C"), // Dracula yellow
		Error:     lipgloss.Color("#FF5555"), // Dracula red
		Muted:     lipgloss.Color("#6272A4"), // Dracula comment
		Surface:   lipgloss.Color("#282A36"), // Dracula background
		Text:      lipgloss.Color("#F8F8F2"), // Dracula foreground
		Border:    lipgloss.Color("#44475A"), // Dracula selection
	}
}

// NordPalette returns the Nord theme palette.
func NordPalette() *ColorPalette {
	return &ColorPalette{
		Primary:   lipgloss.Color("#88C0D0"), // Nord frost (cyan)
		Secondary: lipgloss.Color("#B48EAD"), // Nord aurora purple
		Info:      lipgloss.Color("#81A1C1"), // Nord frost (blue)
		Success:   lipgloss.Color("#A3BE8C"), // Nord aurora green
		Warning:   lipgloss.Color("#EBCB8B"), // Nord aurora yellow
		Error:     lipgloss.Color("#BF616A"), // Nord aurora red
		Muted:     lipgloss.Color("#4C566A"), // Nord polar night 3
		Surface:   lipgloss.Color("#2E3440"), // Nord polar night 0
		Text:      lipgloss.Color("#ECEFF4"), // Nord snow storm 2
		Border:    lipgloss.Color("#3B4252"), // Nord polar night 1
	}
}

// GruvboxPalette returns the Gruvbox dark palette.
func GruvboxPalette() *ColorPalette {
	return &ColorPalette{
		Primary:   lipgloss.Color("#83A598"), // Gruvbox aqua
		Secondary: lipgloss.Color("#D3869B"), // Gruvbox purple
		Info:      lipgloss.Color("#458588"), // Gruvbox blue
		Success:   lipgloss.Color("#B8BB26"), // Gruvbox green
		Warning:   lipgloss.Color("#FABD2F"), // Gruvbox yellow
		Error:     lipgloss.Color("#FB4934"), // Gruvbox red
		Muted:     lipgloss.Color("#928374"), // Gruvbox gray
		Surface:   lipgloss.Color("#282828"), // Gruvbox bg0
		Text:      lipgloss.Color("#EBDBB2"), // Gruvbox fg
		Border:    lipgloss.Color("#3C3836"), // Gruvbox bg1
	}
}

// MonochromePalette uses grays only. Tones are still told apart by weight.
func MonochromePalette() *ColorPalette {
	return &ColorPalette{
		Primary:   lipgloss.Color("#FFFFFF"),
		Secondary: lipgloss.Color("#D1D5DB"),
		Info:      lipgloss.Color("#D1D5DB"),
		Success:   lipgloss.Color("#FFFFFF"),
		Warning:   lipgloss.Color("#D1D5DB"),
		Error:     lipgloss.Color("#FFFFFF"),
		Muted:     lipgloss.Color("#9CA3AF"),
		Surface:   lipgloss.Color("#262626"),
		Text:      lipgloss.Color("#F5F5F5"),
		Border:    lipgloss.Color("#737373"),
	}
}

// GetPalette returns the palette for a theme name, falling back to the
// default palette for unknown names.
func GetPalette(name ThemeName) *ColorPalette {
	switch name {
	case ThemeDracula:
		return DraculaPalette()
	case ThemeNord:
		return NordPalette()
	case ThemeGruvbox:
		return GruvboxPalette()
	case ThemeMonochrome:
		return MonochromePalette()
	default:
		return DefaultPalette()
	}
}

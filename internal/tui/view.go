package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/Iron-Ham/surveyctl/internal/presenter"
	"github.com/Iron-Ham/surveyctl/internal/tui/styles"
)

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if !m.ready {
		return "Loading..."
	}

	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
		m.renderTelemetry(),
		m.renderDetails(),
	}
	if m.showWaypoints {
		sections = append(sections, m.renderWaypoints())
	}
	if m.view.Banner != nil {
		sections = append(sections, m.renderBanner())
	}
	sections = append(sections, m.renderActions())
	if m.notice != "" {
		sections = append(sections, m.truncate(m.styles.Toned(m.noticeTone).Render(m.notice)))
	}
	sections = append(sections, m.styles.HelpBar.Render(m.help.View(m.keys)))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the title with the status and stream badges.
func (m Model) renderHeader() string {
	title := m.styles.Title.Render(m.view.Title)
	status := m.styles.RenderBadge(presenter.Badge{
		Label: styles.StatusIcon(m.session.Status) + " " + m.view.Status.Label,
		Tone:  m.view.Status.Tone,
	})
	conn := m.styles.RenderBadge(m.view.Connection)
	line := lipgloss.JoinHorizontal(lipgloss.Center, title, status, conn)
	return m.styles.Header.Width(max(m.width, 1)).Render(m.truncate(line))
}

func (m Model) renderProgress() string {
	return m.field("Progress", m.bar.View()+" "+m.view.Progress.Text)
}

func (m Model) renderTelemetry() string {
	return m.field("Position", m.view.Position.Text)
}

func (m Model) renderDetails() string {
	d := m.view.Details
	return lipgloss.JoinVertical(lipgloss.Left,
		m.field("Pattern", d.Pattern),
		m.field("Altitude", d.Altitude),
		m.field("Waypoints", fmt.Sprintf("%d", d.Waypoints)),
	)
}

func (m Model) renderWaypoints() string {
	if len(m.session.Waypoints) == 0 {
		return m.styles.Panel.Render(m.styles.Muted.Render("No waypoints"))
	}
	var b strings.Builder
	b.WriteString(m.styles.PanelTitle.Render("Waypoints"))
	for _, wp := range m.session.Waypoints {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%3d  %.4f, %.4f  %s",
			wp.SequenceOrder, wp.Lat, wp.Lon, presenter.FormatAltitude(wp.Altitude)))
	}
	return m.styles.Panel.Render(b.String())
}

func (m Model) renderBanner() string {
	b := m.view.Banner
	return m.styles.Banner.
		Foreground(m.styles.Palette.Surface).
		Background(m.styles.ToneColor(b.Tone)).
		Render(b.Label)
}

// renderActions lists the offered controls with their keys.
func (m Model) renderActions() string {
	if m.confirmAbort {
		return m.styles.ErrorMsg.Render("Abort mission? [y/n]")
	}
	if len(m.view.Actions) == 0 {
		return m.styles.Muted.Render("No actions available")
	}

	parts := make([]string, 0, len(m.view.Actions)+1)
	for _, a := range m.view.Actions {
		k := m.keys.ForAction(a.Action).Help().Key
		if !a.Enabled {
			parts = append(parts, m.styles.ActionDisabled.Render(fmt.Sprintf("[%s] %s", k, a.Label)))
			continue
		}
		parts = append(parts,
			m.styles.ActionKey.Render("["+k+"]")+" "+m.styles.Toned(a.Tone).Render(a.Label))
	}
	if m.view.Pending != "" {
		parts = append(parts, m.spinner.View()+" "+m.styles.Muted.Render(m.view.Pending+"..."))
	}
	return m.truncate(strings.Join(parts, "  "))
}

func (m Model) field(label, value string) string {
	return m.styles.Label.Render(label) + m.styles.Value.Render(value)
}

// truncate fits a rendered line to the terminal width.
func (m Model) truncate(s string) string {
	if m.width <= 0 {
		return s
	}
	return ansi.Truncate(s, m.width, "...")
}

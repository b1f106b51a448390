package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/surveyctl/internal/errors"
	"github.com/Iron-Ham/surveyctl/internal/event"
	"github.com/Iron-Ham/surveyctl/internal/mission"
	"github.com/Iron-Ham/surveyctl/internal/presenter"
	"github.com/Iron-Ham/surveyctl/internal/tui/styles"
)

// LiveSession is the part of a mission session the TUI drives.
type LiveSession interface {
	State() mission.Session
	// StateSeq returns the latest value with the publish sequence number
	// carried by SessionChangedEvent.Seq.
	StateSeq() (mission.Session, uint64)
	Send(ctx context.Context, action mission.Action) error
	Subscribe(handler event.Handler) string
	Unsubscribe(id string) bool
}

// Messages delivered to the model.
type (
	// sessionMsg carries a newly accepted session value and its publish
	// sequence number.
	sessionMsg struct {
		session mission.Session
		seq     uint64
	}

	// commandFailedMsg reports a control action the service refused or
	// could not be reached for.
	commandFailedMsg struct {
		action mission.Action
		err    error
	}

	// sendResultMsg is the immediate result of handing an action to the
	// session.
	sendResultMsg struct {
		action mission.Action
		err    error
	}
)

// Options configures the model.
type Options struct {
	Theme         string
	ShowWaypoints bool
}

// Model holds the TUI application state
type Model struct {
	sess   LiveSession
	styles *styles.Styles
	keys   KeyMap

	help    help.Model
	spinner spinner.Model
	bar     progress.Model

	session mission.Session
	seq     uint64
	view    presenter.View

	// retry is the action whose last attempt failed transiently.
	retry mission.Action

	// UI state
	width         int
	height        int
	ready         bool
	quitting      bool
	showWaypoints bool
	confirmAbort  bool

	notice     string
	noticeTone presenter.Tone
}

// NewModel creates a new TUI model
func NewModel(sess LiveSession, opts Options) Model {
	st := styles.New(opts.Theme)
	state, seq := sess.StateSeq()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = st.Primary

	bar := progress.New(
		progress.WithGradient(string(st.Palette.Primary), string(st.Palette.Success)),
		progress.WithoutPercentage(),
	)
	bar.Width = 40

	return Model{
		sess:          sess,
		styles:        st,
		keys:          DefaultKeyMap(),
		help:          help.New(),
		spinner:       spin,
		bar:           bar,
		session:       state,
		seq:           seq,
		view:          presenter.Present(state),
		showWaypoints: opts.ShowWaypoints,
	}
}

// Init implements tea.Model. It re-reads the session so that changes made
// before the program subscribed are not lost.
func (m Model) Init() tea.Cmd {
	sess := m.sess
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			state, seq := sess.StateSeq()
			return sessionMsg{session: state, seq: seq}
		},
	)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeypress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-20))
		return m, nil

	case sessionMsg:
		if msg.seq < m.seq {
			return m, nil
		}
		m.seq = msg.seq
		m.session = msg.session
		m.view = presenter.Present(msg.session)
		if len(m.view.Actions) == 0 {
			m.confirmAbort = false
		}
		return m, m.bar.SetPercent(m.view.Progress.Fraction)

	case commandFailedMsg:
		if errors.IsRetryable(msg.err) {
			m.retry = msg.action
			m.setNotice(fmt.Sprintf("%s failed: %s, press %s to retry",
				msg.action, errors.UserMessage(msg.err), m.keys.Retry.Help().Key), presenter.ToneError)
			return m, nil
		}
		m.retry = ""
		m.setNotice(fmt.Sprintf("%s failed: %s", msg.action, errors.UserMessage(msg.err)), presenter.ToneError)
		return m, nil

	case sendResultMsg:
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("%s: %s", msg.action, errors.UserMessage(msg.err)), presenter.ToneWarning)
		} else {
			m.setNotice(fmt.Sprintf("%s sent", msg.action), presenter.ToneNeutral)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		if b, ok := bar.(progress.Model); ok {
			m.bar = b
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmAbort {
		m.confirmAbort = false
		if key.Matches(msg, m.keys.Confirm) {
			return m, m.send(mission.ActionAbort)
		}
		m.setNotice("abort cancelled", presenter.ToneNeutral)
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Waypoints):
		m.showWaypoints = !m.showWaypoints
		return m, nil
	case key.Matches(msg, m.keys.Retry):
		if m.retry == "" {
			return m, nil
		}
		a := m.retry
		m.retry = ""
		return m.request(a)
	}

	for _, a := range mission.AllActions() {
		if key.Matches(msg, m.keys.ForAction(a)) {
			m.retry = ""
			return m.request(a)
		}
	}
	return m, nil
}

// request issues a if the current view offers it and nothing is pending.
// Abort asks for confirmation first.
func (m Model) request(a mission.Action) (tea.Model, tea.Cmd) {
	av, ok := m.offered(a)
	switch {
	case !ok:
		m.setNotice(fmt.Sprintf("%s is not available while %s", a, m.view.Status.Label), presenter.ToneWarning)
		return m, nil
	case !av.Enabled:
		m.setNotice(fmt.Sprintf("waiting for %s to complete", m.view.Pending), presenter.ToneWarning)
		return m, nil
	case a == mission.ActionAbort:
		m.confirmAbort = true
		m.setNotice("Abort mission? press y to confirm", presenter.ToneError)
		return m, nil
	default:
		return m, m.send(a)
	}
}

// offered returns the action's view when the current status offers it.
func (m Model) offered(a mission.Action) (presenter.ActionView, bool) {
	for _, av := range m.view.Actions {
		if av.Action == a {
			return av, true
		}
	}
	return presenter.ActionView{}, false
}

// send hands the action to the session off the update loop.
func (m Model) send(a mission.Action) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		return sendResultMsg{action: a, err: sess.Send(context.Background(), a)}
	}
}

func (m *Model) setNotice(text string, tone presenter.Tone) {
	m.notice = text
	m.noticeTone = tone
}

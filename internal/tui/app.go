package tui

import (
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/surveyctl/internal/event"
)

// App wraps the Bubbletea program
type App struct {
	program *tea.Program
	model   Model
	session LiveSession
}

// New creates a new TUI application for a live mission session
func New(sess LiveSession, opts Options) *App {
	return &App{
		model:   NewModel(sess, opts),
		session: sess,
	}
}

// Run starts the TUI application and blocks until the operator quits.
func (a *App) Run() error {
	a.program = tea.NewProgram(
		a.model,
		tea.WithAltScreen(),
	)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		if a.program != nil {
			a.program.Send(tea.Quit())
		}
	}()

	// Forward session events to the program. Send returns once the
	// program has exited, so the handler cannot stall the session.
	subID := a.session.Subscribe(func(e event.Event) {
		if msg := toMsg(e); msg != nil {
			a.program.Send(msg)
		}
	})
	defer a.session.Unsubscribe(subID)

	_, err := a.program.Run()
	return err
}

// toMsg converts a session event into a model message. Inconsistency
// events are diagnostics and are not shown.
func toMsg(e event.Event) tea.Msg {
	switch ev := e.(type) {
	case event.SessionChangedEvent:
		return sessionMsg{session: ev.Session, seq: ev.Seq}
	case event.CommandFailedEvent:
		return commandFailedMsg{action: ev.Action, err: ev.Err}
	default:
		return nil
	}
}

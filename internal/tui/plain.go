package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Iron-Ham/surveyctl/internal/errors"
	"github.com/Iron-Ham/surveyctl/internal/event"
	"github.com/Iron-Ham/surveyctl/internal/mission"
	"github.com/Iron-Ham/surveyctl/internal/presenter"
)

// FormatLine renders a view as a single uncolored line.
func FormatLine(v presenter.View) string {
	parts := []string{
		v.MissionID,
		v.Status.Label,
		v.Progress.Text,
		"pos=" + v.Position.Text,
		v.Connection.Label,
	}
	if v.Pending != "" {
		parts = append(parts, "pending="+v.Pending)
	}
	if v.Banner != nil {
		parts = append(parts, v.Banner.Label)
	}
	return strings.Join(parts, "  ")
}

// RunPlain writes one line per visible change of the session to w, for
// terminals without cursor control and for piping. It returns when ctx is
// done or once the mission has ended.
func RunPlain(ctx context.Context, sess LiveSession, w io.Writer) error {
	events := make(chan event.Event, 64)
	stopped := make(chan struct{})
	defer close(stopped)
	subID := sess.Subscribe(func(e event.Event) {
		select {
		case events <- e:
		case <-stopped:
		}
	})
	defer sess.Unsubscribe(subID)

	last := ""
	var lastSeq uint64
	emit := func(s mission.Session, seq uint64) (bool, error) {
		if seq < lastSeq {
			return false, nil
		}
		lastSeq = seq
		line := FormatLine(presenter.Present(s))
		if line != last {
			last = line
			if _, err := fmt.Fprintln(w, line); err != nil {
				return false, err
			}
		}
		return s.Status.IsTerminal(), nil
	}

	if done, err := emit(sess.StateSeq()); done || err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			switch ev := e.(type) {
			case event.SessionChangedEvent:
				if done, err := emit(ev.Session, ev.Seq); done || err != nil {
					return err
				}
			case event.CommandFailedEvent:
				if _, err := fmt.Fprintf(w, "%s failed: %s\n", ev.Action, errors.UserMessage(ev.Err)); err != nil {
					return err
				}
			}
		}
	}
}

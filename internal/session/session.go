// Package session runs a live mission session: it merges telemetry events and
// control responses into one consistent mission view and publishes every
// accepted change.
//
// A single goroutine owns the session value. Telemetry, command results and
// re-fetch results are posted to its inbox and applied one at a time through
// a Reconciler; readers see immutable copies.
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/surveyctl/internal/errors"
	"github.com/Iron-Ham/surveyctl/internal/event"
	"github.com/Iron-Ham/surveyctl/internal/logging"
	"github.com/Iron-Ham/surveyctl/internal/mission"
	"github.com/Iron-Ham/surveyctl/internal/telemetry"
)

// Gateway issues requests against the mission service.
type Gateway interface {
	FetchSnapshot(ctx context.Context, missionID string) (mission.Snapshot, error)
	Send(ctx context.Context, missionID string, action mission.Action) (mission.Snapshot, error)
}

// Telemetry is a per-mission event stream.
type Telemetry interface {
	Open(ctx context.Context, missionID string) (<-chan telemetry.Event, error)
	Close() error
}

// Options configures Open.
type Options struct {
	Gateway   Gateway
	Telemetry Telemetry

	// Bus receives session notifications. A new bus is created when nil.
	Bus    *event.Bus
	Logger *logging.Logger
}

// Session is one opened live mission view. Create it with Open and release it
// with Close.
type Session struct {
	missionID string
	epoch     string

	gateway   Gateway
	telemetry Telemetry
	bus       *event.Bus
	logger    *logging.Logger

	recon *Reconciler
	state atomic.Pointer[published]

	inbox  chan message
	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	closeOnce sync.Once
}

type message any

// published is one session value handed to readers, numbered in publish
// order.
type published struct {
	session mission.Session
	seq     uint64
}

type telemetryMsg struct {
	ev telemetry.Event
}

type sendMsg struct {
	action mission.Action
	reply  chan error
}

type commandResult struct {
	origin Origin
	snap   mission.Snapshot
	err    error
}

type refetchResult struct {
	origin Origin
	snap   mission.Snapshot
	err    error
}

// Open loads the mission's current snapshot, opens its telemetry stream and
// starts reconciling. The load error keeps its classification so callers can
// tell a rejection ("Mission not found") from an unreachable service. ctx bounds
// the load only; the session lives until Close.
func Open(ctx context.Context, missionID string, opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	if opts.Bus == nil {
		opts.Bus = event.NewBus(opts.Logger)
	}

	epoch := uuid.NewString()
	log := opts.Logger.WithSession(epoch).WithMission(missionID).WithComponent("session")

	snap, err := opts.Gateway.FetchSnapshot(ctx, missionID)
	if err != nil {
		log.Warn("load failed", "error", err.Error())
		return nil, errors.Wrapf(err, "load mission %s", missionID)
	}
	if snap.MissionID == "" {
		snap.MissionID = missionID
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		missionID: missionID,
		epoch:     epoch,
		gateway:   opts.Gateway,
		telemetry: opts.Telemetry,
		bus:       opts.Bus,
		logger:    log,
		recon:     NewReconciler(snap),
		inbox:     make(chan message, 16),
		ctx:       sctx,
		cancel:    cancel,
	}
	s.publishState()

	events, err := opts.Telemetry.Open(sctx, missionID)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "open telemetry")
	}

	log.Info("session opened", "status", string(snap.Status), "waypoints", len(snap.Waypoints))

	s.wg.Go(func() { s.pumpTelemetry(events) })
	s.wg.Go(s.run)
	return s, nil
}

// MissionID returns the id of the mission this session follows.
func (s *Session) MissionID() string { return s.missionID }

// Epoch returns the random id identifying this session instance.
func (s *Session) Epoch() string { return s.epoch }

// State returns the latest accepted session value.
func (s *Session) State() mission.Session {
	return s.state.Load().session.Clone()
}

// StateSeq returns the latest accepted session value with its publish
// sequence number, matching SessionChangedEvent.Seq.
func (s *Session) StateSeq() (mission.Session, uint64) {
	p := s.state.Load()
	return p.session.Clone(), p.seq
}

// Subscribe registers handler for every session notification. Handlers run
// on the session goroutine and must not block or call Send synchronously.
func (s *Session) Subscribe(handler event.Handler) string {
	return s.bus.SubscribeAll(handler)
}

// Unsubscribe removes a subscription made with Subscribe.
func (s *Session) Unsubscribe(id string) bool {
	return s.bus.Unsubscribe(id)
}

// Send issues a control action. It returns once the action has been
// dispatched; the outcome arrives as a session change or a command.failed
// event. Actions the current status does not offer, actions issued while
// another is pending, and actions on a closed session fail immediately.
func (s *Session) Send(ctx context.Context, action mission.Action) error {
	reply := make(chan error, 1)
	select {
	case s.inbox <- sendMsg{action: action, reply: reply}:
	case <-s.ctx.Done():
		return errors.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-s.ctx.Done():
		return errors.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops telemetry and waits for every goroutine of the session to
// exit. Results still in flight are discarded. Close is idempotent.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.telemetry.Close()
		s.wg.Wait()
		s.logger.Info("session closed", "revision", s.state.Load().session.Revision)
	})
	return err
}

// post delivers a message to the loop unless the session is closed.
func (s *Session) post(m message) bool {
	select {
	case s.inbox <- m:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) pumpTelemetry(events <-chan telemetry.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok || !s.post(telemetryMsg{ev: ev}) {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) run() {
	cur, seq := s.StateSeq()
	s.bus.Publish(event.NewSessionChangedEvent(cur, seq, event.CauseLoad))

	for {
		select {
		case <-s.ctx.Done():
			return
		case m := <-s.inbox:
			if s.ctx.Err() != nil {
				return
			}
			s.handle(m)
		}
	}
}

func (s *Session) handle(m message) {
	switch m := m.(type) {
	case telemetryMsg:
		s.handleTelemetry(m.ev)
	case sendMsg:
		m.reply <- s.dispatch(m.action)
	case commandResult:
		s.handleCommandResult(m)
	case refetchResult:
		s.handleRefetchResult(m)
	}
}

func (s *Session) handleTelemetry(ev telemetry.Event) {
	out := s.recon.ApplyTelemetry(ev)
	cause := event.CauseTelemetry
	if cs, ok := ev.(telemetry.ConnectionStateChanged); ok {
		cause = event.CauseConnection
		s.logger.Info("connection state", "state", string(cs.State))
	}
	s.settle(out, cause)

	if out.Reconnected {
		s.scheduleRefetch()
	}
}

// dispatch gates a control action and starts its request.
func (s *Session) dispatch(action mission.Action) error {
	cur := s.recon.Session()
	if cur.HasPending() {
		return errors.ErrCommandPending
	}
	if !mission.Permits(cur.Status, action) {
		return errors.Wrapf(errors.ErrActionNotPermitted, "%s while %s", action, cur.Status)
	}

	origin := Origin{Action: action, StatusRevision: s.recon.StatusRevision()}
	s.settle(s.recon.SetPending(action), event.CausePending)
	s.logger.Info("sending action", "action", string(action), "status", string(cur.Status))

	s.wg.Go(func() {
		snap, err := s.gateway.Send(s.ctx, s.missionID, action)
		s.post(commandResult{origin: origin, snap: snap, err: err})
	})
	return nil
}

func (s *Session) handleCommandResult(res commandResult) {
	action := res.origin.Action
	pending := s.recon.SetPending("")

	if res.err != nil {
		s.logCommandFailure(action, res.err)
		s.settle(pending, event.CausePending)
		s.bus.Publish(event.NewCommandFailedEvent(s.missionID, action, res.err))
		return
	}

	out := s.recon.ApplySnapshot(res.snap, res.origin)
	out.Changed = out.Changed || pending.Changed
	s.settle(out, event.CauseCommand)
}

func (s *Session) scheduleRefetch() {
	origin := Origin{StatusRevision: s.recon.StatusRevision()}
	s.logger.Info("re-fetching snapshot after reconnect")
	s.wg.Go(func() {
		snap, err := s.gateway.FetchSnapshot(s.ctx, s.missionID)
		s.post(refetchResult{origin: origin, snap: snap, err: err})
	})
}

func (s *Session) handleRefetchResult(res refetchResult) {
	if res.err != nil {
		s.logger.Warn("re-fetch failed", "error", res.err.Error())
		return
	}
	s.settle(s.recon.ApplySnapshot(res.snap, res.origin), event.CauseRefetch)
}

// settle logs and publishes the effect of one update.
func (s *Session) settle(out Outcome, cause event.Cause) {
	if out.Rejected != nil {
		s.logger.Warn("update rejected",
			"from", out.Rejected.From,
			"to", out.Rejected.To,
			"source", out.Rejected.Source,
			"stale", out.Rejected.Stale,
		)
		s.bus.Publish(event.NewInconsistencyEvent(s.missionID, out.Rejected))
	}
	if out.Ignored != "" {
		s.logger.Debug("update ignored", "reason", out.Ignored)
	}
	if !out.Changed {
		return
	}
	s.publishState()
	cur, seq := s.StateSeq()
	s.bus.Publish(event.NewSessionChangedEvent(cur, seq, cause))
}

// publishState makes the reconciler's value visible to readers. Only the
// loop goroutine (or Open, before the loop starts) calls it.
func (s *Session) publishState() {
	next := &published{session: s.recon.Session(), seq: 1}
	if prev := s.state.Load(); prev != nil {
		next.seq = prev.seq + 1
	}
	s.state.Store(next)
}

func (s *Session) logCommandFailure(action mission.Action, err error) {
	args := []any{"action", string(action), "error", err.Error()}
	if errors.GetSeverity(err) >= errors.SeverityError {
		s.logger.Error("action failed", args...)
		return
	}
	s.logger.Warn("action failed", args...)
}

package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/surveyctl/internal/errors"
	"github.com/Iron-Ham/surveyctl/internal/logging"
	"github.com/Iron-Ham/surveyctl/internal/mission"
)

// Stream is one established connection. Next blocks until a frame arrives
// or the connection fails; Close unblocks a pending Next.
type Stream interface {
	Next() ([]byte, error)
	Close() error
}

// Dialer establishes streams for a mission.
type Dialer interface {
	Dial(ctx context.Context, missionID string) (Stream, error)
}

// fallbackDelay is used when a policy declines to give a delay.
const fallbackDelay = 30 * time.Second

// ErrAlreadyOpen is returned by Open on a channel that was already opened.
var ErrAlreadyOpen = errors.New("telemetry channel already open")

// Config holds the options of a Channel.
type Config struct {
	// BufferSize is the capacity of the event channel returned by Open.
	BufferSize int
	// Backoff paces reconnects. Nil means the default exponential policy.
	Backoff BackoffPolicy
	Logger  *logging.Logger
}

// Channel owns the stream for one mission. It reconnects with backoff until
// closed and never terminates on its own.
type Channel struct {
	dialer  Dialer
	backoff BackoffPolicy
	bufSize int
	logger  *logging.Logger

	mu     sync.Mutex
	opened bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewChannel creates a Channel that dials through d.
func NewChannel(d Dialer, cfg Config) *Channel {
	if cfg.Backoff == nil {
		cfg.Backoff = NewExponentialBackoff(DefaultBackoffSettings())
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	return &Channel{
		dialer:  d,
		backoff: cfg.Backoff,
		bufSize: cfg.BufferSize,
		logger:  cfg.Logger.WithComponent("telemetry"),
	}
}

// Open starts streaming for missionID. Events arrive on the returned channel
// in the order the service sent them within a connection; the channel is
// closed once Close is called or ctx is cancelled and the stream has stopped.
func (c *Channel) Open(ctx context.Context, missionID string) (<-chan Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opened {
		return nil, ErrAlreadyOpen
	}
	c.opened = true

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	out := make(chan Event, c.bufSize)

	go func() {
		defer close(c.done)
		defer close(out)
		c.run(ctx, missionID, out)
	}()

	return out, nil
}

// Close stops the stream and waits for it to wind down. It is safe to call
// more than once and on a channel that was never opened.
func (c *Channel) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (c *Channel) run(ctx context.Context, missionID string, out chan<- Event) {
	log := c.logger.WithMission(missionID)
	emit := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for attempt := 1; ; attempt++ {
		if !emit(ConnectionStateChanged{State: mission.ConnectionConnecting}) {
			return
		}

		log.Info("connecting", "attempt", attempt)
		stream, err := c.dialer.Dial(ctx, missionID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			err = errors.NewTransportError("telemetry dial", err).WithMissionID(missionID)
			log.Warn("dial failed", "error", err.Error())
			if !emit(ConnectionStateChanged{State: mission.ConnectionDisconnected, Err: err}) {
				return
			}
			if !c.wait(ctx, log) {
				return
			}
			continue
		}

		c.backoff.Reset()
		attempt = 0
		log.Info("connected")
		if !emit(ConnectionStateChanged{State: mission.ConnectionConnected}) {
			_ = stream.Close()
			return
		}

		err = c.pump(ctx, stream, log, emit)
		_ = stream.Close()
		if ctx.Err() != nil {
			return
		}

		err = errors.NewTransportError("telemetry read", err).WithMissionID(missionID)
		log.Warn("stream lost", "error", err.Error())
		if !emit(ConnectionStateChanged{State: mission.ConnectionDisconnected, Err: err}) {
			return
		}
		if !c.wait(ctx, log) {
			return
		}
	}
}

// pump forwards decoded frames until the stream fails or ctx is cancelled.
func (c *Channel) pump(ctx context.Context, stream Stream, log *logging.Logger, emit func(Event) bool) error {
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	for {
		data, err := stream.Next()
		if err != nil {
			return err
		}

		ev, err := DecodeFrame(data)
		if err != nil {
			var perr *errors.ProtocolError
			if errors.As(err, &perr) {
				log.Warn("dropping malformed frame", "error", err.Error(), "payload", perr.Payload)
			} else {
				log.Warn("dropping malformed frame", "error", err.Error())
			}
			continue
		}
		if ev == nil {
			log.Debug("ignoring unknown frame", "payload", string(data))
			continue
		}
		if !emit(ev) {
			return fmt.Errorf("channel closed")
		}
	}
}

func (c *Channel) wait(ctx context.Context, log *logging.Logger) bool {
	d := c.backoff.NextBackOff()
	if d < 0 {
		d = fallbackDelay
	}
	log.Info("reconnecting", "delay", d.String())

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

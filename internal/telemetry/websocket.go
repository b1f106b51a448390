package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketDialer connects to the service's mission stream, one JSON object
// per text frame.
type WebsocketDialer struct {
	// URLTemplate is the stream URL with "{id}" standing for the mission id,
	// e.g. "ws://127.0.0.1:8000/ws/missions/{id}".
	URLTemplate string
	// ReadTimeout, when positive, fails a connection that stays silent for
	// that long. Pong replies count as traffic.
	ReadTimeout time.Duration
	// KeepaliveInterval, when positive, pings the service at that interval.
	// Without an explicit ReadTimeout a connection that answers nothing for
	// two intervals is failed.
	KeepaliveInterval time.Duration
	// HandshakeTimeout bounds the opening handshake. Zero uses 10s.
	HandshakeTimeout time.Duration
	Header           http.Header
}

// URL returns the stream URL for missionID.
func (d *WebsocketDialer) URL(missionID string) string {
	return strings.ReplaceAll(d.URLTemplate, "{id}", missionID)
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context, missionID string) (Stream, error) {
	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}

	url := d.URL(missionID)
	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	s := &wsStream{
		conn:        conn,
		readTimeout: d.ReadTimeout,
		keepalive:   d.KeepaliveInterval,
		done:        make(chan struct{}),
	}
	if s.keepalive > 0 {
		conn.SetPongHandler(func(string) error {
			return s.extendDeadline()
		})
		go s.ping()
	}
	return s, nil
}

type wsStream struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	keepalive   time.Duration
	done        chan struct{}
	closeOnce   sync.Once
}

// idleLimit is how long the stream may stay silent before it is failed.
// Zero means no limit.
func (s *wsStream) idleLimit() time.Duration {
	if s.readTimeout > 0 {
		return s.readTimeout
	}
	return 2 * s.keepalive
}

func (s *wsStream) extendDeadline() error {
	limit := s.idleLimit()
	if limit <= 0 {
		return nil
	}
	return s.conn.SetReadDeadline(time.Now().Add(limit))
}

// ping writes a ping control frame every keepalive interval until the
// stream is closed or a write fails.
func (s *wsStream) ping() {
	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.keepalive)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (s *wsStream) Next() ([]byte, error) {
	for {
		if err := s.extendDeadline(); err != nil {
			return nil, err
		}
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
			time.Now().Add(time.Second),
		)
		err = s.conn.Close()
	})
	return err
}

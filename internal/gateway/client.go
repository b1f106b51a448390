// Package gateway issues control actions and snapshot requests against the
// survey service's REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Iron-Ham/surveyctl/internal/errors"
	"github.com/Iron-Ham/surveyctl/internal/logging"
	"github.com/Iron-Ham/surveyctl/internal/mission"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 1 << 20

// Client talks to the mission REST API. Requests are never retried: a
// control action that may have reached the service must not be repeated
// blindly.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the API rooted at baseURL, e.g.
// "http://127.0.0.1:8000/api".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("gateway")
	return c
}

// FetchSnapshot returns the mission's current authoritative state.
func (c *Client) FetchSnapshot(ctx context.Context, missionID string) (mission.Snapshot, error) {
	return c.do(ctx, http.MethodGet, c.missionURL(missionID), nil, missionID, "")
}

// Send issues a control action and returns the snapshot the service
// answers with. Errors are *errors.CommandRejectedError for refusals,
// *errors.TransportError when the service could not be reached or failed,
// and *errors.ProtocolError for responses that cannot be decoded.
func (c *Client) Send(ctx context.Context, missionID string, action mission.Action) (mission.Snapshot, error) {
	body, err := json.Marshal(struct {
		Action string `json:"action"`
	}{Action: string(action)})
	if err != nil {
		return mission.Snapshot{}, fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.missionURL(missionID)+"/control", body, missionID, action)
}

func (c *Client) missionURL(missionID string) string {
	return c.baseURL + "/missions/" + url.PathEscape(missionID)
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, missionID string, action mission.Action) (mission.Snapshot, error) {
	op := "fetch snapshot"
	if action != "" {
		op = "control " + string(action)
	}
	log := c.logger.WithMission(missionID)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return mission.Snapshot{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("request failed", "op", op, "error", err.Error())
		return mission.Snapshot{}, errors.NewTransportError(op, err).WithMissionID(missionID)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return mission.Snapshot{}, errors.NewTransportError(op, fmt.Errorf("read response: %w", err)).WithMissionID(missionID)
	}
	log.Debug("response", "op", op, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode >= 500:
		return mission.Snapshot{}, errors.NewTransportError(op,
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, errorDetail(respBody, resp.StatusCode))).WithMissionID(missionID)

	case resp.StatusCode >= 400:
		reason := errorDetail(respBody, resp.StatusCode)
		log.Info("request rejected", "op", op, "status", resp.StatusCode, "reason", reason)
		return mission.Snapshot{}, errors.NewCommandRejectedError(string(action), reason, resp.StatusCode)

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return mission.Snapshot{}, errors.NewProtocolError(
			fmt.Sprintf("unexpected HTTP %d", resp.StatusCode), nil).WithPayload(respBody)
	}

	snap, err := mission.DecodeSnapshot(respBody)
	if err != nil {
		log.Warn("invalid response", "op", op, "error", err.Error())
		return mission.Snapshot{}, errors.NewProtocolError(op, err).WithPayload(respBody)
	}
	if snap.MissionID == "" {
		snap.MissionID = missionID
	}
	return snap, nil
}

// errorDetail extracts the service's explanation from an error payload. The
// detail is either a string or, for validation failures, a list of objects
// with a "msg" field.
func errorDetail(body []byte, status int) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil {
			var msgs []string
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}

// Package testutil provides an in-process stand-in for the survey service:
// the mission REST API and the per-mission telemetry websocket.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Iron-Ham/surveyctl/internal/mission"
)

// Mission is the service-side record of a mission.
type Mission struct {
	ID              string
	Name            string
	Status          mission.Status
	FlightPattern   mission.FlightPattern
	AltitudeM       float64
	Waypoints       []mission.Waypoint
	DronePosition   *mission.Position
	ProgressPercent *float64
}

// Reply overrides the service's answer to one request.
type Reply struct {
	Status int
	Body   string
}

// FakeService serves GET /api/missions/{id}, POST /api/missions/{id}/control
// and the websocket at /ws/missions/{id}. Control actions follow the service's
// own state machine, where start moves planned missions straight to
// in_progress.
type FakeService struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu          sync.Mutex
	missions    map[string]*Mission
	conns       map[string][]*websocket.Conn
	replies     []Reply
	hold        chan struct{}
	rejectWS    bool
	fetches     map[string]int
	controls    []string
	connectedCh chan struct{}
}

// NewFakeService starts a service and registers its shutdown with t.
func NewFakeService(t testing.TB) *FakeService {
	t.Helper()
	s := &FakeService{
		missions:    make(map[string]*Mission),
		conns:       make(map[string][]*websocket.Conn),
		fetches:     make(map[string]int),
		connectedCh: make(chan struct{}, 64),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/missions/{id}", s.handleGet)
	mux.HandleFunc("POST /api/missions/{id}/control", s.handleControl)
	mux.HandleFunc("GET /ws/missions/{id}", s.handleStream)

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the REST root, e.g. "http://127.0.0.1:1234/api".
func (s *FakeService) BaseURL() string {
	return s.server.URL + "/api"
}

// TelemetryURL is the stream URL template with an "{id}" placeholder.
func (s *FakeService) TelemetryURL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/missions/{id}"
}

// Close drops every stream and stops the server.
func (s *FakeService) Close() {
	s.mu.Lock()
	if s.hold != nil {
		close(s.hold)
		s.hold = nil
	}
	for id := range s.conns {
		s.dropLocked(id)
	}
	s.mu.Unlock()
	s.server.Close()
}

// Put stores (or replaces) a mission.
func (s *FakeService) Put(m Mission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := m
	s.missions[m.ID] = &c
}

// SetStatus changes a mission's status without going through control.
func (s *FakeService) SetStatus(id string, status mission.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.missions[id]; ok {
		m.Status = status
	}
}

// Status returns a mission's current status.
func (s *FakeService) Status(id string) mission.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.missions[id]; ok {
		return m.Status
	}
	return ""
}

// QueueReply makes the next REST request answer with r instead of the
// mission state. Replies are consumed in order.
func (s *FakeService) QueueReply(r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, r)
}

// HoldControl makes control responses wait until ReleaseControl. The
// action is applied to the mission before the wait.
func (s *FakeService) HoldControl() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hold == nil {
		s.hold = make(chan struct{})
	}
}

// ReleaseControl lets held control responses through.
func (s *FakeService) ReleaseControl() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hold != nil {
		close(s.hold)
		s.hold = nil
	}
}

// RejectStreams makes websocket upgrades fail with 503 while set.
func (s *FakeService) RejectStreams(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectWS = reject
}

// Fetches returns how many times the mission was fetched.
func (s *FakeService) Fetches(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[id]
}

// Controls returns the control actions received, in order.
func (s *FakeService) Controls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.controls...)
}

// WaitForStream blocks until a stream for any mission connects.
func (s *FakeService) WaitForStream(t testing.TB) {
	t.Helper()
	select {
	case <-s.connectedCh:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a telemetry stream to connect")
	}
}

// Send writes one frame to every stream open for the mission.
func (s *FakeService) Send(t testing.TB, id string, frame any) {
	t.Helper()
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	s.SendRaw(t, id, data)
}

// SendRaw writes bytes as one text frame to every stream for the mission.
func (s *FakeService) SendRaw(t testing.TB, id string, data []byte) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns[id] {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Logf("write frame: %v", err)
		}
	}
}

// DropStreams closes every stream for the mission without a close frame.
func (s *FakeService) DropStreams(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(id)
}

func (s *FakeService) dropLocked(id string) {
	for _, c := range s.conns[id] {
		_ = c.Close()
	}
	delete(s.conns, id)
}

func (s *FakeService) nextReply() (Reply, bool) {
	if len(s.replies) == 0 {
		return Reply{}, false
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, true
}

func (s *FakeService) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	s.fetches[id]++
	if reply, ok := s.nextReply(); ok {
		s.mu.Unlock()
		writeRaw(w, reply)
		return
	}
	m, ok := s.missions[id]
	var body []byte
	if ok {
		body = encodeMission(m)
	}
	s.mu.Unlock()

	if !ok {
		writeDetail(w, http.StatusNotFound, "Mission not found")
		return
	}
	writeJSON(w, body)
}

func (s *FakeService) handleControl(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	s.mu.Lock()
	s.controls = append(s.controls, req.Action)
	if reply, ok := s.nextReply(); ok {
		s.mu.Unlock()
		writeRaw(w, reply)
		return
	}

	m, ok := s.missions[id]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Mission not found")
		return
	}
	next, ok := serviceTransition(mission.Action(req.Action), m.Status)
	if !ok {
		detail := fmt.Sprintf("Invalid action '%s' for current status '%s'", req.Action, m.Status)
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, detail)
		return
	}
	m.Status = next
	body := encodeMission(m)
	hold := s.hold
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}
	writeJSON(w, body)
}

func (s *FakeService) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	reject := s.rejectWS
	s.mu.Unlock()
	if reject {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns[id] = append(s.conns[id], conn)
	s.mu.Unlock()

	select {
	case s.connectedCh <- struct{}{}:
	default:
	}

	// Drain client frames so close handshakes are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// serviceTransition mirrors the service's control rules.
func serviceTransition(action mission.Action, from mission.Status) (mission.Status, bool) {
	switch {
	case action == mission.ActionStart && from == mission.StatusPlanned:
		return mission.StatusInProgress, true
	case action == mission.ActionPause && from == mission.StatusInProgress:
		return mission.StatusPaused, true
	case action == mission.ActionResume && from == mission.StatusPaused:
		return mission.StatusInProgress, true
	case action == mission.ActionAbort && (from == mission.StatusInProgress || from == mission.StatusPaused):
		return mission.StatusAborted, true
	case action == mission.ActionComplete && from == mission.StatusInProgress:
		return mission.StatusCompleted, true
	default:
		return "", false
	}
}

func encodeMission(m *Mission) []byte {
	type waypoint struct {
		Latitude      float64 `json:"latitude"`
		Longitude     float64 `json:"longitude"`
		Altitude      float64 `json:"altitude"`
		SequenceOrder int     `json:"sequence_order"`
	}
	type drone struct {
		Lat float64 `json:"current_location_lat"`
		Lon float64 `json:"current_location_lon"`
	}
	out := struct {
		ID              string     `json:"id"`
		Name            string     `json:"name"`
		Status          string     `json:"status"`
		FlightPattern   string     `json:"flight_pattern"`
		FlightAltitudeM float64    `json:"flight_altitude_m"`
		Waypoints       []waypoint `json:"waypoints"`
		Drone           *drone     `json:"drone,omitempty"`
		ProgressPercent *float64   `json:"progress_percent,omitempty"`
	}{
		ID:              m.ID,
		Name:            m.Name,
		Status:          string(m.Status),
		FlightPattern:   string(m.FlightPattern),
		FlightAltitudeM: m.AltitudeM,
		Waypoints:       []waypoint{},
		ProgressPercent: m.ProgressPercent,
	}
	for _, wp := range m.Waypoints {
		out.Waypoints = append(out.Waypoints, waypoint{wp.Lat, wp.Lon, wp.Altitude, wp.SequenceOrder})
	}
	if m.DronePosition != nil {
		out.Drone = &drone{m.DronePosition.Lat, m.DronePosition.Lon}
	}
	data, _ := json.Marshal(out)
	return data
}

func writeJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func writeRaw(w http.ResponseWriter, r Reply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.Status)
	_, _ = w.Write([]byte(r.Body))
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	body, _ := json.Marshal(map[string]string{"detail": detail})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// PositionFrame builds a drone_position_update frame.
func PositionFrame(lat, lon float64) map[string]any {
	return map[string]any{"type": "drone_position_update", "lat": lat, "lon": lon}
}

// ProgressFrame builds a mission_progress_update frame.
func ProgressFrame(percent float64) map[string]any {
	return map[string]any{"type": "mission_progress_update", "percent_complete": percent}
}

// StatusFrame builds a mission_status_update frame.
func StatusFrame(status mission.Status) map[string]any {
	return map[string]any{"type": "mission_status_update", "status": string(status)}
}

// Package station is the ground station control surface: a WebSocket
// feed mirroring the event bus plus a small HTTP API for replay
// control, chart rendering and snapshots.
package station

import (
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/roman-kulish/balloon-telemetry/internal/bus"
	"github.com/roman-kulish/balloon-telemetry/internal/render"
	"github.com/roman-kulish/balloon-telemetry/internal/replay"
	"github.com/roman-kulish/balloon-telemetry/internal/snapshot"
	"github.com/roman-kulish/balloon-telemetry/internal/telemetry"
	"github.com/roman-kulish/balloon-telemetry/internal/trajectory"
)

// Controller is the replay player surface the API needs.
type Controller interface {
	Start(restart bool) error
	Stop()
	State() replay.State
	Cursor() int
	Len() int
}

// envelope is the WebSocket message frame: one event per message,
// tagged with its bus channel.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) func(*Server) {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSnapshots enables the snapshot endpoint.
func WithSnapshots(store *snapshot.Store) func(*Server) {
	return func(s *Server) {
		s.snapshots = store
	}
}

// WithChartTitle overrides the rendered chart title.
func WithChartTitle(title string) func(*Server) {
	return func(s *Server) {
		s.chartTitle = title
	}
}

// Server bridges the event bus to WebSocket clients and exposes the
// control API. Create with New, wire into an http.Server via Handler,
// release bus subscriptions with Close.
type Server struct {
	logger     *slog.Logger
	bus        *bus.Bus
	player     Controller
	buffer     *trajectory.Buffer
	snapshots  *snapshot.Store
	chartTitle string

	upgrader websocket.Upgrader

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool

	stateMu       sync.Mutex
	lastTelemetry map[string]any
	lastSensors   map[string]bool

	unsubscribe []func()
}

// New creates a Server and subscribes it to the bus.
func New(b *bus.Bus, player Controller, buffer *trajectory.Buffer, options ...func(*Server)) *Server {
	s := Server{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		bus:        b,
		player:     player,
		buffer:     buffer,
		chartTitle: "Flight Altitude",
		clients:    make(map[*websocket.Conn]bool),
	}

	for _, option := range options {
		option(&s)
	}

	s.unsubscribe = []func(){
		b.SubscribeTelemetry(func(data map[string]any) {
			s.stateMu.Lock()
			s.lastTelemetry = data
			s.stateMu.Unlock()
			s.broadcast(envelope{Type: "telemetry", Data: data})
		}),
		b.SubscribeSensorStatus(func(status map[string]bool) {
			s.stateMu.Lock()
			s.lastSensors = status
			s.stateMu.Unlock()
			s.broadcast(envelope{Type: "sensorStatus", Data: status})
		}),
		b.SubscribeTrajectory(func(p telemetry.Point) {
			s.broadcast(envelope{Type: "trajectory", Data: p})
		}),
		b.SubscribeHealth(func(cpu, mem float64) {
			s.broadcast(envelope{Type: "health", Data: map[string]float64{"cpu": cpu, "mem": mem}})
		}),
	}

	return &s
}

// BroadcastChart pushes the full chart series to connected clients.
// Wired as the trajectory buffer flush callback so clients repaint in
// batches instead of per point.
func (s *Server) BroadcastChart(t, expected, actual []float64) {
	s.broadcast(envelope{Type: "chart", Data: map[string][]float64{
		"t":        t,
		"expected": expected,
		"actual":   actual,
	}})
}

// Close releases the bus subscriptions and disconnects all clients.
func (s *Server) Close() error {
	for _, fn := range s.unsubscribe {
		fn()
	}
	s.unsubscribe = nil

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for client := range s.clients {
		client.Close()
		delete(s.clients, client)
	}

	return nil
}

// Handler returns the HTTP routing for the station API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/control", s.handleControl)
	mux.HandleFunc("GET /api/chart.png", s.handleChartPNG)
	mux.HandleFunc("GET /api/chart.html", s.handleChartHTML)
	mux.HandleFunc("POST /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/fields", s.handleFields)
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Info("websocket client connected", slog.Int("clients", count))

	// Reader loop: the feed is one-way, but reads must drain to
	// notice the peer going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.dropClient(conn)
				return
			}
		}
	}()
}

func (s *Server) broadcast(msg envelope) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(msg); err != nil {
			s.logger.Warn("dropping websocket client", slog.Any("error", err))
			client.Close()
			delete(s.clients, client)
		}
	}
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if s.clients[conn] {
		conn.Close()
		delete(s.clients, conn)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.Lock()
	clients := len(s.clients)
	s.clientsMu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]any{
		"state":   s.player.State().String(),
		"cursor":  s.player.Cursor(),
		"records": s.player.Len(),
		"points":  s.buffer.Len(),
		"clients": clients,
	})
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")

	var err error
	switch action {
	case "play":
		err = s.player.Start(false)
	case "pause":
		s.player.Stop()
	case "restart":
		s.buffer.Clear()
		err = s.player.Start(true)
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown action '%s'", action))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"action": action,
		"state":  s.player.State().String(),
	})
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	t, expected, actual := s.buffer.Samples()
	profile := s.buffer.Profile()

	renderer, err := render.NewChartRenderer(render.ChartConfig{
		Title:       s.chartTitle,
		ShowMarkers: profile.ShowMarkers,
		MarkerSize:  profile.MarkerSize,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	img, err := renderer.Render(render.ChartData{T: t, Expected: expected, Actual: actual})
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err = png.Encode(w, img); err != nil {
		s.logger.Warn("encoding chart", slog.Any("error", err))
	}
}

func (s *Server) handleChartHTML(w http.ResponseWriter, r *http.Request) {
	t, expected, actual := s.buffer.Samples()
	profile := s.buffer.Profile()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := render.RenderHTML(w, render.ChartData{T: t, Expected: expected, Actual: actual}, render.HTMLConfig{
		Title:       s.chartTitle,
		ShowMarkers: profile.ShowMarkers,
		MarkerSize:  profile.MarkerSize,
	})
	if err != nil {
		s.logger.Warn("rendering chart", slog.Any("error", err))
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("snapshots are not configured"))
		return
	}

	s.stateMu.Lock()
	lastTelemetry := s.lastTelemetry
	lastSensors := s.lastSensors
	s.stateMu.Unlock()

	t, expected, actual := s.buffer.Samples()
	path, err := s.snapshots.Save(lastTelemetry, lastSensors, t, expected, actual)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.logger.Info("snapshot saved", slog.String("path", path))
	s.writeJSON(w, http.StatusCreated, map[string]any{"path": path})
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"fields":  telemetry.Fields,
		"sensors": telemetry.Sensors,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

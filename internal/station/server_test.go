package station

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roman-kulish/balloon-telemetry/internal/bus"
	"github.com/roman-kulish/balloon-telemetry/internal/replay"
	"github.com/roman-kulish/balloon-telemetry/internal/telemetry"
	"github.com/roman-kulish/balloon-telemetry/internal/trajectory"
)

// fakePlayer records control calls.
type fakePlayer struct {
	state    replay.State
	starts   []bool
	stops    int
	startErr error
}

func (f *fakePlayer) Start(restart bool) error {
	f.starts = append(f.starts, restart)
	return f.startErr
}
func (f *fakePlayer) Stop()               { f.stops++ }
func (f *fakePlayer) State() replay.State { return f.state }
func (f *fakePlayer) Cursor() int         { return 7 }
func (f *fakePlayer) Len() int            { return 42 }

func newTestServer(t *testing.T) (*Server, *fakePlayer, *bus.Bus, *httptest.Server) {
	t.Helper()

	b := bus.New()
	player := &fakePlayer{state: replay.StatePlaying}
	buffer := trajectory.New(nil)

	s := New(b, player, buffer)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})

	return s, player, b, ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer res.Body.Close()

	if out != nil {
		if err = json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return res.StatusCode
}

func postJSON(t *testing.T, url string, out any) int {
	t.Helper()

	res, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer res.Body.Close()

	if out != nil {
		if err = json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return res.StatusCode
}

func TestServer_Status(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	var status struct {
		State   string `json:"state"`
		Cursor  int    `json:"cursor"`
		Records int    `json:"records"`
	}
	if code := getJSON(t, ts.URL+"/api/status", &status); code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", code)
	}

	if status.State != "playing" || status.Cursor != 7 || status.Records != 42 {
		t.Errorf("status = %+v", status)
	}
}

func TestServer_ControlActions(t *testing.T) {
	_, player, _, ts := newTestServer(t)

	if code := postJSON(t, ts.URL+"/api/control?action=play", nil); code != http.StatusOK {
		t.Fatalf("play status = %d, want 200", code)
	}
	if code := postJSON(t, ts.URL+"/api/control?action=pause", nil); code != http.StatusOK {
		t.Fatalf("pause status = %d, want 200", code)
	}
	if code := postJSON(t, ts.URL+"/api/control?action=restart", nil); code != http.StatusOK {
		t.Fatalf("restart status = %d, want 200", code)
	}
	if code := postJSON(t, ts.URL+"/api/control?action=eject", nil); code != http.StatusBadRequest {
		t.Fatalf("unknown action status = %d, want 400", code)
	}

	if len(player.starts) != 2 || player.starts[0] != false || player.starts[1] != true {
		t.Errorf("starts = %v, want [false true]", player.starts)
	}
	if player.stops != 1 {
		t.Errorf("stops = %d, want 1", player.stops)
	}
}

func TestServer_ChartPNG(t *testing.T) {
	s, _, _, ts := newTestServer(t)

	// Empty buffer: nothing to draw.
	if code := getJSON(t, ts.URL+"/api/chart.png", nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("empty chart status = %d, want 422", code)
	}

	for i := 0; i < 10; i++ {
		s.buffer.Append(telemetry.Point{T: float64(i), AltExpected: float64(i * 10), AltActual: float64(i * 9)})
	}

	res, err := http.Get(ts.URL + "/api/chart.png")
	if err != nil {
		t.Fatalf("GET chart.png: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("chart status = %d, want 200", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %s, want image/png", ct)
	}
}

func TestServer_Fields(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	var fields struct {
		Fields  []telemetry.Field  `json:"fields"`
		Sensors []telemetry.Sensor `json:"sensors"`
	}
	if code := getJSON(t, ts.URL+"/api/fields", &fields); code != http.StatusOK {
		t.Fatalf("fields status = %d, want 200", code)
	}

	if len(fields.Fields) != len(telemetry.Fields) {
		t.Errorf("fields = %d, want %d", len(fields.Fields), len(telemetry.Fields))
	}
	if len(fields.Sensors) != len(telemetry.Sensors) {
		t.Errorf("sensors = %d, want %d", len(fields.Sensors), len(telemetry.Sensors))
	}
}

func TestServer_SnapshotUnconfigured(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	if code := postJSON(t, ts.URL+"/api/snapshot", nil); code != http.StatusNotFound {
		t.Errorf("snapshot status = %d, want 404", code)
	}
}

func TestServer_WebSocketFeed(t *testing.T) {
	_, _, b, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	// Registration happens in the handler after the handshake
	// completes; wait for the client count before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var status struct {
			Clients int `json:"clients"`
		}
		getJSON(t, ts.URL+"/api/status", &status)
		if status.Clients == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for websocket registration")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.PublishTelemetry(map[string]any{"alt_bmp": 1200.5})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err = conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading websocket message: %v", err)
	}

	if msg.Type != "telemetry" {
		t.Errorf("message type = %s, want telemetry", msg.Type)
	}
	if msg.Data["alt_bmp"] != 1200.5 {
		t.Errorf("alt_bmp = %v, want 1200.5", msg.Data["alt_bmp"])
	}
}

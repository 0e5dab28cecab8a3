package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-eltako/internal/audit"
	"github.com/nerrad567/gray-logic-eltako/internal/bridges/eltako"
	"github.com/nerrad567/gray-logic-eltako/internal/bus"
	"github.com/nerrad567/gray-logic-eltako/internal/directory"
	"github.com/nerrad567/gray-logic-eltako/internal/eep"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/esp2"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/mqtt"
)

// fakeBridge implements Bridge for testing.
type fakeBridge struct {
	mu       sync.Mutex
	commands []eltako.CommandMessage
	ack      func(cmd eltako.CommandMessage) eltako.AckMessage
	states   map[string]map[string]any
	health   eltako.HealthStatus
}

func (b *fakeBridge) Execute(_ context.Context, cmd eltako.CommandMessage) eltako.AckMessage {
	b.mu.Lock()
	b.commands = append(b.commands, cmd)
	b.mu.Unlock()
	if b.ack != nil {
		return b.ack(cmd)
	}
	return eltako.NewAckMessage(cmd, eltako.AckAccepted, "")
}

func (b *fakeBridge) DeviceState(id string) (map[string]any, bool) {
	s, ok := b.states[id]
	return s, ok
}

func (b *fakeBridge) Health() eltako.HealthMessage {
	return eltako.HealthMessage{Bridge: "eltako-test", Status: b.health}
}

func (b *fakeBridge) GetMetrics() eltako.BridgeMetrics {
	return eltako.BridgeMetrics{Connected: true, Status: "open", DevicesManaged: 2, Commands: 5, CommandFailures: 1}
}

// fakeSession implements Session for testing.
type fakeSession struct {
	mu    sync.Mutex
	subs  []func(bus.Event)
	stats bus.Stats
}

func (s *fakeSession) Subscribe(fn func(bus.Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
	return func() {}
}

func (s *fakeSession) Stats() bus.Stats { return s.stats }

// fakeAudit implements AuditStore for testing.
type fakeAudit struct {
	filter audit.Filter
}

func (a *fakeAudit) List(_ context.Context, f audit.Filter) (*audit.ListResult, error) {
	a.filter = f
	return &audit.ListResult{
		Entries: []audit.Entry{{ID: "cmd-1", DeviceID: f.DeviceID, Command: "on", Status: eltako.AckAccepted}},
		Total:   1,
		Limit:   f.Limit,
	}, nil
}

// fakeBroker implements Broker for testing.
type fakeBroker struct{ stats mqtt.Stats }

func (b fakeBroker) Stats() mqtt.Stats { return b.stats }

type fakeTelemetry struct{}

func (fakeTelemetry) Counts() (uint64, uint64) { return 120, 3 }

// fakeDiscovery implements DiscoveryStore for testing.
type fakeDiscovery struct {
	addresses []eltako.DiscoveredAddress
	forgotten []enocean.Address
	err       error
}

func (d *fakeDiscovery) List(_ context.Context, limit int) ([]eltako.DiscoveredAddress, error) {
	if d.err != nil {
		return nil, d.err
	}
	if limit > 0 && limit < len(d.addresses) {
		return d.addresses[:limit], nil
	}
	return d.addresses, nil
}

func (d *fakeDiscovery) Forget(_ context.Context, addr enocean.Address) error {
	d.forgotten = append(d.forgotten, addr)
	return nil
}

func (d *fakeDiscovery) Count(context.Context) (int, error) { return len(d.addresses), nil }

type testEnv struct {
	srv       *Server
	bridge    *fakeBridge
	session   *fakeSession
	discovery *fakeDiscovery
	audit     *fakeAudit
	handler   http.Handler
}

func testServer(t *testing.T, withDiscovery bool) *testEnv {
	t.Helper()

	dir := directory.New()
	sender := enocean.MustParseAddress("00-00-B0-01")
	senderEEP := eep.MustParseID("A5-38-08")
	for _, e := range []directory.Entry{
		{ID: "window", Address: enocean.MustParseAddress("00-00-00-50"), EEP: eep.MustParseID("D5-00-01")},
		{ID: "light", Address: enocean.MustParseAddress("00-00-00-10"), EEP: eep.MustParseID("M5-38-08"),
			Direction: directory.Sender, Sender: &sender, SenderEEP: &senderEEP},
	} {
		if err := dir.Register(e); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	env := &testEnv{
		bridge: &fakeBridge{
			health: eltako.HealthHealthy,
			states: map[string]map[string]any{"window": {"state": "open"}},
		},
		session: &fakeSession{stats: bus.Stats{State: bus.StateOpen, Rx: 12, Tx: 3, Decoded: 9}},
	}

	deps := Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5}},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:    logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test"),
		Directory: dir,
		Bridge:    env.bridge,
		Session:   env.session,
		Version:   "test",
	}
	if withDiscovery {
		env.discovery = &fakeDiscovery{addresses: []eltako.DiscoveredAddress{
			{Address: "FE-DB-B6-40", LastSeen: time.Now(), MessageCount: 4, LastOrg: "RPS"},
			{Address: "00-00-00-77", LastSeen: time.Now().Add(-2 * time.Hour), MessageCount: 1, LastOrg: "4BS"},
		}}
		deps.Discovery = env.discovery
		env.audit = &fakeAudit{}
		deps.Audit = env.audit
		deps.Telemetry = fakeTelemetry{}
		deps.Broker = fakeBroker{stats: mqtt.Stats{Connected: true, Subscriptions: 2, Published: 40, Received: 7, HandlerErrors: 1}}
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	env.srv = srv
	env.handler = srv.Handler()
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

func TestNew_MissingDeps(t *testing.T) {
	log := logging.Default()
	dir := directory.New()
	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Directory: dir, Bridge: &fakeBridge{}, Session: &fakeSession{}}},
		{"no directory", Deps{Logger: log, Bridge: &fakeBridge{}, Session: &fakeSession{}}},
		{"no bridge", Deps{Logger: log, Directory: dir, Session: &fakeSession{}}},
		{"no session", Deps{Logger: log, Directory: dir, Bridge: &fakeBridge{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	env := testServer(t, false)

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	env.bridge.health = eltako.HealthUnhealthy
	if w := env.do(t, http.MethodGet, "/api/v1/health", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d, want 503", w.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := testServer(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/devices", nil)
	req.Header.Set("Origin", "http://panel.local")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestListDevices(t *testing.T) {
	env := testServer(t, false)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 2},
		{"by eep", "?eep=D5-00-01", 1},
		{"by direction", "?direction=sender", 1},
		{"no match", "?eep=A5-10-06", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/v1/devices"+tt.query, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			var body struct {
				Devices []DeviceView `json:"devices"`
				Count   int          `json:"count"`
			}
			decodeBody(t, w, &body)
			if body.Count != tt.want || len(body.Devices) != tt.want {
				t.Errorf("count = %d, want %d", body.Count, tt.want)
			}
		})
	}
}

func TestGetDevice(t *testing.T) {
	env := testServer(t, false)

	tests := []struct {
		name   string
		path   string
		status int
		id     string
	}{
		{"by address", "/api/v1/devices/00-00-00-50", http.StatusOK, "window"},
		{"by unseparated address", "/api/v1/devices/00000010", http.StatusOK, "light"},
		{"by id", "/api/v1/devices/window", http.StatusOK, "window"},
		{"unknown", "/api/v1/devices/00-00-00-99", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			var dev DeviceView
			decodeBody(t, w, &dev)
			if dev.ID != tt.id {
				t.Errorf("ID = %q, want %q", dev.ID, tt.id)
			}
		})
	}

	w := env.do(t, http.MethodGet, "/api/v1/devices/window", "")
	var dev DeviceView
	decodeBody(t, w, &dev)
	if dev.State["state"] != "open" {
		t.Errorf("State = %v, want last known state", dev.State)
	}
}

func TestDeviceCommand(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		code   string
		status int
	}{
		{"accepted", "/api/v1/devices/00-00-00-10/command", `{"command":"on"}`, "", http.StatusOK},
		{"invalid json", "/api/v1/devices/00-00-00-10/command", `{`, "", http.StatusBadRequest},
		{"missing command", "/api/v1/devices/00-00-00-10/command", `{}`, "", http.StatusBadRequest},
		{"unknown device", "/api/v1/devices/00-00-00-99/command", `{"command":"on"}`, "", http.StatusNotFound},
		{"invalid parameters", "/api/v1/devices/light/command", `{"command":"dim"}`, eltako.ErrCodeInvalidParameters, http.StatusBadRequest},
		{"timeout", "/api/v1/devices/light/command", `{"command":"on"}`, eltako.ErrCodeTimeout, http.StatusGatewayTimeout},
		{"unreachable", "/api/v1/devices/light/command", `{"command":"on"}`, eltako.ErrCodeDeviceUnreachable, http.StatusServiceUnavailable},
		{"protocol error", "/api/v1/devices/light/command", `{"command":"on"}`, eltako.ErrCodeProtocolError, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t, false)
			if tt.code != "" {
				env.bridge.ack = func(cmd eltako.CommandMessage) eltako.AckMessage {
					return eltako.NewAckError(cmd, "", tt.code, "failed", 0)
				}
			}

			w := env.do(t, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
			if tt.status == http.StatusOK {
				var ack eltako.AckMessage
				decodeBody(t, w, &ack)
				if ack.Status != eltako.AckAccepted {
					t.Errorf("ack = %+v", ack)
				}
				cmd := env.bridge.commands[0]
				if cmd.DeviceID != "light" || cmd.Source != "api" || cmd.ID == "" {
					t.Errorf("command = %+v", cmd)
				}
			}
		})
	}
}

func TestListProfiles(t *testing.T) {
	env := testServer(t, false)

	w := env.do(t, http.MethodGet, "/api/v1/profiles", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Profiles []ProfileView `json:"profiles"`
		Count    int           `json:"count"`
	}
	decodeBody(t, w, &body)
	if body.Count != len(eep.Profiles()) || body.Count == 0 {
		t.Fatalf("count = %d, want %d", body.Count, len(eep.Profiles()))
	}
	found := false
	for _, p := range body.Profiles {
		if p.ID == "A5-38-08" {
			found = true
			if !p.Sender || len(p.Orgs) == 0 {
				t.Errorf("A5-38-08 = %+v", p)
			}
		}
	}
	if !found {
		t.Error("A5-38-08 missing from catalogue")
	}
}

func TestDiscovery(t *testing.T) {
	t.Run("no database", func(t *testing.T) {
		env := testServer(t, false)
		if w := env.do(t, http.MethodGet, "/api/v1/discovery", ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})

	t.Run("list", func(t *testing.T) {
		env := testServer(t, true)
		w := env.do(t, http.MethodGet, "/api/v1/discovery", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var body struct {
			Addresses []eltako.DiscoveredAddress `json:"addresses"`
			Summary   DiscoverySummary           `json:"summary"`
		}
		decodeBody(t, w, &body)
		if body.Summary.Total != 2 || body.Summary.ActiveLast5Min != 1 || body.Summary.ActiveLast1Hour != 1 {
			t.Errorf("summary = %+v", body.Summary)
		}
	})

	t.Run("limit", func(t *testing.T) {
		env := testServer(t, true)
		w := env.do(t, http.MethodGet, "/api/v1/discovery?limit=1", "")
		var body struct {
			Addresses []eltako.DiscoveredAddress `json:"addresses"`
		}
		decodeBody(t, w, &body)
		if len(body.Addresses) != 1 {
			t.Errorf("addresses = %d, want 1", len(body.Addresses))
		}
		if w := env.do(t, http.MethodGet, "/api/v1/discovery?limit=zero", ""); w.Code != http.StatusBadRequest {
			t.Errorf("bad limit status = %d, want 400", w.Code)
		}
	})

	t.Run("query failure", func(t *testing.T) {
		env := testServer(t, true)
		env.discovery.err = errors.New("disk I/O error")
		if w := env.do(t, http.MethodGet, "/api/v1/discovery", ""); w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", w.Code)
		}
	})

	t.Run("forget", func(t *testing.T) {
		env := testServer(t, true)
		if w := env.do(t, http.MethodDelete, "/api/v1/discovery/FE-DB-B6-40", ""); w.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", w.Code)
		}
		if len(env.discovery.forgotten) != 1 || env.discovery.forgotten[0] != enocean.MustParseAddress("FE-DB-B6-40") {
			t.Errorf("forgotten = %v", env.discovery.forgotten)
		}
		if w := env.do(t, http.MethodDelete, "/api/v1/discovery/nope", ""); w.Code != http.StatusBadRequest {
			t.Errorf("bad address status = %d, want 400", w.Code)
		}
	})
}

func TestListAudit(t *testing.T) {
	if w := testServer(t, false).do(t, http.MethodGet, "/api/v1/audit", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no database status = %d, want 503", w.Code)
	}

	env := testServer(t, true)
	w := env.do(t, http.MethodGet, "/api/v1/audit?device_id=light&status=failed&source=mqtt&limit=10&offset=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	want := audit.Filter{DeviceID: "light", Status: "failed", Source: "mqtt", Limit: 10, Offset: 5}
	if env.audit.filter != want {
		t.Errorf("filter = %+v, want %+v", env.audit.filter, want)
	}
	var res audit.ListResult
	decodeBody(t, w, &res)
	if res.Total != 1 || res.Entries[0].DeviceID != "light" {
		t.Errorf("result = %+v", res)
	}
}

func TestStats(t *testing.T) {
	env := testServer(t, true)

	w := env.do(t, http.MethodGet, "/api/v1/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var m SystemMetrics
	decodeBody(t, w, &m)
	if m.Bus.State != "open" || m.Bus.Rx != 12 || m.Bus.Decoded != 9 {
		t.Errorf("Bus = %+v", m.Bus)
	}
	if m.Bridge.Commands != 5 {
		t.Errorf("Bridge = %+v", m.Bridge)
	}
	if m.Discovered == nil || *m.Discovered != 2 {
		t.Errorf("Discovered = %v, want 2", m.Discovered)
	}
	if m.MQTT == nil || !m.MQTT.Connected || m.MQTT.Published != 40 {
		t.Errorf("MQTT = %+v", m.MQTT)
	}
	if m.Telemetry == nil || m.Telemetry.Queued != 120 || m.Telemetry.WriteErrors != 3 {
		t.Errorf("Telemetry = %+v", m.Telemetry)
	}
	if m.Version != "test" || m.Runtime.Goroutines == 0 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestPrometheusMetrics(t *testing.T) {
	env := testServer(t, false)

	w := env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"eltako_session_open 1",
		`eltako_frames_total{direction="rx"} 12`,
		`eltako_telegrams_total{outcome="decoded"} 9`,
		"eltako_commands_total 5",
		"eltako_command_failures_total 1",
		"eltako_devices 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestPrometheusMetrics_Broker(t *testing.T) {
	without := testServer(t, false).do(t, http.MethodGet, "/metrics", "").Body.String()
	if strings.Contains(without, "eltako_mqtt_") {
		t.Error("MQTT metrics exported without a broker")
	}

	body := testServer(t, true).do(t, http.MethodGet, "/metrics", "").Body.String()
	for _, want := range []string{
		"eltako_mqtt_connected 1",
		`eltako_mqtt_messages_total{direction="published"} 40`,
		`eltako_mqtt_messages_total{direction="received"} 7`,
		`eltako_mqtt_failures_total{kind="handler"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestPrometheusMetrics_HTTP(t *testing.T) {
	env := testServer(t, false)
	env.do(t, http.MethodGet, "/api/v1/devices/light", "")
	env.do(t, http.MethodGet, "/api/v1/devices/window", "")

	body := env.do(t, http.MethodGet, "/metrics", "").Body.String()
	if !strings.Contains(body, `eltako_http_requests_total{method="GET",route="/api/v1/devices/{address}`) {
		t.Errorf("request counter missing route pattern:\n%s", body)
	}
	if strings.Contains(body, `route="/api/v1/devices/light`) {
		t.Error("request counter labelled with a raw path")
	}
	if !strings.Contains(body, "eltako_http_request_duration_seconds_bucket") {
		t.Error("latency histogram missing")
	}
}

func TestServer_HealthCheck(t *testing.T) {
	env := testServer(t, false)

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := env.srv.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() with cancelled context should fail")
	}
}

// connectWebSocket starts a test HTTP server and dials its /ws endpoint.
func connectWebSocket(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go env.srv.hub.Run(ctx)

	ts := httptest.NewServer(env.handler)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })

	waitForClients(t, env.srv.hub, 1)
	return ws
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d clients, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readWS(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	return msg
}

func TestWebSocket_SubscribeUnsubscribe(t *testing.T) {
	env := testServer(t, false)
	ws := connectWebSocket(t, env, "")

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelDeviceState, ChannelUnresolved}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	if resp := readWS(t, ws); resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Errorf("subscribe response = %+v", resp)
	}

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "unsub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelUnresolved}},
	}); err != nil {
		t.Fatalf("write unsubscribe: %v", err)
	}
	if resp := readWS(t, ws); resp.Type != WSTypeResponse || resp.ID != "unsub-1" {
		t.Errorf("unsubscribe response = %+v", resp)
	}
}

func TestWebSocket_PingAndErrors(t *testing.T) {
	env := testServer(t, false)
	ws := connectWebSocket(t, env, "")

	tests := []struct {
		name string
		send string
		want string
	}{
		{"ping", `{"type":"ping","id":"p1"}`, WSTypePong},
		{"invalid json", `{nope`, WSTypeError},
		{"unknown type", `{"type":"dance","id":"d1"}`, WSTypeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
				t.Fatalf("write: %v", err)
			}
			if resp := readWS(t, ws); resp.Type != tt.want {
				t.Errorf("response type = %q, want %q", resp.Type, tt.want)
			}
		})
	}
}

func TestWebSocket_RelaysBusEvents(t *testing.T) {
	env := testServer(t, false)
	ws := connectWebSocket(t, env, "?channels="+ChannelDeviceState+","+ChannelSessionState)

	entry, _ := env.srv.dir.LookupID("window")
	tg, err := esp2.NewRadio(esp2.RRT, enocean.OrgRPS, []byte{0x30}, enocean.MustParseAddress("FE-DB-B6-40"), 0x30)
	if err != nil {
		t.Fatalf("NewRadio() error = %v", err)
	}
	env.srv.relayEvent(bus.EventUnresolved{Time: time.Now(), Telegram: tg}) // not subscribed
	env.srv.relayEvent(bus.EventDecoded{Time: time.Now(), Entry: entry, Value: eep.Enumerated{State: "closed"}})

	msg := readWS(t, ws)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelDeviceState {
		t.Fatalf("message = %+v", msg)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["device_id"] != "window" || payload["address"] != "00-00-00-50" {
		t.Errorf("payload = %v", payload)
	}

	env.srv.relayEvent(bus.EventSessionState{Time: time.Now(), State: bus.StateFaulted, Err: errors.New("EOF")})
	msg = readWS(t, ws)
	if msg.EventType != ChannelSessionState {
		t.Fatalf("message = %+v", msg)
	}
	payload, _ = msg.Payload.(map[string]any)
	if payload["state"] != "faulted" || payload["error"] != "EOF" {
		t.Errorf("payload = %v", payload)
	}
}

func TestWebSocket_DeviceFilter(t *testing.T) {
	env := testServer(t, false)
	ws := connectWebSocket(t, env, "?channels="+ChannelDeviceState+":00-00-00-10")

	window, _ := env.srv.dir.LookupID("window")
	light, _ := env.srv.dir.LookupID("light")
	env.srv.relayEvent(bus.EventDecoded{Time: time.Now(), Entry: window, Value: eep.Enumerated{State: "open"}})
	env.srv.relayEvent(bus.EventDecoded{Time: time.Now(), Entry: light, Value: eep.Binary{On: true}})

	msg := readWS(t, ws)
	payload, _ := msg.Payload.(map[string]any)
	if payload["device_id"] != "light" {
		t.Fatalf("first event for %v, want light only", payload["device_id"])
	}
}

func TestClientWants(t *testing.T) {
	c := &WSClient{subscriptions: map[string]struct{}{}}
	c.subscribe([]string{" " + ChannelUnresolved + " ", "", ChannelDeviceState + ":kitchen"})

	tests := []struct {
		channel string
		keys    []string
		want    bool
	}{
		{ChannelUnresolved, nil, true},
		{ChannelUnresolved, []string{"FE-DB-B6-40"}, true},
		{ChannelDeviceState, []string{"kitchen", "00-00-00-10"}, true},
		{ChannelDeviceState, []string{"hall", "00-00-00-20"}, false},
		{ChannelDeviceState, nil, false},
		{ChannelSessionState, nil, false},
	}
	for _, tt := range tests {
		if got := c.wants(tt.channel, tt.keys); got != tt.want {
			t.Errorf("wants(%q, %v) = %v, want %v", tt.channel, tt.keys, got, tt.want)
		}
	}
}

func TestHubCountsDroppedEvents(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Default())
	slow := &WSClient{hub: hub, send: make(chan []byte, 1), subscriptions: map[string]struct{}{ChannelSessionState: {}}}
	hub.Register(slow)

	for i := 0; i < 3; i++ {
		hub.Broadcast(ChannelSessionState, map[string]any{"state": "open"})
	}
	if got := hub.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}

	hub.Unregister(slow)
	hub.Broadcast(ChannelSessionState, nil)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after Unregister", hub.ClientCount())
	}
}

func TestStartSubscribesToSession(t *testing.T) {
	env := testServer(t, false)
	env.srv.cfg.Port = 0

	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer env.srv.Close()

	env.session.mu.Lock()
	n := len(env.session.subs)
	env.session.mu.Unlock()
	if n != 1 {
		t.Errorf("session subscriptions = %d, want 1", n)
	}
}

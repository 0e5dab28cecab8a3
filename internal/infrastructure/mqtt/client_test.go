package mqtt

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "eltako-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.add("ERROR " + msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add("WARN " + msg) }

func (l *recordingLogger) add(s string) {
	l.mu.Lock()
	l.lines = append(l.lines, s)
	l.mu.Unlock()
}

func (l *recordingLogger) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state", topics.State("01-02-03-04"), "graylogic/state/eltako/01-02-03-04"},
		{"command", topics.Command("kitchen-light"), "graylogic/command/eltako/kitchen-light"},
		{"ack", topics.Ack("kitchen-light"), "graylogic/ack/eltako/kitchen-light"},
		{"event", topics.Event("unresolved"), "graylogic/event/eltako/unresolved"},
		{"request", topics.Request("req-1"), "graylogic/request/eltako/req-1"},
		{"response", topics.Response("req-1"), "graylogic/response/eltako/req-1"},
		{"health", topics.Health(), "graylogic/health/eltako"},
		{"discovery", topics.Discovery(), "graylogic/discovery/eltako"},
		{"all commands", topics.AllCommands(), "graylogic/command/eltako/+"},
		{"all requests", topics.AllRequests(), "graylogic/request/eltako/+"},
		{"all states", topics.AllStates(), "graylogic/state/eltako/+"},
		{"other protocol", Topics{Protocol: "enocean"}.Health(), "graylogic/health/enocean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestLeafAndValidSegment(t *testing.T) {
	if got := Leaf("graylogic/command/eltako/kitchen-light"); got != "kitchen-light" {
		t.Errorf("Leaf() = %q", got)
	}
	if got := Leaf("bare"); got != "bare" {
		t.Errorf("Leaf(bare) = %q", got)
	}

	tests := []struct {
		in   string
		want bool
	}{
		{"01-02-03-04", true},
		{"kitchen-light", true},
		{"", false},
		{"a/b", false},
		{"a+", false},
		{"#", false},
	}
	for _, tt := range tests {
		if got := ValidSegment(tt.in); got != tt.want {
			t.Errorf("ValidSegment(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "bridge", Password: "secret"}
	cfg.Broker.TLS = true

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want ssl://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "eltako-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig not set for TLS broker")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, nil)
	if opts.WillEnabled {
		t.Error("nil will should leave LWT disabled")
	}

	configureLWT(opts, &Will{Topic: Topics{}.Health(), Payload: []byte(`{"status":"offline"}`), QoS: 1})
	if !opts.WillEnabled || opts.WillTopic != "graylogic/health/eltako" || !opts.WillRetained {
		t.Errorf("will = %v %q retained=%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}
	if string(opts.WillPayload) != `{"status":"offline"}` {
		t.Errorf("WillPayload = %s", opts.WillPayload)
	}
}

func TestDisconnectedClientValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"publish empty topic", c.Publish("", nil, 1, false), ErrInvalidTopic},
		{"publish bad qos", c.Publish("t", nil, 3, false), ErrInvalidQoS},
		{"publish oversize", c.Publish("t", make([]byte, maxPayloadSize+1), 1, false), ErrPublishFailed},
		{"publish disconnected", c.Publish("t", nil, 1, false), ErrNotConnected},
		{"subscribe empty topic", c.Subscribe("", 1, noop), ErrInvalidTopic},
		{"subscribe bad qos", c.Subscribe("t", 3, noop), ErrInvalidQoS},
		{"subscribe nil handler", c.Subscribe("t", 1, nil), ErrSubscribeFailed},
		{"subscribe disconnected", c.Subscribe("t", 1, noop), ErrNotConnected},
		{"unsubscribe empty topic", c.Unsubscribe(""), ErrInvalidTopic},
		{"unsubscribe disconnected", c.Unsubscribe("t"), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}

	if c.IsConnected() {
		t.Error("IsConnected() = true for a client that never connected")
	}
	if c.SubscriptionCount() != 0 || c.HasSubscription("t") {
		t.Error("failed subscriptions must not be tracked")
	}
}

func TestWrapHandler(t *testing.T) {
	logger := &recordingLogger{}
	c := &Client{}
	c.SetLogger(logger)

	var got string
	c.wrapHandler(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	})(nil, fakeMessage{topic: "graylogic/command/eltako/x", payload: []byte("on")})
	if got != "graylogic/command/eltako/x=on" {
		t.Errorf("handler saw %q", got)
	}

	c.wrapHandler(func(string, []byte) error { return errors.New("bad payload") })(nil, fakeMessage{topic: "t"})
	c.wrapHandler(func(string, []byte) error { panic("boom") })(nil, fakeMessage{topic: "t"})

	out := logger.joined()
	if !strings.Contains(out, "WARN MQTT handler returned error") {
		t.Errorf("handler error not logged: %q", out)
	}
	if !strings.Contains(out, "ERROR MQTT handler panic recovered") {
		t.Errorf("panic not logged: %q", out)
	}
}

func TestCallbacks(t *testing.T) {
	c := &Client{}
	var lost error
	c.SetOnDisconnect(func(err error) { lost = err })
	c.handleDisconnect(errors.New("broker gone"))
	if lost == nil || lost.Error() != "broker gone" {
		t.Errorf("disconnect callback got %v", lost)
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client = %v", err)
	}
}

func TestStatsCounters(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	ok := c.wrapHandler(func(string, []byte) error { return nil })
	bad := c.wrapHandler(func(string, []byte) error { return errors.New("unknown device") })
	ok(nil, fakeMessage{topic: "graylogic/command/eltako/a"})
	ok(nil, fakeMessage{topic: "graylogic/command/eltako/b"})
	bad(nil, fakeMessage{topic: "graylogic/command/eltako/c"})

	_ = c.Publish("graylogic/health/eltako", []byte("{}"), 1, true) //nolint:errcheck // disconnected on purpose
	c.handleDisconnect(errors.New("broker gone"))

	st := c.Stats()
	if st.Connected {
		t.Error("Connected = true")
	}
	if st.Received != 3 || st.HandlerErrors != 1 {
		t.Errorf("Received = %d, HandlerErrors = %d, want 3 and 1", st.Received, st.HandlerErrors)
	}
	if st.Published != 0 || st.PublishFailures != 1 {
		t.Errorf("Published = %d, PublishFailures = %d, want 0 and 1", st.Published, st.PublishFailures)
	}
	if st.Disconnects != 1 {
		t.Errorf("Disconnects = %d, want 1", st.Disconnects)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
gateway:
  id: "eltako-test"
  kind: "fgw14-usb"
  port: "/dev/ttyUSB1"
  ack_timeout: 250ms
  retries: 0
devices:
  - id: hall-rocker
    name: Hall rocker
    address: "FE-DB-B6-40"
    eep: "F6-02-01"
  - name: Kitchen light
    address: "00-00-00-05"
    eep: "M5-38-08"
    direction: sender
    sender:
      address: "00-00-B0-01"
      eep: "A5-38-08"
capture:
  enabled: true
  path: "/tmp/capture.cbor"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Gateway.Port != "/dev/ttyUSB1" {
		t.Errorf("Gateway.Port = %q, want %q", cfg.Gateway.Port, "/dev/ttyUSB1")
	}
	if cfg.Gateway.AckTimeout != 250*time.Millisecond {
		t.Errorf("Gateway.AckTimeout = %v, want 250ms", cfg.Gateway.AckTimeout)
	}
	if cfg.Gateway.Retries != 0 {
		t.Errorf("Gateway.Retries = %d, want 0 from file", cfg.Gateway.Retries)
	}
	if !cfg.Gateway.AutoReconnect {
		t.Error("Gateway.AutoReconnect default lost")
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(cfg.Devices))
	}
	if cfg.Devices[1].Sender == nil || cfg.Devices[1].Sender.EEP != "A5-38-08" {
		t.Errorf("Devices[1].Sender = %+v", cfg.Devices[1].Sender)
	}
	if !cfg.Capture.Enabled {
		t.Error("Capture.Enabled = false")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if len(cfg.Devices) != 6 {
		t.Errorf("devices = %d, want 6", len(cfg.Devices))
	}
	if cfg.GetGatewayKind() != enocean.GatewayFAM14 {
		t.Errorf("gateway kind = %v, want fam14", cfg.GetGatewayKind())
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
gateway:
  kind: fam15
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	// Every problem is reported.
	for _, want := range []string{"site.id", "gateway.kind"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, "site.id"},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"port ignored when api disabled", func(c *Config) { c.API.Enabled = false; c.API.Port = 0 }, ""},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"missing gateway port", func(c *Config) { c.Gateway.Port = "" }, "gateway.port"},
		{"unknown gateway kind", func(c *Config) { c.Gateway.Kind = "fam15" }, "gateway.kind"},
		{"unknown protocol", func(c *Config) { c.Gateway.Protocol = "esp4" }, "gateway.protocol"},
		{"bad base id", func(c *Config) { c.Gateway.BaseID = "FF-80" }, "gateway.base_id"},
		{"negative retries", func(c *Config) { c.Gateway.Retries = -1 }, "gateway.retries"},
		{"reconnect without interval", func(c *Config) { c.Gateway.ReconnectInterval = 0 }, "gateway.reconnect_interval"},
		{"capture without path", func(c *Config) { c.Capture = CaptureConfig{Enabled: true} }, "capture.path"},
		{"bad device address", func(c *Config) {
			c.Devices = []DeviceConfig{{Address: "xx", EEP: "F6-02-01"}}
		}, "devices[0].address"},
		{"unsupported profile", func(c *Config) {
			c.Devices = []DeviceConfig{{Address: "01-02-03-04", EEP: "A5-02-05"}}
		}, "not a supported profile"},
		{"duplicate address", func(c *Config) {
			c.Devices = []DeviceConfig{
				{ID: "a", Address: "01-02-03-04", EEP: "F6-02-01"},
				{ID: "b", Address: "01:02:03:04", EEP: "F6-02-01"},
			}
		}, "is duplicate"},
		{"duplicate defaulted id", func(c *Config) {
			c.Devices = []DeviceConfig{
				{Address: "01-02-03-04", EEP: "F6-02-01"},
				{ID: "01-02-03-04", Address: "01-02-03-05", EEP: "F6-02-01"},
			}
		}, "id \"01-02-03-04\" is duplicate"},
		{"sender without sender block", func(c *Config) {
			c.Devices = []DeviceConfig{{Address: "00-00-00-05", EEP: "M5-38-08", Direction: "sender"}}
		}, "sender is required"},
		{"bad direction", func(c *Config) {
			c.Devices = []DeviceConfig{{Address: "00-00-00-05", EEP: "M5-38-08", Direction: "both"}}
		}, "direction"},
		{"bad sender profile", func(c *Config) {
			c.Devices = []DeviceConfig{{Address: "00-00-00-05", EEP: "M5-38-08", Direction: "sender",
				Sender: &SenderConfig{Address: "00-00-B0-01", EEP: "nope"}}}
		}, "sender.eep"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestAPITimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Gateway: GatewayConfig{HealthInterval: 15},
	}

	tm := cfg.API.Timeouts
	if got := tm.ReadTimeout(); got != 30*time.Second {
		t.Errorf("ReadTimeout() = %v, want 30s", got)
	}
	if got := tm.WriteTimeout(); got != 45*time.Second {
		t.Errorf("WriteTimeout() = %v, want 45s", got)
	}
	if got := tm.IdleTimeout(); got != time.Minute {
		t.Errorf("IdleTimeout() = %v, want 1m", got)
	}
	if got := cfg.GetHealthInterval(); got != 15*time.Second {
		t.Errorf("GetHealthInterval() = %v, want 15s", got)
	}
}

func TestConfig_GatewayDerivedSettings(t *testing.T) {
	tests := []struct {
		kind     string
		protocol string
		baud     int
		wantGen  enocean.Generation
		wantBaud int
	}{
		{"fam14", "", 0, enocean.ESP2, 57600},
		{"fam-usb", "", 0, enocean.ESP2, 9600},
		{"usb300", "", 0, enocean.ESP3, 57600},
		{"fam-usb", "ESP3", 0, enocean.ESP3, 9600},
		{"fam14", "", 115200, enocean.ESP2, 115200},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.protocol, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Gateway.Kind = tt.kind
			cfg.Gateway.Protocol = tt.protocol
			cfg.Gateway.Baud = tt.baud

			if got := cfg.GetGatewayProtocol(); got != tt.wantGen {
				t.Errorf("GetGatewayProtocol() = %s, want %s", got, tt.wantGen)
			}
			if got := cfg.GetGatewayBaud(); got != tt.wantBaud {
				t.Errorf("GetGatewayBaud() = %d, want %d", got, tt.wantBaud)
			}
		})
	}

	cfg := defaultConfig()
	if !cfg.GetBaseID().IsZero() {
		t.Error("GetBaseID() should be zero when unset")
	}
	cfg.Gateway.BaseID = "FF-80-00-00"
	if cfg.GetBaseID() != enocean.MustParseAddress("FF-80-00-00") {
		t.Errorf("GetBaseID() = %s", cfg.GetBaseID())
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("ELTAKO_DATABASE_PATH", "/custom/path.db")
	t.Setenv("ELTAKO_MQTT_HOST", "mqtt.example.com")
	t.Setenv("ELTAKO_MQTT_PORT", "8883")
	t.Setenv("ELTAKO_MQTT_USERNAME", "testuser")
	t.Setenv("ELTAKO_MQTT_PASSWORD", "testpass")
	t.Setenv("ELTAKO_API_HOST", "192.168.1.1")
	t.Setenv("ELTAKO_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("ELTAKO_GATEWAY_PORT", "/dev/serial/by-id/usb-FTDI")
	t.Setenv("ELTAKO_GATEWAY_KIND", "usb300")
	t.Setenv("ELTAKO_GATEWAY_BASE_ID", "FF-80-00-00")
	t.Setenv("ELTAKO_LOGGING_LEVEL", "debug")
	t.Setenv("ELTAKO_API_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   any
		want  any
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Broker.Port", cfg.MQTT.Broker.Port, 8883},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Gateway.Port", cfg.Gateway.Port, "/dev/serial/by-id/usb-FTDI"},
		{"Gateway.Kind", cfg.Gateway.Kind, "usb300"},
		{"Gateway.BaseID", cfg.Gateway.BaseID, "FF-80-00-00"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
		{"API.Port", cfg.API.Port, 8091},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.field, c.got, c.want)
		}
	}
}

func TestMQTTAuthString(t *testing.T) {
	a := MQTTAuthConfig{Username: "bridge", Password: "hunter2"}
	if s := a.String(); strings.Contains(s, "hunter2") || !strings.Contains(s, "[REDACTED]") {
		t.Errorf("String() = %q leaks the password", s)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate: %v", err)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.GetGatewayKind() != enocean.GatewayFAM14 {
		t.Errorf("defaultConfig gateway kind = %s, want fam14", cfg.GetGatewayKind())
	}
	if cfg.Gateway.Retries != 2 {
		t.Errorf("defaultConfig Gateway.Retries = %d, want 2", cfg.Gateway.Retries)
	}
}

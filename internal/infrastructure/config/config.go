package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-eltako/internal/eep"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

// Config is the bridge configuration file. Secrets and deployment specific
// paths can be overridden with ELTAKO_* environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Devices   []DeviceConfig  `yaml:"devices"`
	Capture   CaptureConfig   `yaml:"capture"`
}

// SiteConfig names the Gray Logic site the bridge belongs to.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig locates the SQLite file holding discovered senders and
// the command log. BusyTimeout is in seconds.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig is the connection to the Gray Logic broker.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig is the broker endpoint.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig holds broker credentials. Prefer ELTAKO_MQTT_PASSWORD to a
// password in the file.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// String returns the credentials with the password masked.
func (a MQTTAuthConfig) String() string {
	password := ""
	if a.Password != "" {
		password = "[REDACTED]"
	}
	return fmt.Sprintf("MQTTAuthConfig{Username:%q, Password:%s}", a.Username, password)
}

// MQTTReconnectConfig bounds paho's reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig controls the local HTTP API and /metrics endpoint.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig holds HTTP server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists browser origins allowed to call the API. Empty allows
// all.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig tunes the /ws event stream. Intervals are in seconds.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig enables telemetry export. FlushInterval is in seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects level, format (json or text) and output stream.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// GatewayConfig describes the serial gateway on the Eltako bus.
type GatewayConfig struct {
	// ID identifies this bridge instance in MQTT topics and health reports.
	ID string `yaml:"id"`

	// Kind is the gateway model: fam14, fgw14-usb, fam-usb, usb300 or esp3-generic.
	Kind string `yaml:"kind"`

	// Port is the serial device path, e.g. /dev/ttyUSB0.
	Port string `yaml:"port"`

	// Baud overrides the kind's default baud rate when non-zero.
	Baud int `yaml:"baud"`

	// Protocol forces esp2 or esp3. Empty derives it from Kind.
	Protocol string `yaml:"protocol"`

	// BaseID is the transceiver's base address. Sender addresses of
	// transceiver gateways are checked against it.
	BaseID string `yaml:"base_id"`

	// AckTimeout is how long a send waits for the gateway's response.
	// Zero uses the kind's default.
	AckTimeout time.Duration `yaml:"ack_timeout"`

	// Retries is the number of re-sends after a missing acknowledgement.
	Retries int `yaml:"retries"`

	// AutoReconnect reopens the serial port after a fault.
	AutoReconnect bool `yaml:"auto_reconnect"`

	// ReconnectInterval is the first reconnect delay. Later attempts back off.
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`

	// HealthInterval is how often to publish health status (seconds).
	HealthInterval int `yaml:"health_interval"`
}

// DeviceConfig defines one device on the bus.
type DeviceConfig struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Address   string        `yaml:"address"`
	EEP       string        `yaml:"eep"`
	Invert    bool          `yaml:"invert"`
	Direction string        `yaml:"direction"`
	Sender    *SenderConfig `yaml:"sender,omitempty"`
}

// SenderConfig is the address and profile commands to a device are sent with.
type SenderConfig struct {
	Address string `yaml:"address"`
	EEP     string `yaml:"eep"`
}

// CaptureConfig controls recording of raw bus traffic.
type CaptureConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads the YAML file at path over the defaults, applies ELTAKO_*
// environment overrides and validates the result.
//
// Returns:
//   - *Config: Validated configuration
//   - error: Wrapped read, YAML or validation error
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig targets a FAM14 on the first USB serial port with a local
// broker.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Database: DatabaseConfig{
			Path:        "./data/eltako.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-eltako",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8091,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Gateway: GatewayConfig{
			ID:                "eltako-bridge-01",
			Kind:              string(enocean.GatewayFAM14),
			Port:              "/dev/ttyUSB0",
			Retries:           2,
			AutoReconnect:     true,
			ReconnectInterval: 5 * time.Second,
			HealthInterval:    30,
		},
		Devices: []DeviceConfig{},
		Capture: CaptureConfig{
			Path: "./data/capture.cbor",
		},
	}
}

// envOverrides maps ELTAKO_* variables onto fields. Integer variables that
// do not parse are ignored.
var envOverrides = map[string]func(*Config, string){
	"ELTAKO_DATABASE_PATH":   func(c *Config, v string) { c.Database.Path = v },
	"ELTAKO_MQTT_HOST":       func(c *Config, v string) { c.MQTT.Broker.Host = v },
	"ELTAKO_MQTT_PORT":       func(c *Config, v string) { setInt(&c.MQTT.Broker.Port, v) },
	"ELTAKO_MQTT_USERNAME":   func(c *Config, v string) { c.MQTT.Auth.Username = v },
	"ELTAKO_MQTT_PASSWORD":   func(c *Config, v string) { c.MQTT.Auth.Password = v },
	"ELTAKO_API_HOST":        func(c *Config, v string) { c.API.Host = v },
	"ELTAKO_API_PORT":        func(c *Config, v string) { setInt(&c.API.Port, v) },
	"ELTAKO_INFLUXDB_URL":    func(c *Config, v string) { c.InfluxDB.URL = v },
	"ELTAKO_INFLUXDB_TOKEN":  func(c *Config, v string) { c.InfluxDB.Token = v },
	"ELTAKO_GATEWAY_PORT":    func(c *Config, v string) { c.Gateway.Port = v },
	"ELTAKO_GATEWAY_KIND":    func(c *Config, v string) { c.Gateway.Kind = v },
	"ELTAKO_GATEWAY_BASE_ID": func(c *Config, v string) { c.Gateway.BaseID = v },
	"ELTAKO_LOGGING_LEVEL":   func(c *Config, v string) { c.Logging.Level = v },
	"ELTAKO_LOGGING_FORMAT":  func(c *Config, v string) { c.Logging.Format = v },
}

func applyEnvOverrides(cfg *Config) {
	for name, apply := range envOverrides {
		if v := os.Getenv(name); v != "" {
			apply(cfg, v)
		}
	}
}

func setInt(dst *int, v string) {
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// Validate checks the configuration for errors.
// Every problem found is reported, not just the first.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}
	if c.Capture.Enabled && c.Capture.Path == "" {
		errs = append(errs, "capture.path is required when capture is enabled")
	}

	errs = append(errs, c.validateLogging()...)
	errs = append(errs, c.validateGateway()...)
	errs = append(errs, c.validateDevices()...)

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validateLogging validates logging settings.
func (c *Config) validateLogging() []string {
	var errs []string

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging.level %q is invalid (use debug, info, warn, or error)", c.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("logging.format %q is invalid (use json or text)", c.Logging.Format))
	}

	return errs
}

// validateGateway validates the serial gateway settings.
func (c *Config) validateGateway() []string {
	var errs []string
	g := c.Gateway

	if g.ID == "" {
		errs = append(errs, "gateway.id is required")
	}
	if g.Port == "" {
		errs = append(errs, "gateway.port is required")
	}
	if _, err := enocean.ParseGatewayKind(g.Kind); err != nil {
		errs = append(errs, fmt.Sprintf("gateway.kind %q is invalid: %v", g.Kind, err))
	}
	if g.Protocol != "" && !enocean.Generation(strings.ToLower(g.Protocol)).Valid() {
		errs = append(errs, fmt.Sprintf("gateway.protocol %q is invalid (use esp2 or esp3)", g.Protocol))
	}
	if g.Baud < 0 {
		errs = append(errs, "gateway.baud must not be negative")
	}
	if g.BaseID != "" {
		if _, err := enocean.ParseAddress(g.BaseID); err != nil {
			errs = append(errs, fmt.Sprintf("gateway.base_id %q is invalid: %v", g.BaseID, err))
		}
	}
	if g.AckTimeout < 0 {
		errs = append(errs, "gateway.ack_timeout must not be negative")
	}
	if g.Retries < 0 {
		errs = append(errs, "gateway.retries must not be negative")
	}
	if g.AutoReconnect && g.ReconnectInterval <= 0 {
		errs = append(errs, "gateway.reconnect_interval must be positive when auto_reconnect is set")
	}
	if g.HealthInterval < 1 {
		errs = append(errs, "gateway.health_interval must be at least 1 second")
	}

	return errs
}

// validateDevices validates device definitions. Directory registration
// repeats the semantic checks; these catch what can be reported with the
// YAML path of the offending entry.
func (c *Config) validateDevices() []string {
	var errs []string
	ids := make(map[string]bool)
	addresses := make(map[string]bool)

	for i, dev := range c.Devices {
		addr, err := enocean.ParseAddress(dev.Address)
		if err != nil {
			errs = append(errs, fmt.Sprintf("devices[%d].address %q is invalid", i, dev.Address))
		} else {
			key := addr.String()
			if addresses[key] {
				errs = append(errs, fmt.Sprintf("devices[%d].address %s is duplicate", i, key))
			}
			addresses[key] = true
		}

		id := dev.ID
		if id == "" && err == nil {
			id = addr.String()
		}
		if id != "" {
			if ids[id] {
				errs = append(errs, fmt.Sprintf("devices[%d].id %q is duplicate", i, id))
			}
			ids[id] = true
		}

		errs = append(errs, validateProfile(fmt.Sprintf("devices[%d].eep", i), dev.EEP)...)

		switch strings.ToLower(dev.Direction) {
		case "", "listener":
		case "sender":
			if dev.Sender == nil {
				errs = append(errs, fmt.Sprintf("devices[%d].sender is required for a sender", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("devices[%d].direction %q is invalid (use listener or sender)", i, dev.Direction))
		}

		if dev.Sender != nil {
			if _, err := enocean.ParseAddress(dev.Sender.Address); err != nil {
				errs = append(errs, fmt.Sprintf("devices[%d].sender.address %q is invalid", i, dev.Sender.Address))
			}
			errs = append(errs, validateProfile(fmt.Sprintf("devices[%d].sender.eep", i), dev.Sender.EEP)...)
		}
	}

	return errs
}

func validateProfile(path, s string) []string {
	id, err := eep.ParseID(s)
	if err != nil {
		return []string{fmt.Sprintf("%s %q is invalid", path, s)}
	}
	if _, ok := eep.Lookup(id); !ok {
		return []string{fmt.Sprintf("%s %s is not a supported profile", path, id)}
	}
	return nil
}

// ReadTimeout is also used as the header read timeout.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}

// GetHealthInterval returns the health reporting interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Gateway.HealthInterval) * time.Second
}

// GetGatewayKind returns the parsed gateway kind. Validate has already
// rejected unknown kinds, so a parse failure falls back to fam14.
func (c *Config) GetGatewayKind() enocean.GatewayKind {
	kind, err := enocean.ParseGatewayKind(c.Gateway.Kind)
	if err != nil {
		return enocean.GatewayFAM14
	}
	return kind
}

// GetGatewayProtocol returns the configured protocol, or the kind's when unset.
func (c *Config) GetGatewayProtocol() enocean.Generation {
	if c.Gateway.Protocol != "" {
		return enocean.Generation(strings.ToLower(c.Gateway.Protocol))
	}
	return c.GetGatewayKind().Generation()
}

// GetGatewayBaud returns the configured baud rate, or the kind's default.
func (c *Config) GetGatewayBaud() int {
	if c.Gateway.Baud > 0 {
		return c.Gateway.Baud
	}
	return c.GetGatewayKind().DefaultBaud()
}

// GetBaseID returns the gateway base address, or the zero address when unset.
func (c *Config) GetBaseID() enocean.Address {
	addr, err := enocean.ParseAddress(c.Gateway.BaseID)
	if err != nil {
		return enocean.Address{}
	}
	return addr
}

package eltako

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-eltako/internal/bus"
	"github.com/nerrad567/gray-logic-eltako/internal/directory"
	"github.com/nerrad567/gray-logic-eltako/internal/eep"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/config"
)

// Bridge timing defaults.
const (
	// DefaultHealthInterval is how often health is published.
	DefaultHealthInterval = 30 * time.Second

	// DefaultReconnectInterval is the first delay before reopening a failed port.
	DefaultReconnectInterval = 5 * time.Second

	// MaxReconnectInterval caps the reconnect backoff.
	MaxReconnectInterval = 2 * time.Minute

	// reconnectBackoffFactor multiplies the delay after each failed attempt.
	reconnectBackoffFactor = 1.5

	// DefaultClimateResendInterval is how often heating set points are repeated.
	DefaultClimateResendInterval = 50 * time.Second

	// DefaultCommandTimeout bounds a single command including retries.
	DefaultCommandTimeout = 5 * time.Second
)

// Config holds the bridge's operational settings.
type Config struct {
	// BridgeID identifies this bridge in health reports.
	BridgeID string

	// Version is reported in health messages.
	Version string

	Kind enocean.GatewayKind
	Port string
	Baud int

	// BaseID is the transceiver base address; zero for bus gateways.
	BaseID enocean.Address

	HealthInterval time.Duration

	// AutoReconnect reopens the port after a fault.
	AutoReconnect     bool
	ReconnectInterval time.Duration

	ClimateResendInterval time.Duration
	CommandTimeout        time.Duration

	// Retries is reported in timeout acknowledgements.
	Retries int
}

// FromConfig derives the bridge settings from the application configuration.
//
// Parameters:
//   - cfg: Loaded and validated application configuration
//   - version: Build version for health reports
//
// Returns:
//   - Config: Bridge settings with defaults applied
func FromConfig(cfg *config.Config, version string) Config {
	return Config{
		BridgeID:          cfg.Gateway.ID,
		Version:           version,
		Kind:              cfg.GetGatewayKind(),
		Port:              cfg.Gateway.Port,
		Baud:              cfg.GetGatewayBaud(),
		BaseID:            cfg.GetBaseID(),
		HealthInterval:    cfg.GetHealthInterval(),
		AutoReconnect:     cfg.Gateway.AutoReconnect,
		ReconnectInterval: cfg.Gateway.ReconnectInterval,
		Retries:           cfg.Gateway.Retries,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.BridgeID == "" {
		c.BridgeID = "eltako-bridge"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.ClimateResendInterval <= 0 {
		c.ClimateResendInterval = DefaultClimateResendInterval
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	return c
}

// SessionConfig derives the bus session settings from the application
// configuration. Unset values fall back to the gateway kind's defaults.
func SessionConfig(cfg *config.Config) bus.Config {
	sc := bus.DefaultConfig(cfg.GetGatewayKind())
	sc.Generation = cfg.GetGatewayProtocol()
	if cfg.Gateway.AckTimeout > 0 {
		sc.AckTimeout = cfg.Gateway.AckTimeout
	}
	if cfg.Gateway.Retries > 0 {
		sc.Retries = cfg.Gateway.Retries
	}
	return sc
}

// EntryFromConfig converts a configured device into a directory entry.
// A device with a sender is a sender device unless a direction is given.
func EntryFromConfig(dc config.DeviceConfig) (directory.Entry, error) {
	addr, err := enocean.ParseAddress(dc.Address)
	if err != nil {
		return directory.Entry{}, fmt.Errorf("device %q: %w", dc.ID, err)
	}
	id, err := eep.ParseID(dc.EEP)
	if err != nil {
		return directory.Entry{}, fmt.Errorf("device %q: %w", dc.ID, err)
	}

	e := directory.Entry{
		ID:        strings.TrimSpace(dc.ID),
		Address:   addr,
		EEP:       id,
		Name:      dc.Name,
		Invert:    dc.Invert,
		Direction: directory.Direction(strings.ToLower(dc.Direction)),
	}

	if dc.Sender != nil {
		sender, err := enocean.ParseAddress(dc.Sender.Address)
		if err != nil {
			return directory.Entry{}, fmt.Errorf("device %q sender: %w", dc.ID, err)
		}
		senderEEP, err := eep.ParseID(dc.Sender.EEP)
		if err != nil {
			return directory.Entry{}, fmt.Errorf("device %q sender: %w", dc.ID, err)
		}
		e.Sender = &sender
		e.SenderEEP = &senderEEP
		if e.Direction == "" {
			e.Direction = directory.Sender
		}
	}
	return e, nil
}

// BuildDirectory registers the configured devices.
//
// Addresses that do not fit the gateway kind or base ID are logged as
// warnings and kept: telegrams from them are still decoded.
//
// Parameters:
//   - devices: Configured devices
//   - kind: Gateway kind, for device address checks
//   - baseID: Transceiver base ID, for sender address checks
//   - logger: Receives address warnings; may be nil
//
// Returns:
//   - *directory.Directory: Directory with every valid device
//   - error: All conversion and registration failures, joined
func BuildDirectory(devices []config.DeviceConfig, kind enocean.GatewayKind, baseID enocean.Address, logger Logger) (*directory.Directory, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	dir := directory.New()
	dir.SetLogger(logger)

	var errs []error
	for _, dc := range devices {
		e, err := EntryFromConfig(dc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := dir.Register(e); err != nil {
			errs = append(errs, err)
			continue
		}
		for _, w := range addressWarnings(e, kind, baseID) {
			logger.Warn("device address does not fit gateway",
				"device", e.Key(), "error", w)
		}
	}
	return dir, errors.Join(errs...)
}

// addressWarnings runs the advisory address checks for one entry.
func addressWarnings(e directory.Entry, kind enocean.GatewayKind, baseID enocean.Address) []error {
	var out []error
	if err := directory.ValidateDeviceAddress(kind, e.Address); err != nil {
		out = append(out, err)
	}
	if e.Sender != nil && !kind.IsBusGateway() {
		if err := directory.ValidateSenderAddress(baseID, *e.Sender); err != nil {
			out = append(out, err)
		}
	}
	return out
}

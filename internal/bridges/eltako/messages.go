package eltako

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-eltako/internal/bus"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/esp2"
)

// Protocol is the protocol identifier carried in every bridge message.
const Protocol = "eltako"

// MQTT message types exchanged between the Gray Logic Core and the bridge.

// CommandMessage is sent from Core to the bridge to execute a device command.
// Topic: graylogic/command/eltako/{device_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the device identifier from the bridge configuration.
	DeviceID string `json:"device_id"`

	// Command is the command name (e.g., "on", "off", "dim", "set_position").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"level": 50} for dim
	//   {"position": 75} for covers
	//   {"temperature": 21.5} for heating
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	// Values: "api", "automation", "voice", "scene"
	Source string `json:"source"`

	// UserID is the user who triggered the command (if applicable).
	UserID string `json:"user_id,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was sent and the gateway accepted it.
	AckAccepted AckStatus = "accepted"

	// AckQueued indicates the command was received but is waiting to send.
	AckQueued AckStatus = "queued"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the gateway did not confirm the send in time.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from the bridge to Core to acknowledge a command.
// Topic: graylogic/ack/eltako/{device_id}
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	DeviceID string    `json:"device_id"`
	Status   AckStatus `json:"status"`

	// Protocol is always "eltako".
	Protocol string `json:"protocol"`

	// Address is the device's bus address (e.g., "00-00-00-12").
	Address string `json:"address"`

	// Error contains details if status is "failed" or "timeout".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "DEVICE_UNREACHABLE", "INVALID_COMMAND").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Retries is the number of retry attempts made.
	Retries int `json:"retries,omitempty"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeProtocolError     = "PROTOCOL_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is sent from the bridge to Core when a device reports.
// Topic: graylogic/state/eltako/{address}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID string `json:"device_id"`

	// Timestamp is when the telegram was received (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State contains the decoded telegram.
	// Structure depends on the profile:
	//   Relay (M5-38-08):  {"on": true}
	//   Sensor (A5-02-xx): {"value": 21.5, "unit": "°C"}
	//   Heating (A5-10-06): {"mode": "normal", "target_temperature": 21, ...}
	State map[string]any `json:"state"`

	// EEP is the profile the telegram was decoded with.
	EEP string `json:"eep"`

	Protocol string `json:"protocol"`
	Address  string `json:"address"`
}

// UnresolvedMessage reports a radio telegram no configured device could
// decode.
// Topic: graylogic/event/eltako/unresolved
type UnresolvedMessage struct {
	// ID identifies the event.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// Address is the sender address of the telegram.
	Address string `json:"address"`

	// Org is the ESP2 organisation, e.g. "4BS".
	Org string `json:"org"`

	// Payload is the data bytes in hex.
	Payload string `json:"payload"`

	Status byte `json:"status"`

	// DeviceID and EEP are set when the sender is configured but its
	// profile rejected the telegram.
	DeviceID string `json:"device_id,omitempty"`
	EEP      string `json:"eep,omitempty"`

	// Error describes why decoding failed.
	Error string `json:"error,omitempty"`

	Protocol string `json:"protocol"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthUnhealthy indicates the bridge is not operating correctly.
	HealthUnhealthy HealthStatus = "unhealthy"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is sent from the bridge to Core to report operational status.
// Topic: graylogic/health/eltako
// QoS: 1, Retained: Yes
// Interval: Every 30 seconds
type HealthMessage struct {
	// Bridge is the bridge identifier (e.g., "eltako-bridge-01").
	Bridge string `json:"bridge"`

	Timestamp time.Time    `json:"timestamp"`
	Status    HealthStatus `json:"status"`
	Version   string       `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Connection contains serial gateway details.
	Connection *ConnectionStatus `json:"connection,omitempty"`

	// Statistics contains bus session counters.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// DevicesManaged is the number of configured devices.
	DevicesManaged int `json:"devices_managed"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// ConnectionStatus describes the gateway connection.
type ConnectionStatus struct {
	// Status is the bus session state ("open", "faulted", "closed", ...).
	Status string `json:"status"`

	// Port is the serial device.
	Port string `json:"port"`

	// Gateway is the gateway kind, e.g. "fam14".
	Gateway string `json:"gateway"`

	// LastActivity is when the last byte was read from the port.
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// BridgeStatistics contains operational metrics.
type BridgeStatistics struct {
	// MessagesReceived is the number of frames read from the gateway.
	MessagesReceived uint64 `json:"messages_received"`

	// MessagesSent is the number of frames written, retries included.
	MessagesSent uint64 `json:"messages_sent"`

	// Errors counts framing errors and unacknowledged sends.
	Errors uint64 `json:"errors"`

	Unresolved uint64 `json:"unresolved"`
	Dropped    uint64 `json:"dropped"`
}

// RequestMessage is sent from Core to the bridge for request/response operations.
// Topic: graylogic/request/eltako/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Action is the requested operation.
	// Values: "read_state", "read_all"
	Action string `json:"action"`

	// DeviceID is the target device (for device-specific actions).
	DeviceID string `json:"device_id,omitempty"`

	Parameters map[string]any `json:"parameters,omitempty"`
}

// ResponseMessage is sent from the bridge to Core in response to a request.
// Topic: graylogic/response/eltako/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *AckError      `json:"error,omitempty"`
}

// UnmarshalJSON unmarshals a CommandMessage, accepting an empty timestamp.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus, address string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  Protocol,
		Address:   address,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, address, code, message string, retries int) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	ack := NewAckMessage(cmd, status, address)
	ack.Error = &AckError{
		Code:    code,
		Message: message,
		Retries: retries,
	}
	return ack
}

// NewStateMessage creates a state message for a device.
func NewStateMessage(deviceID, address, eepID string, state map[string]any, at time.Time) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: at.UTC(),
		State:     state,
		EEP:       eepID,
		Protocol:  Protocol,
		Address:   address,
	}
}

// NewUnresolvedMessage describes an unresolved telegram event.
func NewUnresolvedMessage(ev bus.EventUnresolved) UnresolvedMessage {
	msg := UnresolvedMessage{
		ID:        uuid.NewString(),
		Timestamp: ev.Time.UTC(),
		Address:   ev.Telegram.Sender.String(),
		Org:       ev.Telegram.Org.String(),
		Payload:   hex.EncodeToString(ev.Telegram.Payload()),
		Status:    ev.Telegram.Status,
		Protocol:  Protocol,
	}
	if ev.Entry != nil {
		msg.DeviceID = ev.Entry.Key()
		msg.EEP = ev.Entry.EEP.String()
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	return msg
}

// NewHealthMessage creates a health status message from session counters.
func NewHealthMessage(bridgeID, version string, status HealthStatus, stats bus.Stats, deviceCount int, startTime time.Time) HealthMessage {
	msg := HealthMessage{
		Bridge:         bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		DevicesManaged: deviceCount,
	}

	msg.Connection = &ConnectionStatus{Status: stats.State.String()}
	if !stats.LastActivity.IsZero() {
		last := stats.LastActivity.UTC()
		msg.Connection.LastActivity = &last
	}

	msg.Statistics = &BridgeStatistics{
		MessagesReceived: stats.Rx,
		MessagesSent:     stats.Tx,
		Errors:           stats.FrameErrors + stats.NoAcks,
		Unresolved:       stats.Unresolved,
		Dropped:          stats.Dropped,
	}

	return msg
}

// NewLWTMessage creates a Last Will and Testament message for MQTT.
// This message is published by the broker if the bridge disconnects unexpectedly.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// telegramSummary is a compact log attribute for a telegram.
func telegramSummary(t esp2.Telegram) string {
	return fmt.Sprintf("%s %s %s", t.Sender, t.Org, hex.EncodeToString(t.Payload()))
}

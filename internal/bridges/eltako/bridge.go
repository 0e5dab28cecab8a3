package eltako

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-eltako/internal/bus"
	"github.com/nerrad567/gray-logic-eltako/internal/directory"
	"github.com/nerrad567/gray-logic-eltako/internal/eep"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/esp2"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/mqtt"
)

// Event kind published on graylogic/event/eltako/{kind}.
const eventUnresolved = "unresolved"

// Logger is the structured logger used by the bridge.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MQTTClient is the interface for MQTT operations.
// *mqtt.Client implements it; tests use a mock.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// Session is the bus session the bridge drives. *bus.Session implements it.
type Session interface {
	Open(ctx context.Context, port bus.Port) error
	Close() error
	State() bus.State
	Send(ctx context.Context, cmd bus.Command) error
	Subscribe(fn func(bus.Event)) (cancel func())
	Stats() bus.Stats
}

// TelemetryWriter records decoded values in a time-series store.
// *influxdb.Client implements it.
type TelemetryWriter interface {
	WriteTelemetry(t influxdb.Telemetry) int
}

// Recorder records senders no configured device claims.
// *DiscoveryRecorder implements it.
type Recorder interface {
	RecordTelegram(t esp2.Telegram, at time.Time)
}

// CommandAuditor records executed commands and their outcome.
type CommandAuditor interface {
	RecordCommand(ctx context.Context, cmd CommandMessage, ack AckMessage) error
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the bridge configuration (see FromConfig).
	Config Config

	// Session is the bus session; the bridge opens and closes it.
	Session Session

	// Directory is the device directory the session resolves against.
	Directory *directory.Directory

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Dial opens the gateway port. Called for the first connection and
	// every reconnect.
	Dial Dialer

	// Logger is optional structured logger.
	Logger Logger

	// Recorder is optional; without it unknown senders are only published.
	Recorder Recorder

	// Telemetry is optional; without it decoded values are not stored.
	Telemetry TelemetryWriter

	// Auditor is optional; without it commands are only logged.
	Auditor CommandAuditor
}

// Bridge translates between the Eltako bus and MQTT.
// It handles:
//   - Publishing decoded telegrams as retained device state
//   - Publishing and recording telegrams that no device decodes
//   - Executing commands from Core and acknowledging them
//   - Reconnecting the serial port, heating resends and health reporting
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg       Config
	session   Session
	dir       *directory.Directory
	mqtt      MQTTClient
	dial      Dialer
	health    *HealthReporter
	recorder  Recorder
	telemetry TelemetryWriter
	auditor   CommandAuditor
	topics    mqtt.Topics

	// Last published state per device, for change detection.
	stateCache   map[string]map[string]any
	stateCacheMu sync.RWMutex

	// What commands need to know about each device.
	devices   map[string]*deviceState
	devicesMu sync.Mutex

	cancelEvents func()
	reconnectReq chan struct{}
	reconnecting atomic.Bool

	reconnects      atomic.Uint64
	commands        atomic.Uint64
	commandFailures atomic.Uint64
	resends         atomic.Uint64

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("bus session is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("device directory is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Dial == nil {
		return nil, fmt.Errorf("port dialer is required")
	}

	cfg := opts.Config.withDefaults()
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:          cfg,
		session:      opts.Session,
		dir:          opts.Directory,
		mqtt:         opts.MQTTClient,
		dial:         opts.Dial,
		recorder:     opts.Recorder,
		telemetry:    opts.Telemetry,
		auditor:      opts.Auditor,
		topics:       mqtt.Topics{Protocol: Protocol},
		stateCache:   make(map[string]map[string]any),
		devices:      make(map[string]*deviceState),
		reconnectReq: make(chan struct{}, 1),
		done:         make(chan struct{}),
		ctx:          ctx,
		ctxCancel:    ctxCancel,
		logger:       noopLogger{},
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  cfg.BridgeID,
		Version:   cfg.Version,
		Port:      cfg.Port,
		Gateway:   string(cfg.Kind),
		Interval:  cfg.HealthInterval,
		Publisher: opts.MQTTClient,
		Session:   opts.Session,
	})
	b.health.SetDeviceCount(opts.Directory.Len())

	if opts.Logger != nil {
		b.SetLogger(opts.Logger)
	}
	return b, nil
}

// Start begins bridge operation: it subscribes to the bus session and the
// command topics, opens the gateway port and starts health reporting.
//
// When the first connection fails and AutoReconnect is set, Start logs the
// failure and keeps retrying in the background.
//
// Parameters:
//   - ctx: Context for the startup; reporting stops when it is cancelled
//
// Returns:
//   - error: Subscription failure, or the connect error without AutoReconnect
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.log().Error("failed to publish starting status", "error", err)
	}

	b.cancelEvents = b.session.Subscribe(b.handleEvent)

	commandTopic := b.topics.AllCommands()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleCommandMessage); err != nil {
		b.cancelEvents()
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.log().Info("subscribed to commands", "topic", commandTopic)

	requestTopic := b.topics.AllRequests()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleRequestMessage); err != nil {
		b.cancelEvents()
		return fmt.Errorf("subscribe to requests: %w", err)
	}

	if err := b.connect(ctx); err != nil {
		if !b.cfg.AutoReconnect {
			b.cancelEvents()
			return fmt.Errorf("connect gateway: %w", err)
		}
		b.log().Warn("gateway connection failed, retrying in background",
			"port", b.cfg.Port, "error", err)
		b.requestReconnect()
	}

	b.wg.Add(2) //nolint:mnd // supervisor and climate loops
	go b.superviseLoop()
	go b.climateLoop()

	b.health.Start(ctx)

	b.log().Info("bridge started",
		"bridge_id", b.cfg.BridgeID,
		"gateway", string(b.cfg.Kind),
		"port", b.cfg.Port,
		"devices", b.dir.Len())
	return nil
}

// Stop gracefully shuts down the bridge and closes the bus session.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		// Cancel bridge context to abort in-flight commands
		b.ctxCancel()

		if b.cancelEvents != nil {
			b.cancelEvents()
		}

		b.wg.Wait()

		if err := b.session.Close(); err != nil {
			b.log().Warn("closing bus session", "error", err)
		}

		// Stop health reporting (publishes "stopping" status)
		b.health.Stop()

		b.log().Info("bridge stopped")
	})
}

// handleEvent routes a bus session event.
func (b *Bridge) handleEvent(ev bus.Event) {
	switch e := ev.(type) {
	case bus.EventDecoded:
		b.handleDecoded(e)
	case bus.EventUnresolved:
		b.handleUnresolved(e)
	case bus.EventSkipped:
		b.log().Debug("skipped frame", "bytes", len(e.Raw), "reason", errString(e.Err))
	case bus.EventSessionState:
		b.handleSessionState(e)
	}
}

// handleDecoded publishes the state of a configured device.
func (b *Bridge) handleDecoded(e bus.EventDecoded) {
	id := e.Entry.Key()
	addr := e.Entry.Address.String()

	b.observe(e.Entry, e.Value)

	if b.telemetry != nil {
		b.telemetry.WriteTelemetry(influxdb.Telemetry{
			DeviceID: id,
			Address:  e.Entry.Address,
			EEP:      e.Entry.EEP,
			Value:    e.Value,
			Time:     e.Time,
		})
	}

	state := StateMap(e.Value)
	if b.stateUnchanged(id, state) {
		return
	}

	msg := NewStateMessage(id, addr, e.Entry.EEP.String(), state, e.Time)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.log().Error("failed to marshal state", "device", id, "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.State(addr), payload, 1, true); err != nil {
		b.log().Error("failed to publish state", "device", id, "error", err)
		return
	}
	b.log().Debug("state published", "device", id, "address", addr)
}

// handleUnresolved publishes an unresolved telegram and records unknown
// senders for discovery.
func (b *Bridge) handleUnresolved(e bus.EventUnresolved) {
	if e.Entry == nil && b.recorder != nil {
		b.recorder.RecordTelegram(e.Telegram, e.Time)
	}

	b.log().Debug("unresolved telegram",
		"telegram", telegramSummary(e.Telegram),
		"reason", errString(e.Err))

	payload, err := json.Marshal(NewUnresolvedMessage(e))
	if err != nil {
		b.log().Error("failed to marshal unresolved event", "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Event(eventUnresolved), payload, 0, false); err != nil {
		b.log().Error("failed to publish unresolved event", "error", err)
	}
}

func (b *Bridge) handleSessionState(e bus.EventSessionState) {
	switch e.State {
	case bus.StateFaulted:
		b.log().Error("gateway connection faulted", "port", b.cfg.Port, "error", errString(e.Err))
		b.requestReconnect()
	case bus.StateOpen:
		b.log().Info("gateway connected", "port", b.cfg.Port)
	default:
		return
	}
	if err := b.health.PublishNow(); err != nil {
		b.log().Error("failed to publish health", "error", err)
	}
}

// StateMap converts a decoded value into the state object published on MQTT.
//
// Example outputs:
//
//	Binary{On: true}              → {"on": true}
//	Scaled{Value: 21.5, Unit: "°C"} → {"value": 21.5, "unit": "°C"}
//	Enumerated{State: "open"}     → {"state": "open"}
//	Composite                     → one key per field
func StateMap(v eep.Value) map[string]any {
	switch x := v.(type) {
	case eep.Binary:
		return map[string]any{eep.FieldOn: x.On}
	case eep.Scaled:
		m := map[string]any{"value": x.Value, "unit": x.Unit}
		if x.OutOfRange {
			m["out_of_range"] = true
		}
		return m
	case eep.Enumerated:
		return map[string]any{eep.FieldState: x.State}
	case eep.Composite:
		if m, ok := eep.Native(x).(map[string]any); ok {
			return m
		}
	}
	return map[string]any{}
}

// stateUnchanged checks if the new state matches the cached state.
// Returns true if unchanged (should skip publish).
func (b *Bridge) stateUnchanged(deviceID string, state map[string]any) bool {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()

	if cached, ok := b.stateCache[deviceID]; ok && maps.Equal(cached, state) {
		return true
	}
	b.stateCache[deviceID] = state
	return false
}

// DeviceState returns a copy of the last published state of a device.
func (b *Bridge) DeviceState(deviceID string) (map[string]any, bool) {
	b.stateCacheMu.RLock()
	defer b.stateCacheMu.RUnlock()

	state, ok := b.stateCache[deviceID]
	if !ok {
		return nil, false
	}
	return maps.Clone(state), true
}

// ClearStateCache forgets every published state, so the next telegram of
// each device is published even if unchanged.
func (b *Bridge) ClearStateCache() {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()
	b.stateCache = make(map[string]map[string]any)
}

// observe records what commands need from a decoded value.
func (b *Bridge) observe(entry directory.Entry, v eep.Value) {
	b.devicesMu.Lock()
	defer b.devicesMu.Unlock()
	b.deviceLocked(entry.Key()).observe(entry.EEP, v)
}

// deviceLocked returns the state record of a device. Caller holds devicesMu.
func (b *Bridge) deviceLocked(id string) *deviceState {
	st, ok := b.devices[id]
	if !ok {
		st = &deviceState{}
		b.devices[id] = st
	}
	return st
}

// snapshot returns a copy of a device's state record.
func (b *Bridge) snapshot(id string) *deviceState {
	b.devicesMu.Lock()
	defer b.devicesMu.Unlock()
	st, ok := b.devices[id]
	if !ok {
		return nil
	}
	cp := *st
	return &cp
}

// handleCommandMessage processes a command from Core.
func (b *Bridge) handleCommandMessage(topic string, payload []byte) error {
	deviceID := mqtt.Leaf(topic)

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.publishAck(deviceID, NewAckError(CommandMessage{DeviceID: deviceID}, "",
			ErrCodeInvalidCommand, "malformed command message", 0))
		return fmt.Errorf("parse command for %s: %w", deviceID, err)
	}
	if cmd.DeviceID != "" && cmd.DeviceID != deviceID {
		b.log().Warn("command device id differs from topic, using topic",
			"topic_device", deviceID, "payload_device", cmd.DeviceID)
	}
	cmd.DeviceID = deviceID

	b.log().Info("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	b.publishAck(deviceID, b.Execute(b.ctx, cmd))
	return nil
}

// Execute translates a command with the device's sender profile and sends
// it on the bus.
//
// Parameters:
//   - ctx: Context for cancellation; bounded by the command timeout
//   - cmd: Command; DeviceID may be a device id or a bus address
//
// Returns:
//   - AckMessage: accepted, or failed/timeout with an error code
func (b *Bridge) Execute(ctx context.Context, cmd CommandMessage) AckMessage {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now().UTC()
	}
	b.commands.Add(1)

	ack := b.execute(ctx, cmd)
	if b.auditor != nil {
		if err := b.auditor.RecordCommand(ctx, cmd, ack); err != nil {
			b.log().Warn("recording command failed", "command_id", cmd.ID, "error", err)
		}
	}
	return ack
}

func (b *Bridge) execute(ctx context.Context, cmd CommandMessage) AckMessage {

	entry, ok := b.lookup(cmd.DeviceID)
	if !ok {
		return b.fail(NewAckError(cmd, "", ErrCodeNotConfigured,
			fmt.Sprintf("device %s not configured", cmd.DeviceID), 0))
	}
	cmd.DeviceID = entry.Key()
	addr := entry.Address.String()

	values, err := translate(entry, cmd, b.snapshot(entry.Key()))
	if err != nil {
		return b.fail(NewAckError(cmd, addr, translateErrorCode(err), err.Error(), 0))
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.CommandTimeout)
	defer cancel()

	for _, v := range values {
		if err := b.session.Send(ctx, bus.Command{Address: entry.Address, Value: v}); err != nil {
			code, retries := b.sendErrorCode(err)
			return b.fail(NewAckError(cmd, addr, code, err.Error(), retries))
		}
	}

	if len(values) > 0 {
		b.devicesMu.Lock()
		b.deviceLocked(entry.Key()).commanded(*entry.SenderEEP, values[len(values)-1])
		b.devicesMu.Unlock()
	}
	return NewAckMessage(cmd, AckAccepted, addr)
}

// lookup finds a device by id, then by address.
func (b *Bridge) lookup(idOrAddress string) (directory.Entry, bool) {
	if e, ok := b.dir.LookupID(idOrAddress); ok {
		return e, true
	}
	addr, err := enocean.ParseAddress(idOrAddress)
	if err != nil {
		return directory.Entry{}, false
	}
	return b.dir.Lookup(addr)
}

func (b *Bridge) fail(ack AckMessage) AckMessage {
	b.commandFailures.Add(1)
	b.log().Warn("command failed",
		"command_id", ack.CommandID,
		"device_id", ack.DeviceID,
		"code", ack.Error.Code,
		"message", ack.Error.Message)
	return ack
}

func translateErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotSender):
		return ErrCodeNotConfigured
	case errors.Is(err, ErrInvalidParameters):
		return ErrCodeInvalidParameters
	case errors.Is(err, ErrInvalidCommand):
		return ErrCodeInvalidCommand
	default:
		return ErrCodeBridgeError
	}
}

func (b *Bridge) sendErrorCode(err error) (code string, retries int) {
	switch {
	case errors.Is(err, bus.ErrNoAck):
		return ErrCodeTimeout, b.cfg.Retries
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout, 0
	case errors.Is(err, bus.ErrNotOpen),
		errors.Is(err, bus.ErrSessionClosed),
		errors.Is(err, bus.ErrSessionFaulted):
		return ErrCodeDeviceUnreachable, 0
	case errors.Is(err, eep.ErrInvalidValue), errors.Is(err, eep.ErrValueType):
		return ErrCodeInvalidParameters, 0
	default:
		return ErrCodeProtocolError, 0
	}
}

// publishAck publishes a command acknowledgment.
func (b *Bridge) publishAck(deviceID string, ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.log().Error("failed to marshal ack", "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Ack(deviceID), payload, 1, false); err != nil {
		b.log().Error("failed to publish ack", "device_id", deviceID, "error", err)
	}
}

// handleRequestMessage processes a request message from Core.
func (b *Bridge) handleRequestMessage(topic string, payload []byte) error {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}
	if req.RequestID == "" {
		req.RequestID = mqtt.Leaf(topic)
	}

	b.log().Info("received request", "request_id", req.RequestID, "action", req.Action)

	resp := ResponseMessage{RequestID: req.RequestID, Timestamp: time.Now().UTC()}
	switch req.Action {
	case "read_state":
		state, ok := b.DeviceState(req.DeviceID)
		if !ok {
			resp.Error = &AckError{Code: ErrCodeNotConfigured,
				Message: fmt.Sprintf("no state for device %q", req.DeviceID)}
			break
		}
		resp.Success = true
		resp.Data = map[string]any{"device_id": req.DeviceID, "state": state}
	case "read_all":
		resp.Success = true
		resp.Data = map[string]any{"states": b.allStates()}
	default:
		resp.Error = &AckError{Code: ErrCodeInvalidCommand,
			Message: fmt.Sprintf("unknown action: %s", req.Action)}
	}

	respPayload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	return b.mqtt.Publish(b.topics.Response(req.RequestID), respPayload, 1, false)
}

func (b *Bridge) allStates() map[string]map[string]any {
	b.stateCacheMu.RLock()
	defer b.stateCacheMu.RUnlock()

	out := make(map[string]map[string]any, len(b.stateCache))
	for id, s := range b.stateCache {
		out[id] = maps.Clone(s)
	}
	return out
}

// Health returns the current health message without publishing it.
func (b *Bridge) Health() HealthMessage {
	return b.health.Snapshot()
}

// SetLogger sets the logger for the bridge and its health reporter.
func (b *Bridge) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.health.SetLogger(logger)
}

func (b *Bridge) log() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// BridgeMetrics contains metrics data for the API.
type BridgeMetrics struct {
	Connected       bool   `json:"connected"`
	Status          string `json:"status"`
	TelegramsRx     uint64 `json:"telegrams_rx"`
	TelegramsTx     uint64 `json:"telegrams_tx"`
	DevicesManaged  int    `json:"devices_managed"`
	Reconnects      uint64 `json:"reconnects"`
	Commands        uint64 `json:"commands"`
	CommandFailures uint64 `json:"command_failures"`
	ClimateResends  uint64 `json:"climate_resends"`
}

// GetMetrics returns current bridge metrics.
func (b *Bridge) GetMetrics() BridgeMetrics {
	stats := b.session.Stats()
	return BridgeMetrics{
		Connected:       stats.State == bus.StateOpen,
		Status:          stats.State.String(),
		TelegramsRx:     stats.Rx,
		TelegramsTx:     stats.Tx,
		DevicesManaged:  b.dir.Len(),
		Reconnects:      b.reconnects.Load(),
		Commands:        b.commands.Load(),
		CommandFailures: b.commandFailures.Load(),
		ClimateResends:  b.resends.Load(),
	}
}

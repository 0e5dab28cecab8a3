package bus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-eltako/internal/directory"
	"github.com/nerrad567/gray-logic-eltako/internal/eep"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/esp2"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/esp3"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/translate"
)

// Default session settings.
const (
	// DefaultAckTimeout is how long a send waits for the gateway response.
	DefaultAckTimeout = time.Second

	// DefaultRetries is the number of resends after a missing or negative
	// acknowledgement.
	DefaultRetries = 2

	// defaultQueueSize is the per-subscriber event queue length.
	defaultQueueSize = 100

	// readBufferSize is the size of a single port read.
	readBufferSize = 256
)

// RPS status bytes for transmitted telegrams. T21 is always set; NU is set
// when the energy bow is pressed.
const (
	statusRPSPressed  byte = 0x30
	statusRPSReleased byte = 0x20
	rpsEnergyBow      byte = 0x10
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

func (c *closeOnce) closed() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}

// Config holds session settings.
type Config struct {
	// Generation selects the ESP2 or ESP3 codec for the port.
	Generation enocean.Generation

	// AckTimeout is how long a send waits for the gateway OK/ERR response.
	// Zero disables waiting: the send completes once written.
	AckTimeout time.Duration

	// Retries is the number of resends after a timeout or negative response.
	Retries int

	// QueueSize is the per-subscriber event queue length.
	// Default: 100.
	QueueSize int
}

// DefaultConfig returns the settings suited to a gateway kind. Gateways that
// never answer a send get AckTimeout zero.
func DefaultConfig(kind enocean.GatewayKind) Config {
	cfg := Config{
		Generation: kind.Generation(),
		Retries:    DefaultRetries,
		QueueSize:  defaultQueueSize,
	}
	if kind.AcksSends() {
		cfg.AckTimeout = DefaultAckTimeout
	}
	return cfg
}

// Command is a profile value to send to a device.
type Command struct {
	// Address is the device to command. For a registered sender device the
	// telegram is sent from the entry's sender address; otherwise Address is
	// used as the sender and EEP must be set.
	Address enocean.Address

	// EEP overrides the profile to encode with. Zero uses the entry's
	// sender profile.
	EEP eep.ID

	Value eep.Value
}

// Stats holds session counters.
type Stats struct {
	State        State
	Rx           uint64 // Frames that passed framing
	Tx           uint64 // Frames written, retries included
	FrameErrors  uint64
	Decoded      uint64
	Unresolved   uint64
	Skipped      uint64
	Dropped      uint64 // Events dropped on full subscriber queues
	Retries      uint64
	NoAcks       uint64
	LastActivity time.Time
}

// Logger defines the logging interface used by the Session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Session is a connection to one gateway.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Exactly one goroutine reads the port; sends are serialised so at most
//     one frame awaits acknowledgement.
//   - Subscribers run on their own goroutines.
type Session struct {
	cfg Config
	dir *directory.Directory

	state  atomic.Int32
	opened atomic.Bool

	// lifeMu serialises Open and Close.
	lifeMu sync.Mutex

	// Per-open run state, replaced by each Open.
	runMu    sync.RWMutex
	port     Port
	portOnce *sync.Once
	done     *closeOnce
	cancel   context.CancelFunc
	group    *errgroup.Group
	faultErr error
	sendSlot chan struct{}
	acks     chan bool

	subsMu    sync.RWMutex
	subs      map[uint64]*subscriber
	nextSub   uint64
	accepting bool

	loggerMu sync.RWMutex
	logger   Logger

	rx           atomic.Uint64
	tx           atomic.Uint64
	frameErrors  atomic.Uint64
	decoded      atomic.Uint64
	unresolved   atomic.Uint64
	skipped      atomic.Uint64
	dropped      atomic.Uint64
	retries      atomic.Uint64
	noAcks       atomic.Uint64
	lastActivity atomic.Int64
}

// New creates a closed session.
//
// Parameters:
//   - cfg: Session settings
//   - dir: Device directory used to resolve and encode telegrams
//
// Returns:
//   - *Session: Session ready to Open
//   - error: If the configuration is invalid
func New(cfg Config, dir *directory.Directory) (*Session, error) {
	if dir == nil {
		return nil, fmt.Errorf("bus: directory is required")
	}
	if !cfg.Generation.Valid() {
		return nil, fmt.Errorf("bus: invalid protocol generation %q", cfg.Generation)
	}
	if cfg.AckTimeout < 0 {
		return nil, fmt.Errorf("bus: ack timeout must not be negative")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("bus: retries must not be negative")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	return &Session{
		cfg:      cfg,
		dir:      dir,
		sendSlot: make(chan struct{}, 1),
		acks:     make(chan bool, 1),
		subs:     make(map[uint64]*subscriber),
		logger:   noopLogger{},
	}, nil
}

// SetLogger sets the logger for the session.
func (s *Session) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *Session) log() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Generation returns the protocol generation of the session.
func (s *Session) Generation() enocean.Generation {
	return s.cfg.Generation
}

// Open starts reading from port. A closed or faulted session can be opened
// again with a new port.
//
// Parameters:
//   - ctx: Checked before the session starts; the read loop runs until Close
//   - port: Open byte stream to the gateway; the session closes it
//
// Returns:
//   - error: ErrAlreadyOpen, or the context error
func (s *Session) Open(ctx context.Context, port Port) error {
	if port == nil {
		return fmt.Errorf("bus: port is required")
	}

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("bus: open: %w", err)
	}
	switch s.State() {
	case StateClosed, StateFaulted:
	default:
		return ErrAlreadyOpen
	}
	s.waitRun()

	s.setAccepting(true)
	s.setState(StateOpening, nil)

	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	done := newCloseOnce()

	s.runMu.Lock()
	s.port = port
	s.portOnce = new(sync.Once)
	s.done = done
	s.cancel = cancel
	s.group = g
	s.faultErr = nil
	s.runMu.Unlock()

	s.drainAcks()
	s.opened.Store(true)
	s.lastActivity.Store(time.Now().UnixNano())
	s.setState(StateOpen, nil)

	g.Go(func() error { return s.readLoop(gctx, port, done) })
	return nil
}

// Close stops the session: no event is published once it begins, in-flight
// sends fail with ErrSessionClosed, the port is closed and the read loop is
// awaited. Safe to call multiple times.
//
// Returns:
//   - error: nil (closing is best-effort)
func (s *Session) Close() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.State() == StateClosed {
		return nil
	}

	s.beginClosing()
	s.stopRun()
	s.waitRun()

	s.state.Store(int32(StateClosed))
	s.log().Info("bus session state", "state", StateClosed.String())
	return nil
}

// stopRun signals the current run to stop and releases its port.
func (s *Session) stopRun() {
	s.runMu.RLock()
	done, cancel := s.done, s.cancel
	s.runMu.RUnlock()

	if done != nil {
		done.Close()
	}
	if cancel != nil {
		cancel()
	}
	s.closePort()
}

// waitRun waits for the goroutines of the last run to exit.
func (s *Session) waitRun() {
	s.runMu.RLock()
	g := s.group
	s.runMu.RUnlock()

	if g != nil {
		_ = g.Wait() // read errors were already reported by fault
	}
}

func (s *Session) closePort() {
	s.runMu.RLock()
	port, once := s.port, s.portOnce
	s.runMu.RUnlock()

	if port == nil || once == nil {
		return
	}
	once.Do(func() {
		if err := port.Close(); err != nil {
			s.log().Warn("closing bus port failed", "error", err)
		}
	})
}

// fault moves an open session to Faulted after a port error.
func (s *Session) fault(err error) {
	if !s.state.CompareAndSwap(int32(StateOpen), int32(StateFaulted)) {
		return
	}
	s.runMu.Lock()
	s.faultErr = err
	s.runMu.Unlock()

	s.log().Error("bus port failed", "error", err)
	s.publish(EventSessionState{Time: time.Now(), State: StateFaulted, Err: err})
	s.stopRun()
}

func (s *Session) setState(st State, err error) {
	s.state.Store(int32(st))
	s.log().Info("bus session state", "state", st.String())
	s.publish(EventSessionState{Time: time.Now(), State: st, Err: err})
}

// stoppedErr describes why a run ended.
func (s *Session) stoppedErr() error {
	if s.State() == StateFaulted {
		s.runMu.RLock()
		cause := s.faultErr
		s.runMu.RUnlock()
		if cause != nil {
			return fmt.Errorf("%w: %w", ErrSessionFaulted, cause)
		}
		return ErrSessionFaulted
	}
	return ErrSessionClosed
}

// readLoop reads the port until the run stops or the port fails.
func (s *Session) readLoop(ctx context.Context, port Port, done *closeOnce) error {
	feed := s.newFeeder()
	buf := make([]byte, readBufferSize)

	for {
		n, err := port.Read(buf)
		if n > 0 {
			s.lastActivity.Store(time.Now().UnixNano())
			feed(buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil || done.closed() {
				return nil
			}
			s.fault(fmt.Errorf("read: %w", err))
			return fmt.Errorf("bus: read: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// newFeeder returns the framing function for the session's generation.
func (s *Session) newFeeder() func([]byte) {
	if s.cfg.Generation == enocean.ESP3 {
		f := esp3.NewFramer()
		return func(p []byte) {
			f.Push(p)
			for {
				pkt, err := f.Next()
				if errors.Is(err, enocean.ErrNeedMore) {
					return
				}
				if err != nil {
					s.frameError(err)
					continue
				}
				s.handlePacket(pkt)
			}
		}
	}

	f := esp2.NewFramer()
	return func(p []byte) {
		f.Push(p)
		for {
			t, err := f.Next()
			if errors.Is(err, enocean.ErrNeedMore) {
				return
			}
			if err != nil {
				s.frameError(err)
				continue
			}
			s.rx.Add(1)
			s.handleTelegram(t)
		}
	}
}

func (s *Session) frameError(err error) {
	s.frameErrors.Add(1)
	s.log().Debug("bus frame error", "error", err)
}

func (s *Session) handlePacket(pkt esp3.Packet) {
	s.rx.Add(1)
	t, err := translate.ToESP2(pkt)
	if err != nil {
		if errors.Is(err, translate.ErrUnsupported) {
			s.skip(pkt.Encode(), err)
			return
		}
		s.frameError(err)
		return
	}
	s.handleTelegram(t)
}

func (s *Session) handleTelegram(t esp2.Telegram) {
	switch {
	case t.HSeq == esp2.RMT && (t.Org == enocean.OrgGatewayOK || t.Org == enocean.OrgGatewayError):
		s.ack(t.Org == enocean.OrgGatewayOK)
	case t.IsRadio():
		s.dispatch(t)
	default:
		s.skip(t.Encode(), fmt.Errorf("%w: %s %s", ErrUnhandledTelegram, t.HSeq, t.Org))
	}
}

func (s *Session) skip(raw []byte, err error) {
	s.skipped.Add(1)
	s.log().Debug("bus frame skipped", "error", err)
	s.publish(EventSkipped{Time: time.Now(), Raw: raw, Err: err})
}

// ack hands a gateway response to the pending send. Responses with no
// send waiting are overwritten by the next one.
func (s *Session) ack(ok bool) {
	select {
	case s.acks <- ok:
	default:
	}
}

func (s *Session) drainAcks() {
	for {
		select {
		case <-s.acks:
		default:
			return
		}
	}
}

// dispatch resolves a radio telegram and publishes the result.
func (s *Session) dispatch(t esp2.Telegram) {
	now := time.Now()

	entry, ok := s.dir.Lookup(t.Sender)
	if !ok {
		s.unresolved.Add(1)
		s.publish(EventUnresolved{Time: now, Telegram: t})
		return
	}

	v, err := decodeFor(entry, t)
	if err != nil {
		s.unresolved.Add(1)
		s.log().Debug("bus telegram not decoded", "address", t.Sender.String(), "eep", entry.EEP.String(), "error", err)
		s.publish(EventUnresolved{Time: now, Telegram: t, Entry: &entry, Err: err})
		return
	}

	s.decoded.Add(1)
	s.publish(EventDecoded{Time: now, Entry: entry, Telegram: t, Value: v})
}

func decodeFor(entry directory.Entry, t esp2.Telegram) (eep.Value, error) {
	p, ok := eep.Lookup(entry.EEP)
	if !ok {
		return nil, fmt.Errorf("%w: %s", eep.ErrUnknownProfile, entry.EEP)
	}
	if !slices.Contains(p.Orgs, t.Org) {
		return nil, fmt.Errorf("%w: %s telegram for %s", ErrOrgMismatch, t.Org, entry.EEP)
	}
	v, err := eep.Decode(entry.EEP, t.Payload())
	if err != nil {
		return nil, err
	}
	if entry.Invert {
		v = eep.Invert(entry.EEP, v)
	}
	return v, nil
}

// Encode builds the transmit telegram for a command without sending it.
//
// Parameters:
//   - cmd: Device address, optional profile override and value
//
// Returns:
//   - esp2.Telegram: TRT telegram
//   - error: ErrUnknownDevice, or a profile encoding error
func (s *Session) Encode(cmd Command) (esp2.Telegram, error) {
	if cmd.Value == nil {
		return esp2.Telegram{}, fmt.Errorf("bus: command value is required")
	}

	id := cmd.EEP
	sender := cmd.Address
	v := cmd.Value

	entry, ok := s.dir.Lookup(cmd.Address)
	if ok && entry.CanSend() {
		sender = *entry.Sender
		if id == (eep.ID{}) {
			id = *entry.SenderEEP
		}
	}
	if id == (eep.ID{}) {
		return esp2.Telegram{}, fmt.Errorf("%w: %s has no sender profile", ErrUnknownDevice, cmd.Address)
	}
	if ok && entry.Invert {
		v = eep.Invert(id, v)
	}

	payload, err := eep.Encode(id, v)
	if err != nil {
		return esp2.Telegram{}, err
	}
	org, err := eep.OrgFor(id, payload)
	if err != nil {
		return esp2.Telegram{}, err
	}
	return esp2.NewRadio(esp2.TRT, org, payload, sender, SendStatus(org, payload))
}

// SendStatus returns the status byte for a transmitted telegram: 0x30 for a
// pressed rocker, 0x20 for a released one, zero for sensor telegrams.
func SendStatus(org enocean.ORG, payload []byte) byte {
	if org != enocean.OrgRPS {
		return 0
	}
	if len(payload) > 0 && payload[0]&rpsEnergyBow != 0 {
		return statusRPSPressed
	}
	return statusRPSReleased
}

// Send encodes a command and transmits it.
//
// Parameters:
//   - ctx: Context for cancellation, honoured while queued and awaiting ack
//   - cmd: Command to send
//
// Returns:
//   - error: ErrNoAck, ErrNotOpen, ErrSessionClosed, ErrSessionFaulted or an
//     encoding error
func (s *Session) Send(ctx context.Context, cmd Command) error {
	t, err := s.Encode(cmd)
	if err != nil {
		return err
	}
	return s.SendRaw(ctx, t)
}

// SendRaw transmits a telegram as is.
//
// On ESP3 gateways the telegram is converted to a RADIO_ERP1 packet with
// the send-case optional data. With a non-zero AckTimeout the gateway
// response is awaited, and a timeout or negative response is retried up to
// Retries times.
func (s *Session) SendRaw(ctx context.Context, t esp2.Telegram) error {
	frame, err := s.encodeFrame(t)
	if err != nil {
		return err
	}

	port, done, err := s.current()
	if err != nil {
		return err
	}

	select {
	case s.sendSlot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("bus: send: %w", ctx.Err())
	case <-done.Done():
		return s.stoppedErr()
	}
	defer func() { <-s.sendSlot }()

	if done.closed() {
		return s.stoppedErr()
	}
	return s.transmit(ctx, port, done, frame)
}

func (s *Session) encodeFrame(t esp2.Telegram) ([]byte, error) {
	if s.cfg.Generation != enocean.ESP3 {
		return t.Encode(), nil
	}
	pkt, err := translate.ToESP3(t)
	if err != nil {
		return nil, err
	}
	return pkt.Encode(), nil
}

// current returns the port and stop signal of an open session.
func (s *Session) current() (Port, *closeOnce, error) {
	switch s.State() {
	case StateOpen:
	case StateFaulted:
		return nil, nil, s.stoppedErr()
	case StateClosing:
		return nil, nil, ErrSessionClosed
	default:
		if s.opened.Load() {
			return nil, nil, ErrSessionClosed
		}
		return nil, nil, ErrNotOpen
	}

	s.runMu.RLock()
	defer s.runMu.RUnlock()
	return s.port, s.done, nil
}

// transmit writes a frame and waits for the gateway response, retrying as
// configured. The caller holds the send slot.
func (s *Session) transmit(ctx context.Context, port Port, done *closeOnce, frame []byte) error {
	attempts := 1 + s.cfg.Retries

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			s.retries.Add(1)
		}
		s.drainAcks()

		if _, err := port.Write(frame); err != nil {
			if done.closed() {
				return s.stoppedErr()
			}
			s.fault(fmt.Errorf("write: %w", err))
			return fmt.Errorf("%w: write: %w", ErrSessionFaulted, err)
		}
		s.tx.Add(1)
		s.lastActivity.Store(time.Now().UnixNano())

		if s.cfg.AckTimeout == 0 {
			return nil
		}

		ok, err := s.waitAck(ctx, done)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		s.log().Debug("bus send not acknowledged", "attempt", attempt, "of", attempts)
	}

	s.noAcks.Add(1)
	return fmt.Errorf("%w: after %d attempts", ErrNoAck, attempts)
}

// waitAck reports whether the gateway answered OK within AckTimeout.
// A negative response and a timeout both report false.
func (s *Session) waitAck(ctx context.Context, done *closeOnce) (bool, error) {
	timer := time.NewTimer(s.cfg.AckTimeout)
	defer timer.Stop()

	select {
	case ok := <-s.acks:
		return ok, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, fmt.Errorf("bus: send: %w", ctx.Err())
	case <-done.Done():
		return false, s.stoppedErr()
	}
}

// Stats returns current counters.
func (s *Session) Stats() Stats {
	return Stats{
		State:        s.State(),
		Rx:           s.rx.Load(),
		Tx:           s.tx.Load(),
		FrameErrors:  s.frameErrors.Load(),
		Decoded:      s.decoded.Load(),
		Unresolved:   s.unresolved.Load(),
		Skipped:      s.skipped.Load(),
		Dropped:      s.dropped.Load(),
		Retries:      s.retries.Load(),
		NoAcks:       s.noAcks.Load(),
		LastActivity: time.Unix(0, s.lastActivity.Load()),
	}
}

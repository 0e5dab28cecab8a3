package eltako

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-eltako/internal/bus"
	"github.com/nerrad567/gray-logic-eltako/internal/capture"
	"github.com/nerrad567/gray-logic-eltako/internal/eep"
)

// Dialer opens the byte stream to the gateway.
type Dialer func(ctx context.Context) (bus.Port, error)

// SerialDialer returns a Dialer for the configured serial device. When rec
// is non-nil every byte crossing the port is recorded to it.
//
// Parameters:
//   - cfg: Bridge settings (Port and Baud are used)
//   - rec: Optional capture writer
//   - logger: Receives recording failures; may be nil
//
// Returns:
//   - Dialer: Opens a fresh serial port on every call
func SerialDialer(cfg Config, rec *capture.Writer, logger Logger) Dialer {
	if logger == nil {
		logger = noopLogger{}
	}
	return func(_ context.Context) (bus.Port, error) {
		p, err := bus.OpenSerial(bus.SerialConfig{Device: cfg.Port, Baud: cfg.Baud})
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return p, nil
		}
		return capture.Tap(p, rec, func(err error) {
			logger.Warn("capture write failed", "error", err)
		}), nil
	}
}

// connect dials the gateway and opens the session on it.
func (b *Bridge) connect(ctx context.Context) error {
	port, err := b.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial %s: %w", b.cfg.Port, err)
	}
	if err := b.session.Open(ctx, port); err != nil {
		port.Close()
		return fmt.Errorf("open session: %w", err)
	}
	return nil
}

// requestReconnect asks the supervisor to reopen the port.
// Requests made while one is pending are merged.
func (b *Bridge) requestReconnect() {
	if !b.cfg.AutoReconnect {
		return
	}
	select {
	case b.reconnectReq <- struct{}{}:
	default:
	}
}

// superviseLoop runs reconnection attempts until Stop.
func (b *Bridge) superviseLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			return
		case <-b.reconnectReq:
			b.reconnect()
		}
	}
}

// reconnect reopens the port with exponential backoff until it succeeds or
// the bridge stops. The first attempt waits ReconnectInterval.
func (b *Bridge) reconnect() {
	if !b.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer b.reconnecting.Store(false)

	backoff := b.cfg.ReconnectInterval
	for attempt := 1; ; attempt++ {
		b.log().Info("attempting reconnection",
			"attempt", attempt,
			"backoff", backoff,
			"port", b.cfg.Port)

		select {
		case <-b.done:
			return
		case <-time.After(backoff):
		}

		if b.session.State() == bus.StateOpen {
			return
		}

		err := b.connect(b.ctx)
		if err == nil {
			b.reconnects.Add(1)
			b.log().Info("reconnected to gateway",
				"port", b.cfg.Port,
				"attempts", attempt)
			return
		}

		b.log().Warn("reconnection failed",
			"attempt", attempt,
			"error", err)
		backoff = nextBackoff(backoff)
	}
}

// nextBackoff grows a reconnect delay by the backoff factor up to the cap.
func nextBackoff(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * reconnectBackoffFactor)
	if next > MaxReconnectInterval {
		return MaxReconnectInterval
	}
	return next
}

// climateLoop repeats the last heating command of every A5-10-06 device.
// Eltako heating actuators fall back to their own mode when no set point
// arrives for a while.
func (b *Bridge) climateLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.ClimateResendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			if b.session.State() == bus.StateOpen {
				b.resendClimate(b.ctx)
			}
		}
	}
}

// resendClimate sends each heater's last command with the current
// temperature refreshed. Returns the number of telegrams sent.
func (b *Bridge) resendClimate(ctx context.Context) int {
	sent := 0
	for _, entry := range b.dir.All() {
		if !entry.CanSend() || *entry.SenderEEP != profileHeater {
			continue
		}
		st := b.snapshot(entry.Key())
		if st == nil || len(st.lastCommand.Fields) == 0 {
			continue
		}

		v := st.lastCommand
		if st.current != nil {
			v = v.With(eep.FieldCurrent, eep.Scaled{Value: *st.current, Unit: "°C", Max: 40}) //nolint:mnd // A5-10-06 range
		}

		sendCtx, cancel := context.WithTimeout(ctx, b.cfg.CommandTimeout)
		err := b.session.Send(sendCtx, bus.Command{Address: entry.Address, Value: v})
		cancel()
		if err != nil {
			b.log().Warn("heating resend failed", "device", entry.Key(), "error", err)
			continue
		}
		b.resends.Add(1)
		sent++
	}
	if sent > 0 {
		b.log().Debug("heating set points resent", "count", sent)
	}
	return sent
}

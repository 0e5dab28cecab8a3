// Package translate converts between ESP3 packets and ESP2 telegrams.
//
// ESP2 is the internal telegram representation. Only the packet families
// with an ESP2 analogue are converted; everything else is reported as
// ErrUnsupported so callers can skip it without treating it as corruption.
package translate

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/esp2"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/esp3"
)

// ErrUnsupported is returned for packets or telegrams with no counterpart in
// the other protocol generation.
var ErrUnsupported = errors.New("translate: unsupported")

// ToESP2 converts an ESP3 packet into an ESP2 telegram.
//
// RADIO_ERP1 packets with RORG F6, D5 or A5 become RRT telegrams, or TRT
// when the optional data is the send form. RESPONSE packets become RMT
// gateway OK/ERR telegrams.
//
// Parameters:
//   - p: ESP3 packet
//
// Returns:
//   - esp2.Telegram: Equivalent telegram
//   - error: ErrUnsupported (wrapped with packet detail) or a truncation error
func ToESP2(p esp3.Packet) (esp2.Telegram, error) {
	switch p.Type {
	case esp3.TypeRadioERP1:
		return radioToESP2(p)
	case esp3.TypeResponse:
		return responseToESP2(p)
	default:
		return esp2.Telegram{}, fmt.Errorf("%w: packet type %s", ErrUnsupported, p.Type)
	}
}

func radioToESP2(p esp3.Packet) (esp2.Telegram, error) {
	r, err := p.Radio()
	if err != nil {
		return esp2.Telegram{}, err
	}

	org, ok := r.RORG.ORG()
	if !ok {
		return esp2.Telegram{}, fmt.Errorf("%w: RORG %s", ErrUnsupported, r.RORG)
	}
	if len(r.Payload) != org.PayloadLen() {
		return esp2.Telegram{}, fmt.Errorf("%w: RORG %s with %d payload bytes", ErrUnsupported, r.RORG, len(r.Payload))
	}

	hseq := esp2.RRT
	if r.Outgoing() {
		hseq = esp2.TRT
	}
	return esp2.NewRadio(hseq, org, r.Payload, r.Sender, r.Status)
}

func responseToESP2(p esp3.Packet) (esp2.Telegram, error) {
	code, ok := p.ReturnCode()
	if !ok {
		return esp2.Telegram{}, fmt.Errorf("%w: empty RESPONSE", enocean.ErrTruncated)
	}
	switch code {
	case esp3.RetOK:
		return esp2.Telegram{HSeq: esp2.RMT, Org: enocean.OrgGatewayOK}, nil
	case esp3.RetError:
		return esp2.Telegram{HSeq: esp2.RMT, Org: enocean.OrgGatewayError}, nil
	default:
		return esp2.Telegram{}, fmt.Errorf("%w: RESPONSE code 0x%02X", ErrUnsupported, byte(code))
	}
}

// ToESP3 converts an ESP2 telegram into an ESP3 packet.
//
// TRT telegrams carry the send-form optional data; RRT telegrams carry none.
// TCT commands, unknown organisations and RMT messages other than OK/ERR
// have no ESP3 analogue and return ErrUnsupported.
func ToESP3(t esp2.Telegram) (esp3.Packet, error) {
	switch t.HSeq {
	case esp2.RRT, esp2.TRT:
		rorg, ok := t.Org.RORG()
		if !ok {
			return esp3.Packet{}, fmt.Errorf("%w: %s radio telegram with %s", ErrUnsupported, t.HSeq, t.Org)
		}
		// Only the meaningful bytes cross over; padding must be zero for the
		// reverse conversion to reproduce the telegram.
		for _, b := range t.Data[t.Org.PayloadLen():] {
			if b != 0 {
				return esp3.Packet{}, fmt.Errorf("%w: %s telegram with data beyond payload", ErrUnsupported, t.Org)
			}
		}
		var opt []byte
		if t.HSeq == esp2.TRT {
			opt = esp3.SendOptional()
		}
		return esp3.NewRadio(rorg, t.Payload(), t.Sender, t.Status, opt), nil

	case esp2.RMT:
		if t.Sender != (enocean.Address{}) || t.Data != [4]byte{} || t.Status != 0 {
			return esp3.Packet{}, fmt.Errorf("%w: RMT %s with payload", ErrUnsupported, t.Org)
		}
		switch t.Org {
		case enocean.OrgGatewayOK:
			return esp3.NewResponse(esp3.RetOK), nil
		case enocean.OrgGatewayError:
			return esp3.NewResponse(esp3.RetError), nil
		}
		return esp3.Packet{}, fmt.Errorf("%w: RMT %s", ErrUnsupported, t.Org)

	default:
		return esp3.Packet{}, fmt.Errorf("%w: %s telegram", ErrUnsupported, t.HSeq)
	}
}

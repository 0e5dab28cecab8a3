package esp2

import (
	"encoding/hex"
	"fmt"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

// Frame layout constants.
const (
	// FrameLen is the fixed size of an ESP2 frame including sync and checksum.
	FrameLen = 14

	// Sync0 and Sync1 open every frame.
	Sync0 byte = 0xA5
	Sync1 byte = 0x5A

	// bodyLen is the number of bytes covered by the checksum (header..status).
	bodyLen = 11

	// lengthField is the low five bits of the header byte: the body length
	// following the header.
	lengthField byte = 0x0B

	// hseqShift positions the HSEQ code in the header byte.
	hseqShift = 5

	// dataLen is the number of data bytes (D3..D0).
	dataLen = 4
)

// HSeq is the header sequence code carried in the top three bits of the header.
type HSeq byte

// Header sequence codes.
const (
	// RRT is a received radio telegram (gateway → host).
	RRT HSeq = 0

	// TRT is a radio telegram to transmit (host → gateway).
	TRT HSeq = 3

	// RMT is a received message telegram, used for gateway responses.
	RMT HSeq = 4

	// TCT is a command telegram to the gateway itself.
	TCT HSeq = 5
)

// String returns the conventional name of the code.
func (h HSeq) String() string {
	switch h {
	case RRT:
		return "RRT"
	case TRT:
		return "TRT"
	case RMT:
		return "RMT"
	case TCT:
		return "TCT"
	default:
		return fmt.Sprintf("HSEQ(%d)", byte(h))
	}
}

// Telegram is a decoded ESP2 frame.
//
// It is the internal telegram representation of the bridge: ESP3 packets are
// translated into this form before profile decoding.
type Telegram struct {
	HSeq   HSeq
	Org    enocean.ORG
	Data   [dataLen]byte // D3..D0, RPS/1BS use D3 only
	Sender enocean.Address
	Status byte
}

// NewRadio builds a radio telegram from a profile payload.
//
// RPS and 1BS payloads are one byte and are placed in D3; 4BS payloads are
// four bytes.
//
// Parameters:
//   - hseq: RRT for received telegrams, TRT for telegrams to send
//   - org: Radio organisation (RPS, 1BS, 4BS)
//   - payload: Profile payload bytes
//   - sender: Sender address
//   - status: Status byte
//
// Returns:
//   - Telegram: Assembled telegram
//   - error: If the payload length does not suit the organisation
func NewRadio(hseq HSeq, org enocean.ORG, payload []byte, sender enocean.Address, status byte) (Telegram, error) {
	n := org.PayloadLen()
	if n == 0 {
		return Telegram{}, fmt.Errorf("esp2: %s is not a radio organisation", org)
	}
	if len(payload) != n {
		return Telegram{}, fmt.Errorf("esp2: %s payload must be %d bytes, got %d", org, n, len(payload))
	}

	t := Telegram{HSeq: hseq, Org: org, Sender: sender, Status: status}
	copy(t.Data[:], payload)
	return t, nil
}

// Payload returns the meaningful data bytes for the telegram's organisation:
// one byte for RPS/1BS and all four for anything else.
func (t Telegram) Payload() []byte {
	n := t.Org.PayloadLen()
	if n == 0 {
		n = dataLen
	}
	out := make([]byte, n)
	copy(out, t.Data[:n])
	return out
}

// IsRadio reports whether the telegram carries a radio payload.
func (t Telegram) IsRadio() bool {
	return (t.HSeq == RRT || t.HSeq == TRT) && t.Org.PayloadLen() > 0
}

// Encode serialises the telegram to its 14-byte wire form.
// The checksum is always recomputed.
func (t Telegram) Encode() []byte {
	frame := make([]byte, FrameLen)
	frame[0] = Sync0
	frame[1] = Sync1
	frame[2] = byte(t.HSeq)<<hseqShift | lengthField
	frame[3] = byte(t.Org)
	copy(frame[4:8], t.Data[:])
	copy(frame[8:12], t.Sender[:])
	frame[12] = t.Status
	frame[13] = Checksum(frame[2:13])
	return frame
}

// String returns a compact human-readable form used in logs.
func (t Telegram) String() string {
	return fmt.Sprintf("%s %s from %s data=%s status=0x%02X",
		t.HSeq, t.Org, t.Sender, hex.EncodeToString(t.Data[:]), t.Status)
}

// Checksum returns the ESP2 checksum of a frame body: the sum of all bytes
// modulo 256.
func Checksum(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum += b
	}
	return sum
}

// Decode parses a single ESP2 frame.
//
// Parameters:
//   - frame: At least FrameLen bytes starting with the sync sequence
//
// Returns:
//   - Telegram: Decoded telegram
//   - error: enocean.ErrTruncated, enocean.ErrNoSync or
//     enocean.ErrChecksumMismatch
func Decode(frame []byte) (Telegram, error) {
	if len(frame) < FrameLen {
		return Telegram{}, fmt.Errorf("%w: have %d bytes, need %d", enocean.ErrTruncated, len(frame), FrameLen)
	}
	if frame[0] != Sync0 || frame[1] != Sync1 {
		return Telegram{}, fmt.Errorf("%w: got 0x%02X 0x%02X", enocean.ErrNoSync, frame[0], frame[1])
	}

	body := frame[2 : 2+bodyLen]
	if got, want := frame[13], Checksum(body); got != want {
		return Telegram{}, fmt.Errorf("%w: got 0x%02X, want 0x%02X", enocean.ErrChecksumMismatch, got, want)
	}
	if frame[2]&0x1F != lengthField {
		return Telegram{}, fmt.Errorf("%w: unexpected length field 0x%02X", enocean.ErrNoSync, frame[2]&0x1F)
	}

	t := Telegram{
		HSeq:   HSeq(frame[2] >> hseqShift),
		Org:    enocean.ORG(frame[3]),
		Status: frame[12],
	}
	copy(t.Data[:], frame[4:8])
	copy(t.Sender[:], frame[8:12])
	return t, nil
}

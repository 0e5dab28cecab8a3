package esp3

import (
	"encoding/hex"
	"fmt"

	"github.com/sigurn/crc8"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

// Frame layout constants.
const (
	// Sync opens every ESP3 frame.
	Sync byte = 0x55

	// headerLen is sync + data length (2) + optional length + type + CRC8H.
	headerLen = 6

	// maxDataLen bounds the data length accepted from a header. Gateway
	// packets are far shorter; anything longer is a false sync.
	maxDataLen = 0xFF

	// MaxFrameLen is the largest frame the framer accepts: header, data,
	// 255 optional bytes and CRC8D.
	MaxFrameLen = headerLen + maxDataLen + 0xFF + 1

	// erp1Overhead is RORG + sender (4) + status in RADIO_ERP1 data.
	erp1Overhead = 6
)

var crcTable = crc8.MakeTable(crc8.CRC8)

// CRC8 returns the ESP3 CRC8 (polynomial 0x07, init 0x00) of data.
func CRC8(data []byte) byte {
	return crc8.Checksum(data, crcTable)
}

// PacketType is the ESP3 packet type byte.
type PacketType byte

// ESP3 packet types.
const (
	TypeRadioERP1        PacketType = 0x01
	TypeResponse         PacketType = 0x02
	TypeRadioSubTel      PacketType = 0x03
	TypeEvent            PacketType = 0x04
	TypeCommonCommand    PacketType = 0x05
	TypeSmartAckCommand  PacketType = 0x06
	TypeRemoteManCommand PacketType = 0x07
)

// String returns the EnOcean name of the packet type.
func (t PacketType) String() string {
	switch t {
	case TypeRadioERP1:
		return "RADIO_ERP1"
	case TypeResponse:
		return "RESPONSE"
	case TypeRadioSubTel:
		return "RADIO_SUB_TEL"
	case TypeEvent:
		return "EVENT"
	case TypeCommonCommand:
		return "COMMON_COMMAND"
	case TypeSmartAckCommand:
		return "SMART_ACK_COMMAND"
	case TypeRemoteManCommand:
		return "REMOTE_MAN_COMMAND"
	default:
		return fmt.Sprintf("TYPE(0x%02X)", byte(t))
	}
}

// ReturnCode is the first data byte of a RESPONSE packet.
type ReturnCode byte

// Response return codes.
const (
	RetOK              ReturnCode = 0x00
	RetError           ReturnCode = 0x01
	RetNotSupported    ReturnCode = 0x02
	RetWrongParam      ReturnCode = 0x03
	RetOperationDenied ReturnCode = 0x04
)

// Common command codes used by the session.
const (
	CmdReadVersion byte = 0x03
	CmdReadIDBase  byte = 0x08
)

// Packet is a decoded ESP3 frame. Length fields and CRCs are derived.
type Packet struct {
	Type     PacketType
	Data     []byte
	Optional []byte
}

// Encode serialises the packet with freshly computed CRCs.
func (p Packet) Encode() []byte {
	frame := make([]byte, 0, headerLen+len(p.Data)+len(p.Optional)+1)
	frame = append(frame,
		Sync,
		byte(len(p.Data)>>8), //nolint:mnd // high byte
		byte(len(p.Data)),
		byte(len(p.Optional)),
		byte(p.Type),
	)
	frame = append(frame, CRC8(frame[1:5]))

	body := len(frame)
	frame = append(frame, p.Data...)
	frame = append(frame, p.Optional...)
	frame = append(frame, CRC8(frame[body:]))
	return frame
}

// String returns a compact human-readable form used in logs.
func (p Packet) String() string {
	return fmt.Sprintf("%s data=%s opt=%s", p.Type, hex.EncodeToString(p.Data), hex.EncodeToString(p.Optional))
}

// header is the parsed fixed part of a frame.
type header struct {
	dataLen int
	optLen  int
	typ     PacketType
}

func (h header) frameLen() int {
	return headerLen + h.dataLen + h.optLen + 1
}

// parseHeader validates the six header bytes at the start of b.
func parseHeader(b []byte) (header, error) {
	if b[0] != Sync {
		return header{}, fmt.Errorf("%w: got 0x%02X", enocean.ErrNoSync, b[0])
	}
	if got, want := b[5], CRC8(b[1:5]); got != want {
		return header{}, fmt.Errorf("%w: CRC8H 0x%02X, want 0x%02X", enocean.ErrHeaderCorrupt, got, want)
	}
	h := header{
		dataLen: int(b[1])<<8 | int(b[2]), //nolint:mnd // big-endian length
		optLen:  int(b[3]),
		typ:     PacketType(b[4]),
	}
	if err := h.check(); err != nil {
		return header{}, err
	}
	return h, nil
}

// check rejects lengths no gateway sends. A header that passes CRC8H by
// chance would otherwise hold the framer until its length had arrived.
func (h header) check() error {
	if h.dataLen == 0 || h.dataLen > maxDataLen {
		return fmt.Errorf("%w: %s data length %d", enocean.ErrHeaderCorrupt, h.typ, h.dataLen)
	}
	if h.typ == TypeRadioERP1 && h.optLen > optionalLen {
		return fmt.Errorf("%w: %s optional length %d", enocean.ErrHeaderCorrupt, h.typ, h.optLen)
	}
	return nil
}

// parseBody validates the data CRC of a complete frame.
func parseBody(h header, frame []byte) (Packet, error) {
	end := h.frameLen() - 1
	if got, want := frame[end], CRC8(frame[headerLen:end]); got != want {
		return Packet{}, fmt.Errorf("%w: %s CRC8D 0x%02X, want 0x%02X", enocean.ErrPayloadCorrupt, h.typ, got, want)
	}

	p := Packet{Type: h.typ, Data: make([]byte, h.dataLen)}
	copy(p.Data, frame[headerLen:headerLen+h.dataLen])
	if h.optLen > 0 {
		p.Optional = make([]byte, h.optLen)
		copy(p.Optional, frame[headerLen+h.dataLen:end])
	}
	return p, nil
}

// Decode parses a single ESP3 frame.
//
// Parameters:
//   - frame: Bytes starting at the sync byte
//
// Returns:
//   - Packet: Decoded packet
//   - error: enocean.ErrTruncated, enocean.ErrNoSync,
//     enocean.ErrHeaderCorrupt or enocean.ErrPayloadCorrupt
func Decode(frame []byte) (Packet, error) {
	if len(frame) < headerLen {
		return Packet{}, fmt.Errorf("%w: have %d bytes, need header of %d", enocean.ErrTruncated, len(frame), headerLen)
	}
	h, err := parseHeader(frame)
	if err != nil {
		return Packet{}, err
	}
	if len(frame) < h.frameLen() {
		return Packet{}, fmt.Errorf("%w: have %d bytes, need %d", enocean.ErrTruncated, len(frame), h.frameLen())
	}
	return parseBody(h, frame)
}

// Radio is the split form of a RADIO_ERP1 packet.
type Radio struct {
	RORG    enocean.RORG
	Payload []byte
	Sender  enocean.Address
	Status  byte

	// Optional data. HasOptional is false when the packet carried none.
	HasOptional  bool
	SubTelegrams byte
	Destination  enocean.Address
	DBm          byte
	Security     byte
}

// Outgoing reports whether the optional data is the send form (dBm 0xFF).
// Received telegrams carry the measured signal strength instead.
func (r Radio) Outgoing() bool {
	return r.HasOptional && r.DBm == SendDBm
}

// Send-case optional data values.
const (
	SendSubTelegrams byte = 0x03
	SendDBm          byte = 0xFF
)

// optionalLen is the size of RADIO_ERP1 optional data.
const optionalLen = 7

// SendOptional returns the optional data used when transmitting: three
// sub-telegrams, broadcast destination, maximum power, no security.
func SendOptional() []byte {
	opt := make([]byte, 0, optionalLen)
	opt = append(opt, SendSubTelegrams)
	opt = append(opt, enocean.Broadcast[:]...)
	return append(opt, SendDBm, 0x00)
}

// NewRadio builds a RADIO_ERP1 packet.
//
// Parameters:
//   - rorg: Radio organisation
//   - payload: Profile payload (1 byte for RPS/1BS, 4 for 4BS)
//   - sender: Sender address
//   - status: Status byte
//   - optional: Optional data; nil for none, SendOptional() when transmitting
//
// Returns:
//   - Packet: RADIO_ERP1 packet
func NewRadio(rorg enocean.RORG, payload []byte, sender enocean.Address, status byte, optional []byte) Packet {
	data := make([]byte, 0, erp1Overhead+len(payload))
	data = append(data, byte(rorg))
	data = append(data, payload...)
	data = append(data, sender[:]...)
	data = append(data, status)

	p := Packet{Type: TypeRadioERP1, Data: data}
	if len(optional) > 0 {
		p.Optional = append([]byte(nil), optional...)
	}
	return p
}

// Radio splits a RADIO_ERP1 packet into its fields.
func (p Packet) Radio() (Radio, error) {
	if p.Type != TypeRadioERP1 {
		return Radio{}, fmt.Errorf("esp3: %s is not a radio packet", p.Type)
	}
	if len(p.Data) < erp1Overhead {
		return Radio{}, fmt.Errorf("%w: ERP1 data of %d bytes", enocean.ErrTruncated, len(p.Data))
	}

	n := len(p.Data)
	r := Radio{
		RORG:    enocean.RORG(p.Data[0]),
		Payload: append([]byte(nil), p.Data[1:n-5]...),
		Status:  p.Data[n-1],
	}
	copy(r.Sender[:], p.Data[n-5:n-1])

	if len(p.Optional) >= optionalLen {
		r.HasOptional = true
		r.SubTelegrams = p.Optional[0]
		copy(r.Destination[:], p.Optional[1:5])
		r.DBm = p.Optional[5]
		r.Security = p.Optional[6]
	}
	return r, nil
}

// NewResponse builds a RESPONSE packet carrying only a return code.
func NewResponse(code ReturnCode) Packet {
	return Packet{Type: TypeResponse, Data: []byte{byte(code)}}
}

// ReturnCode returns the code of a RESPONSE packet.
func (p Packet) ReturnCode() (ReturnCode, bool) {
	if p.Type != TypeResponse || len(p.Data) == 0 {
		return 0, false
	}
	return ReturnCode(p.Data[0]), true
}

// NewCommonCommand builds a COMMON_COMMAND packet.
func NewCommonCommand(code byte, args ...byte) Packet {
	return Packet{Type: TypeCommonCommand, Data: append([]byte{code}, args...)}
}

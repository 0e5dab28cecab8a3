package capture

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction tells which way a chunk travelled.
type Direction uint8

// Directions.
const (
	// Rx is data read from the gateway.
	Rx Direction = 1
	// Tx is data written to the gateway.
	Tx Direction = 2
)

// String returns "rx" or "tx".
func (d Direction) String() string {
	switch d {
	case Rx:
		return "rx"
	case Tx:
		return "tx"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Record is one captured chunk. Chunks are stored as read, not as frames,
// so framing problems are reproduced on replay.
type Record struct {
	Time       time.Time `cbor:"1,keyasint"`
	Direction  Direction `cbor:"2,keyasint"`
	Generation string    `cbor:"3,keyasint,omitempty"`
	Data       []byte    `cbor:"4,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("capture: CBOR decoder mode: %v", err))
	}
}

// EncodeRecord encodes a single record.
func EncodeRecord(r Record) ([]byte, error) {
	return encMode.Marshal(r)
}

// DecodeRecord decodes a single record.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := decMode.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("capture: decode record: %w", err)
	}
	return r, nil
}

// NewEncoder returns a record encoder writing to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a record decoder reading from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

package esp3

import (
	"bytes"
	"errors"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

type framerState uint8

const (
	stateSeekSync framerState = iota
	stateHeader
	stateBody
)

// Framer splits a byte stream into ESP3 packets.
//
// States:
//   - seekSync: discard bytes until 0x55 is at the head of the buffer
//   - header: wait for six header bytes, check CRC8H and the lengths
//   - body: wait for data, optional data and CRC8D
//
// resync is the single recovery action. After a rejected header the
// frame length is unknown, so it drops only the 0x55 and rescans. After a
// data CRC failure the length is trusted and the whole frame span is
// dropped, keeping the stream aligned.
//
// Framer does no I/O and is not safe for concurrent use.
type Framer struct {
	buf       []byte
	state     framerState
	hdr       header
	discarded uint64
	corrupt   uint64
}

// NewFramer creates an empty framer.
func NewFramer() *Framer {
	return &Framer{buf: make([]byte, 0, 64)} //nolint:mnd // typical ERP1 frames are ~24 bytes
}

// Push appends raw bytes read from the bus.
func (f *Framer) Push(p []byte) {
	f.buf = append(f.buf, p...)
	if len(f.buf) > MaxFrameLen*2 {
		drop := len(f.buf) - MaxFrameLen
		f.discarded += uint64(drop)
		f.buf = append(f.buf[:0], f.buf[drop:]...)
		f.state = stateSeekSync
	}
}

// Next returns the next complete packet.
//
// Returns:
//   - Packet: The decoded packet
//   - error: enocean.ErrNeedMore when no complete frame is buffered, or
//     enocean.ErrHeaderCorrupt / enocean.ErrPayloadCorrupt. After a frame
//     error the framer has resynchronised and Next can be called again.
func (f *Framer) Next() (Packet, error) {
	for {
		switch f.state {
		case stateSeekSync:
			idx := bytes.IndexByte(f.buf, Sync)
			if idx < 0 {
				f.skip(len(f.buf))
				return Packet{}, enocean.ErrNeedMore
			}
			f.skip(idx)
			f.state = stateHeader

		case stateHeader:
			if len(f.buf) < headerLen {
				return Packet{}, enocean.ErrNeedMore
			}
			h, err := parseHeader(f.buf)
			if err != nil {
				f.resync(1)
				return Packet{}, err
			}
			f.hdr = h
			f.state = stateBody

		case stateBody:
			n := f.hdr.frameLen()
			if len(f.buf) < n {
				return Packet{}, enocean.ErrNeedMore
			}
			p, err := parseBody(f.hdr, f.buf[:n])
			if err != nil {
				f.resync(n)
				return Packet{}, err
			}
			f.consume(n)
			f.state = stateSeekSync
			return p, nil
		}
	}
}

// resync drops n bytes of a rejected frame and returns to seekSync.
func (f *Framer) resync(n int) {
	f.corrupt++
	f.skip(n)
	f.state = stateSeekSync
}

func (f *Framer) skip(n int) {
	if n > 0 {
		f.discarded += uint64(n)
	}
	f.consume(n)
}

func (f *Framer) consume(n int) {
	if n <= 0 {
		return
	}
	f.buf = append(f.buf[:0], f.buf[n:]...)
}

// Drain decodes every complete packet currently buffered.
// Frame errors are passed to onErr when it is non-nil.
func (f *Framer) Drain(onErr func(error)) []Packet {
	var out []Packet
	for {
		p, err := f.Next()
		switch {
		case err == nil:
			out = append(out, p)
		case errors.Is(err, enocean.ErrNeedMore):
			return out
		default:
			if onErr != nil {
				onErr(err)
			}
		}
	}
}

// Reset discards buffered bytes and returns to seekSync.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.state = stateSeekSync
}

// Buffered returns the number of bytes awaiting a complete frame.
func (f *Framer) Buffered() int { return len(f.buf) }

// Discarded returns the number of bytes dropped outside valid frames.
func (f *Framer) Discarded() uint64 { return f.discarded }

// Corrupt returns the number of frames rejected since creation.
func (f *Framer) Corrupt() uint64 { return f.corrupt }

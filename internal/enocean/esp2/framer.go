package esp2

import (
	"bytes"
	"errors"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

// maxBuffered caps the framer buffer. A stream that never produces a sync
// sequence cannot grow it without bound.
const maxBuffered = 4096

type framerState uint8

const (
	stateSeekSync framerState = iota
	stateBody
)

// Framer splits a byte stream into ESP2 telegrams.
//
// It is a two-state machine. In seekSync it discards bytes until A5 5A is at
// the head of the buffer; in body it waits for a full frame and validates
// it. A frame that fails validation is resynchronised by dropping one byte
// and seeking the next sync sequence.
//
// Framer does no I/O and is not safe for concurrent use.
type Framer struct {
	buf       []byte
	state     framerState
	discarded uint64
	corrupt   uint64
}

// NewFramer creates an empty framer.
func NewFramer() *Framer {
	return &Framer{buf: make([]byte, 0, FrameLen*4)} //nolint:mnd // room for a few frames
}

// Push appends raw bytes read from the bus.
func (f *Framer) Push(p []byte) {
	f.buf = append(f.buf, p...)
	if len(f.buf) > maxBuffered {
		drop := len(f.buf) - maxBuffered
		f.discarded += uint64(drop)
		f.buf = append(f.buf[:0], f.buf[drop:]...)
		f.state = stateSeekSync
	}
}

// Next returns the next complete telegram.
//
// Returns:
//   - Telegram: The decoded telegram
//   - error: enocean.ErrNeedMore when no complete frame is buffered, or a
//     frame error for a corrupt frame. After a frame error the framer has
//     already resynchronised and Next can be called again.
func (f *Framer) Next() (Telegram, error) {
	for {
		switch f.state {
		case stateSeekSync:
			if !f.seekSync() {
				return Telegram{}, enocean.ErrNeedMore
			}
			f.state = stateBody

		case stateBody:
			if len(f.buf) < FrameLen {
				return Telegram{}, enocean.ErrNeedMore
			}
			t, err := Decode(f.buf[:FrameLen])
			if err != nil {
				f.corrupt++
				f.resync()
				return Telegram{}, err
			}
			f.consume(FrameLen)
			f.state = stateSeekSync
			return t, nil
		}
	}
}

// seekSync drops bytes until the buffer starts with A5 5A. It reports
// whether a sync sequence is at the head.
func (f *Framer) seekSync() bool {
	idx := bytes.Index(f.buf, []byte{Sync0, Sync1})
	if idx < 0 {
		// Keep a trailing A5: its partner may be in the next read.
		keep := 0
		if n := len(f.buf); n > 0 && f.buf[n-1] == Sync0 {
			keep = 1
		}
		f.skip(len(f.buf) - keep)
		return false
	}
	f.skip(idx)
	return true
}

// resync drops the first sync byte of a bad frame so the next seekSync
// starts one byte later.
func (f *Framer) resync() {
	f.skip(1)
	f.state = stateSeekSync
}

// skip drops n bytes that are not part of any frame.
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

// Drain decodes every complete frame currently buffered.
// Frame errors are passed to onErr when it is non-nil.
func (f *Framer) Drain(onErr func(error)) []Telegram {
	var out []Telegram
	for {
		t, err := f.Next()
		switch {
		case err == nil:
			out = append(out, t)
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

// Discarded returns the number of bytes skipped while seeking sync.
func (f *Framer) Discarded() uint64 { return f.discarded }

// Corrupt returns the number of frames rejected since creation.
func (f *Framer) Corrupt() uint64 { return f.corrupt }

package esp2

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

func TestFramerSplitsStream(t *testing.T) {
	a := Telegram{HSeq: RRT, Org: enocean.OrgRPS, Data: [4]byte{0x70}, Sender: enocean.MustParseAddress("01-02-03-04"), Status: 0x30}
	b := Telegram{HSeq: RRT, Org: enocean.Org4BS, Data: [4]byte{0x32, 0x64, 0x00, 0x08}, Sender: enocean.MustParseAddress("05-06-07-08")}

	stream := append([]byte{0x00, 0xFF, 0xA5}, a.Encode()...)
	stream = append(stream, b.Encode()...)

	f := NewFramer()

	// Feed a byte at a time to exercise partial frames.
	var got []Telegram
	for _, c := range stream {
		f.Push([]byte{c})
		for {
			tel, err := f.Next()
			if errors.Is(err, enocean.ErrNeedMore) {
				break
			}
			if err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			got = append(got, tel)
		}
	}

	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("got %+v, want [%+v %+v]", got, a, b)
	}
	if f.Discarded() != 3 {
		t.Errorf("Discarded() = %d, want 3", f.Discarded())
	}
	if f.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", f.Buffered())
	}
}

func TestFramerResyncsAfterChecksumFailure(t *testing.T) {
	good := Telegram{HSeq: RRT, Org: enocean.OrgRPS, Data: [4]byte{0x50}, Sender: enocean.MustParseAddress("01-02-03-04")}

	bad := good.Encode()
	bad[13] ^= 0xFF

	f := NewFramer()
	f.Push(bad)
	f.Push(good.Encode())

	var frameErrs int
	got := f.Drain(func(err error) {
		if !errors.Is(err, enocean.ErrChecksumMismatch) {
			t.Errorf("unexpected error %v", err)
		}
		frameErrs++
	})

	if frameErrs != 1 {
		t.Errorf("frame errors = %d, want 1", frameErrs)
	}
	if len(got) != 1 || got[0] != good {
		t.Errorf("Drain() = %+v, want [%+v]", got, good)
	}
	if f.Corrupt() != 1 {
		t.Errorf("Corrupt() = %d, want 1", f.Corrupt())
	}
}

func TestFramerKeepsTrailingSyncByte(t *testing.T) {
	tel := Telegram{HSeq: RMT, Org: enocean.OrgGatewayOK}
	frame := tel.Encode()

	f := NewFramer()
	f.Push([]byte{0x11, 0x22, frame[0]})
	if _, err := f.Next(); !errors.Is(err, enocean.ErrNeedMore) {
		t.Fatalf("Next() error = %v, want ErrNeedMore", err)
	}
	if f.Buffered() != 1 {
		t.Fatalf("Buffered() = %d, want 1", f.Buffered())
	}

	f.Push(frame[1:])
	got, err := f.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if got != tel {
		t.Errorf("Next() = %+v, want %+v", got, tel)
	}
}

func TestFramerBoundsBuffer(t *testing.T) {
	f := NewFramer()
	f.Push(make([]byte, maxBuffered*2))
	if f.Buffered() > maxBuffered {
		t.Errorf("Buffered() = %d, want <= %d", f.Buffered(), maxBuffered)
	}
	f.Reset()
	if f.Buffered() != 0 {
		t.Errorf("Buffered() after Reset = %d", f.Buffered())
	}
}

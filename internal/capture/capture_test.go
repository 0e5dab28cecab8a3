package capture

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"
)

// memPort is an in-memory io.ReadWriteCloser.
type memPort struct {
	in  *bytes.Reader
	out bytes.Buffer
}

func (m *memPort) Read(p []byte) (int, error)  { return m.in.Read(p) }
func (m *memPort) Write(p []byte) (int, error) { return m.out.Write(p) }
func (m *memPort) Close() error                { return nil }

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus.cbor")

	w, err := Create(path, "esp2")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	chunks := [][]byte{{0xA5, 0x5A, 0x0B}, {0x05, 0x70}, {0x01}}
	for i, c := range chunks {
		dir := Rx
		if i == 2 {
			dir = Tx
		}
		if err := w.Record(dir, c); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	if w.Count() != 3 {
		t.Errorf("Count() = %d, want 3", w.Count())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Record(Rx, []byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Record() after Close error = %v, want ErrClosed", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	recs, err := r.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("All() returned %d records", len(recs))
	}
	for i, rec := range recs {
		if !bytes.Equal(rec.Data, chunks[i]) {
			t.Errorf("record %d data = % X, want % X", i, rec.Data, chunks[i])
		}
		if rec.Generation != "esp2" || rec.Time.IsZero() {
			t.Errorf("record %d = %+v", i, rec)
		}
	}
	if recs[2].Direction != Tx {
		t.Errorf("record 2 direction = %s, want tx", recs[2].Direction)
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() at end error = %v, want io.EOF", err)
	}
}

func TestWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus.cbor")

	for i := 0; i < 2; i++ {
		w, err := Create(path, "esp3")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := w.Record(Rx, []byte{byte(i)}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		w.Close()
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()
	recs, _ := r.All()
	if len(recs) != 2 {
		t.Errorf("got %d records after two sessions, want 2", len(recs))
	}
}

func TestRecordEncoding(t *testing.T) {
	in := Record{Time: time.Date(2024, 5, 1, 12, 0, 0, 123, time.UTC), Direction: Rx, Data: []byte{0x55}}
	b, err := EncodeRecord(in)
	if err != nil {
		t.Fatalf("EncodeRecord() error = %v", err)
	}
	out, err := DecodeRecord(b)
	if err != nil {
		t.Fatalf("DecodeRecord() error = %v", err)
	}
	if !out.Time.Equal(in.Time) || out.Direction != Rx || !bytes.Equal(out.Data, in.Data) {
		t.Errorf("DecodeRecord() = %+v", out)
	}

	if _, err := DecodeRecord([]byte{0xFF, 0x00}); err == nil {
		t.Error("DecodeRecord() of garbage should fail")
	}
}

func TestTap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tap.cbor")
	w, err := Create(path, "esp2")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	port := &memPort{in: bytes.NewReader([]byte{0xA5, 0x5A})}
	tapped := Tap(port, w, func(err error) { t.Errorf("record error: %v", err) })

	buf := make([]byte, 8)
	if n, _ := tapped.Read(buf); n != 2 {
		t.Fatalf("Read() = %d bytes", n)
	}
	if _, err := tapped.Write([]byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !bytes.Equal(port.out.Bytes(), []byte{0x01, 0x02, 0x03}) {
		t.Errorf("underlying port got % X", port.out.Bytes())
	}
	w.Close()

	r, _ := Open(path)
	defer r.Close()
	recs, _ := r.All()
	if len(recs) != 2 || recs[0].Direction != Rx || recs[1].Direction != Tx {
		t.Fatalf("records = %+v", recs)
	}
}

func TestReplayPort(t *testing.T) {
	p := NewReplayPort([]Record{
		{Direction: Rx, Data: []byte{1, 2, 3, 4, 5}},
		{Direction: Tx, Data: []byte{9}},
		{Direction: Rx, Data: []byte{6}},
	})

	buf := make([]byte, 3)
	var got []byte
	for i := 0; i < 3; i++ {
		n, err := p.Read(buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("replayed % X", got)
	}

	select {
	case <-p.Drained():
		t.Fatal("Drained() closed before the reader blocked")
	default:
	}

	done := make(chan error, 1)
	go func() {
		_, err := p.Read(buf)
		done <- err
	}()

	select {
	case <-p.Drained():
	case <-time.After(2 * time.Second):
		t.Fatal("Drained() not closed")
	}

	if n, err := p.Write([]byte{1}); n != 1 || err != nil {
		t.Errorf("Write() = %d, %v", n, err)
	}

	p.Close()
	p.Close()
	if err := <-done; !errors.Is(err, io.EOF) {
		t.Errorf("blocked Read() error = %v, want io.EOF", err)
	}
}

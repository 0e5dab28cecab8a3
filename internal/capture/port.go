package capture

import (
	"io"
	"sync"
)

// tap records every chunk crossing a port.
type tap struct {
	port io.ReadWriteCloser
	w    *Writer
	// onErr receives recording failures; traffic is never held up by them.
	onErr func(error)
}

// Tap wraps a port so that every read and write is recorded to w.
// Recording errors are passed to onErr when it is non-nil.
func Tap(port io.ReadWriteCloser, w *Writer, onErr func(error)) io.ReadWriteCloser {
	return &tap{port: port, w: w, onErr: onErr}
}

func (t *tap) Read(p []byte) (int, error) {
	n, err := t.port.Read(p)
	if n > 0 {
		t.record(Rx, p[:n])
	}
	return n, err
}

func (t *tap) Write(p []byte) (int, error) {
	n, err := t.port.Write(p)
	if n > 0 {
		t.record(Tx, p[:n])
	}
	return n, err
}

func (t *tap) Close() error {
	return t.port.Close()
}

func (t *tap) record(dir Direction, data []byte) {
	if err := t.w.Record(dir, data); err != nil && t.onErr != nil {
		t.onErr(err)
	}
}

// ReplayPort plays the received chunks of a capture back as a port.
//
// Reads return the Rx records in order. Once they are exhausted reads block
// until Close, so a session reading the port sees a quiet line rather than
// an error. Drained is closed when the first read blocks, which means the
// reader has finished with every chunk. Writes are discarded.
type ReplayPort struct {
	chunks  [][]byte
	next    int
	drained chan struct{}
	closed  chan struct{}
	once    sync.Once
	mu      sync.Mutex

	drainOnce sync.Once
}

// NewReplayPort builds a port from captured records. Tx records are skipped.
func NewReplayPort(records []Record) *ReplayPort {
	p := &ReplayPort{
		drained: make(chan struct{}),
		closed:  make(chan struct{}),
	}
	for _, r := range records {
		if r.Direction == Rx && len(r.Data) > 0 {
			p.chunks = append(p.chunks, r.Data)
		}
	}
	return p
}

// Read returns the next captured chunk. A chunk larger than b is split
// across reads.
func (p *ReplayPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.next < len(p.chunks) {
		chunk := p.chunks[p.next]
		n := copy(b, chunk)
		if n < len(chunk) {
			p.chunks[p.next] = chunk[n:]
		} else {
			p.next++
		}
		p.mu.Unlock()
		return n, nil
	}
	p.mu.Unlock()

	p.drainOnce.Do(func() { close(p.drained) })

	<-p.closed
	return 0, io.EOF
}

// Write discards p.
func (p *ReplayPort) Write(b []byte) (int, error) {
	return len(b), nil
}

// Close unblocks pending reads.
func (p *ReplayPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

// Drained is closed once every chunk has been consumed.
func (p *ReplayPort) Drained() <-chan struct{} {
	return p.drained
}

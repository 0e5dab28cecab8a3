package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// ErrClosed is returned when writing to a closed Writer.
var ErrClosed = errors.New("capture: writer closed")

// Writer appends records to a capture file. It is safe for concurrent use.
type Writer struct {
	mu         sync.Mutex
	file       *os.File
	enc        *cbor.Encoder
	generation string
	closed     bool
	count      uint64
}

// Create opens path for appending, creating it with mode 0644 if needed.
//
// Parameters:
//   - path: Capture file path
//   - generation: Protocol generation stored with each record ("esp2"/"esp3")
//
// Returns:
//   - *Writer: Open writer
//   - error: If the file cannot be opened
func Create(path, generation string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec,mnd // capture files are not secret
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	return &Writer{file: f, enc: NewEncoder(f), generation: generation}, nil
}

// Record appends one chunk with the current time.
func (w *Writer) Record(dir Direction, data []byte) error {
	return w.Write(Record{
		Time:       time.Now(),
		Direction:  dir,
		Generation: w.generation,
		Data:       append([]byte(nil), data...),
	})
}

// Write appends a record as is.
func (w *Writer) Write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("capture: write record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close closes the file. It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// Reader reads records from a capture file in order.
type Reader struct {
	file *os.File
	dec  *cbor.Decoder
}

// Open opens a capture file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", path, err)
	}
	return &Reader{file: f, dec: NewDecoder(f)}, nil
}

// Next returns the next record, or io.EOF at the end of the file.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("capture: read record: %w", err)
	}
	return rec, nil
}

// All reads every remaining record.
func (r *Reader) All() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}

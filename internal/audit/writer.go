package audit

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-eltako/internal/bridges/eltako"
)

// writerChanSize is the buffer of the async writer. Entries beyond it are
// dropped so a slow disk never delays a command acknowledgement.
const writerChanSize = 256

// ErrQueueFull is returned when an entry is dropped.
var ErrQueueFull = errors.New("audit: queue full")

// Logger is the logging interface used by the Writer.
type Logger interface {
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

// Writer queues command entries and writes them serially in Run.
type Writer struct {
	repo   *SQLiteRepository
	ch     chan *Entry
	logger Logger
}

// NewWriter creates an async writer over repo.
func NewWriter(repo *SQLiteRepository, logger Logger) *Writer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Writer{
		repo:   repo,
		ch:     make(chan *Entry, writerChanSize),
		logger: logger,
	}
}

// RecordCommand enqueues a command entry. It implements
// eltako.CommandAuditor and never blocks.
func (w *Writer) RecordCommand(_ context.Context, cmd eltako.CommandMessage, ack eltako.AckMessage) error {
	select {
	case w.ch <- newEntry(cmd, ack):
		return nil
	default:
		return ErrQueueFull
	}
}

// Run writes queued entries until ctx is cancelled, then drains what is
// left before returning.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case e := <-w.ch:
			w.write(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-w.ch:
					w.write(e)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) write(e *Entry) {
	// The request that produced e may be gone; the write must still happen.
	if err := w.repo.Create(context.Background(), e); err != nil {
		w.logger.Error("command log write failed",
			"command_id", e.CommandID,
			"device_id", e.DeviceID,
			"error", err,
		)
	}
}

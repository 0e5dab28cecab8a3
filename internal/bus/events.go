package bus

import (
	"time"

	"github.com/nerrad567/gray-logic-eltako/internal/directory"
	"github.com/nerrad567/gray-logic-eltako/internal/eep"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean/esp2"
)

// Event is delivered to subscribers. It is one of EventDecoded,
// EventUnresolved, EventSkipped or EventSessionState.
type Event interface {
	isEvent()
	// At returns when the event was produced.
	At() time.Time
}

// EventDecoded is a telegram from a registered device, decoded with the
// device's profile and inverted when the entry asks for it.
type EventDecoded struct {
	Time     time.Time
	Entry    directory.Entry
	Telegram esp2.Telegram
	Value    eep.Value
}

// EventUnresolved is a radio telegram that could not be turned into a value.
// Err is nil when the sender is not in the directory, and carries the
// profile error when it is but decoding failed.
type EventUnresolved struct {
	Time     time.Time
	Telegram esp2.Telegram
	Entry    *directory.Entry
	Err      error
}

// EventSkipped is a frame that decoded cleanly but carries nothing the
// bridge handles, such as ESP3 EVENT packets or ESP2 command telegrams.
type EventSkipped struct {
	Time time.Time
	Raw  []byte
	Err  error
}

// EventSessionState reports a lifecycle transition. Err is set for Faulted.
type EventSessionState struct {
	Time  time.Time
	State State
	Err   error
}

func (EventDecoded) isEvent()      {}
func (EventUnresolved) isEvent()   {}
func (EventSkipped) isEvent()      {}
func (EventSessionState) isEvent() {}

// At returns the event time.
func (e EventDecoded) At() time.Time { return e.Time }

// At returns the event time.
func (e EventUnresolved) At() time.Time { return e.Time }

// At returns the event time.
func (e EventSkipped) At() time.Time { return e.Time }

// At returns the event time.
func (e EventSessionState) At() time.Time { return e.Time }

package directory

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-eltako/internal/eep"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

// Direction tells whether the bridge listens to a device or also sends to it.
type Direction string

// Directions.
const (
	// Listener devices are only decoded.
	Listener Direction = "listener"
	// Sender devices also accept commands, sent from Entry.Sender.
	Sender Direction = "sender"
)

// maxNameLength bounds device names.
const maxNameLength = 100

// Entry binds a bus address to its profile and handling options.
//
// Entries are immutable once registered: the directory stores a copy and
// hands out copies.
type Entry struct {
	// ID is the stable device identifier used in MQTT topics and the API.
	// It defaults to the address string.
	ID      string
	Address enocean.Address
	EEP     eep.ID
	Name    string

	// Invert flips the decoded value, for contacts and rockers mounted
	// upside down.
	Invert bool

	Direction Direction

	// Sender and SenderEEP are set for sender devices: the address commands
	// are sent from and the profile they are encoded with.
	Sender    *enocean.Address
	SenderEEP *eep.ID
}

// Key returns the entry's device identifier.
func (e Entry) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Address.String()
}

// CanSend reports whether commands can be sent to the device.
func (e Entry) CanSend() bool {
	return e.Direction == Sender && e.Sender != nil && e.SenderEEP != nil
}

// Clone returns a copy that shares no pointers with e.
func (e Entry) Clone() Entry {
	out := e
	if e.Sender != nil {
		s := *e.Sender
		out.Sender = &s
	}
	if e.SenderEEP != nil {
		id := *e.SenderEEP
		out.SenderEEP = &id
	}
	return out
}

// Equal reports whether two entries describe the same device.
func (e Entry) Equal(o Entry) bool {
	return e.Key() == o.Key() &&
		e.Address == o.Address &&
		e.EEP == o.EEP &&
		e.Name == o.Name &&
		e.Invert == o.Invert &&
		e.direction() == o.direction() &&
		equalPtr(e.Sender, o.Sender) &&
		equalPtr(e.SenderEEP, o.SenderEEP)
}

func (e Entry) direction() Direction {
	if e.Direction == "" {
		return Listener
	}
	return e.Direction
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Validate checks the entry for structural errors.
func (e Entry) Validate() error {
	if e.Address.IsZero() {
		return fmt.Errorf("%w: address is required", ErrInvalidEntry)
	}
	if _, ok := eep.Lookup(e.EEP); !ok {
		return fmt.Errorf("%w: %s: %w", ErrInvalidEntry, e.Address, eep.ErrUnknownProfile)
	}
	if len(e.Name) > maxNameLength {
		return fmt.Errorf("%w: %s: name longer than %d characters", ErrInvalidEntry, e.Address, maxNameLength)
	}
	if strings.TrimSpace(e.ID) != e.ID {
		return fmt.Errorf("%w: %s: id %q has surrounding space", ErrInvalidEntry, e.Address, e.ID)
	}

	switch e.direction() {
	case Listener:
	case Sender:
		if e.Sender == nil || e.SenderEEP == nil {
			return fmt.Errorf("%w: %s: sender devices need a sender address and profile", ErrInvalidEntry, e.Address)
		}
		p, ok := eep.Lookup(*e.SenderEEP)
		if !ok {
			return fmt.Errorf("%w: %s: sender %w", ErrInvalidEntry, e.Address, eep.ErrUnknownProfile)
		}
		if !p.Sender {
			return fmt.Errorf("%w: %s: %s cannot be used to send", ErrInvalidEntry, e.Address, p.ID)
		}
	default:
		return fmt.Errorf("%w: %s: direction %q", ErrInvalidEntry, e.Address, e.Direction)
	}
	return nil
}

package bus

import "errors"

// Session errors.
var (
	// ErrNoAck is returned when the gateway did not acknowledge a send
	// after every retry.
	ErrNoAck = errors.New("bus: no acknowledgement")

	// ErrSessionClosed is returned for operations on a closing or closed session.
	ErrSessionClosed = errors.New("bus: session closed")

	// ErrSessionFaulted is returned when the port failed. The session must be
	// reopened with a new port.
	ErrSessionFaulted = errors.New("bus: session faulted")

	// ErrNotOpen is returned when sending on a session that was never opened.
	ErrNotOpen = errors.New("bus: session not open")

	// ErrAlreadyOpen is returned by Open on a session that is open.
	ErrAlreadyOpen = errors.New("bus: session already open")

	// ErrUnknownDevice is returned when a command names neither a known
	// sender device nor a profile to encode with.
	ErrUnknownDevice = errors.New("bus: unknown device")

	// ErrUnhandledTelegram marks telegrams that are neither radio telegrams
	// nor gateway responses.
	ErrUnhandledTelegram = errors.New("bus: unhandled telegram")

	// ErrOrgMismatch is set on unresolved events whose telegram organisation
	// does not fit the registered profile.
	ErrOrgMismatch = errors.New("bus: organisation does not match profile")
)

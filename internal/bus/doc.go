// Package bus owns the serial link to an Eltako/EnOcean gateway.
//
// A Session reads bytes from a Port, frames them as ESP2 telegrams or ESP3
// packets, resolves each telegram's sender through a device directory and
// decodes the payload with the EEP registry. Results are delivered to
// subscribers as Events, each subscriber with its own bounded queue.
//
// Commands go the other way: Send encodes a profile value, builds a transmit
// telegram and writes it, waiting for the gateway acknowledgement where the
// gateway gives one.
//
// Lifecycle:
//
//	Closed → Opening → Open → Closing → Closed
//	                   Open → Faulted
//
// A Port I/O error moves the session to Faulted and releases the port.
// Reconnecting is left to the owner of the session, which opens a new port
// and calls Open again.
package bus

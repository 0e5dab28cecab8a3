// Package capture records raw gateway traffic to a CBOR file and plays it
// back.
//
// A capture file is a sequence of CBOR-encoded Records, one per port read
// or write, appended as they happen. Captures are taken with Tap and
// replayed through the regular bus session with a ReplayPort, so offline
// decoding runs the same framer, directory and profile path as live traffic.
package capture

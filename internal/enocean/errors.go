package enocean

import "errors"

// Frame errors shared by the ESP2 and ESP3 codecs.
//
// All of them are recoverable: the offending bytes are discarded and the
// stream is resynchronised. Use IsFrameError to test for the whole family.
var (
	// ErrTruncated is returned when fewer bytes are available than the
	// frame requires.
	ErrTruncated = errors.New("enocean: truncated frame")

	// ErrChecksumMismatch is returned when an ESP2 checksum does not match
	// the frame body.
	ErrChecksumMismatch = errors.New("enocean: checksum mismatch")

	// ErrHeaderCorrupt is returned when an ESP3 header CRC8 fails. The frame
	// boundary is unknown and the stream must be rescanned for a sync byte.
	ErrHeaderCorrupt = errors.New("enocean: header corrupt")

	// ErrPayloadCorrupt is returned when an ESP3 data CRC8 fails. The frame
	// boundary is known, so the stream stays aligned.
	ErrPayloadCorrupt = errors.New("enocean: payload corrupt")

	// ErrNoSync is returned when a frame does not start with the expected
	// sync sequence.
	ErrNoSync = errors.New("enocean: missing sync")

	// ErrInvalidAddress is returned when an address string cannot be parsed.
	ErrInvalidAddress = errors.New("enocean: invalid address")

	// ErrNeedMore is returned by a framer when the buffered bytes do not yet
	// hold a complete frame. It is not a frame error.
	ErrNeedMore = errors.New("enocean: need more data")
)

// IsFrameError reports whether err belongs to the frame error family.
func IsFrameError(err error) bool {
	return errors.Is(err, ErrTruncated) ||
		errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrHeaderCorrupt) ||
		errors.Is(err, ErrPayloadCorrupt) ||
		errors.Is(err, ErrNoSync)
}

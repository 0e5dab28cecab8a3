package eep

import "errors"

// Profile errors.
//
// Decode never fails on a value that is merely out of range: such values are
// clamped and flagged on the Scaled result. The errors below report payloads
// or values that cannot be interpreted at all.
var (
	// ErrUnknownProfile is returned for an EEP that is not in the registry.
	ErrUnknownProfile = errors.New("eep: unknown profile")

	// ErrShortPayload is returned when a payload is shorter than the profile
	// requires.
	ErrShortPayload = errors.New("eep: short payload")

	// ErrInvalidValue is returned for an undefined bit pattern on decode or
	// an unencodable value on encode.
	ErrInvalidValue = errors.New("eep: invalid value")

	// ErrValueType is returned when Encode receives a value variant the
	// profile does not produce.
	ErrValueType = errors.New("eep: wrong value type")

	// ErrInvalidID is returned when an EEP string cannot be parsed.
	ErrInvalidID = errors.New("eep: invalid identifier")
)

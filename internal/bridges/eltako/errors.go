package eltako

import "errors"

// Domain errors for the Eltako bridge package.
var (
	// ErrDeviceNotConfigured is returned when a command names a device
	// that is not in the directory.
	ErrDeviceNotConfigured = errors.New("eltako: device not configured")

	// ErrNotSender is returned when a command targets a device without a
	// sender address and profile.
	ErrNotSender = errors.New("eltako: device cannot be commanded")

	// ErrInvalidCommand is returned for a command the device's sender
	// profile does not support.
	ErrInvalidCommand = errors.New("eltako: invalid command")

	// ErrInvalidParameters is returned when command parameters are missing
	// or out of range.
	ErrInvalidParameters = errors.New("eltako: invalid parameters")
)

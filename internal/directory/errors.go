package directory

import (
	"errors"
	"fmt"
)

// Directory errors.
var (
	// ErrDuplicateAddress is returned when an address is registered twice
	// with different data.
	ErrDuplicateAddress = errors.New("directory: duplicate address")

	// ErrDuplicateID is returned when a device ID is reused for a different
	// address.
	ErrDuplicateID = errors.New("directory: duplicate device id")

	// ErrInvalidEntry is returned when an entry fails validation.
	ErrInvalidEntry = errors.New("directory: invalid entry")

	// ErrAddressMismatch is returned by the address validation helpers when
	// an address does not suit the gateway.
	ErrAddressMismatch = errors.New("directory: address does not match gateway")
)

// DuplicateAddressError carries both entries of a conflicting registration.
// It matches ErrDuplicateAddress with errors.Is.
type DuplicateAddressError struct {
	Existing    Entry
	Conflicting Entry
}

func (e *DuplicateAddressError) Error() string {
	return fmt.Sprintf("%s: %s is registered as %q (%s), cannot register %q (%s)",
		ErrDuplicateAddress, e.Existing.Address, e.Existing.Name, e.Existing.EEP,
		e.Conflicting.Name, e.Conflicting.EEP)
}

// Unwrap returns ErrDuplicateAddress.
func (e *DuplicateAddressError) Unwrap() error {
	return ErrDuplicateAddress
}

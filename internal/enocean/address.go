package enocean

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// addressLen is the number of bytes in a bus address.
const addressLen = 4

// Address is a 4-byte EnOcean/Eltako bus address (sender ID).
//
// Format: "01-02-03-04". Parsing also accepts ":" separators and the
// unseparated form "01020304".
type Address [addressLen]byte

// Broadcast is the all-ones address used for gateway-originated telegrams.
var Broadcast = Address{0xFF, 0xFF, 0xFF, 0xFF}

// ParseAddress parses an address string.
//
// Parameters:
//   - s: Address in "01-02-03-04", "01:02:03:04" or "01020304" form
//
// Returns:
//   - Address: Parsed address
//   - error: ErrInvalidAddress if the string is malformed
func ParseAddress(s string) (Address, error) {
	clean := strings.NewReplacer("-", "", ":", "", " ", "").Replace(strings.TrimSpace(s))
	if len(clean) != addressLen*2 { //nolint:mnd // two hex digits per byte
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, s, err)
	}

	var a Address
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error.
// Intended for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromUint32 builds an address from its big-endian integer form.
func AddressFromUint32(v uint32) Address {
	var a Address
	binary.BigEndian.PutUint32(a[:], v)
	return a
}

// Uint32 returns the big-endian integer form of the address.
func (a Address) Uint32() uint32 {
	return binary.BigEndian.Uint32(a[:])
}

// String formats the address as "01-02-03-04".
func (a Address) String() string {
	return fmt.Sprintf("%02X-%02X-%02X-%02X", a[0], a[1], a[2], a[3])
}

// IsZero reports whether the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

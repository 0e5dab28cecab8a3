package eep

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

// Profile classes. A5, D5 and F6 are radio RORGs; M5, G5 and H5 are the
// Eltako bus classes for actuator status and commands.
const (
	ClassA5 = "A5"
	ClassD5 = "D5"
	ClassF6 = "F6"
	ClassM5 = "M5"
	ClassG5 = "G5"
	ClassH5 = "H5"
)

// ID identifies an EnOcean Equipment Profile, e.g. A5-13-01.
//
// Class is kept textual because the Eltako classes are not hex RORG bytes.
type ID struct {
	Class string
	Func  uint8
	Type  uint8
}

// ParseID parses "RR-FF-TT". Class letters are case-insensitive.
func ParseID(s string) (ID, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 || len(parts[0]) != 2 { //nolint:mnd // RR-FF-TT
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	class := strings.ToUpper(parts[0])
	if _, ok := classRORG(class); !ok {
		return ID{}, fmt.Errorf("%w: unknown class in %q", ErrInvalidID, s)
	}

	fn, err := strconv.ParseUint(parts[1], 16, 8)
	if err != nil || len(parts[1]) != 2 {
		return ID{}, fmt.Errorf("%w: function in %q", ErrInvalidID, s)
	}
	typ, err := strconv.ParseUint(parts[2], 16, 8)
	if err != nil || len(parts[2]) != 2 {
		return ID{}, fmt.Errorf("%w: type in %q", ErrInvalidID, s)
	}

	return ID{Class: class, Func: uint8(fn), Type: uint8(typ)}, nil
}

// MustParseID is ParseID for constants; it panics on error.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical "RR-FF-TT" form.
func (id ID) String() string {
	return fmt.Sprintf("%s-%02X-%02X", id.Class, id.Func, id.Type)
}

// RORG returns the wire organisation the class travels in.
func (id ID) RORG() (enocean.RORG, bool) {
	return classRORG(id.Class)
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func classRORG(class string) (enocean.RORG, bool) {
	switch class {
	case ClassA5, ClassH5:
		return enocean.RORG4BS, true
	case ClassD5:
		return enocean.RORG1BS, true
	case ClassF6, ClassM5, ClassG5:
		return enocean.RORGRPS, true
	default:
		return 0, false
	}
}

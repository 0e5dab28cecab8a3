package eep

import "fmt"

// A5-38-08 central commands.
const (
	CommandSwitching = "switching"
	CommandDimming   = "dimming"
)

const (
	centralSwitching byte = 0x01
	centralDimming   byte = 0x02

	// dimRelativeBit is DB0.2: set for 0..100 dim values, clear for 0..255.
	dimRelativeBit = 2
)

var (
	dimRelative = linear{0, 100, 0, 100, "%"}
	dimAbsolute = linear{0, 255, 0, 100, "%"}
	dimRamp     = linear{0, 255, 0, 255, "s"}
)

// decodeCentralCommand decodes A5-38-08 switching and dimming commands.
// Dim values in the absolute range (DB0.2 clear) are rescaled to percent.
func decodeCentralCommand(p []byte) (Value, error) {
	on := Binary{bit(p[3], 0)}

	switch p[0] {
	case centralSwitching:
		return Composite{Fields: []Field{
			{FieldCommand, Enumerated{CommandSwitching}},
			{FieldOn, on},
		}}, nil

	case centralDimming:
		dim := dimAbsolute
		if bit(p[3], dimRelativeBit) {
			dim = dimRelative
		}
		return Composite{Fields: []Field{
			{FieldCommand, Enumerated{CommandDimming}},
			{FieldOn, on},
			{FieldDim, dim.decode(int(p[1]))},
			{FieldRamp, dimRamp.decode(int(p[2]))},
		}}, nil

	default:
		return nil, fmt.Errorf("%w: central command 0x%02X", ErrInvalidValue, p[0])
	}
}

// encodeCentralCommand always emits dim values in the relative range.
func encodeCentralCommand(c Composite) ([]byte, error) {
	cmd, err := stateField(c, FieldCommand)
	if err != nil {
		return nil, err
	}
	on, err := boolField(c, FieldOn, false)
	if err != nil {
		return nil, err
	}

	switch cmd {
	case CommandSwitching:
		return []byte{centralSwitching, 0, 0, dataDB0 | setBit(on, 0)}, nil

	case CommandDimming:
		dim, err := dimRelative.encodeField(c, FieldDim, 100) //nolint:mnd // full brightness
		if err != nil {
			return nil, err
		}
		ramp, err := dimRamp.encodeField(c, FieldRamp, 0)
		if err != nil {
			return nil, err
		}
		return []byte{centralDimming, dim, ramp, dataDB0 | setBit(true, dimRelativeBit) | setBit(on, 0)}, nil

	default:
		return nil, fmt.Errorf("%w: central command %q", ErrInvalidValue, cmd)
	}
}

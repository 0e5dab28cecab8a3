package eep

import "fmt"

// Heater modes carried in DB3 of A5-10-06.
const (
	ModeNormal       = "normal"
	ModeStandby      = "standby_2"
	ModeNightSetback = "night_setback_4"
	ModeOff          = "off"
)

// A5-10-06 DB0: 0x0E unlocked, 0x0F locked.
const (
	heaterLockedBit   = 0
	heaterDB0Unlocked = 0x0E
)

var heaterModes = map[byte]string{
	0x00: ModeNormal,
	0x19: ModeStandby,
	0x0C: ModeNightSetback,
	0x06: ModeOff,
}

var (
	heaterTarget  = linear{0, 255, 0, 40, "°C"}
	heaterCurrent = linear{255, 0, 0, 40, "°C"}
)

// decodeHeater decodes A5-10-06. The current temperature uses an inverted
// raw curve: 255 is 0 °C and 0 is 40 °C.
func decodeHeater(p []byte) (Value, error) {
	mode, ok := heaterModes[p[0]]
	if !ok {
		return nil, fmt.Errorf("%w: heater mode 0x%02X", ErrInvalidValue, p[0])
	}
	return Composite{Fields: []Field{
		{FieldMode, Enumerated{mode}},
		{FieldTarget, heaterTarget.decode(int(p[1]))},
		{FieldCurrent, heaterCurrent.decode(int(p[2]))},
		{FieldLocked, Binary{bit(p[3], heaterLockedBit)}},
	}}, nil
}

func encodeHeater(c Composite) ([]byte, error) {
	mode, err := stateField(c, FieldMode)
	if err != nil {
		return nil, err
	}
	var db3 byte
	found := false
	for raw, name := range heaterModes {
		if name == mode {
			db3, found = raw, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: heater mode %q", ErrInvalidValue, mode)
	}

	target, err := heaterTarget.encodeField(c, FieldTarget, 0)
	if err != nil {
		return nil, err
	}
	current, err := heaterCurrent.encodeField(c, FieldCurrent, 0)
	if err != nil {
		return nil, err
	}
	locked, err := boolField(c, FieldLocked, false)
	if err != nil {
		return nil, err
	}
	return []byte{db3, target, current, heaterDB0Unlocked | setBit(locked, heaterLockedBit)}, nil
}

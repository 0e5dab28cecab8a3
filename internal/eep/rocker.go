package eep

import "fmt"

// rockerLayout maps the 2-bit rocker action code onto button names.
type rockerLayout uint8

const (
	// rockerEltako is the Eltako assignment: 3=AI, 2=A0, 1=BI, 0=B0.
	rockerEltako rockerLayout = iota
	// rockerStandard is the EnOcean assignment: 0=AI, 1=A0, 2=BI, 3=B0.
	rockerStandard
)

// RPS rocker bit layout.
const (
	rockerCodeShift   = 5
	rockerEnergyBow   = 4
	rockerSecondShift = 1
	rockerCodeMask    = 0x07
	rockerMaxCode     = 3
)

var rockerButtons = [...][4]string{
	rockerEltako:   {"B0", "BI", "A0", "AI"},
	rockerStandard: {"AI", "A0", "BI", "B0"},
}

// Physical positions: left/right rocker, top/bottom.
var rockerPositions = [...][4]string{
	rockerEltako:   {"LB", "LT", "RB", "RT"},
	rockerStandard: {"LT", "LB", "RT", "RB"},
}

func (l rockerLayout) code(name string) (byte, bool) {
	for i := range rockerButtons[l] {
		if rockerButtons[l][i] == name || rockerPositions[l][i] == name {
			return byte(i), true
		}
	}
	return 0, false
}

// decodeRocker decodes F6-02-01 / F6-02-02.
func decodeRocker(l rockerLayout, b byte) (Value, error) {
	first := b >> rockerCodeShift & rockerCodeMask
	second := b >> rockerSecondShift & rockerCodeMask
	secondAction := bit(b, 0)

	if first > rockerMaxCode {
		return nil, fmt.Errorf("%w: rocker action %d in 0x%02X", ErrInvalidValue, first, b)
	}
	if secondAction && second > rockerMaxCode {
		return nil, fmt.Errorf("%w: second rocker action %d in 0x%02X", ErrInvalidValue, second, b)
	}

	c := Composite{Fields: []Field{
		{FieldButton, Enumerated{rockerButtons[l][first]}},
		{FieldPosition, Enumerated{rockerPositions[l][first]}},
		{FieldPressed, Binary{bit(b, rockerEnergyBow)}},
		{FieldSecondAction, Binary{secondAction}},
	}}
	if secondAction {
		c.Fields = append(c.Fields, Field{FieldSecondButton, Enumerated{rockerButtons[l][second]}})
	}
	return c, nil
}

func encodeRocker(l rockerLayout, c Composite) ([]byte, error) {
	pressed, err := boolField(c, FieldPressed, true)
	if err != nil {
		return nil, err
	}
	if !pressed {
		// A release names no button.
		return []byte{0x00}, nil
	}

	name, err := stateField(c, FieldButton)
	if err != nil {
		// Accept a physical position in place of a button name.
		name, err = stateField(c, FieldPosition)
		if err != nil {
			return nil, err
		}
	}
	first, ok := l.code(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown rocker button %q", ErrInvalidValue, name)
	}

	b := first<<rockerCodeShift | 1<<rockerEnergyBow

	if v, ok := c.Get(FieldSecondButton); ok {
		e, ok := v.(Enumerated)
		if !ok {
			return nil, fmt.Errorf("%w: field %s is %T, want Enumerated", ErrValueType, FieldSecondButton, v)
		}
		second, ok := l.code(e.State)
		if !ok {
			return nil, fmt.Errorf("%w: unknown rocker button %q", ErrInvalidValue, e.State)
		}
		b |= second<<rockerSecondShift | 1
	}
	return []byte{b}, nil
}

// Window handle positions, bits 6..4 of the RPS byte.
const (
	handleShift  = 4
	handleMask   = 0x07
	handleClosed = 0x07
	handleTilted = 0x05
)

// Window and cover states.
const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateTilted = "tilted"
)

func decodeWindowHandle(b byte) (Value, error) {
	switch b >> handleShift & handleMask {
	case handleClosed:
		return Enumerated{StateClosed}, nil
	case 0x04, 0x06: //nolint:mnd // both horizontal positions
		return Enumerated{StateOpen}, nil
	case handleTilted:
		return Enumerated{StateTilted}, nil
	default:
		return nil, fmt.Errorf("%w: window handle 0x%02X", ErrInvalidValue, b)
	}
}

func encodeWindowHandle(v Value) ([]byte, error) {
	e, ok := v.(Enumerated)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want Enumerated", ErrValueType, v)
	}
	switch e.State {
	case StateClosed:
		return []byte{0xF0}, nil
	case StateOpen:
		return []byte{0xC0}, nil
	case StateTilted:
		return []byte{0xD0}, nil
	default:
		return nil, fmt.Errorf("%w: window handle state %q", ErrInvalidValue, e.State)
	}
}

// decodeContact decodes D5-00-01. Contact is on when closed; learn is on for
// a teach-in telegram.
func decodeContact(b byte) Value {
	return Composite{Fields: []Field{
		{FieldContact, Binary{bit(b, 0)}},
		{FieldLearn, Binary{!bit(b, learnBit)}},
	}}
}

func encodeContact(c Composite) ([]byte, error) {
	closed, err := boolField(c, FieldContact, false)
	if err != nil {
		return nil, err
	}
	learn, err := boolField(c, FieldLearn, false)
	if err != nil {
		return nil, err
	}
	return []byte{setBit(closed, 0) | setBit(!learn, learnBit)}, nil
}

// M5-38-08 relay status.
const relayStateBit = 5

func decodeRelayState(b byte) Value {
	return Binary{bit(b, relayStateBit)}
}

func encodeRelayState(v Value) ([]byte, error) {
	b, ok := v.(Binary)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want Binary", ErrValueType, v)
	}
	if b.On {
		return []byte{0x70}, nil
	}
	return []byte{0x50}, nil
}

package eep

import "fmt"

// Cover states reported by G5-3F-7F.
const (
	StateOpening = "opening"
	StateClosing = "closing"
	StateStopped = "stopped"
)

// Cover commands accepted by H5-3F-7F.
const (
	CoverStop = "stop"
	CoverUp   = "up"
	CoverDown = "down"
)

// RPS cover status bytes.
const (
	coverRPSOpen    byte = 0x70
	coverRPSClosed  byte = 0x50
	coverRPSOpening byte = 0x01
	coverRPSClosing byte = 0x02
)

// DB1 direction codes shared by the 4BS status and command forms.
var coverDirections = [...]string{0: StateStopped, 1: StateOpening, 2: StateClosing}

var coverCommands = [...]string{0: CoverStop, 1: CoverUp, 2: CoverDown}

// coverCommandAliases lets callers use the cover vocabulary for commands.
var coverCommandAliases = map[string]string{StateOpen: CoverUp, "close": CoverDown}

var coverPosition = linear{0, 100, 0, 100, "%"}

// decodeCoverStatus decodes G5-3F-7F in either of its forms: a single RPS
// status byte or a 4BS position report.
func decodeCoverStatus(p []byte) (Value, error) {
	if len(p) < 4 { //nolint:mnd // 4BS form
		return decodeCoverStatusRPS(p[0])
	}

	dir := int(p[2])
	if dir >= len(coverDirections) {
		return nil, fmt.Errorf("%w: cover direction 0x%02X", ErrInvalidValue, p[2])
	}
	return Composite{Fields: []Field{
		{FieldState, Enumerated{coverDirections[dir]}},
		{FieldPosition, coverPosition.decode(int(p[0]))},
	}}, nil
}

func decodeCoverStatusRPS(b byte) (Value, error) {
	switch b {
	case coverRPSOpen:
		return Composite{Fields: []Field{
			{FieldState, Enumerated{StateOpen}},
			{FieldPosition, coverPosition.decode(100)}, //nolint:mnd // fully open
		}}, nil
	case coverRPSClosed:
		return Composite{Fields: []Field{
			{FieldState, Enumerated{StateClosed}},
			{FieldPosition, coverPosition.decode(0)},
		}}, nil
	case coverRPSOpening:
		return Composite{Fields: []Field{{FieldState, Enumerated{StateOpening}}}}, nil
	case coverRPSClosing:
		return Composite{Fields: []Field{{FieldState, Enumerated{StateClosing}}}}, nil
	default:
		return nil, fmt.Errorf("%w: cover status 0x%02X", ErrInvalidValue, b)
	}
}

// encodeCoverStatus emits the RPS form when the state needs no position
// (open at 100 %, closed at 0 %, moving without a position) and the 4BS form
// otherwise.
func encodeCoverStatus(c Composite) ([]byte, error) {
	state, err := stateField(c, FieldState)
	if err != nil {
		return nil, err
	}
	pos, hasPos := c.Number(FieldPosition)

	switch {
	case state == StateOpen && (!hasPos || pos == 100): //nolint:mnd // fully open
		return []byte{coverRPSOpen}, nil
	case state == StateClosed && (!hasPos || pos == 0):
		return []byte{coverRPSClosed}, nil
	case state == StateOpening && !hasPos:
		return []byte{coverRPSOpening}, nil
	case state == StateClosing && !hasPos:
		return []byte{coverRPSClosing}, nil
	}

	for dir, name := range coverDirections {
		if name != state {
			continue
		}
		raw, err := coverPosition.encodeField(c, FieldPosition, 0)
		if err != nil {
			return nil, err
		}
		return []byte{raw, 0, byte(dir), dataDB0}, nil
	}
	return nil, fmt.Errorf("%w: cover state %q at position %g", ErrInvalidValue, state, pos)
}

// decodeCoverCommand decodes H5-3F-7F.
func decodeCoverCommand(p []byte) (Value, error) {
	cmd := int(p[2])
	if cmd >= len(coverCommands) {
		return nil, fmt.Errorf("%w: cover command 0x%02X", ErrInvalidValue, p[2])
	}
	return Composite{Fields: []Field{
		{FieldCommand, Enumerated{coverCommands[cmd]}},
		{FieldPosition, coverPosition.decode(int(p[0]))},
	}}, nil
}

func encodeCoverCommand(c Composite) ([]byte, error) {
	cmd, err := stateField(c, FieldCommand)
	if err != nil {
		return nil, err
	}
	if alias, ok := coverCommandAliases[cmd]; ok {
		cmd = alias
	}
	for code, name := range coverCommands {
		if name != cmd {
			continue
		}
		raw, err := coverPosition.encodeField(c, FieldPosition, 0)
		if err != nil {
			return nil, err
		}
		return []byte{raw, 0, byte(code), dataDB0}, nil
	}
	return nil, fmt.Errorf("%w: cover command %q", ErrInvalidValue, cmd)
}

package eltako

import (
	"fmt"
	"math"
	"strings"

	"github.com/nerrad567/gray-logic-eltako/internal/directory"
	"github.com/nerrad567/gray-logic-eltako/internal/eep"
)

// Command names accepted on the command topic and the API.
const (
	CommandOn             = "on"
	CommandOff            = "off"
	CommandDim            = "dim"
	CommandOpen           = "open"
	CommandClose          = "close"
	CommandStop           = "stop"
	CommandSetPosition    = "set_position"
	CommandSetTemperature = "set_temperature"
	CommandSetMode        = "set_mode"
	CommandPress          = "press"
)

// Rocker buttons used to emulate a wall switch: the upper half of the left
// rocker switches on, the lower half switches off.
const (
	rockerOn  = "AI"
	rockerOff = "A0"
)

// maxRamp is the largest A5-38-08 ramp time in seconds.
const maxRamp = 255

var (
	profileCentral    = eep.MustParseID("A5-38-08")
	profileRockerElt  = eep.MustParseID("F6-02-01")
	profileRockerStd  = eep.MustParseID("F6-02-02")
	profileCoverCmd   = eep.MustParseID("H5-3F-7F")
	profileCoverState = eep.MustParseID("G5-3F-7F")
	profileHeater     = eep.MustParseID("A5-10-06")
)

// deviceState is what the bridge last learned about a device, used where a
// command depends on the current state.
type deviceState struct {
	position    *float64
	current     *float64
	target      *float64
	mode        string
	lastCommand eep.Composite
}

// translate turns a command into the values to send, in order.
//
// Parameters:
//   - entry: Target device; must be able to send
//   - cmd: Command name and parameters
//   - st: Last known device state; may be nil
//
// Returns:
//   - []eep.Value: One value per telegram; empty for a no-op
//   - error: Wraps ErrInvalidCommand or ErrInvalidParameters
func translate(entry directory.Entry, cmd CommandMessage, st *deviceState) ([]eep.Value, error) {
	if !entry.CanSend() {
		return nil, fmt.Errorf("%w: %s has no sender", ErrNotSender, entry.Key())
	}

	switch *entry.SenderEEP {
	case profileCentral:
		return translateCentral(entry, cmd)
	case profileRockerElt, profileRockerStd:
		return translateRocker(cmd)
	case profileCoverCmd:
		return translateCover(cmd, st)
	case profileHeater:
		return translateHeater(cmd, st)
	default:
		return nil, fmt.Errorf("%w: sender profile %s does not take commands",
			ErrInvalidCommand, entry.SenderEEP)
	}
}

// translateCentral maps light commands onto A5-38-08. Dimmer actuators
// (devices reporting A5-38-08 themselves) are switched with dimming
// telegrams so that "on" restores full brightness; relays get switching
// telegrams.
func translateCentral(entry directory.Entry, cmd CommandMessage) ([]eep.Value, error) {
	dimmer := entry.EEP == profileCentral

	switch cmd.Command {
	case CommandOn, CommandOff:
		on := cmd.Command == CommandOn
		if !dimmer {
			return []eep.Value{eep.Composite{Fields: []eep.Field{
				{Name: eep.FieldCommand, Value: eep.Enumerated{State: eep.CommandSwitching}},
				{Name: eep.FieldOn, Value: eep.Binary{On: on}},
			}}}, nil
		}
		level := 0.0
		if on {
			level = 100
		}
		return []eep.Value{dimming(on, level, 0)}, nil

	case CommandDim:
		level, err := percentParam(cmd.Parameters, "level")
		if err != nil {
			return nil, err
		}
		ramp := 0.0
		if _, ok := cmd.Parameters["ramp"]; ok {
			ramp, err = numberParam(cmd.Parameters, "ramp", 0, maxRamp)
			if err != nil {
				return nil, err
			}
		}
		return []eep.Value{dimming(level > 0, level, ramp)}, nil

	default:
		return nil, unsupported(cmd, entry.SenderEEP)
	}
}

func dimming(on bool, level, ramp float64) eep.Composite {
	return eep.Composite{Fields: []eep.Field{
		{Name: eep.FieldCommand, Value: eep.Enumerated{State: eep.CommandDimming}},
		{Name: eep.FieldOn, Value: eep.Binary{On: on}},
		{Name: eep.FieldDim, Value: eep.Scaled{Value: level, Unit: "%", Max: 100}},
		{Name: eep.FieldRamp, Value: eep.Scaled{Value: ramp, Unit: "s", Max: maxRamp}},
	}}
}

// translateRocker emulates a wall switch: a press followed by a release.
func translateRocker(cmd CommandMessage) ([]eep.Value, error) {
	var button string
	switch cmd.Command {
	case CommandOn:
		button = rockerOn
	case CommandOff:
		button = rockerOff
	case CommandPress:
		b, ok := cmd.Parameters["button"].(string)
		if !ok || b == "" {
			return nil, fmt.Errorf("%w: 'button' must be a rocker button name", ErrInvalidParameters)
		}
		button = strings.ToUpper(b)
	default:
		return nil, unsupported(cmd, nil)
	}

	press := eep.Composite{Fields: []eep.Field{
		{Name: eep.FieldButton, Value: eep.Enumerated{State: button}},
		{Name: eep.FieldPressed, Value: eep.Binary{On: true}},
	}}
	release := eep.Composite{Fields: []eep.Field{
		{Name: eep.FieldPressed, Value: eep.Binary{On: false}},
	}}
	return []eep.Value{press, release}, nil
}

// translateCover maps cover commands onto H5-3F-7F. The position field is
// the target in percent open; the direction must agree with it, so
// set_position needs the last reported position unless the target is an
// end stop.
func translateCover(cmd CommandMessage, st *deviceState) ([]eep.Value, error) {
	switch cmd.Command {
	case CommandOpen:
		return []eep.Value{coverCommand(eep.CoverUp, coverOpen)}, nil
	case CommandClose:
		return []eep.Value{coverCommand(eep.CoverDown, coverClosed)}, nil
	case CommandStop:
		pos := coverClosed
		if st != nil && st.position != nil {
			pos = *st.position
		}
		return []eep.Value{coverCommand(eep.CoverStop, pos)}, nil

	case CommandSetPosition:
		target, err := percentParam(cmd.Parameters, "position")
		if err != nil {
			return nil, err
		}
		target = math.Round(target)
		if st == nil || st.position == nil {
			switch target {
			case coverOpen:
				return []eep.Value{coverCommand(eep.CoverUp, target)}, nil
			case coverClosed:
				return []eep.Value{coverCommand(eep.CoverDown, target)}, nil
			}
			return nil, fmt.Errorf("%w: current position unknown, only 0 or 100 can be set", ErrInvalidParameters)
		}
		switch current := math.Round(*st.position); {
		case target > current:
			return []eep.Value{coverCommand(eep.CoverUp, target)}, nil
		case target < current:
			return []eep.Value{coverCommand(eep.CoverDown, target)}, nil
		}
		return nil, nil

	default:
		return nil, unsupported(cmd, &profileCoverCmd)
	}
}

// End stops in percent open.
const (
	coverOpen   = 100.0
	coverClosed = 0.0
)

func coverCommand(direction string, target float64) eep.Composite {
	return eep.Composite{Fields: []eep.Field{
		{Name: eep.FieldCommand, Value: eep.Enumerated{State: direction}},
		{Name: eep.FieldPosition, Value: eep.Scaled{Value: math.Round(target), Unit: "%", Max: 100}},
	}}
}

// translateHeater maps heating commands onto A5-10-06. The actuator needs
// the room temperature in every telegram; the last reported one is used,
// falling back to the set point.
func translateHeater(cmd CommandMessage, st *deviceState) ([]eep.Value, error) {
	mode := eep.ModeNormal
	target := 0.0
	current := 0.0
	if st != nil {
		if st.mode != "" {
			mode = st.mode
		}
		if st.target != nil {
			target = *st.target
		}
	}

	switch cmd.Command {
	case CommandSetTemperature:
		t, err := numberParam(cmd.Parameters, "temperature", 0, 40) //nolint:mnd // A5-10-06 range
		if err != nil {
			return nil, err
		}
		target = t
		mode = eep.ModeNormal
	case CommandSetMode:
		m, ok := cmd.Parameters["mode"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: 'mode' must be a string", ErrInvalidParameters)
		}
		switch m {
		case eep.ModeNormal, eep.ModeStandby, eep.ModeNightSetback, eep.ModeOff:
			mode = m
		default:
			return nil, fmt.Errorf("%w: unknown heating mode %q", ErrInvalidParameters, m)
		}
	case CommandOn:
		mode = eep.ModeNormal
	case CommandOff:
		mode = eep.ModeOff
	default:
		return nil, unsupported(cmd, &profileHeater)
	}

	current = target
	if st != nil && st.current != nil {
		current = *st.current
	}

	return []eep.Value{eep.Composite{Fields: []eep.Field{
		{Name: eep.FieldMode, Value: eep.Enumerated{State: mode}},
		{Name: eep.FieldTarget, Value: eep.Scaled{Value: target, Unit: "°C", Max: 40}},
		{Name: eep.FieldCurrent, Value: eep.Scaled{Value: current, Unit: "°C", Max: 40}},
		{Name: eep.FieldLocked, Value: eep.Binary{On: false}},
	}}}, nil
}

func unsupported(cmd CommandMessage, profile *eep.ID) error {
	if profile == nil {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, cmd.Command)
	}
	return fmt.Errorf("%w: %q is not supported by %s", ErrInvalidCommand, cmd.Command, profile)
}

// percentParam reads a 0..100 number parameter.
func percentParam(params map[string]any, name string) (float64, error) {
	return numberParam(params, name, 0, 100) //nolint:mnd // percent
}

// numberParam reads a numeric parameter. JSON numbers arrive as float64.
func numberParam(params map[string]any, name string, lo, hi float64) (float64, error) {
	raw, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing '%s' parameter", ErrInvalidParameters, name)
	}
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case int:
		v = float64(x)
	default:
		return 0, fmt.Errorf("%w: '%s' must be a number", ErrInvalidParameters, name)
	}
	if math.IsNaN(v) || v < lo || v > hi {
		return 0, fmt.Errorf("%w: '%s' must be %g-%g, got %.2f", ErrInvalidParameters, name, lo, hi, v)
	}
	return v, nil
}

// observe folds a decoded value into the device state.
func (st *deviceState) observe(profile eep.ID, v eep.Value) {
	c, ok := v.(eep.Composite)
	if !ok {
		return
	}
	switch profile {
	case profileCoverState:
		if pos, ok := c.Number(eep.FieldPosition); ok {
			st.position = &pos
		}
	case profileHeater:
		if cur, ok := c.Number(eep.FieldCurrent); ok {
			st.current = &cur
		}
		if mode, ok := c.State(eep.FieldMode); ok {
			st.mode = mode
			if mode != eep.ModeOff {
				if t, ok := c.Number(eep.FieldTarget); ok {
					st.target = &t
				}
			}
		}
	}
}

// commanded records a heating command for the periodic resend.
func (st *deviceState) commanded(profile eep.ID, v eep.Value) {
	c, ok := v.(eep.Composite)
	if !ok || profile != profileHeater {
		return
	}
	st.lastCommand = c
	if mode, ok := c.State(eep.FieldMode); ok {
		st.mode = mode
	}
	if t, ok := c.Number(eep.FieldTarget); ok {
		st.target = &t
	}
}

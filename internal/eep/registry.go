package eep

import (
	"fmt"
	"slices"
	"sort"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

// kind selects the codec of a profile. The set is closed: adding a profile
// means adding a kind and its cases in decode and encode.
type kind uint8

const (
	kindRocker kind = iota
	kindWindowHandle
	kindContact
	kindOccupancy
	kindTempHumidity
	kindVOC
	kindHeater
	kindRoomPanel
	kindMeter
	kindWeather
	kindCentralCommand
	kindRelayState
	kindCoverStatus
	kindCoverCommand
)

// Profile describes one registered EEP.
type Profile struct {
	ID          ID
	Description string

	// Orgs lists the ESP2 organisations the profile travels in, primary first.
	Orgs []enocean.ORG

	// MinLen is the shortest payload Decode accepts.
	MinLen int

	// Sender is true for profiles used to emit commands.
	Sender bool

	kind   kind
	layout rockerLayout
	medium meterMedium

	// invert names the Composite fields Invert flips. An empty list means
	// the value itself is flipped.
	invert []string
}

var (
	rps = []enocean.ORG{enocean.OrgRPS}
	obs = []enocean.ORG{enocean.Org1BS}
	fbs = []enocean.ORG{enocean.Org4BS}
)

var catalogue = []Profile{
	{ID: MustParseID("F6-02-01"), Description: "Rocker switch, 2 rockers (Eltako layout)", Orgs: rps, MinLen: 1, Sender: true,
		kind: kindRocker, layout: rockerEltako, invert: []string{FieldButton, FieldPosition, FieldSecondButton}},
	{ID: MustParseID("F6-02-02"), Description: "Rocker switch, 2 rockers (EnOcean layout)", Orgs: rps, MinLen: 1, Sender: true,
		kind: kindRocker, layout: rockerStandard, invert: []string{FieldButton, FieldPosition, FieldSecondButton}},
	{ID: MustParseID("F6-10-00"), Description: "Window handle", Orgs: rps, MinLen: 1,
		kind: kindWindowHandle},
	{ID: MustParseID("D5-00-01"), Description: "Single input contact", Orgs: obs, MinLen: 1,
		kind: kindContact, invert: []string{FieldContact}},
	{ID: MustParseID("A5-04-02"), Description: "Temperature and humidity sensor, -20..60 °C", Orgs: fbs, MinLen: 4,
		kind: kindTempHumidity},
	{ID: MustParseID("A5-08-01"), Description: "Light, temperature and occupancy sensor", Orgs: fbs, MinLen: 4,
		kind: kindOccupancy, invert: []string{FieldMotion}},
	{ID: MustParseID("A5-09-0C"), Description: "Volatile organic compounds", Orgs: fbs, MinLen: 4,
		kind: kindVOC},
	{ID: MustParseID("A5-10-06"), Description: "Room operating panel, set point and temperature", Orgs: fbs, MinLen: 4, Sender: true,
		kind: kindHeater},
	{ID: MustParseID("A5-10-12"), Description: "Room operating panel, set point, humidity and temperature", Orgs: fbs, MinLen: 4,
		kind: kindRoomPanel},
	{ID: MustParseID("A5-12-01"), Description: "Automated meter reading, electricity", Orgs: fbs, MinLen: 4,
		kind: kindMeter, medium: meterElectricity},
	{ID: MustParseID("A5-12-02"), Description: "Automated meter reading, gas", Orgs: fbs, MinLen: 4,
		kind: kindMeter, medium: meterGas},
	{ID: MustParseID("A5-12-03"), Description: "Automated meter reading, water", Orgs: fbs, MinLen: 4,
		kind: kindMeter, medium: meterWater},
	{ID: MustParseID("A5-13-01"), Description: "Weather station, dawn, temperature, wind and rain", Orgs: fbs, MinLen: 3,
		kind: kindWeather},
	{ID: MustParseID("A5-38-08"), Description: "Central command, switching and dimming", Orgs: fbs, MinLen: 4, Sender: true,
		kind: kindCentralCommand, invert: []string{FieldOn}},
	{ID: MustParseID("M5-38-08"), Description: "Eltako relay status", Orgs: rps, MinLen: 1, Sender: true,
		kind: kindRelayState},
	{ID: MustParseID("G5-3F-7F"), Description: "Eltako cover status", Orgs: []enocean.ORG{enocean.OrgRPS, enocean.Org4BS}, MinLen: 1,
		kind: kindCoverStatus, invert: []string{FieldState}},
	{ID: MustParseID("H5-3F-7F"), Description: "Eltako cover command", Orgs: fbs, MinLen: 4, Sender: true,
		kind: kindCoverCommand, invert: []string{FieldCommand}},
}

var index = func() map[ID]Profile {
	m := make(map[ID]Profile, len(catalogue))
	for _, p := range catalogue {
		m[p.ID] = p
	}
	return m
}()

// Profiles returns every registered profile sorted by identifier.
func Profiles() []Profile {
	out := make([]Profile, len(catalogue))
	copy(out, catalogue)
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// Lookup returns the profile registered for id.
func Lookup(id ID) (Profile, bool) {
	p, ok := index[id]
	return p, ok
}

func lookup(id ID) (Profile, error) {
	p, ok := index[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, id)
	}
	return p, nil
}

// Decode interprets a profile payload.
//
// The payload is the telegram's meaningful data: one byte for RPS and 1BS,
// four bytes (DB3 first) for 4BS.
//
// Parameters:
//   - id: Profile identifier
//   - payload: Profile payload bytes
//
// Returns:
//   - Value: Decoded value
//   - error: ErrUnknownProfile, ErrShortPayload or ErrInvalidValue
func Decode(id ID, payload []byte) (Value, error) {
	p, err := lookup(id)
	if err != nil {
		return nil, err
	}
	if len(payload) < p.MinLen {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortPayload, id, p.MinLen, len(payload))
	}

	switch p.kind {
	case kindRocker:
		return decodeRocker(p.layout, payload[0])
	case kindWindowHandle:
		return decodeWindowHandle(payload[0])
	case kindContact:
		return decodeContact(payload[0]), nil
	case kindOccupancy:
		return decodeOccupancy(payload), nil
	case kindTempHumidity:
		return decodeTempHumidity(payload), nil
	case kindVOC:
		return decodeVOC(payload), nil
	case kindHeater:
		return decodeHeater(payload)
	case kindRoomPanel:
		return decodeRoomPanel(payload), nil
	case kindMeter:
		return decodeMeter(p.medium, payload), nil
	case kindWeather:
		return decodeWeather(payload), nil
	case kindCentralCommand:
		return decodeCentralCommand(payload)
	case kindRelayState:
		return decodeRelayState(payload[0]), nil
	case kindCoverStatus:
		return decodeCoverStatus(payload)
	case kindCoverCommand:
		return decodeCoverCommand(payload)
	default:
		return nil, fmt.Errorf("%w: %s has no decoder", ErrUnknownProfile, id)
	}
}

// Encode builds a profile payload from a value.
//
// Parameters:
//   - id: Profile identifier
//   - v: Value of the variant the profile decodes to
//
// Returns:
//   - []byte: Payload sized for the profile's organisation (see OrgFor)
//   - error: ErrUnknownProfile, ErrValueType or ErrInvalidValue
func Encode(id ID, v Value) ([]byte, error) {
	p, err := lookup(id)
	if err != nil {
		return nil, err
	}

	var out []byte
	switch p.kind {
	case kindRocker:
		out, err = withComposite(v, func(c Composite) ([]byte, error) { return encodeRocker(p.layout, c) })
	case kindWindowHandle:
		out, err = encodeWindowHandle(v)
	case kindContact:
		out, err = withComposite(v, encodeContact)
	case kindOccupancy:
		out, err = withComposite(v, encodeOccupancy)
	case kindTempHumidity:
		out, err = withComposite(v, encodeTempHumidity)
	case kindVOC:
		out, err = withComposite(v, encodeVOC)
	case kindHeater:
		out, err = withComposite(v, encodeHeater)
	case kindRoomPanel:
		out, err = withComposite(v, encodeRoomPanel)
	case kindMeter:
		out, err = withComposite(v, func(c Composite) ([]byte, error) { return encodeMeter(p.medium, c) })
	case kindWeather:
		out, err = withComposite(v, encodeWeather)
	case kindCentralCommand:
		out, err = withComposite(v, encodeCentralCommand)
	case kindRelayState:
		out, err = encodeRelayState(v)
	case kindCoverStatus:
		out, err = withComposite(v, encodeCoverStatus)
	case kindCoverCommand:
		out, err = withComposite(v, encodeCoverCommand)
	default:
		return nil, fmt.Errorf("%w: %s has no encoder", ErrUnknownProfile, id)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", id, err)
	}
	return out, nil
}

// OrgFor returns the ESP2 organisation a payload of the profile travels in.
// Profiles with more than one organisation are told apart by payload length.
func OrgFor(id ID, payload []byte) (enocean.ORG, error) {
	p, err := lookup(id)
	if err != nil {
		return 0, err
	}
	for _, org := range p.Orgs {
		if org.PayloadLen() == len(payload) {
			return org, nil
		}
	}
	return 0, fmt.Errorf("%w: %s has no organisation for %d-byte payload", ErrInvalidValue, id, len(payload))
}

func withComposite(v Value, fn func(Composite) ([]byte, error)) ([]byte, error) {
	c, ok := v.(Composite)
	if !ok {
		return nil, fmt.Errorf("%w: got %T, want Composite", ErrValueType, v)
	}
	return fn(c)
}

// invertPairs are the Enumerated states that swap under inversion.
var invertPairs = map[string]string{
	"AI": "A0", "A0": "AI",
	"BI": "B0", "B0": "BI",
	"RT": "RB", "RB": "RT",
	"LT": "LB", "LB": "LT",
	"open": "closed", "closed": "open",
	"opening": "closing", "closing": "opening",
	"up": "down", "down": "up",
}

// Invert flips the polarity of a value for devices wired or mounted in
// reverse. Binary values and paired Enumerated states are swapped; Scaled
// values are never touched. Apply it after Decode and before Encode.
//
// For composite profiles only the fields that carry the device state are
// flipped. An unknown id returns v unchanged.
func Invert(id ID, v Value) Value {
	p, ok := index[id]
	if !ok {
		return v
	}

	c, ok := v.(Composite)
	if !ok {
		return invertOne(v)
	}

	out := Composite{Fields: make([]Field, len(c.Fields))}
	for i, f := range c.Fields {
		if slices.Contains(p.invert, f.Name) {
			f.Value = invertOne(f.Value)
		}
		out.Fields[i] = f
	}
	return out
}

func invertOne(v Value) Value {
	switch x := v.(type) {
	case Binary:
		return Binary{On: !x.On}
	case Enumerated:
		if s, ok := invertPairs[x.State]; ok {
			return Enumerated{State: s}
		}
	}
	return v
}

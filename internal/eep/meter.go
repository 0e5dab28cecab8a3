package eep

import "fmt"

type meterMedium uint8

const (
	meterElectricity meterMedium = iota
	meterGas
	meterWater
)

// Meter reading kinds.
const (
	ReadingCumulative = "cumulative"
	ReadingCurrent    = "current"
)

// A5-12-xx layout.
const (
	meterMaxRaw      = 0xFFFFFF
	meterTariffShift = 4
	meterTariffMax   = 15
	meterKindBit     = 2
	meterDivMask     = 0x03
)

// meterMultipliers are the reciprocal of the 1/10/100/1000 divisors.
var meterMultipliers = [...]float64{1, 0.1, 0.01, 0.001}

var meterTariff = linear{0, meterTariffMax, 0, meterTariffMax, ""}

func (m meterMedium) unit(current bool) string {
	switch {
	case m == meterElectricity && current:
		return "W"
	case m == meterElectricity:
		return "kWh"
	case current:
		return "l/s"
	default:
		return "m³"
	}
}

// decodeMeter decodes A5-12-01/02/03.
func decodeMeter(m meterMedium, p []byte) Value {
	raw := int(p[0])<<16 | int(p[1])<<8 | int(p[2]) //nolint:mnd // DB3..DB1 big-endian
	mult := meterMultipliers[p[3]&meterDivMask]
	current := bit(p[3], meterKindBit)

	kind := ReadingCumulative
	if current {
		kind = ReadingCurrent
	}
	return Composite{Fields: []Field{
		{FieldReading, Scaled{Value: float64(raw) * mult, Unit: m.unit(current), Min: 0, Max: meterMaxRaw * mult}},
		{FieldTariff, meterTariff.decode(int(p[3] >> meterTariffShift))},
		{FieldKind, Enumerated{kind}},
	}}
}

func encodeMeter(m meterMedium, c Composite) ([]byte, error) {
	v, ok := c.Get(FieldReading)
	if !ok {
		return nil, fmt.Errorf("%w: missing field %s", ErrInvalidValue, FieldReading)
	}
	s, ok := v.(Scaled)
	if !ok {
		return nil, fmt.Errorf("%w: field %s is %T, want Scaled", ErrValueType, FieldReading, v)
	}

	kind := ReadingCumulative
	if _, ok := c.Get(FieldKind); ok {
		var err error
		if kind, err = stateField(c, FieldKind); err != nil {
			return nil, err
		}
	}
	var kindBit byte
	switch kind {
	case ReadingCumulative:
	case ReadingCurrent:
		kindBit = 1 << meterKindBit
	default:
		return nil, fmt.Errorf("%w: reading kind %q", ErrInvalidValue, kind)
	}

	tariff, err := meterTariff.encodeField(c, FieldTariff, 0)
	if err != nil {
		return nil, err
	}

	div, ok := pickMultiplier(meterMultipliers[:], s.Value, s.Max, meterMaxRaw)
	if !ok {
		return nil, fmt.Errorf("%w: %s reading %g", ErrInvalidValue, m.unit(kindBit != 0), s.Value)
	}
	raw := roundRaw(s.Value / meterMultipliers[div])
	return []byte{byte(raw >> 16), byte(raw >> 8), byte(raw), tariff<<meterTariffShift | kindBit | byte(div)}, nil //nolint:mnd // DB3..DB1
}

package eep

import (
	"fmt"
)

// learnBit is DB0.3 of 4BS and bit 3 of 1BS: 0 marks a teach-in telegram.
const learnBit = 3

// dataDB0 is DB0 of an encoded 4BS data telegram with nothing else set.
const dataDB0 byte = 1 << learnBit

var (
	occSupply      = linear{0, 255, 0, 5.1, "V"}
	occIlluminance = linear{0, 255, 0, 510, "lx"}
	occTemperature = linear{0, 255, 0, 51, "°C"}

	thHumidity    = linear{0, 250, 0, 100, "%"}
	thTemperature = linear{0, 250, -20, 60, "°C"}

	panelTarget      = linear{0, 255, 0, 40, "°C"}
	panelHumidity    = linear{0, 250, 0, 100, "%"}
	panelTemperature = linear{0, 250, 0, 40, "°C"}

	weatherDawn        = linear{0, 255, 0, 999, "lx"}
	weatherTemperature = linear{0, 255, -40, 80, "°C"}
	weatherWind        = linear{0, 255, 0, 70, "m/s"}
)

// decodeOccupancy decodes A5-08-01. Motion and the occupancy button are
// active low on the wire.
func decodeOccupancy(p []byte) Value {
	return Composite{Fields: []Field{
		{FieldSupplyVoltage, occSupply.decode(int(p[0]))},
		{FieldIlluminance, occIlluminance.decode(int(p[1]))},
		{FieldTemperature, occTemperature.decode(int(p[2]))},
		{FieldMotion, Binary{!bit(p[3], 1)}},
		{FieldOccupancyBtn, Binary{!bit(p[3], 0)}},
	}}
}

func encodeOccupancy(c Composite) ([]byte, error) {
	out := make([]byte, 4) //nolint:mnd // 4BS
	var err error
	if out[0], err = occSupply.encodeField(c, FieldSupplyVoltage, 0); err != nil {
		return nil, err
	}
	if out[1], err = occIlluminance.encodeField(c, FieldIlluminance, 0); err != nil {
		return nil, err
	}
	if out[2], err = occTemperature.encodeField(c, FieldTemperature, 0); err != nil {
		return nil, err
	}
	motion, err := boolField(c, FieldMotion, false)
	if err != nil {
		return nil, err
	}
	button, err := boolField(c, FieldOccupancyBtn, false)
	if err != nil {
		return nil, err
	}
	out[3] = dataDB0 | setBit(!motion, 1) | setBit(!button, 0)
	return out, nil
}

// decodeTempHumidity decodes A5-04-02.
func decodeTempHumidity(p []byte) Value {
	return Composite{Fields: []Field{
		{FieldHumidity, thHumidity.decode(int(p[1]))},
		{FieldTemperature, thTemperature.decode(int(p[2]))},
	}}
}

func encodeTempHumidity(c Composite) ([]byte, error) {
	hum, err := thHumidity.encodeField(c, FieldHumidity, 0)
	if err != nil {
		return nil, err
	}
	temp, err := thTemperature.encodeField(c, FieldTemperature, 0)
	if err != nil {
		return nil, err
	}
	return []byte{0, hum, temp, dataDB0}, nil
}

// decodeRoomPanel decodes A5-10-12.
func decodeRoomPanel(p []byte) Value {
	return Composite{Fields: []Field{
		{FieldTarget, panelTarget.decode(int(p[0]))},
		{FieldHumidity, panelHumidity.decode(int(p[1]))},
		{FieldTemperature, panelTemperature.decode(int(p[2]))},
	}}
}

func encodeRoomPanel(c Composite) ([]byte, error) {
	target, err := panelTarget.encodeField(c, FieldTarget, 0)
	if err != nil {
		return nil, err
	}
	hum, err := panelHumidity.encodeField(c, FieldHumidity, 0)
	if err != nil {
		return nil, err
	}
	temp, err := panelTemperature.encodeField(c, FieldTemperature, 0)
	if err != nil {
		return nil, err
	}
	return []byte{target, hum, temp, dataDB0}, nil
}

// Weather station DB0 flags.
const (
	weatherNightBit = 2
	weatherRainBit  = 1
)

// decodeWeather decodes A5-13-01. DB0 is optional: three-byte payloads carry
// no night or rain flags.
func decodeWeather(p []byte) Value {
	c := Composite{Fields: []Field{
		{FieldIlluminance, weatherDawn.decode(int(p[0]))},
		{FieldTemperature, weatherTemperature.decode(int(p[1]))},
		{FieldWindSpeed, weatherWind.decode(int(p[2]))},
	}}
	if len(p) > 3 { //nolint:mnd // DB0 present
		c.Fields = append(c.Fields,
			Field{FieldNight, Binary{bit(p[3], weatherNightBit)}},
			Field{FieldRain, Binary{bit(p[3], weatherRainBit)}},
		)
	}
	return c
}

func encodeWeather(c Composite) ([]byte, error) {
	dawn, err := weatherDawn.encodeField(c, FieldIlluminance, 0)
	if err != nil {
		return nil, err
	}
	temp, err := weatherTemperature.encodeField(c, FieldTemperature, 0)
	if err != nil {
		return nil, err
	}
	wind, err := weatherWind.encodeField(c, FieldWindSpeed, 0)
	if err != nil {
		return nil, err
	}
	night, err := boolField(c, FieldNight, false)
	if err != nil {
		return nil, err
	}
	rain, err := boolField(c, FieldRain, false)
	if err != nil {
		return nil, err
	}
	return []byte{dawn, temp, wind, dataDB0 | setBit(night, weatherNightBit) | setBit(rain, weatherRainBit)}, nil
}

// VOC concentration scaling.
const (
	vocUnitBit     = 2
	vocScaleMask   = 0x03
	vocMaxRaw      = 0xFFFF
	unitPPB        = "ppb"
	unitMicrograms = "µg/m³"
)

var vocMultipliers = [...]float64{0.01, 0.1, 1, 10}

var vocNames = map[byte]string{
	0:   "total",
	1:   "formaldehyde",
	2:   "benzene",
	3:   "styrene",
	4:   "toluene",
	5:   "tetrachloroethylene",
	6:   "xylene",
	7:   "n-hexane",
	8:   "n-octane",
	9:   "cyclopentane",
	10:  "methanol",
	11:  "ethanol",
	12:  "1-pentanol",
	13:  "acetone",
	14:  "ethylene_oxide",
	15:  "acetaldehyde",
	16:  "acetic_acid",
	17:  "propionic_acid",
	18:  "valeric_acid",
	19:  "butyric_acid",
	20:  "ammonia",
	22:  "hydrogen_sulfide",
	23:  "dimethyl_sulfide",
	24:  "2-butanol",
	25:  "2-methylpropanol",
	26:  "diethyl_ether",
	255: "ozone",
}

func vocName(id byte) string {
	if name, ok := vocNames[id]; ok {
		return name
	}
	return fmt.Sprintf("voc_%d", id)
}

func vocID(name string) (byte, bool) {
	for id, n := range vocNames {
		if n == name {
			return id, true
		}
	}
	var id byte
	if _, err := fmt.Sscanf(name, "voc_%d", &id); err == nil && vocName(id) == name {
		return id, true
	}
	return 0, false
}

// decodeVOC decodes A5-09-0C.
func decodeVOC(p []byte) Value {
	raw := int(p[0])<<8 | int(p[1]) //nolint:mnd // DB3..DB2 big-endian
	mult := vocMultipliers[p[3]&vocScaleMask]
	unit := unitPPB
	if bit(p[3], vocUnitBit) {
		unit = unitMicrograms
	}
	return Composite{Fields: []Field{
		{FieldConcentration, Scaled{Value: float64(raw) * mult, Unit: unit, Min: 0, Max: vocMaxRaw * mult}},
		{FieldVOC, Enumerated{vocName(p[2])}},
	}}
}

func encodeVOC(c Composite) ([]byte, error) {
	v, ok := c.Get(FieldConcentration)
	if !ok {
		return nil, fmt.Errorf("%w: missing field %s", ErrInvalidValue, FieldConcentration)
	}
	s, ok := v.(Scaled)
	if !ok {
		return nil, fmt.Errorf("%w: field %s is %T, want Scaled", ErrValueType, FieldConcentration, v)
	}
	name, err := stateField(c, FieldVOC)
	if err != nil {
		return nil, err
	}
	id, ok := vocID(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown VOC %q", ErrInvalidValue, name)
	}

	var unitBit byte
	switch s.Unit {
	case unitPPB, "":
	case unitMicrograms:
		unitBit = 1 << vocUnitBit
	default:
		return nil, fmt.Errorf("%w: VOC unit %q", ErrInvalidValue, s.Unit)
	}

	scale, ok := pickMultiplier(vocMultipliers[:], s.Value, s.Max, vocMaxRaw)
	if !ok {
		return nil, fmt.Errorf("%w: VOC concentration %g", ErrInvalidValue, s.Value)
	}
	raw := roundRaw(s.Value / vocMultipliers[scale])
	return []byte{byte(raw >> 8), byte(raw), id, unitBit | byte(scale)}, nil //nolint:mnd // DB3..DB2
}

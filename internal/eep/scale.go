package eep

import (
	"fmt"
	"math"
)

// linear maps a raw integer field onto a physical range:
//
//	value = (raw-rawMin)*(max-min)/(rawMax-rawMin) + min
//
// rawMin may exceed rawMax for fields whose raw curve is inverted.
type linear struct {
	rawMin, rawMax int
	min, max       float64
	unit           string
}

func (l linear) rawBounds() (lo, hi int) {
	if l.rawMin <= l.rawMax {
		return l.rawMin, l.rawMax
	}
	return l.rawMax, l.rawMin
}

// decode scales raw, clamping it to the documented raw range first.
func (l linear) decode(raw int) Scaled {
	lo, hi := l.rawBounds()
	out := Scaled{Unit: l.unit, Min: l.min, Max: l.max}
	if raw < lo || raw > hi {
		out.OutOfRange = true
		raw = max(lo, min(raw, hi))
	}
	out.Value = float64(raw-l.rawMin)*(l.max-l.min)/float64(l.rawMax-l.rawMin) + l.min
	return out
}

// encode converts a value back to its raw field.
func (l linear) encode(v float64) (int, error) {
	const slack = 1e-9
	if math.IsNaN(v) || v < l.min-slack || v > l.max+slack {
		return 0, fmt.Errorf("%w: %g %s outside %g..%g", ErrInvalidValue, v, l.unit, l.min, l.max)
	}
	raw := int(math.Round((v-l.min)*float64(l.rawMax-l.rawMin)/(l.max-l.min))) + l.rawMin
	lo, hi := l.rawBounds()
	return max(lo, min(raw, hi)), nil
}

// encodeField extracts a Scaled field from c and encodes it. A missing field
// encodes as the default value def.
func (l linear) encodeField(c Composite, name string, def float64) (byte, error) {
	v := def
	if f, ok := c.Get(name); ok {
		s, ok := f.(Scaled)
		if !ok {
			return 0, fmt.Errorf("%w: field %s is %T, want Scaled", ErrValueType, name, f)
		}
		v = s.Value
	}
	raw, err := l.encode(v)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", name, err)
	}
	return byte(raw), nil
}

// boolField reads a Binary field, defaulting to def when absent.
func boolField(c Composite, name string, def bool) (bool, error) {
	f, ok := c.Get(name)
	if !ok {
		return def, nil
	}
	b, ok := f.(Binary)
	if !ok {
		return false, fmt.Errorf("%w: field %s is %T, want Binary", ErrValueType, name, f)
	}
	return b.On, nil
}

// stateField reads a required Enumerated field.
func stateField(c Composite, name string) (string, error) {
	f, ok := c.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: missing field %s", ErrInvalidValue, name)
	}
	e, ok := f.(Enumerated)
	if !ok {
		return "", fmt.Errorf("%w: field %s is %T, want Enumerated", ErrValueType, name, f)
	}
	return e.State, nil
}

func bit(b byte, n uint) bool {
	return b&(1<<n) != 0
}

func setBit(on bool, n uint) byte {
	if on {
		return 1 << n
	}
	return 0
}

// pickMultiplier chooses the index of the multiplier used to encode value
// into a raw field of at most maxRaw. A multiplier matching the value's
// declared Max is preferred so decoded values re-encode unchanged; otherwise
// the finest multiplier that fits is used.
func pickMultiplier(mults []float64, value, declaredMax float64, maxRaw int) (int, bool) {
	if math.IsNaN(value) || value < 0 {
		return 0, false
	}
	fits := func(i int) bool { return roundRaw(value/mults[i]) <= maxRaw }

	for i, m := range mults {
		if declaredMax > 0 && math.Abs(m*float64(maxRaw)-declaredMax) < 1e-6*declaredMax && fits(i) {
			return i, true
		}
	}

	best := -1
	for i, m := range mults {
		if fits(i) && (best < 0 || m < mults[best]) {
			best = i
		}
	}
	return best, best >= 0
}

func roundRaw(x float64) int {
	return int(math.Round(x))
}

package eep

// Value is a decoded profile value. It is one of Binary, Scaled, Enumerated
// or Composite.
type Value interface {
	isValue()
}

// Binary is an on/off value.
type Binary struct {
	On bool
}

// Scaled is a physical quantity produced by linear scaling of a raw field.
//
// Min and Max are the value range of the field. OutOfRange is set when the
// raw field was outside its documented range and Value was clamped.
type Scaled struct {
	Value      float64
	Unit       string
	Min        float64
	Max        float64
	OutOfRange bool
}

// Enumerated is a named state.
type Enumerated struct {
	State string
}

// Composite groups the named fields of a multi-field profile in wire order.
type Composite struct {
	Fields []Field
}

// Field is a named member of a Composite.
type Field struct {
	Name  string
	Value Value
}

func (Binary) isValue()     {}
func (Scaled) isValue()     {}
func (Enumerated) isValue() {}
func (Composite) isValue()  {}

// Get returns the field value with the given name.
func (c Composite) Get(name string) (Value, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Bool returns a Binary field.
func (c Composite) Bool(name string) (bool, bool) {
	v, ok := c.Get(name)
	if !ok {
		return false, false
	}
	b, ok := v.(Binary)
	return b.On, ok
}

// Number returns the value of a Scaled field.
func (c Composite) Number(name string) (float64, bool) {
	v, ok := c.Get(name)
	if !ok {
		return 0, false
	}
	s, ok := v.(Scaled)
	return s.Value, ok
}

// State returns an Enumerated field.
func (c Composite) State(name string) (string, bool) {
	v, ok := c.Get(name)
	if !ok {
		return "", false
	}
	e, ok := v.(Enumerated)
	return e.State, ok
}

// With returns a copy of c with the named field set, appending it when absent.
func (c Composite) With(name string, v Value) Composite {
	out := Composite{Fields: make([]Field, 0, len(c.Fields)+1)}
	replaced := false
	for _, f := range c.Fields {
		if f.Name == name {
			f.Value = v
			replaced = true
		}
		out.Fields = append(out.Fields, f)
	}
	if !replaced {
		out.Fields = append(out.Fields, Field{Name: name, Value: v})
	}
	return out
}

// Native converts a value into plain Go types for JSON and line protocol:
// bool, float64, string, or map[string]any for composites.
func Native(v Value) any {
	switch x := v.(type) {
	case Binary:
		return x.On
	case Scaled:
		return x.Value
	case Enumerated:
		return x.State
	case Composite:
		m := make(map[string]any, len(x.Fields))
		for _, f := range x.Fields {
			m[f.Name] = Native(f.Value)
		}
		return m
	default:
		return nil
	}
}

// Flatten returns the Scaled members of v keyed by field name, with a
// top-level Scaled value keyed "value".
func Flatten(v Value) map[string]Scaled {
	out := make(map[string]Scaled)
	switch x := v.(type) {
	case Scaled:
		out["value"] = x
	case Composite:
		for _, f := range x.Fields {
			if s, ok := f.Value.(Scaled); ok {
				out[f.Name] = s
			}
		}
	}
	return out
}

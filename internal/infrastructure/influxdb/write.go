package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-eltako/internal/eep"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

// Measurement names written by the bridge.
const (
	MeasurementSensor = "enocean_sensor"
	MeasurementState  = "enocean_state"
	MeasurementBus    = "enocean_bus"
)

// Telemetry is one decoded telegram attributed to a configured device.
type Telemetry struct {
	DeviceID string
	Address  enocean.Address
	EEP      eep.ID
	Value    eep.Value
	Time     time.Time
}

// WriteTelemetry records a decoded value.
//
// Every scaled quantity becomes its own enocean_sensor point tagged with
// the field name and unit, so that dashboards can query one series per
// physical quantity. Binary and enumerated members are collected into a
// single enocean_state point.
//
// Parameters:
//   - t: The decoded telemetry; a zero Time means now
//
// Returns:
//   - int: Number of points queued (0 when disconnected or nothing to record)
func (c *Client) WriteTelemetry(t Telemetry) int {
	if !c.IsConnected() || t.Value == nil {
		return 0
	}
	ts := t.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	written := 0
	for name, s := range eep.Flatten(t.Value) {
		tags := c.baseTags(t)
		tags["field"] = name
		if s.Unit != "" {
			tags["unit"] = s.Unit
		}
		if c.write(write.NewPoint(MeasurementSensor, tags, map[string]any{
			"value":        s.Value,
			"out_of_range": s.OutOfRange,
		}, ts)) {
			written++
		}
	}

	if fields := stateFields(t.Value); len(fields) > 0 {
		if c.write(write.NewPoint(MeasurementState, c.baseTags(t), fields, ts)) {
			written++
		}
	}
	return written
}

func (c *Client) baseTags(t Telemetry) map[string]string {
	tags := map[string]string{
		"address": t.Address.String(),
		"eep":     t.EEP.String(),
	}
	if t.DeviceID != "" {
		tags["device_id"] = t.DeviceID
	}
	return tags
}

// stateFields extracts the non-numeric members of v.
func stateFields(v eep.Value) map[string]any {
	fields := make(map[string]any)
	switch x := v.(type) {
	case eep.Binary:
		fields["on"] = x.On
	case eep.Enumerated:
		fields["state"] = x.State
	case eep.Composite:
		for _, f := range x.Fields {
			switch fv := f.Value.(type) {
			case eep.Binary:
				fields[f.Name] = fv.On
			case eep.Enumerated:
				fields[f.Name] = fv.State
			}
		}
	}
	return fields
}

// WriteBusCounters records a snapshot of the bus session counters.
//
// Parameters:
//   - gateway: Gateway identifier used as the tag value
//   - counters: Counter name to value, e.g. "rx", "frame_errors"
func (c *Client) WriteBusCounters(gateway string, counters map[string]uint64) {
	if !c.IsConnected() || len(counters) == 0 {
		return
	}
	fields := make(map[string]any, len(counters))
	for k, v := range counters {
		fields[k] = v
	}
	c.write(write.NewPoint(MeasurementBus, map[string]string{"gateway": gateway}, fields, time.Now()))
}

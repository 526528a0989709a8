package occupancy

import "time"

// SensorID names one of the two doorway sensors.
type SensorID string

const (
	// SensorEntry (A) is on the outside of the doorway.
	SensorEntry SensorID = "A"
	// SensorExit (B) is on the inside of the doorway.
	SensorExit SensorID = "B"
)

// Sensor measures the distance in front of a doorway sensor.
//
// ok is false when the echo timed out; callers treat that as "nothing
// there", never as an error. Wrap slow implementations in a TimeoutSensor.
type Sensor interface {
	MeasureDistance(id SensorID) (cm float64, ok bool)
}

// SensorFunc adapts a function to Sensor.
type SensorFunc func(id SensorID) (float64, bool)

// MeasureDistance calls f.
func (f SensorFunc) MeasureDistance(id SensorID) (float64, bool) { return f(id) }

// TimeoutSensor reports no detection for any measurement that took longer
// than its timeout, the same as a lost echo. It does not interrupt the
// underlying call.
type TimeoutSensor struct {
	sensor  Sensor
	timeout time.Duration
	now     func() time.Time
}

// NewTimeoutSensor wraps s. A timeout <= 0 disables the bound.
func NewTimeoutSensor(s Sensor, timeout time.Duration) *TimeoutSensor {
	return &TimeoutSensor{sensor: s, timeout: timeout, now: time.Now}
}

// MeasureDistance satisfies Sensor.
func (t *TimeoutSensor) MeasureDistance(id SensorID) (float64, bool) {
	start := t.now()
	cm, ok := t.sensor.MeasureDistance(id)
	if t.timeout > 0 && t.now().Sub(start) > t.timeout {
		return 0, false
	}
	return cm, ok
}

// Display renders the counter node's screen.
type Display interface {
	// ShowNormal draws "MAX : max" and "CURRENT : count".
	ShowNormal(maxAllowed, count int)
	// ShowAlert draws the over-capacity warning.
	ShowAlert()
}

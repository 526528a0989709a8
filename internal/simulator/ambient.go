package simulator

import (
	"math"
	"time"
)

// Ambient simulates the temperature/humidity sensor with a smooth
// oscillation around indoor values.
type Ambient struct {
	period time.Duration
	now    func() time.Time
	origin time.Time
}

// NewAmbient creates a sensor whose values repeat every period.
func NewAmbient(period time.Duration) *Ambient {
	now := time.Now
	return &Ambient{period: period, now: now, origin: now()}
}

// Read satisfies ambient.Sensor.
func (a *Ambient) Read() (temperature, humidity float64, err error) {
	phase := 0.0
	if a.period > 0 {
		phase = 2 * math.Pi * float64(a.now().Sub(a.origin)%a.period) / float64(a.period)
	}
	temperature = 21.5 + 1.5*math.Sin(phase)
	humidity = 45 - 5*math.Sin(phase)
	return temperature, humidity, nil
}

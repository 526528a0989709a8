package occupancy

import (
	"time"

	"github.com/nerrad567/homesec-core/internal/infrastructure/config"
)

// Phase is the counter's state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingConfirmation
	PhaseSettling
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingConfirmation:
		return "awaiting_confirmation"
	case PhaseSettling:
		return "settling"
	default:
		return "unknown"
	}
}

// Direction of a crossing.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionEntry
	DirectionExit
)

func (d Direction) String() string {
	switch d {
	case DirectionEntry:
		return "entry"
	case DirectionExit:
		return "exit"
	default:
		return "none"
	}
}

// Counter is the directional occupancy counter.
//
// The zero value is not usable; create one with NewCounter.
type Counter struct {
	sensor        Sensor
	threshold     float64
	confirmWindow time.Duration
	settleDelay   time.Duration

	count    int
	phase    Phase
	pending  Direction
	deadline time.Time
}

// NewCounter returns an idle counter at zero occupants. With a positive
// cfg.SensorTimeout every measurement is bounded by a TimeoutSensor.
func NewCounter(sensor Sensor, cfg config.OccupancyConfig) *Counter {
	if cfg.SensorTimeout > 0 {
		sensor = NewTimeoutSensor(sensor, cfg.SensorTimeout)
	}
	return &Counter{
		sensor:        sensor,
		threshold:     cfg.ThresholdCM,
		confirmWindow: cfg.ConfirmWindow,
		settleDelay:   cfg.SettleDelay,
	}
}

// Count returns the current number of occupants. Never negative.
func (c *Counter) Count() int { return c.count }

// Phase returns the current state.
func (c *Counter) Phase() Phase { return c.phase }

// Pending returns the direction awaiting confirmation, or DirectionNone.
func (c *Counter) Pending() Direction {
	if c.phase != PhaseAwaitingConfirmation {
		return DirectionNone
	}
	return c.pending
}

// Deadline returns when the current confirmation or settle phase ends.
// Zero while idle.
func (c *Counter) Deadline() time.Time {
	if c.phase == PhaseIdle {
		return time.Time{}
	}
	return c.deadline
}

// Tick advances the state machine once and returns the direction of a
// crossing confirmed during this tick, if any. It never blocks beyond the
// sensor's own timeout.
//
// Within a tick entry is always evaluated before exit. An entry trigger
// whose confirmation fails falls through to the exit trigger check, and a
// settle phase that has expired hands over to a fresh evaluation, both in
// the same tick.
func (c *Counter) Tick(now time.Time) Direction {
	if c.phase == PhaseSettling {
		if now.Before(c.deadline) {
			return DirectionNone
		}
		c.reset()
	}

	if c.phase == PhaseAwaitingConfirmation {
		if now.Before(c.deadline) {
			return DirectionNone
		}

		dir := c.pending
		if c.detects(opposite(dir)) {
			c.apply(dir)
			c.phase = PhaseSettling
			c.pending = DirectionNone
			c.deadline = now.Add(c.settleDelay)
			return dir
		}

		c.reset()
		if dir == DirectionExit {
			return DirectionNone
		}
		// A failed entry confirmation still gets an exit check this tick.
		c.checkTrigger(now, SensorExit, DirectionExit)
		return DirectionNone
	}

	if c.checkTrigger(now, SensorEntry, DirectionEntry) {
		return DirectionNone
	}
	c.checkTrigger(now, SensorExit, DirectionExit)
	return DirectionNone
}

func (c *Counter) checkTrigger(now time.Time, id SensorID, dir Direction) bool {
	if !c.detects(id) {
		return false
	}
	c.phase = PhaseAwaitingConfirmation
	c.pending = dir
	c.deadline = now.Add(c.confirmWindow)
	return true
}

func (c *Counter) detects(id SensorID) bool {
	cm, ok := c.sensor.MeasureDistance(id)
	return ok && cm < c.threshold
}

func (c *Counter) apply(dir Direction) {
	switch dir {
	case DirectionEntry:
		c.count++
	case DirectionExit:
		if c.count > 0 {
			c.count--
		}
	}
}

func (c *Counter) reset() {
	c.phase = PhaseIdle
	c.pending = DirectionNone
	c.deadline = time.Time{}
}

// opposite returns the sensor that confirms dir.
func opposite(dir Direction) SensorID {
	if dir == DirectionEntry {
		return SensorExit
	}
	return SensorEntry
}

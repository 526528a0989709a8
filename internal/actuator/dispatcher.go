package actuator

import (
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/homesec-core/internal/infrastructure/config"
	"github.com/nerrad567/homesec-core/internal/infrastructure/mqtt"
)

// Result is the outcome of an applied command.
type Result struct {
	Command Command
	// Mirror is nil for commands that mirror nothing (the blink sequence).
	Mirror *Mirror
}

// Dispatcher applies commands to the actuators and tracks their state.
//
// It is not safe for concurrent use; the control loop is its only caller.
type Dispatcher struct {
	lights     LightArray
	humidifier Humidifier
	door       Door

	openAngle   int
	closedAngle int

	state State
	blink blinkSequence
}

// NewDispatcher returns a dispatcher with every actuator assumed off/closed.
func NewDispatcher(lights LightArray, humidifier Humidifier, door Door, act config.ActuatorsConfig, alarm config.AlarmConfig) *Dispatcher {
	return &Dispatcher{
		lights:      lights,
		humidifier:  humidifier,
		door:        door,
		openAngle:   act.DoorOpenAngle,
		closedAngle: act.DoorClosedAngle,
		state:       State{Lights: make([]bool, lights.Len())},
		blink: blinkSequence{
			interval: alarm.BlinkInterval,
			repeats:  alarm.SequenceRepeats,
		},
	}
}

// Handle decodes and applies one inbound message.
func (d *Dispatcher) Handle(topic string, payload []byte, now time.Time) (Result, error) {
	cmd, err := Decode(topic, payload)
	if err != nil {
		return Result{}, err
	}
	return d.Apply(cmd, now)
}

// Apply executes cmd. On error nothing is mirrored.
func (d *Dispatcher) Apply(cmd Command, now time.Time) (Result, error) {
	res := Result{Command: cmd}

	switch c := cmd.(type) {
	case LightingCommand:
		if c.Broadcast {
			if err := d.setAll(c.On); err != nil {
				return res, err
			}
			res.Mirror = &Mirror{Topic: mqtt.TopicLightingStatus, Payload: LightStatus{Status: SwitchOf(c.On)}}
			return res, nil
		}
		status, err := d.setOne(c.LED, c.On)
		if err != nil {
			return res, err
		}
		res.Mirror = &Mirror{Topic: mqtt.TopicLightingStatus, Payload: status}

	case HumidifierCommand:
		if err := d.humidifier.SetHumidifier(c.On); err != nil {
			return res, fmt.Errorf("setting humidifier: %w", err)
		}
		d.state.HumidifierOn = c.On
		res.Mirror = &Mirror{Topic: mqtt.TopicHumidifierStatus, Payload: SwitchStatus{Status: SwitchOf(c.On)}}

	case DoorCommand:
		angle := d.closedAngle
		if c.Open {
			angle = d.openAngle
		}
		if err := d.door.SetDoorAngle(angle); err != nil {
			return res, fmt.Errorf("driving door to %d degrees: %w", angle, err)
		}
		d.state.DoorOpen = c.Open
		res.Mirror = &Mirror{Topic: mqtt.TopicServoStatus, Payload: SwitchStatus{Status: SwitchOf(c.Open)}}

	case AlarmCommand:
		if d.blink.active() {
			return res, ErrBlinkInProgress
		}
		if err := d.blink.start(now, d.setAll); err != nil {
			return res, err
		}

	default:
		return res, fmt.Errorf("%w: %T", ErrUnknownTopic, cmd)
	}

	return res, nil
}

// Tick advances a running blink sequence. It returns the error from the
// light driver, if any; the sequence carries on regardless.
func (d *Dispatcher) Tick(now time.Time) error {
	return d.blink.tick(now, d.setAll)
}

// Blinking reports whether a blink sequence is running.
func (d *Dispatcher) Blinking() bool {
	return d.blink.active()
}

// State returns a copy of the current actuator state.
func (d *Dispatcher) State() State {
	return d.state.Clone()
}

// setOne switches light led (1-based) and reports the state read back.
func (d *Dispatcher) setOne(led int, on bool) (LightStatus, error) {
	idx := led - 1
	if idx < 0 || idx >= d.lights.Len() {
		return LightStatus{}, fmt.Errorf("%w: led %d of %d", ErrOutOfRange, led, d.lights.Len())
	}

	if err := d.lights.SetLight(idx, on); err != nil {
		return LightStatus{}, fmt.Errorf("setting light %d: %w", led, err)
	}

	actual, err := d.lights.Light(idx)
	if err != nil {
		return LightStatus{}, fmt.Errorf("reading light %d: %w", led, err)
	}
	d.state.Lights[idx] = actual
	return LightStatus{LED: led, Status: SwitchOf(actual)}, nil
}

func (d *Dispatcher) setAll(on bool) error {
	var errs []error
	for i := range d.state.Lights {
		if err := d.lights.SetLight(i, on); err != nil {
			errs = append(errs, fmt.Errorf("setting light %d: %w", i+1, err))
			continue
		}
		d.state.Lights[i] = on
	}
	return errors.Join(errs...)
}

// blinkSequence flashes every light on then off, repeats times, one step
// per interval, finishing with the lights off.
type blinkSequence struct {
	interval time.Duration
	repeats  int

	remaining int
	lit       bool
	next      time.Time
}

func (b *blinkSequence) active() bool { return b.remaining > 0 }

func (b *blinkSequence) start(now time.Time, set func(bool) error) error {
	if b.repeats < 1 {
		return nil
	}
	b.remaining = 2*b.repeats - 1
	b.lit = true
	b.next = now.Add(b.interval)
	return set(true)
}

func (b *blinkSequence) tick(now time.Time, set func(bool) error) error {
	if !b.active() || now.Before(b.next) {
		return nil
	}

	b.lit = !b.lit
	b.remaining--
	b.next = b.next.Add(b.interval)
	if b.next.Before(now) {
		b.next = now.Add(b.interval)
	}
	return set(b.lit)
}

package actuator

import "github.com/nerrad567/homesec-core/internal/infrastructure/mqtt"

// Kind names a command variant. Used as the audit kind and metric label.
type Kind string

const (
	KindLighting   Kind = "lighting"
	KindHumidifier Kind = "humidifier"
	KindDoor       Kind = "door"
	KindAlarm      Kind = "alarm"
)

// Command is one decoded inbound command. The concrete types are
// LightingCommand, HumidifierCommand, DoorCommand and AlarmCommand.
type Command interface {
	Kind() Kind
	Topic() string
	isCommand()
}

// LightingCommand switches one light (LED is 1-based) or, when Broadcast is
// set, every light.
type LightingCommand struct {
	LED       int
	Broadcast bool
	On        bool
}

// HumidifierCommand switches the humidifier.
type HumidifierCommand struct {
	On bool
}

// DoorCommand drives the door servo to its open or closed angle.
type DoorCommand struct {
	Open bool
}

// AlarmCommand starts the light blink sequence.
type AlarmCommand struct{}

func (LightingCommand) Kind() Kind   { return KindLighting }
func (HumidifierCommand) Kind() Kind { return KindHumidifier }
func (DoorCommand) Kind() Kind       { return KindDoor }
func (AlarmCommand) Kind() Kind      { return KindAlarm }

func (LightingCommand) Topic() string   { return mqtt.TopicLightingCommand }
func (HumidifierCommand) Topic() string { return mqtt.TopicHumidifierCommand }
func (DoorCommand) Topic() string       { return mqtt.TopicServoCommand }
func (AlarmCommand) Topic() string      { return mqtt.TopicSecurityCommand }

func (LightingCommand) isCommand()   {}
func (HumidifierCommand) isCommand() {}
func (DoorCommand) isCommand()       {}
func (AlarmCommand) isCommand()      {}

// Switch is the on/off wire value.
type Switch string

const (
	SwitchOn  Switch = "on"
	SwitchOff Switch = "off"
)

// SwitchOf returns the wire value for on.
func SwitchOf(on bool) Switch {
	if on {
		return SwitchOn
	}
	return SwitchOff
}

// Payload returns the wire form of cmd, the inverse of Decode.
func Payload(cmd Command) map[string]any {
	switch c := cmd.(type) {
	case LightingCommand:
		if c.Broadcast {
			return map[string]any{"status": SwitchOf(c.On)}
		}
		return map[string]any{"led": c.LED, "status": SwitchOf(c.On)}
	case HumidifierCommand:
		return map[string]any{"status": SwitchOf(c.On)}
	case DoorCommand:
		return map[string]any{"command": SwitchOf(c.Open)}
	case AlarmCommand:
		return map[string]any{"command": "blink"}
	default:
		return nil
	}
}

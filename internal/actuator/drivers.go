package actuator

// LightArray drives a fixed number of lights addressed by 0-based index.
type LightArray interface {
	Len() int
	SetLight(index int, on bool) error
	// Light reads back the actual output state.
	Light(index int) (bool, error)
}

// Humidifier switches the humidifier relay.
type Humidifier interface {
	SetHumidifier(on bool) error
}

// Door drives the door servo to an angle in degrees.
type Door interface {
	SetDoorAngle(degrees int) error
}

// State is the last applied actuator state.
type State struct {
	Lights       []bool `json:"lights"`
	HumidifierOn bool   `json:"humidifier_on"`
	DoorOpen     bool   `json:"door_open"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := s
	c.Lights = append([]bool(nil), s.Lights...)
	return c
}

// LightStatus is mirrored on home/lighting/status. LED is omitted for the
// broadcast form.
type LightStatus struct {
	LED    int    `json:"led,omitempty"`
	Status Switch `json:"status"`
}

// SwitchStatus is mirrored on home/humidifier/status and home/servo/status.
type SwitchStatus struct {
	Status Switch `json:"status"`
}

// Mirror is the status message to publish after applying a command.
type Mirror struct {
	Topic   string
	Payload any
}

package simulator

import (
	"fmt"
	"sync"
)

// Logger is the logging surface the package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Actuators implements the light array, humidifier relay and door servo in
// memory and logs every change.
type Actuators struct {
	logger Logger

	mu         sync.Mutex
	lights     []bool
	humidifier bool
	angle      int
}

// NewActuators creates n lights, all off, the humidifier off and the door
// at closedAngle.
func NewActuators(n, closedAngle int, logger Logger) *Actuators {
	return &Actuators{logger: logger, lights: make([]bool, n), angle: closedAngle}
}

// Len satisfies actuator.LightArray.
func (a *Actuators) Len() int { return len(a.lights) }

// SetLight satisfies actuator.LightArray.
func (a *Actuators) SetLight(index int, on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= len(a.lights) {
		return fmt.Errorf("simulator: no light %d", index)
	}
	if a.lights[index] != on {
		a.logger.Debug("light switched", "light", index+1, "on", on)
	}
	a.lights[index] = on
	return nil
}

// Light satisfies actuator.LightArray.
func (a *Actuators) Light(index int) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= len(a.lights) {
		return false, fmt.Errorf("simulator: no light %d", index)
	}
	return a.lights[index], nil
}

// SetHumidifier satisfies actuator.Humidifier.
func (a *Actuators) SetHumidifier(on bool) error {
	a.mu.Lock()
	a.humidifier = on
	a.mu.Unlock()
	a.logger.Info("humidifier switched", "on", on)
	return nil
}

// SetDoorAngle satisfies actuator.Door.
func (a *Actuators) SetDoorAngle(degrees int) error {
	if degrees < 0 || degrees > 180 {
		return fmt.Errorf("simulator: servo angle %d outside 0..180", degrees)
	}
	a.mu.Lock()
	a.angle = degrees
	a.mu.Unlock()
	a.logger.Info("door servo moved", "degrees", degrees)
	return nil
}

// Angle returns the current servo angle.
func (a *Actuators) Angle() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.angle
}

// Humidifier reports whether the humidifier relay is on.
func (a *Actuators) Humidifier() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.humidifier
}

package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/homesec-core/internal/actuator"
)

// OccupancyResponse is the body of GET /occupancy.
type OccupancyResponse struct {
	PeopleCount      int       `json:"people_count"`
	MaxPeopleAllowed int       `json:"max_people_allowed"`
	Alarm            string    `json:"alarm"`
	BlinkOn          bool      `json:"blink_on"`
	CounterPhase     string    `json:"counter_phase"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ActuatorsResponse is the body of GET /actuators.
type ActuatorsResponse struct {
	Lights        []actuator.LightStatus `json:"lights"`
	Humidifier    actuator.Switch        `json:"humidifier"`
	Door          actuator.Switch        `json:"door"`
	BlinkSequence bool                   `json:"blink_sequence"`
}

func (s *Server) handleGetOccupancy(w http.ResponseWriter, _ *http.Request) {
	snap := s.state.Snapshot()
	writeJSON(w, http.StatusOK, OccupancyResponse{
		PeopleCount:      snap.PeopleCount,
		MaxPeopleAllowed: snap.MaxPeopleAllowed,
		Alarm:            snap.Alarm,
		BlinkOn:          snap.BlinkOn,
		CounterPhase:     snap.CounterPhase,
		UpdatedAt:        snap.UpdatedAt,
	})
}

func (s *Server) handleGetActuators(w http.ResponseWriter, _ *http.Request) {
	snap := s.state.Snapshot()

	lights := make([]actuator.LightStatus, len(snap.Actuators.Lights))
	for i, on := range snap.Actuators.Lights {
		lights[i] = actuator.LightStatus{LED: i + 1, Status: actuator.SwitchOf(on)}
	}

	writeJSON(w, http.StatusOK, ActuatorsResponse{
		Lights:        lights,
		Humidifier:    actuator.SwitchOf(snap.Actuators.HumidifierOn),
		Door:          actuator.SwitchOf(snap.Actuators.DoorOpen),
		BlinkSequence: snap.BlinkSequence,
	})
}

func (s *Server) handleGetAmbient(w http.ResponseWriter, _ *http.Request) {
	if s.ambient == nil {
		writeUnavailable(w, "ambient sensor not configured")
		return
	}
	reading, ok := s.ambient.Latest()
	if !ok {
		writeNotFound(w, "no ambient reading yet")
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/homesec-core/internal/actuator"
	"github.com/nerrad567/homesec-core/internal/controller"
	"github.com/nerrad567/homesec-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homesec-core/internal/occupancy"
)

// CommandAccepted is the 202 response for command endpoints.
type CommandAccepted struct {
	Status   string              `json:"status"`
	Topic    string              `json:"topic"`
	Delivery controller.Delivery `json:"delivery"`
}

func (s *Server) handleLighting(w http.ResponseWriter, r *http.Request) {
	s.forwardBody(w, r, mqtt.TopicLightingCommand)
}

func (s *Server) handleHumidifier(w http.ResponseWriter, r *http.Request) {
	s.forwardBody(w, r, mqtt.TopicHumidifierCommand)
}

func (s *Server) handleDoor(w http.ResponseWriter, r *http.Request) {
	s.forwardBody(w, r, mqtt.TopicServoCommand)
}

func (s *Server) handleSetMaxPeople(w http.ResponseWriter, r *http.Request) {
	s.forwardBody(w, r, mqtt.TopicSecurityCount)
}

// handleBlink starts the light blink sequence. The body is ignored.
func (s *Server) handleBlink(w http.ResponseWriter, r *http.Request) {
	payload, err := json.Marshal(actuator.Payload(actuator.AlarmCommand{}))
	if err != nil {
		writeInternalError(w, "encoding blink command")
		return
	}
	s.sendCommand(w, r, mqtt.TopicSecurityCommand, payload)
}

// forwardBody sends the request body unchanged as the payload for topic.
func (s *Server) forwardBody(w http.ResponseWriter, r *http.Request, topic string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "request body too large or unreadable")
		return
	}
	s.sendCommand(w, r, topic, body)
}

func (s *Server) sendCommand(w http.ResponseWriter, r *http.Request, topic string, payload []byte) {
	delivery, err := s.commands.Send(topic, payload)

	var decodeErr *actuator.DecodeError
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, CommandAccepted{
			Status:   "accepted",
			Topic:    topic,
			Delivery: delivery,
		})
	case errors.Is(err, actuator.ErrMalformedPayload):
		writeBadRequest(w, "body must be a JSON object")
	case errors.As(err, &decodeErr):
		writeValidationError(w, decodeErr.Reason)
	case errors.Is(err, occupancy.ErrInvalidCapacity):
		writeValidationError(w, "max_people must be a non-negative integer")
	default:
		s.logger.Warn("command not sent",
			"topic", topic,
			"error", err,
			"request_id", requestIDFrom(r),
		)
		writeUnavailable(w, "command channel unavailable")
	}
}

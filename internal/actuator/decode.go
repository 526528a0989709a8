package actuator

import (
	"bytes"
	"encoding/json"

	"github.com/nerrad567/homesec-core/internal/infrastructure/mqtt"
)

// fields is a decoded JSON object whose values are still raw.
type fields map[string]json.RawMessage

func (f fields) has(name string) bool {
	raw, ok := f[name]
	return ok && !isNull(raw)
}

func (f fields) present(name string) bool {
	_, ok := f[name]
	return ok
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Decode parses payload according to the schema of topic.
//
//	home/lighting/command    {"led": n, "status": "on"|"off"} or {"status": ...}
//	home/humidifier/command  {"status": "on"|"off"}
//	home/servo/command       {"command": "on"|"off"}
//	home/security/command    {"command": "blink"}
//
// Unknown extra fields are ignored. Every error is a *DecodeError wrapping
// one of the package sentinels.
func Decode(topic string, payload []byte) (Command, error) {
	switch topic {
	case mqtt.TopicLightingCommand,
		mqtt.TopicHumidifierCommand,
		mqtt.TopicServoCommand,
		mqtt.TopicSecurityCommand:
	default:
		return nil, decodeErr(topic, ErrUnknownTopic, "no schema for topic")
	}

	var doc fields
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, decodeErr(topic, ErrMalformedPayload, "not a JSON object (%v)", err)
	}
	if doc == nil {
		return nil, decodeErr(topic, ErrMalformedPayload, "payload is null")
	}

	switch topic {
	case mqtt.TopicLightingCommand:
		return decodeLighting(topic, doc)
	case mqtt.TopicHumidifierCommand:
		on, err := switchField(topic, doc, "status")
		if err != nil {
			return nil, err
		}
		return HumidifierCommand{On: on}, nil
	case mqtt.TopicServoCommand:
		open, err := switchField(topic, doc, "command")
		if err != nil {
			return nil, err
		}
		return DoorCommand{Open: open}, nil
	default:
		return decodeAlarm(topic, doc)
	}
}

// decodeLighting prefers the indexed form: led and status together address
// one light, status alone addresses all of them.
func decodeLighting(topic string, doc fields) (Command, error) {
	on, err := switchField(topic, doc, "status")
	if err != nil {
		return nil, err
	}

	// A present led key always selects the indexed form.
	if !doc.present("led") {
		return LightingCommand{Broadcast: true, On: on}, nil
	}

	var led int
	if isNull(doc["led"]) {
		return nil, decodeErr(topic, ErrInvalidField, "led must be an integer, got null")
	}
	if err := json.Unmarshal(doc["led"], &led); err != nil {
		return nil, decodeErr(topic, ErrInvalidField, "led must be an integer")
	}
	return LightingCommand{LED: led, On: on}, nil
}

func decodeAlarm(topic string, doc fields) (Command, error) {
	if !doc.has("command") {
		return nil, decodeErr(topic, ErrMissingField, "command is required")
	}
	var cmd string
	if err := json.Unmarshal(doc["command"], &cmd); err != nil || cmd != "blink" {
		return nil, decodeErr(topic, ErrInvalidField, `command must be "blink"`)
	}
	return AlarmCommand{}, nil
}

func switchField(topic string, doc fields, name string) (bool, error) {
	if !doc.has(name) {
		return false, decodeErr(topic, ErrMissingField, "%s is required", name)
	}

	var s string
	if err := json.Unmarshal(doc[name], &s); err != nil {
		return false, decodeErr(topic, ErrInvalidField, "%s must be a string", name)
	}

	switch Switch(s) {
	case SwitchOn:
		return true, nil
	case SwitchOff:
		return false, nil
	default:
		return false, decodeErr(topic, ErrInvalidField, `%s must be "on" or "off", got %q`, name, s)
	}
}

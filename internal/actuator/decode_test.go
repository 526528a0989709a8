package actuator

import (
	"errors"
	"testing"

	"github.com/nerrad567/homesec-core/internal/infrastructure/mqtt"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		want    Command
		wantErr error
	}{
		{"indexed light", mqtt.TopicLightingCommand, `{"led": 3, "status": "on"}`, LightingCommand{LED: 3, On: true}, nil},
		{"broadcast light", mqtt.TopicLightingCommand, `{"status": "off"}`, LightingCommand{Broadcast: true}, nil},
		{"null led", mqtt.TopicLightingCommand, `{"led": null, "status": "on"}`, nil, ErrInvalidField},
		{"extra fields ignored", mqtt.TopicLightingCommand, `{"led": 1, "status": "off", "by": "panel"}`, LightingCommand{LED: 1}, nil},
		{"led without status", mqtt.TopicLightingCommand, `{"led": 2}`, nil, ErrMissingField},
		{"led not integer", mqtt.TopicLightingCommand, `{"led": "2", "status": "on"}`, nil, ErrInvalidField},
		{"fractional led", mqtt.TopicLightingCommand, `{"led": 2.5, "status": "on"}`, nil, ErrInvalidField},
		{"status not on/off", mqtt.TopicLightingCommand, `{"status": "dim"}`, nil, ErrInvalidField},
		{"status not string", mqtt.TopicLightingCommand, `{"status": true}`, nil, ErrInvalidField},
		{"humidifier on", mqtt.TopicHumidifierCommand, `{"status": "on"}`, HumidifierCommand{On: true}, nil},
		{"humidifier missing status", mqtt.TopicHumidifierCommand, `{}`, nil, ErrMissingField},
		{"door open", mqtt.TopicServoCommand, `{"command": "on"}`, DoorCommand{Open: true}, nil},
		{"door close", mqtt.TopicServoCommand, `{"command": "off"}`, DoorCommand{}, nil},
		{"door uses command not status", mqtt.TopicServoCommand, `{"status": "on"}`, nil, ErrMissingField},
		{"blink", mqtt.TopicSecurityCommand, `{"command": "blink"}`, AlarmCommand{}, nil},
		{"alarm other command", mqtt.TopicSecurityCommand, `{"command": "stop"}`, nil, ErrInvalidField},
		{"invalid json", mqtt.TopicLightingCommand, `{"status": "on"`, nil, ErrMalformedPayload},
		{"array payload", mqtt.TopicHumidifierCommand, `["on"]`, nil, ErrMalformedPayload},
		{"null payload", mqtt.TopicHumidifierCommand, `null`, nil, ErrMalformedPayload},
		{"unknown topic", "home/garage/command", `{"status": "on"}`, nil, ErrUnknownTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.topic, []byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				var de *DecodeError
				if !errors.As(err, &de) || de.Topic != tt.topic {
					t.Errorf("Decode() error = %#v, want *DecodeError for %s", err, tt.topic)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %#v, want %#v", got, tt.want)
			}
			if got.Topic() != tt.topic {
				t.Errorf("Topic() = %q, want %q", got.Topic(), tt.topic)
			}
		})
	}
}

func TestPayload_RoundTripsThroughDecode(t *testing.T) {
	cmds := []Command{
		LightingCommand{LED: 4, On: true},
		LightingCommand{Broadcast: true},
		HumidifierCommand{On: true},
		DoorCommand{Open: true},
		AlarmCommand{},
	}
	for _, cmd := range cmds {
		raw, err := jsonBytes(Payload(cmd))
		if err != nil {
			t.Fatalf("marshal %#v: %v", cmd, err)
		}
		got, err := Decode(cmd.Topic(), raw)
		if err != nil {
			t.Fatalf("Decode(%s) error = %v", raw, err)
		}
		if got != cmd {
			t.Errorf("Decode(Payload(%#v)) = %#v", cmd, got)
		}
	}
}

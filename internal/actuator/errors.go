package actuator

import (
	"errors"
	"fmt"
)

// Sentinel errors. Check with errors.Is.
var (
	ErrUnknownTopic     = errors.New("actuator: unknown topic")
	ErrMalformedPayload = errors.New("actuator: malformed payload")
	ErrMissingField     = errors.New("actuator: missing field")
	ErrInvalidField     = errors.New("actuator: invalid field value")

	// ErrOutOfRange is returned by Apply for a light index outside the array.
	ErrOutOfRange = errors.New("actuator: light index out of range")
	// ErrBlinkInProgress is returned by Apply for a blink command while a
	// sequence is already running.
	ErrBlinkInProgress = errors.New("actuator: blink sequence already running")
)

// DecodeError describes why a payload on a topic was rejected.
type DecodeError struct {
	Topic  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %s: %v", e.Topic, e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(topic string, err error, format string, args ...any) *DecodeError {
	return &DecodeError{Topic: topic, Reason: fmt.Sprintf(format, args...), Err: err}
}

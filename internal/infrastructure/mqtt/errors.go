package mqtt

import "errors"

// Sentinel errors for MQTT operations. Check with errors.Is.
var (
	// ErrNotConnected is returned when an operation needs a live broker link.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrAttemptsExhausted is returned by the supervisor when a bounded
	// retry policy gives up.
	ErrAttemptsExhausted = errors.New("mqtt: reconnect attempts exhausted")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned for QoS levels other than 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrOutboxFull is returned when the outbound queue cannot take another message.
	ErrOutboxFull = errors.New("mqtt: outbox full")

	// ErrOutboxClosed is returned for publishes after the outbox stopped.
	ErrOutboxClosed = errors.New("mqtt: outbox closed")
)

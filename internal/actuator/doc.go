// Package actuator turns inbound command messages into actuator state
// changes and the status messages that mirror them.
//
// Decoding is strict and per topic: each topic has its own schema and a
// payload that does not match it is rejected with a *DecodeError, never
// guessed at. Dispatch is a type switch over the decoded Command.
//
// The alarm blink sequence is not a blocking loop: Dispatcher.Tick advances
// it one step per blink interval from the caller's control loop.
package actuator

// Package simulator provides hardware stand-ins used when no GPIO drivers
// are wired: a doorway with scripted crossings, an ambient sensor following
// a slow daily-ish curve, and actuators that log what they would do.
package simulator

// Package occupancy counts people crossing a doorway and enforces the
// capacity limit.
//
// Two distance sensors sit either side of the doorway. Sensor A is on the
// outside (entry side), sensor B on the inside (exit side). A crossing is
// confirmed when one sensor triggers and the opposite sensor also triggers
// once the confirmation window has passed; a settle delay then suppresses
// re-triggering by the same body.
//
// Everything here is a plain state machine advanced by the caller with an
// explicit time, so there are no goroutines, timers or locks. The
// controller owns the values and is the only writer.
//
//   - Counter: Idle -> AwaitingConfirmation(direction, deadline) -> Settling(deadline)
//   - Policy: Normal/Blinking alarm derived from count and max allowed
//   - StatusPublisher: publish on change, otherwise on heartbeat
package occupancy

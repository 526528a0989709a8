// Package api implements the HTTP control panel and WebSocket live feed for
// homesec.
//
// This package provides:
//   - REST endpoints reading occupancy, actuator and ambient state
//   - Command endpoints for lights, humidifier, door, blink and the
//     capacity limit
//   - One-time code verification and QR rendering
//   - A WebSocket hub broadcasting status, actuator and display frames
//   - Prometheus metrics at /metrics and runtime stats at /api/v1/system
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// Reads come from the control loop's Snapshot, never from live state.
// Commands are validated with the same decoder the loop uses and then
// routed like any other node's command: through the broker while the link
// is up, straight into the loop's inbox while it is down.
//
// # Graceful Degradation
//
// The server operates without MQTT and without InfluxDB; only the pieces
// that need them report unavailable.
package api

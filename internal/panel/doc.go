// Package panel serves the browser status panel.
//
// The page shows the occupancy count, the capacity alarm, the actuator
// states and the latest ambient reading. It follows live updates over the
// API WebSocket and sends commands through the REST endpoints. Assets are
// embedded with go:embed; a directory on disk can override them while
// editing the page.
package panel

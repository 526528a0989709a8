package influxdb

import "errors"

// Sentinel errors for InfluxDB operations. Check with errors.Is.
var (
	// ErrNotConnected indicates the client is closed or was never connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed indicates the server rejected or did not answer a write.
	ErrWriteFailed = errors.New("influxdb: write failed")

	// ErrDisabled indicates InfluxDB integration is disabled in config.
	ErrDisabled = errors.New("influxdb: disabled")
)

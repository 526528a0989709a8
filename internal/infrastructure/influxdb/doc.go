// Package influxdb stores the ambient temperature/humidity series.
//
// It wraps influxdb-client-go v2. Only environment readings are written;
// occupancy is never persisted.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without a time series store
//	}
//	defer client.Close()
//
//	err = client.WriteAmbient(ctx, influxdb.AmbientPoint{Temperature: 21.5, Humidity: 40})
//
// Writes block until the server answers (bounded by write_timeout), so the
// caller decides how failures are shed.
package influxdb

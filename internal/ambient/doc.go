// Package ambient handles the auxiliary temperature/humidity sensor.
//
// A Reporter reads the sensor on a fixed interval and publishes the
// reading to home/sensor/data as strings, the format the deployed nodes
// use. A Recorder subscribes to the same topic, keeps the latest reading
// for the panel and writes every reading to InfluxDB behind a circuit
// breaker.
package ambient

package influxdb

import (
	"context"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementAmbient is the measurement name for environment readings.
const MeasurementAmbient = "ambient"

// AmbientPoint is one temperature/humidity reading.
type AmbientPoint struct {
	Site        string
	Temperature float64
	Humidity    float64
	Time        time.Time
}

// NewAmbientPoint builds the line-protocol point for p. A zero Time means now.
func NewAmbientPoint(p AmbientPoint) *write.Point {
	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{}
	if p.Site != "" {
		tags["site"] = p.Site
	}

	return write.NewPoint(
		MeasurementAmbient,
		tags,
		map[string]interface{}{
			"temperature": p.Temperature,
			"humidity":    p.Humidity,
		},
		ts,
	)
}

// WriteAmbient writes a single ambient reading and waits for the server.
func (c *Client) WriteAmbient(ctx context.Context, p AmbientPoint) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := c.writeAPI.WritePoint(ctx, NewAmbientPoint(p)); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

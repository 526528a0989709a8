package ambient

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/homesec-core/internal/infrastructure/mqtt"
)

// Sensor reads the environment sensor.
type Sensor interface {
	Read() (temperature, humidity float64, err error)
}

// Publisher sends outbound messages without blocking. *mqtt.Outbox
// satisfies it.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Logger is the logging surface the package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Reporter publishes sensor readings on a fixed interval.
type Reporter struct {
	sensor   Sensor
	pub      Publisher
	interval time.Duration
	logger   Logger
}

// NewReporter creates a reporter reading sensor every interval.
func NewReporter(sensor Sensor, pub Publisher, interval time.Duration, logger Logger) *Reporter {
	return &Reporter{sensor: sensor, pub: pub, interval: interval, logger: logger}
}

// Run reports until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Report(); err != nil {
				r.logger.Warn("ambient reading skipped", "error", err)
			}
		}
	}
}

// Report reads the sensor once and publishes the reading. Invalid readings
// are not published.
func (r *Reporter) Report() error {
	temperature, humidity, err := r.sensor.Read()
	if err != nil {
		return fmt.Errorf("reading sensor: %w", err)
	}
	if !valid(temperature) || !valid(humidity) {
		return fmt.Errorf("%w: temperature=%v humidity=%v", ErrInvalidReading, temperature, humidity)
	}

	if err := r.pub.PublishJSON(mqtt.TopicSensorData, NewPayload(temperature, humidity)); err != nil {
		r.logger.Debug("ambient reading not published", "error", err)
	}
	return nil
}

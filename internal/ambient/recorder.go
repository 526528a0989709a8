package ambient

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nerrad567/homesec-core/internal/infrastructure/influxdb"
)

const (
	recordQueueSize = 32
	writeTimeout    = 5 * time.Second

	breakerFailures = 3
	breakerCooldown = 30 * time.Second
)

// Writer stores readings. *influxdb.Client satisfies it.
type Writer interface {
	WriteAmbient(ctx context.Context, p influxdb.AmbientPoint) error
}

// Recorder consumes home/sensor/data.
//
// HandleMessage never blocks: it stores the latest reading and queues it
// for Run, which writes through a circuit breaker so an unreachable
// InfluxDB costs one failed write per cooldown instead of one per reading.
type Recorder struct {
	writer  Writer
	site    string
	logger  Logger
	now     func() time.Time
	breaker *gobreaker.CircuitBreaker

	queue  chan Reading
	latest atomic.Pointer[Reading]
}

// NewRecorder creates a recorder. A nil writer keeps only the latest
// reading.
func NewRecorder(writer Writer, site string, logger Logger) *Recorder {
	r := &Recorder{
		writer: writer,
		site:   site,
		logger: logger,
		now:    time.Now,
		queue:  make(chan Reading, recordQueueSize),
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "influxdb-ambient",
		Timeout: breakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("ambient write breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return r
}

// HandleMessage satisfies mqtt.MessageHandler.
func (r *Recorder) HandleMessage(topic string, payload []byte) error {
	temperature, humidity, err := ParsePayload(payload)
	if err != nil {
		r.logger.Warn("dropping malformed ambient reading", "topic", topic, "error", err)
		return err
	}

	reading := Reading{Temperature: temperature, Humidity: humidity, At: r.now().UTC()}
	r.latest.Store(&reading)

	if r.writer == nil {
		return nil
	}
	select {
	case r.queue <- reading:
	default:
		r.logger.Warn("ambient write queue full, reading dropped")
	}
	return nil
}

// Latest returns the most recent reading.
func (r *Recorder) Latest() (Reading, bool) {
	p := r.latest.Load()
	if p == nil {
		return Reading{}, false
	}
	return *p, true
}

// Run writes queued readings until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reading := <-r.queue:
			if err := r.write(ctx, reading); err != nil {
				r.logger.Debug("ambient reading not stored", "error", err)
			}
		}
	}
}

func (r *Recorder) write(ctx context.Context, reading Reading) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return nil, r.writer.WriteAmbient(ctx, influxdb.AmbientPoint{
			Site:        r.site,
			Temperature: reading.Temperature,
			Humidity:    reading.Humidity,
			Time:        reading.At,
		})
	})
	return err
}

// Package metrics defines the Prometheus collectors exported on /metrics.
//
// Collectors are created unregistered so tests can build as many as they
// like; the service registers one set on its own registry at startup.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "homesec"

// Command results used as the "result" label of CommandsTotal.
const (
	ResultApplied   = "applied"
	ResultMalformed = "malformed"
	ResultIgnored   = "ignored"
	ResultFailed    = "failed"
)

// Collectors holds every metric the service exports.
type Collectors struct {
	OccupancyCount   prometheus.Gauge
	MaxAllowed       prometheus.Gauge
	AlarmBlinking    prometheus.Gauge
	MQTTConnected    prometheus.Gauge
	Crossings        *prometheus.CounterVec
	Commands         *prometheus.CounterVec
	PublishesDropped prometheus.Counter
}

// New creates an unregistered set of collectors.
func New() *Collectors {
	return &Collectors{
		OccupancyCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "occupancy",
			Name:      "count",
			Help:      "Current number of people inside.",
		}),
		MaxAllowed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "occupancy",
			Name:      "max_allowed",
			Help:      "Configured capacity limit; 0 means no limit.",
		}),
		AlarmBlinking: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alarm",
			Name:      "blinking",
			Help:      "1 while occupancy is over capacity.",
		}),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "connected",
			Help:      "1 while the broker link is up.",
		}),
		Crossings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crossings_total",
			Help:      "Confirmed doorway crossings by direction.",
		}, []string{"direction"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Inbound commands by topic and result.",
		}, []string{"topic", "result"}),
		PublishesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_dropped_total",
			Help:      "Outbound messages dropped by the outbox.",
		}),
	}
}

// Register adds every collector to reg.
func (c *Collectors) Register(reg prometheus.Registerer) error {
	var errs []error
	for _, col := range c.all() {
		if err := reg.Register(col); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.OccupancyCount,
		c.MaxAllowed,
		c.AlarmBlinking,
		c.MQTTConnected,
		c.Crossings,
		c.Commands,
		c.PublishesDropped,
	}
}

// BoolValue converts a flag to a gauge value.
func BoolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

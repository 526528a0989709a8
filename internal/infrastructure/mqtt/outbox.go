package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sony/gobreaker"

	"github.com/nerrad567/homesec-core/internal/infrastructure/config"
)

// Publisher is the synchronous publish surface the Outbox drains into.
// *Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

type outboundMessage struct {
	topic   string
	payload []byte
}

// Outbox decouples callers from broker latency.
//
// Publish only enqueues; a single Run goroutine delivers in FIFO order.
// Messages are dropped (never retried) when the queue is full, when the link
// is down, or while the circuit breaker is open after repeated failures.
// Every drop is reported through the OnDrop hook.
type Outbox struct {
	pub     Publisher
	qos     byte
	queue   chan outboundMessage
	breaker *gobreaker.CircuitBreaker
	logger  Logger

	mu     sync.RWMutex
	onDrop func(topic string, reason error)
	closed bool
}

// NewOutbox creates an outbox draining into pub.
func NewOutbox(pub Publisher, cfg config.MQTTConfig, logger Logger) *Outbox {
	o := &Outbox{
		pub:    pub,
		qos:    byte(cfg.QoS),
		queue:  make(chan outboundMessage, cfg.Outbox.Size),
		logger: logger,
	}

	failures := uint32(cfg.Outbox.BreakerFailures)
	if failures == 0 {
		failures = 1
	}
	o.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "mqtt-publish",
		Timeout: cfg.Outbox.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("publish breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return o
}

// SetOnDrop registers a hook called for every dropped message.
func (o *Outbox) SetOnDrop(fn func(topic string, reason error)) {
	o.mu.Lock()
	o.onDrop = fn
	o.mu.Unlock()
}

// Publish enqueues payload for topic without blocking.
func (o *Outbox) Publish(topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	o.mu.RLock()
	closed := o.closed
	o.mu.RUnlock()
	if closed {
		return ErrOutboxClosed
	}

	select {
	case o.queue <- outboundMessage{topic: topic, payload: payload}:
		return nil
	default:
		o.drop(topic, ErrOutboxFull)
		return ErrOutboxFull
	}
}

// PublishJSON marshals v and enqueues it.
func (o *Outbox) PublishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling payload for %s: %w", topic, err)
	}
	return o.Publish(topic, payload)
}

// Pending returns the number of queued messages.
func (o *Outbox) Pending() int {
	return len(o.queue)
}

// Run delivers queued messages until ctx is cancelled, then makes one final
// pass over whatever is still queued.
func (o *Outbox) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			o.mu.Lock()
			o.closed = true
			o.mu.Unlock()
			o.flush()
			return
		case msg := <-o.queue:
			o.deliver(msg)
		}
	}
}

func (o *Outbox) flush() {
	for {
		select {
		case msg := <-o.queue:
			o.deliver(msg)
		default:
			return
		}
	}
}

func (o *Outbox) deliver(msg outboundMessage) {
	if !o.pub.IsConnected() {
		o.drop(msg.topic, ErrNotConnected)
		return
	}

	_, err := o.breaker.Execute(func() (interface{}, error) {
		return nil, o.pub.Publish(msg.topic, msg.payload, o.qos, false)
	})
	if err != nil {
		o.drop(msg.topic, err)
	}
}

func (o *Outbox) drop(topic string, reason error) {
	switch {
	case errors.Is(reason, ErrNotConnected), errors.Is(reason, gobreaker.ErrOpenState):
		o.logger.Debug("outbound message dropped", "topic", topic, "reason", reason)
	default:
		o.logger.Warn("outbound message dropped", "topic", topic, "reason", reason)
	}

	o.mu.RLock()
	hook := o.onDrop
	o.mu.RUnlock()
	if hook != nil {
		hook(topic, reason)
	}
}

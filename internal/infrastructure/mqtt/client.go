package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/homesec-core/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for the homesec message channel.
//
// A Client is created disconnected. Connect performs exactly one attempt;
// retrying is the Supervisor's job. Subscriptions registered at any time are
// remembered and (re)applied on every successful connect.
//
// All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	// lost receives the reason whenever an established link drops.
	lost chan error

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the logging surface the MQTT package needs.
// *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run on paho's delivery goroutine and must not block; the control
// loop copies the payload into its own queue and returns.
type MessageHandler func(topic string, payload []byte) error

// New creates a disconnected client for the configured broker.
func New(cfg config.MQTTConfig) *Client {
	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
		lost:          make(chan error, 1),
	}

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect makes a single connection attempt bounded by connectTimeout.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The on-connect handler runs asynchronously; mark the link up now so
	// IsConnected is true as soon as Connect returns.
	c.setConnected(true)
	return nil
}

// Lost returns a channel that receives the reason each time an established
// link drops.
func (c *Client) Lost() <-chan error {
	return c.lost
}

func (c *Client) handleConnect() {
	c.setConnected(true)
	c.restoreSubscriptions()

	token := c.client.Publish(TopicSystemStatus, byte(c.cfg.QoS), true,
		statusPayload(c.cfg.Broker.ClientID, "online", ""))
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		c.warn("failed to publish online status", "error", token.Error())
	}
}

func (c *Client) handleConnectionLost(err error) {
	c.setConnected(false)
	select {
	case c.lost <- err:
	default:
		// A loss is already pending; the supervisor only needs one.
	}
}

func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	subs := make([]subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	c.subMu.RUnlock()

	for _, sub := range subs {
		token := c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			c.warn("failed to restore subscription", "topic", sub.topic, "error", token.Error())
		}
	}
}

// Close publishes a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(TopicSystemStatus, byte(c.cfg.QoS), true,
			statusPayload(c.cfg.Broker.ClientID, "offline", "graceful_shutdown"))
		token.WaitTimeout(publishTimeout)
		c.client.Disconnect(disconnectQuiesce)
	}

	c.setConnected(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

// SetLogger sets the logger used for handler errors and panics.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) warn(msg string, args ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Warn(msg, args...)
	}
}

// wrapHandler adds panic recovery and error logging to a MessageHandler.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}

package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/homesec-core/internal/infrastructure/config"
)

const (
	// connectTimeout bounds a single connection attempt.
	connectTimeout = 10 * time.Second

	// publishTimeout bounds waiting for a publish or subscribe acknowledgement.
	publishTimeout = 5 * time.Second

	// disconnectQuiesce is the time in milliseconds to let pending work finish on Close.
	disconnectQuiesce = 250

	// keepAlive is the keepalive interval for the connection.
	keepAlive = 30 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho options from config.
//
// Automatic reconnection is disabled: the Supervisor owns the link lifecycle
// so its state is observable and its retry policy is the configured one.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL())
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	configureLWT(opts, cfg.Broker.ClientID)
	return opts
}

// configureLWT makes the broker publish a retained offline status if the
// link drops without a clean disconnect.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	opts.SetWill(TopicSystemStatus, statusPayload(clientID, "offline", "unexpected_disconnect"), 1, true)
}

// statusPayload builds the retained system status document.
func statusPayload(clientID, status, reason string) string {
	if reason == "" {
		return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`,
			status, clientID, time.Now().UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"reason":%q,"timestamp":%q}`,
		status, clientID, reason, time.Now().UTC().Format(time.RFC3339))
}

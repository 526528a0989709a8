package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/homesec-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second
	defaultWriteTimeout   = 5

	millisecondsPerSecond = 1000
)

// Client wraps the InfluxDB v2 client for the ambient time series.
//
// Writes are blocking so the caller (the ambient recorder) sees every
// failure and can trip its circuit breaker. All methods are safe for
// concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	cfg      config.InfluxDBConfig

	connected bool
	mu        sync.RWMutex
}

// Connect creates the client and verifies the server answers a ping.
// It returns ErrDisabled when InfluxDB is switched off in configuration.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}

	// #nosec G115 -- timeout is positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetHTTPRequestTimeout(uint(timeout)).
			SetPrecision(time.Millisecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	return &Client{
		client:    client,
		writeAPI:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		cfg:       cfg,
		connected: true,
	}, nil
}

// Close shuts down the underlying HTTP client. Safe to call more than once.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if wasConnected {
		c.client.Close()
	}
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// IsConnected reports the last known state. HealthCheck does an active ping.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

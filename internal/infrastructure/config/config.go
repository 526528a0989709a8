package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for homesec.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Occupancy OccupancyConfig `yaml:"occupancy"`
	Alarm     AlarmConfig     `yaml:"alarm"`
	Actuators ActuatorsConfig `yaml:"actuators"`
	Ambient   AmbientConfig   `yaml:"ambient"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	OTP       OTPConfig       `yaml:"otp"`
}

// SiteConfig identifies the installation.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Outbox    MQTTOutboxConfig    `yaml:"outbox"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig controls the link supervisor retry policy.
type MQTTReconnectConfig struct {
	// Delay is the fixed wait between connection attempts.
	Delay time.Duration `yaml:"delay"`
	// MaxAttempts bounds consecutive failed attempts. 0 means unlimited.
	MaxAttempts int `yaml:"max_attempts"`
}

// MQTTOutboxConfig controls the asynchronous publish queue.
type MQTTOutboxConfig struct {
	Size int `yaml:"size"`
	// BreakerFailures is the number of consecutive publish failures that
	// opens the circuit breaker.
	BreakerFailures int `yaml:"breaker_failures"`
	// BreakerCooldown is how long the breaker stays open before a trial publish.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// APIConfig contains HTTP control panel settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains live feed settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	WriteTimeout  int    `yaml:"write_timeout"` // seconds
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// OccupancyConfig contains the doorway counter timing and thresholds.
type OccupancyConfig struct {
	// ThresholdCM is the distance under which a sensor reports a body.
	ThresholdCM float64 `yaml:"threshold_cm"`
	// SampleInterval is the control loop tick cadence.
	SampleInterval time.Duration `yaml:"sample_interval"`
	// ConfirmWindow is the wait between the first trigger and the opposing check.
	ConfirmWindow time.Duration `yaml:"confirm_window"`
	// SettleDelay suppresses sampling after a confirmed crossing.
	SettleDelay time.Duration `yaml:"settle_delay"`
	// HeartbeatInterval is the maximum gap between status publishes.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	// SensorTimeout bounds a single distance measurement.
	SensorTimeout time.Duration `yaml:"sensor_timeout"`
	// InitialMaxPeople is the capacity limit used until one arrives over MQTT.
	InitialMaxPeople int `yaml:"initial_max_people"`
}

// AlarmConfig contains over-capacity alarm timing.
type AlarmConfig struct {
	BlinkInterval   time.Duration `yaml:"blink_interval"`
	SequenceRepeats int           `yaml:"sequence_repeats"`
}

// ActuatorsConfig describes the actuator node.
type ActuatorsConfig struct {
	LightCount      int `yaml:"light_count"`
	DoorOpenAngle   int `yaml:"door_open_angle"`
	DoorClosedAngle int `yaml:"door_closed_angle"`
}

// AmbientConfig controls the auxiliary environment sensor.
type AmbientConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// HardwareConfig selects the sensor and actuator drivers.
type HardwareConfig struct {
	// Driver is the driver set to use. Only "simulated" ships today.
	Driver string `yaml:"driver"`
	// CrossingEvery is how often the simulated doorway sees a crossing.
	CrossingEvery time.Duration `yaml:"crossing_every"`
}

// OTPConfig controls one-time code door access.
type OTPConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Driver names.
const (
	DriverSimulated = "simulated"
)

// maxLightCount bounds actuators.light_count.
const maxLightCount = 64

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HOMESEC_SECTION_KEY
// For example: HOMESEC_DATABASE_PATH, HOMESEC_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with the timing constants of the doorway node.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "home-001",
			Name: "Home",
		},
		Database: DatabaseConfig{
			Path:        "./data/homesec.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "homesec-core",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				Delay:       5 * time.Second,
				MaxAttempts: 0,
			},
			Outbox: MQTTOutboxConfig{
				Size:            256,
				BreakerFailures: 5,
				BreakerCooldown: 10 * time.Second,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "home",
			Bucket:        "sensors",
			WriteTimeout:  5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Occupancy: OccupancyConfig{
			ThresholdCM:       50,
			SampleInterval:    50 * time.Millisecond,
			ConfirmWindow:     200 * time.Millisecond,
			SettleDelay:       500 * time.Millisecond,
			HeartbeatInterval: 5 * time.Second,
			SensorTimeout:     30 * time.Millisecond,
		},
		Alarm: AlarmConfig{
			BlinkInterval:   500 * time.Millisecond,
			SequenceRepeats: 5,
		},
		Actuators: ActuatorsConfig{
			LightCount:      5,
			DoorOpenAngle:   90,
			DoorClosedAngle: 0,
		},
		Ambient: AmbientConfig{
			Enabled:  true,
			Interval: 2 * time.Second,
		},
		Hardware: HardwareConfig{
			Driver:        DriverSimulated,
			CrossingEvery: 20 * time.Second,
		},
		OTP: OTPConfig{
			TTL: time.Minute,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOMESEC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("HOMESEC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HOMESEC_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("HOMESEC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HOMESEC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("HOMESEC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("HOMESEC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("HOMESEC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
// Every problem is reported, not just the first.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.Delay <= 0 {
		errs = append(errs, "mqtt.reconnect.delay must be positive")
	}
	if c.MQTT.Reconnect.MaxAttempts < 0 {
		errs = append(errs, "mqtt.reconnect.max_attempts must not be negative")
	}
	if c.MQTT.Outbox.Size < 1 {
		errs = append(errs, "mqtt.outbox.size must be at least 1")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.WebSocket.MaxMessageSize < 1 {
		errs = append(errs, "websocket.max_message_size must be positive")
	}
	if c.WebSocket.PingInterval < 1 {
		errs = append(errs, "websocket.ping_interval must be at least 1 second")
	}
	if c.WebSocket.PongTimeout < 1 {
		errs = append(errs, "websocket.pong_timeout must be at least 1 second")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	errs = append(errs, c.validateTiming()...)

	if c.Occupancy.ThresholdCM <= 0 {
		errs = append(errs, "occupancy.threshold_cm must be positive")
	}
	if c.Occupancy.InitialMaxPeople < 0 {
		errs = append(errs, "occupancy.initial_max_people must not be negative")
	}
	if c.Alarm.SequenceRepeats < 1 {
		errs = append(errs, "alarm.sequence_repeats must be at least 1")
	}
	if c.Actuators.LightCount < 1 || c.Actuators.LightCount > maxLightCount {
		errs = append(errs, fmt.Sprintf("actuators.light_count must be between 1 and %d", maxLightCount))
	}
	if c.Hardware.Driver != DriverSimulated {
		errs = append(errs, fmt.Sprintf("hardware.driver %q is not supported", c.Hardware.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateTiming checks that every interval the control loop relies on is set.
func (c *Config) validateTiming() []string {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"occupancy.sample_interval", c.Occupancy.SampleInterval},
		{"occupancy.confirm_window", c.Occupancy.ConfirmWindow},
		{"occupancy.settle_delay", c.Occupancy.SettleDelay},
		{"occupancy.heartbeat_interval", c.Occupancy.HeartbeatInterval},
		{"occupancy.sensor_timeout", c.Occupancy.SensorTimeout},
		{"alarm.blink_interval", c.Alarm.BlinkInterval},
		{"otp.ttl", c.OTP.TTL},
	}
	if c.Ambient.Enabled {
		durations = append(durations, struct {
			name  string
			value time.Duration
		}{"ambient.interval", c.Ambient.Interval})
	}

	var errs []string
	for _, d := range durations {
		if d.value <= 0 {
			errs = append(errs, d.name+" must be positive")
		}
	}
	return errs
}

// BrokerURL returns the broker address in paho's scheme://host:port form.
func (c *MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if c.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Broker.Host, c.Broker.Port)
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

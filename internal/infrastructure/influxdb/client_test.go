package influxdb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/homesec-core/internal/infrastructure/config"
	"github.com/nerrad567/homesec-core/internal/infrastructure/influxdb"
)

// testConfig matches the local dev InfluxDB in docker-compose.yml.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:      true,
		URL:          "http://127.0.0.1:8086",
		Token:        "homesec-dev-token",
		Org:          "home",
		Bucket:       "sensors",
		WriteTimeout: 2,
	}
}

// connectOrSkip returns a live client or skips when no server is running.
func connectOrSkip(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestNewAmbientPoint(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	point := influxdb.NewAmbientPoint(influxdb.AmbientPoint{
		Site:        "home",
		Temperature: 21.5,
		Humidity:    40.25,
		Time:        ts,
	})

	if point.Name() != influxdb.MeasurementAmbient {
		t.Errorf("Name() = %q, want %q", point.Name(), influxdb.MeasurementAmbient)
	}
	if !point.Time().Equal(ts) {
		t.Errorf("Time() = %v, want %v", point.Time(), ts)
	}

	fields := map[string]interface{}{}
	for _, f := range point.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["temperature"] != 21.5 || fields["humidity"] != 40.25 {
		t.Errorf("fields = %v", fields)
	}

	tags := point.TagList()
	if len(tags) != 1 || tags[0].Key != "site" || tags[0].Value != "home" {
		t.Errorf("tags = %v, want site=home", tags)
	}
}

func TestNewAmbientPoint_Defaults(t *testing.T) {
	before := time.Now()
	point := influxdb.NewAmbientPoint(influxdb.AmbientPoint{Temperature: 1, Humidity: 2})

	if point.Time().Before(before) {
		t.Errorf("Time() = %v, want now", point.Time())
	}
	if len(point.TagList()) != 0 {
		t.Errorf("TagList() = %v, want no tags without a site", point.TagList())
	}
}

func TestClose_Nil(t *testing.T) {
	var client influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client = %v", err)
	}
	if err := client.WriteAmbient(context.Background(), influxdb.AmbientPoint{}); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("WriteAmbient() on zero client = %v, want ErrNotConnected", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() on zero client = %v, want ErrNotConnected", err)
	}
}

func TestWriteAmbient(t *testing.T) {
	client := connectOrSkip(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.WriteAmbient(ctx, influxdb.AmbientPoint{Site: "test", Temperature: 22.1, Humidity: 45}); err != nil {
		t.Errorf("WriteAmbient() error = %v", err)
	}
	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWriteAmbient_AfterClose(t *testing.T) {
	client := connectOrSkip(t)
	client.Close()

	err := client.WriteAmbient(context.Background(), influxdb.AmbientPoint{})
	if !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("WriteAmbient() after Close = %v, want ErrNotConnected", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
}

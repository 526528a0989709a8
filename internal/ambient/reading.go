package ambient

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

var (
	// ErrInvalidReading is returned for NaN or infinite sensor values.
	ErrInvalidReading = errors.New("ambient: invalid sensor reading")
	// ErrMalformedPayload is returned for home/sensor/data payloads that
	// do not carry two numeric strings.
	ErrMalformedPayload = errors.New("ambient: malformed payload")
)

// Reading is one temperature (°C) and relative humidity (%) sample.
type Reading struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	At          time.Time `json:"at"`
}

// Payload is the wire form on home/sensor/data.
type Payload struct {
	Temperature string `json:"temperature"`
	Humidity    string `json:"humidity"`
}

// NewPayload formats temperature and humidity with two decimals.
func NewPayload(temperature, humidity float64) Payload {
	return Payload{
		Temperature: strconv.FormatFloat(temperature, 'f', 2, 64),
		Humidity:    strconv.FormatFloat(humidity, 'f', 2, 64),
	}
}

// ParsePayload decodes a home/sensor/data payload.
func ParsePayload(payload []byte) (temperature, humidity float64, err error) {
	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	temperature, err = parseField("temperature", p.Temperature)
	if err != nil {
		return 0, 0, err
	}
	humidity, err = parseField("humidity", p.Humidity)
	if err != nil {
		return 0, 0, err
	}
	return temperature, humidity, nil
}

func parseField(name, s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrMalformedPayload, name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !valid(v) {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrMalformedPayload, name, s)
	}
	return v, nil
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

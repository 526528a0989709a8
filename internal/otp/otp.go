// Package otp caches the one-time door code announced by the code display
// node and verifies codes entered on the panel.
//
// The node publishes {"otp": n} to home/otp whenever a code is generated.
// Only the latest code is valid, for a limited time, and only once. A
// successful verification opens the door through the normal command path.
package otp

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/nerrad567/homesec-core/internal/infrastructure/mqtt"
)

// maxCode is the largest six-digit code.
const maxCode = 999999

var (
	ErrMalformedPayload = errors.New("otp: malformed payload")
	ErrNoCode           = errors.New("otp: no code issued")
	ErrExpired          = errors.New("otp: code expired")
	ErrMismatch         = errors.New("otp: code mismatch")
)

// openDoorPayload is the servo command sent on successful verification.
var openDoorPayload = []byte(`{"command":"on"}`)

// CommandSender routes an actuator command. *controller.Sender satisfies it.
type CommandSender interface {
	SendCommand(topic string, payload []byte) error
}

// Logger is the logging surface the package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type issued struct {
	code string
	at   time.Time
}

// Service holds the current code.
type Service struct {
	ttl    time.Duration
	sender CommandSender
	logger Logger
	now    func() time.Time

	mu      sync.Mutex
	current *issued
}

// NewService creates a service whose codes are valid for ttl.
func NewService(ttl time.Duration, sender CommandSender, logger Logger) *Service {
	return &Service{ttl: ttl, sender: sender, logger: logger, now: time.Now}
}

// HandleMessage satisfies mqtt.MessageHandler for home/otp.
func (s *Service) HandleMessage(topic string, payload []byte) error {
	code, err := ParseCode(payload)
	if err != nil {
		s.logger.Warn("dropping malformed code", "topic", topic, "error", err)
		return err
	}

	s.mu.Lock()
	s.current = &issued{code: code, at: s.now()}
	s.mu.Unlock()

	s.logger.Info("door code issued", "ttl", s.ttl)
	return nil
}

// ParseCode decodes {"otp": n} into its six-digit form.
func ParseCode(payload []byte) (string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	raw, ok := doc["otp"]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: otp is required", ErrMalformedPayload)
	}

	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("%w: otp must be an integer", ErrMalformedPayload)
	}
	if n < 0 || n > maxCode {
		return "", fmt.Errorf("%w: otp %d out of range", ErrMalformedPayload, n)
	}
	return Format(n), nil
}

// Format renders n as a zero-padded six-digit code.
func Format(n int) string {
	return fmt.Sprintf("%06d", n)
}

// Current returns the code if one is fresh.
func (s *Service) Current() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *Service) currentLocked() (string, error) {
	if s.current == nil {
		return "", ErrNoCode
	}
	if s.now().Sub(s.current.at) > s.ttl {
		return "", ErrExpired
	}
	return s.current.code, nil
}

// Verify checks code against the current one. On a match the code is
// consumed and the door is opened.
func (s *Service) Verify(code int) error {
	s.mu.Lock()
	current, err := s.currentLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if subtle.ConstantTimeCompare([]byte(current), []byte(Format(code))) != 1 {
		s.mu.Unlock()
		return ErrMismatch
	}
	s.current = nil
	s.mu.Unlock()

	if err := s.sender.SendCommand(mqtt.TopicServoCommand, openDoorPayload); err != nil {
		return fmt.Errorf("opening door: %w", err)
	}
	s.logger.Info("door code accepted, opening door")
	return nil
}

// QRCode renders the current code as a PNG of size×size pixels.
func (s *Service) QRCode(size int) ([]byte, error) {
	code, err := s.Current()
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(code, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encoding qr code: %w", err)
	}
	return png, nil
}

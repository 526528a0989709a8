package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/homesec-core/internal/infrastructure/config"
)

// LinkState is the broker link lifecycle as seen by the Supervisor.
type LinkState int

const (
	// StateDisconnected means no link and no attempt in progress.
	StateDisconnected LinkState = iota
	// StateConnecting means attempts are being made under the retry policy.
	StateConnecting
	// StateConnected means the link is up.
	StateConnected
)

// String returns the lowercase state name used in logs and the panel.
func (s LinkState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Connector is the part of Client the Supervisor drives.
type Connector interface {
	// Connect makes one connection attempt.
	Connect() error
	// Lost delivers the reason each time an established link drops.
	Lost() <-chan error
}

// Supervisor owns the connection lifecycle:
//
//	Disconnected -> Connecting -> Connected -> (link lost) -> Disconnected -> ...
//
// Attempts in Connecting are spaced by a constant delay. With MaxAttempts 0
// it retries forever; otherwise Run returns ErrAttemptsExhausted once the
// bound is hit.
//
// The Supervisor runs on its own goroutine, so the control loop keeps
// ticking while the link is down.
type Supervisor struct {
	conn        Connector
	delay       time.Duration
	maxAttempts int
	logger      Logger

	mu        sync.RWMutex
	state     LinkState
	attempts  int
	listeners []func(LinkState)
}

// NewSupervisor creates a supervisor for conn using the reconnect policy in cfg.
func NewSupervisor(conn Connector, cfg config.MQTTReconnectConfig, logger Logger) *Supervisor {
	return &Supervisor{
		conn:        conn,
		delay:       cfg.Delay,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
		state:       StateDisconnected,
	}
}

// OnStateChange registers fn to be called, on the supervisor goroutine, after
// every state transition. Register before Run.
func (s *Supervisor) OnStateChange(fn func(LinkState)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// State returns the current link state.
func (s *Supervisor) State() LinkState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Attempts returns the total number of connection attempts made so far.
func (s *Supervisor) Attempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempts
}

// Run drives the state machine until ctx is cancelled (returns nil) or a
// bounded retry policy is exhausted (returns ErrAttemptsExhausted).
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if err := s.connect(ctx); err != nil {
			s.setState(StateDisconnected)
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case err := <-s.conn.Lost():
			s.logger.Warn("mqtt link lost", "error", err)
			s.setState(StateDisconnected)
		}
	}
}

// connect moves to Connecting and retries until connected, cancelled or exhausted.
func (s *Supervisor) connect(ctx context.Context) error {
	s.setState(StateConnecting)

	var policy backoff.BackOff = backoff.NewConstantBackOff(s.delay)
	if s.maxAttempts > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(s.maxAttempts-1))
	}
	policy = backoff.WithContext(policy, ctx)

	operation := func() error {
		s.mu.Lock()
		s.attempts++
		s.mu.Unlock()
		return s.conn.Connect()
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("mqtt connect attempt failed", "error", err, "retry_in", wait)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrAttemptsExhausted, err)
	}

	s.setState(StateConnected)
	return nil
}

func (s *Supervisor) setState(next LinkState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	listeners := append([]func(LinkState){}, s.listeners...)
	s.mu.Unlock()

	if prev == next {
		return
	}
	s.logger.Info("mqtt link state changed", "from", prev.String(), "to", next.String())
	for _, fn := range listeners {
		fn(next)
	}
}


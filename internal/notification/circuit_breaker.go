package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/errors"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// StateClosed means requests are flowing normally.
	StateClosed CircuitState = iota
	// StateHalfOpen means a trial request tests whether the sink recovered.
	StateHalfOpen
	// StateOpen means requests are rejected without contacting the sink.
	StateOpen
)

// String returns the string representation of CircuitState.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a sink is skipped because its circuit is open.
var ErrCircuitOpen = errors.NewStd("circuit breaker is open")

// CircuitBreakerConfig holds configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening the circuit.
	MaxFailures int
	// Timeout is how long the circuit stays open before a trial request.
	Timeout time.Duration
}

// DefaultCircuitBreakerConfig returns default circuit breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
	}
}

// circuitBreaker stops hammering a sink that keeps failing.
type circuitBreaker struct {
	config          CircuitBreakerConfig
	state           CircuitState
	failures        int
	lastStateChange time.Time
	trialInFlight   bool
	sink            string
	mu              sync.Mutex
	now             func() time.Time
}

func newCircuitBreaker(config CircuitBreakerConfig, sink string) *circuitBreaker {
	if config.MaxFailures < 1 {
		config.MaxFailures = DefaultCircuitBreakerConfig().MaxFailures
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultCircuitBreakerConfig().Timeout
	}
	return &circuitBreaker{
		config:          config,
		state:           StateClosed,
		lastStateChange: time.Now(),
		sink:            sink,
		now:             time.Now,
	}
}

// Call runs fn when the circuit allows it and records the outcome.
func (cb *circuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return fmt.Errorf("%s skipped (%d consecutive failures): %w", cb.sink, cb.Failures(), err)
	}
	err := fn(ctx)
	cb.afterCall(err)
	return err
}

func (cb *circuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.lastStateChange) >= cb.config.Timeout {
			cb.setState(StateHalfOpen)
			cb.trialInFlight = true
			return nil
		}
		return ErrCircuitOpen
	default: // half-open: one trial at a time
		if cb.trialInFlight {
			return ErrCircuitOpen
		}
		cb.trialInFlight = true
		return nil
	}
}

func (cb *circuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trialInFlight = false

	if err == nil {
		cb.failures = 0
		if cb.state != StateClosed {
			cb.setState(StateClosed)
		}
		return
	}

	// shutdown cancellation says nothing about the sink
	if errors.Is(err, context.Canceled) {
		return
	}

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.config.MaxFailures {
		cb.setState(StateOpen)
	}
}

// setState must be called with mu held.
func (cb *circuitBreaker) setState(state CircuitState) {
	if cb.state == state {
		return
	}
	GetLogger().Info("circuit breaker state changed",
		logger.String("sink", cb.sink),
		logger.String("from", cb.state.String()),
		logger.String("to", state.String()),
		logger.Int("failures", cb.failures))
	cb.state = state
	cb.lastStateChange = cb.now()
}

// State returns the current state.
func (cb *circuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the number of consecutive failures.
func (cb *circuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

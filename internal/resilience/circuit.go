package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when a call is rejected without being
// attempted because the breaker is open.
var ErrCircuitOpen = eris.New("resilience: circuit open")

type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker stops hammering a provider that is consistently
// failing. After Threshold consecutive failures the breaker opens and
// rejects calls for Cooldown; the next call after the cooldown is a
// probe that closes the breaker on success.
type CircuitBreaker struct {
	mu        sync.Mutex
	name      string
	threshold int
	cooldown  time.Duration
	state     circuitState
	failures  int
	openedAt  time.Time
	nowFunc   func() time.Time
}

// NewCircuitBreaker returns a closed breaker. Threshold values below 1
// are clamped to 1.
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		nowFunc:   time.Now,
	}
}

// Allow reports whether a call may proceed, transitioning an expired
// open breaker to half-open.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed, stateHalfOpen:
		return true
	case stateOpen:
		if cb.nowFunc().Sub(cb.openedAt) >= cb.cooldown {
			cb.state = stateHalfOpen
			zap.L().Info("circuit half-open, probing", zap.String("breaker", cb.name))
			return true
		}
		return false
	}
	return true
}

// Success records a successful call and closes the breaker.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != stateClosed {
		zap.L().Info("circuit closed", zap.String("breaker", cb.name))
	}
	cb.state = stateClosed
	cb.failures = 0
}

// Failure records a failed call, opening the breaker when the
// consecutive-failure threshold is reached. A failed half-open probe
// reopens immediately.
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == stateHalfOpen || cb.failures >= cb.threshold {
		cb.state = stateOpen
		cb.openedAt = cb.nowFunc()
		zap.L().Warn("circuit opened",
			zap.String("breaker", cb.name),
			zap.Int("failures", cb.failures),
			zap.Duration("cooldown", cb.cooldown))
	}
}

// State returns a human-readable state name for metrics and logs.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

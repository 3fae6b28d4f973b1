package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Pracylop/uganda-electoral-map-sub003/pkg/logger"
)

// ErrCircuitOpen is returned without invoking the wrapped call while the
// breaker is open.
var ErrCircuitOpen = errors.New("circuit open")

// State is the breaker phase: closed (normal), open (failing fast), or
// half-open (probing).
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreakerConfig controls when the breaker trips and how long it stays
// open. Zero fields take the defaults.
type CircuitBreakerConfig struct {
	FailureThreshold int
	CooldownPeriod   time.Duration
}

// CircuitBreaker fails fast once a dependency has produced FailureThreshold
// consecutive errors. After the cooldown it lets one probe call through:
// success closes the breaker, failure re-opens it. Election night is exactly
// when the tally store is most likely to be overloaded, so the cheap
// rejection here is what keeps the stale-serve path responsive.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.CooldownPeriod <= 0 {
		cfg.CooldownPeriod = 30 * time.Second
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: logger.WithComponent("circuit-breaker").With("name", name),
	}
}

// Execute runs fn unless the breaker is failing fast, and records the
// outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.observe(err)
	return err
}

// GetState returns the current breaker phase.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		remaining := cb.cfg.CooldownPeriod - time.Since(cb.openedAt)
		if remaining > 0 {
			return fmt.Errorf("%w: %s for another %v", ErrCircuitOpen, cb.name, remaining.Round(time.Second))
		}
		cb.state = StateHalfOpen
		cb.probing = true
		cb.logger.Info("cooldown elapsed, probing")
		return nil
	case StateHalfOpen:
		if cb.probing {
			return fmt.Errorf("%w: %s probe in flight", ErrCircuitOpen, cb.name)
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) observe(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false

	if err == nil {
		if cb.state == StateHalfOpen {
			cb.logger.Info("probe succeeded, circuit closed")
		}
		cb.state = StateClosed
		cb.failures = 0
		return
	}

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
		cb.state = StateOpen
		cb.openedAt = time.Now()
		cb.logger.Warn("circuit opened",
			"consecutive_failures", cb.failures,
			"cooldown", cb.cfg.CooldownPeriod,
		)
	}
}

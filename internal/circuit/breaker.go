package circuit

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // Calls rejected
	StateHalfOpen BreakerState = "half_open" // Testing recovery
)

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled                bool          `json:"enabled"`
	MaxConsecutiveFailures int           `json:"max_consecutive_failures"`
	Cooldown               time.Duration `json:"cooldown"`
}

// DefaultCircuitBreakerConfig returns safe defaults
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Enabled:                true,
		MaxConsecutiveFailures: 3,
		Cooldown:               2 * time.Minute,
	}
}

// Stats is a snapshot of the breaker
type Stats struct {
	Name                string        `json:"name"`
	State               BreakerState  `json:"state"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	TotalTrips          int           `json:"total_trips"`
	TripReason          string        `json:"trip_reason,omitempty"`
	LastTripTime        time.Time     `json:"last_trip_time,omitempty"`
	CooldownRemaining   time.Duration `json:"cooldown_remaining"`
}

// CircuitBreaker stops calling a failing dependency for a cool-down period
// after a run of consecutive failures
type CircuitBreaker struct {
	name                string
	config              CircuitBreakerConfig
	state               BreakerState
	consecutiveFailures int
	totalTrips          int
	lastTripTime        time.Time
	tripReason          string
	mu                  sync.RWMutex
	onTrip              func(reason string)
	onReset             func()
	now                 func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	cfg := *config
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Minute
	}

	return &CircuitBreaker{
		name:   name,
		config: cfg,
		state:  StateClosed,
		now:    time.Now,
	}
}

// SetClock replaces the time source
func (cb *CircuitBreaker) SetClock(now func() time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.now = now
}

// OnTrip sets callback for when breaker trips
func (cb *CircuitBreaker) OnTrip(handler func(reason string)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onTrip = handler
}

// OnReset sets callback for when breaker recovers
func (cb *CircuitBreaker) OnReset(handler func()) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onReset = handler
}

// Allow checks whether a call may proceed. An open breaker whose cool-down
// passed moves to half-open and lets one trial call through.
func (cb *CircuitBreaker) Allow() (bool, string) {
	if !cb.config.Enabled {
		return true, ""
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		elapsed := cb.now().Sub(cb.lastTripTime)
		if elapsed < cb.config.Cooldown {
			remaining := cb.config.Cooldown - elapsed
			return false, fmt.Sprintf("circuit breaker %s open, cooldown remaining: %v (reason: %s)",
				cb.name, remaining.Round(time.Second), cb.tripReason)
		}
		cb.state = StateHalfOpen
	}
	return true, ""
}

// RecordSuccess resets the failure count and closes a half-open breaker
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	recovered := cb.state == StateHalfOpen
	cb.consecutiveFailures = 0
	if recovered {
		cb.state = StateClosed
		cb.tripReason = ""
	}
	onReset := cb.onReset
	cb.mu.Unlock()

	if recovered && onReset != nil {
		go onReset()
	}
}

// RecordFailure counts a failure and trips the breaker when the limit is
// reached. A failed half-open trial trips it again immediately.
func (cb *CircuitBreaker) RecordFailure(err error) {
	if !cb.config.Enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	if cb.state == StateHalfOpen || cb.consecutiveFailures >= cb.config.MaxConsecutiveFailures {
		reason := fmt.Sprintf("%d consecutive failures", cb.consecutiveFailures)
		if err != nil {
			reason += ": " + err.Error()
		}
		cb.trip(reason)
	}
}

// trip opens the circuit breaker. Caller holds the lock.
func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.lastTripTime = cb.now()
	cb.tripReason = reason
	cb.totalTrips++

	if cb.onTrip != nil {
		go cb.onTrip(reason)
	}
}

// ForceReset manually closes the circuit breaker
func (cb *CircuitBreaker) ForceReset() {
	cb.mu.Lock()
	cb.state = StateClosed
	cb.consecutiveFailures = 0
	cb.tripReason = ""
	onReset := cb.onReset
	cb.mu.Unlock()

	if onReset != nil {
		go onReset()
	}
}

// GetState returns current breaker state
func (cb *CircuitBreaker) GetState() BreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns current statistics
func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	s := Stats{
		Name:                cb.name,
		State:               cb.state,
		ConsecutiveFailures: cb.consecutiveFailures,
		TotalTrips:          cb.totalTrips,
		TripReason:          cb.tripReason,
		LastTripTime:        cb.lastTripTime,
	}
	if cb.state == StateOpen {
		if remaining := cb.config.Cooldown - cb.now().Sub(cb.lastTripTime); remaining > 0 {
			s.CooldownRemaining = remaining
		}
	}
	return s
}

// IsEnabled returns if circuit breaker is enabled
func (cb *CircuitBreaker) IsEnabled() bool {
	return cb.config.Enabled
}

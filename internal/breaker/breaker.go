// Package breaker puts sony/gobreaker in front of the graph store, the
// time-series store and the completion service
package breaker

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/seanankenbruck/twin-query/internal/observability"
)

// Config defines circuit breaker configuration
type Config struct {
	MaxRequests uint32        // Max requests allowed in half-open state
	Interval    time.Duration // Window for counting failures
	Timeout     time.Duration // Duration circuit stays open before trying recovery
	ReadyToTrip func(counts gobreaker.Counts) bool
	// IsSuccessful decides which errors count against the breaker. Nil
	// counts every error.
	IsSuccessful  func(err error) bool
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// Default trips after five consecutive failures
var Default = Config{
	MaxRequests: 1,
	Interval:    10 * time.Second,
	Timeout:     30 * time.Second,
	ReadyToTrip: func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 5
	},
}

// New creates a named breaker. Every transition is exported as the
// circuit_breaker_state gauge before cfg.OnStateChange runs.
func New(name string, cfg Config) *gobreaker.CircuitBreaker {
	metrics := observability.GetGlobalMetrics()
	metrics.RecordBreakerState(name, int(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		ReadyToTrip:  cfg.ReadyToTrip,
		IsSuccessful: cfg.IsSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerState(name, int(to))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	})
}

// Do runs fn through the breaker and restores its typed result
func Do[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("circuit breaker: %w", err)
	}
	return result.(T), nil
}

package llm

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/seanankenbruck/twin-query/internal/breaker"
)

// DefaultCircuitBreakerConfig opens after five consecutive failures, or a
// 60% failure ratio over at least three calls. Rejected prompts do not count.
var DefaultCircuitBreakerConfig = breaker.Config{
	MaxRequests: 1,
	Interval:    10 * time.Second,
	Timeout:     30 * time.Second,
	ReadyToTrip: func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 3 && (counts.ConsecutiveFailures >= 5 || failureRatio >= 0.6)
	},
	IsSuccessful: countsAgainstService,
}

// countsAgainstService treats bad prompts as the caller's problem
func countsAgainstService(err error) bool {
	return err == nil || KindOf(err) == KindInvalidRequest
}

// CircuitBreakerClient wraps a completion client with circuit breaker protection
type CircuitBreakerClient struct {
	client  Client
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreakerClient creates a new circuit breaker wrapped client
func NewCircuitBreakerClient(client Client, name string, cfg breaker.Config) *CircuitBreakerClient {
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = countsAgainstService
	}
	return &CircuitBreakerClient{
		client:  client,
		breaker: breaker.New(name, cfg),
	}
}

// Complete wraps the client's Complete with circuit breaker protection
func (cb *CircuitBreakerClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	return breaker.Do(cb.breaker, func() (*Completion, error) {
		return cb.client.Complete(ctx, req)
	})
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreakerClient) State() gobreaker.State {
	return cb.breaker.State()
}

// Counts returns the current failure counts
func (cb *CircuitBreakerClient) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}

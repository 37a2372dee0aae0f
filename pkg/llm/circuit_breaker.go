package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/metrics"
	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects requests until ResetAfter has elapsed.
	CircuitOpen
	// CircuitHalfOpen lets a single probe request through.
	CircuitHalfOpen
)

// String returns a human-readable string for the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive failures before the circuit trips.
	// Zero disables the breaker.
	Threshold int
	// ResetAfter is how long the circuit stays open before a probe is allowed.
	ResetAfter time.Duration
}

// DefaultCircuitBreakerConfig trips after 5 consecutive failures and probes
// again after 30 seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:  5,
		ResetAfter: 30 * time.Second,
	}
}

// CircuitBreaker stops calling a completion endpoint that keeps failing so
// chat requests reach their fallback answer without waiting for a timeout.
type CircuitBreaker struct {
	mu               sync.Mutex
	consecutiveFails int
	threshold        int
	resetAfter       time.Duration
	lastFailure      time.Time
	state            CircuitState
	now              func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:  config.Threshold,
		resetAfter: config.ResetAfter,
		state:      CircuitClosed,
		now:        time.Now,
	}
}

// Allow reports whether a request may proceed. An open circuit becomes
// half-open once ResetAfter has passed and admits exactly one probe.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.threshold <= 0 {
		return nil
	}

	switch cb.state {
	case CircuitClosed:
		return nil
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) > cb.resetAfter {
			cb.state = CircuitHalfOpen
			return nil
		}
		return NewError(ErrorTypeCircuit,
			fmt.Sprintf("completion service marked down after %d consecutive failures", cb.consecutiveFails),
			true, nil)
	default:
		return NewError(ErrorTypeCircuit, "completion service probe in flight", true, nil)
	}
}

// RecordSuccess closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.state = CircuitClosed
}

// RecordFailure counts a failure and trips the circuit at the threshold. A
// failed probe reopens it immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = cb.now()

	if cb.state == CircuitHalfOpen || (cb.threshold > 0 && cb.consecutiveFails >= cb.threshold) {
		cb.state = CircuitOpen
	}
}

// RecordAbandoned releases a half-open probe whose caller went away before
// the endpoint answered. The circuit reopens without counting a failure, so
// the next request probes again.
func (cb *CircuitBreaker) RecordAbandoned() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// guardedClient adds a per-call timeout, the circuit breaker, and metrics
// around a CompletionClient.
type guardedClient struct {
	next    CompletionClient
	breaker *CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

// Guard wraps client with a per-call timeout and breaker. A zero timeout
// leaves the caller's deadline in charge.
func Guard(client CompletionClient, breaker *CircuitBreaker, timeout time.Duration, logger *zap.Logger) CompletionClient {
	return &guardedClient{
		next:    client,
		breaker: breaker,
		timeout: timeout,
		logger:  logger.Named("completion"),
	}
}

func (g *guardedClient) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	if err := g.breaker.Allow(); err != nil {
		metrics.CompletionDuration.WithLabelValues(g.next.Provider(), "circuit_open").Observe(0)
		g.logger.Warn("Completion skipped", zap.Error(err))
		return "", err
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := g.next.Complete(callCtx, messages)
	elapsed := time.Since(start).Seconds()

	if err != nil && ctx.Err() != nil {
		// The caller gave up; that says nothing about the endpoint.
		g.breaker.RecordAbandoned()
		metrics.CompletionDuration.WithLabelValues(g.next.Provider(), "canceled").Observe(elapsed)
		return "", ClassifyError(err)
	}
	if err != nil {
		g.breaker.RecordFailure()
		metrics.CompletionDuration.WithLabelValues(g.next.Provider(), metrics.ResultError).Observe(elapsed)
		return "", ClassifyError(err)
	}

	g.breaker.RecordSuccess()
	metrics.CompletionDuration.WithLabelValues(g.next.Provider(), metrics.ResultOK).Observe(elapsed)
	return text, nil
}

// Ping delegates to the wrapped client when it supports it.
func (g *guardedClient) Ping(ctx context.Context) error {
	if p, ok := g.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (g *guardedClient) Provider() string { return g.next.Provider() }

func (g *guardedClient) Model() string { return g.next.Model() }

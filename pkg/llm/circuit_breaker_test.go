package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/apperrors"
	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 3, ResetAfter: 30 * time.Second})

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		if err := cb.Allow(); err != nil {
			t.Fatalf("expected closed circuit after %d failures, got %v", i+1, err)
		}
	}

	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open circuit, got %v", cb.State())
	}

	err := cb.Allow()
	if err == nil {
		t.Fatal("expected open circuit to reject")
	}
	if !errors.Is(err, apperrors.ErrCompletionUnavailable) {
		t.Errorf("expected rejection to match ErrCompletionUnavailable, got %v", err)
	}
	if GetErrorType(err) != ErrorTypeCircuit {
		t.Errorf("expected circuit error type, got %q", GetErrorType(err))
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 1, ResetAfter: 10 * time.Second})
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	if cb.Allow() == nil {
		t.Fatal("expected open circuit to reject")
	}

	now = now.Add(11 * time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected probe to be allowed, got %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %v", cb.State())
	}
	if cb.Allow() == nil {
		t.Error("expected second request during probe to be rejected")
	}

	// Failed probe reopens.
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Errorf("expected open after failed probe, got %v", cb.State())
	}

	now = now.Add(11 * time.Second)
	_ = cb.Allow()
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after successful probe, got %v", cb.State())
	}
}

func TestCircuitBreaker_DisabledWithZeroThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	for i := 0; i < 100; i++ {
		cb.RecordFailure()
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("expected disabled breaker to allow, got %v", err)
	}
}

func TestGuard_ClassifiesAndTrips(t *testing.T) {
	mock := NewMockCompletionClient()
	mock.CompleteFunc = func(ctx context.Context, messages []models.ChatMessage) (string, error) {
		return "", errors.New("dial tcp 127.0.0.1:8000: connection refused")
	}

	client := Guard(mock, NewCircuitBreaker(CircuitBreakerConfig{Threshold: 2, ResetAfter: time.Minute}), time.Second, zap.NewNop())
	msgs := []models.ChatMessage{models.UserMessage("list tables")}

	for i := 0; i < 2; i++ {
		_, err := client.Complete(context.Background(), msgs)
		if !errors.Is(err, apperrors.ErrCompletionUnavailable) {
			t.Fatalf("call %d: expected ErrCompletionUnavailable, got %v", i, err)
		}
	}

	_, err := client.Complete(context.Background(), msgs)
	if GetErrorType(err) != ErrorTypeCircuit {
		t.Errorf("expected circuit rejection, got %v", err)
	}
	if mock.Calls() != 2 {
		t.Errorf("expected open circuit to skip the endpoint, got %d calls", mock.Calls())
	}
}

func TestGuard_AppliesTimeout(t *testing.T) {
	mock := NewMockCompletionClient()
	mock.CompleteFunc = func(ctx context.Context, messages []models.ChatMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	client := Guard(mock, NewCircuitBreaker(CircuitBreakerConfig{}), 20*time.Millisecond, zap.NewNop())

	start := time.Now()
	_, err := client.Complete(context.Background(), []models.ChatMessage{models.UserMessage("hi")})
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout was not applied")
	}
	if GetErrorType(err) != ErrorTypeTimeout {
		t.Errorf("expected timeout error, got %v", err)
	}
	if !errors.Is(err, apperrors.ErrCompletionUnavailable) {
		t.Error("expected timeout to count as unavailable")
	}
}

func TestGuard_CallerCancellationDoesNotTrip(t *testing.T) {
	mock := NewMockCompletionClient()
	mock.CompleteFunc = func(ctx context.Context, messages []models.ChatMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	cfg := CircuitBreakerConfig{Threshold: 3, ResetAfter: time.Minute}
	breaker := NewCircuitBreaker(cfg)
	client := Guard(mock, breaker, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < cfg.Threshold*2; i++ {
		_, err := client.Complete(ctx, []models.ChatMessage{models.UserMessage("list tables")})
		if err == nil {
			t.Fatalf("call %d: expected an error from a canceled request", i)
		}
		if GetErrorType(err) == ErrorTypeCircuit {
			t.Fatalf("call %d: circuit rejected a request after caller cancellations", i)
		}
	}

	if breaker.State() != CircuitClosed {
		t.Errorf("expected closed circuit after caller cancellations, got %v", breaker.State())
	}
	if mock.Calls() != cfg.Threshold*2 {
		t.Errorf("expected every call to reach the endpoint, got %d", mock.Calls())
	}
}

func TestGuard_CallerDeadlineDoesNotTrip(t *testing.T) {
	mock := NewMockCompletionClient()
	mock.CompleteFunc = func(ctx context.Context, messages []models.ChatMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	breaker := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 1, ResetAfter: time.Minute})
	client := Guard(mock, breaker, time.Minute, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := client.Complete(ctx, []models.ChatMessage{models.UserMessage("hi")}); err == nil {
		t.Fatal("expected an error when the request deadline passes")
	}
	if breaker.State() != CircuitClosed {
		t.Errorf("expected closed circuit after the caller's deadline, got %v", breaker.State())
	}
}

func TestGuard_AbandonedProbeReleasesHalfOpen(t *testing.T) {
	now := time.Now()
	breaker := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 1, ResetAfter: 10 * time.Second})
	breaker.now = func() time.Time { return now }
	breaker.RecordFailure()
	now = now.Add(11 * time.Second)

	mock := NewMockCompletionClient()
	mock.CompleteFunc = func(ctx context.Context, messages []models.ChatMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	client := Guard(mock, breaker, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Complete(ctx, []models.ChatMessage{models.UserMessage("hi")}); err == nil {
		t.Fatal("expected an error from a canceled probe")
	}
	if breaker.State() != CircuitOpen {
		t.Fatalf("expected abandoned probe to reopen the circuit, got %v", breaker.State())
	}

	// The next caller gets to probe instead of waiting out another reset.
	if err := breaker.Allow(); err != nil {
		t.Errorf("expected a new probe to be allowed, got %v", err)
	}
}

func TestGuard_PassesThroughSuccess(t *testing.T) {
	mock := NewMockReplies("The orders table has three columns.")
	client := Guard(mock, NewCircuitBreaker(DefaultCircuitBreakerConfig()), 0, zap.NewNop())

	text, err := client.Complete(context.Background(), []models.ChatMessage{models.UserMessage("describe orders")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "The orders table has three columns." {
		t.Errorf("unexpected text %q", text)
	}
	if client.Provider() != "mock" || client.Model() != "mock-model" {
		t.Errorf("unexpected provider/model %s/%s", client.Provider(), client.Model())
	}
}

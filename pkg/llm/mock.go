package llm

import (
	"context"
	"sync"

	"github.com/ekaya-inc/schema-assistant/pkg/models"
)

// MockCompletionClient is a configurable mock for testing completion callers.
// Set the function fields to control behavior in tests.
type MockCompletionClient struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, returns an empty reply and nil error.
	CompleteFunc func(ctx context.Context, messages []models.ChatMessage) (string, error)

	// PingFunc is called when Ping is invoked. If nil, Ping succeeds.
	PingFunc func(ctx context.Context) error

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	mu       sync.Mutex
	calls    int
	received [][]models.ChatMessage
}

// NewMockCompletionClient creates a new mock with sensible defaults.
func NewMockCompletionClient() *MockCompletionClient {
	return &MockCompletionClient{ModelName: "mock-model"}
}

// NewMockReplies returns a mock that answers each call with the next reply.
// Calls beyond the last reply repeat it.
func NewMockReplies(replies ...string) *MockCompletionClient {
	m := NewMockCompletionClient()
	m.CompleteFunc = func(ctx context.Context, messages []models.ChatMessage) (string, error) {
		i := m.Calls() - 1
		if i >= len(replies) {
			i = len(replies) - 1
		}
		if i < 0 {
			return "", nil
		}
		return replies[i], nil
	}
	return m
}

// Complete implements CompletionClient.
func (m *MockCompletionClient) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	m.mu.Lock()
	m.calls++
	m.received = append(m.received, append([]models.ChatMessage(nil), messages...))
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages)
	}
	return "", nil
}

// Ping implements Pinger.
func (m *MockCompletionClient) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Calls returns how many times Complete was invoked.
func (m *MockCompletionClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Received returns the conversation passed to the i-th call.
func (m *MockCompletionClient) Received(i int) []models.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.received) {
		return nil
	}
	return m.received[i]
}

// Provider implements CompletionClient.
func (m *MockCompletionClient) Provider() string {
	return "mock"
}

// Model implements CompletionClient.
func (m *MockCompletionClient) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

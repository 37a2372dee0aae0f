package handlers

import (
	"context"

	"github.com/ekaya-inc/schema-assistant/pkg/models"
	"github.com/ekaya-inc/schema-assistant/pkg/services"
)

type mockChatService struct {
	handleFunc func(ctx context.Context, message string) (*services.ChatResponse, error)
	calls      int
}

func (m *mockChatService) Handle(ctx context.Context, message string) (*services.ChatResponse, error) {
	m.calls++
	return m.handleFunc(ctx, message)
}

type mockToolRegistry struct {
	descriptions []models.ToolDescription
	invokeFunc   func(ctx context.Context, name string, args map[string]any) (*models.ToolResult, error)
}

func (m *mockToolRegistry) Register(def services.ToolDefinition) error { return nil }

func (m *mockToolRegistry) Invoke(ctx context.Context, name string, args map[string]any) (*models.ToolResult, error) {
	return m.invokeFunc(ctx, name, args)
}

func (m *mockToolRegistry) ListDescriptions() []models.ToolDescription { return m.descriptions }

func (m *mockToolRegistry) Has(name string) bool {
	for _, d := range m.descriptions {
		if d.Name == name {
			return true
		}
	}
	return false
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

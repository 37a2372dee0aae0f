// Package mcp exposes the tool registry over the Model Context Protocol so
// MCP clients can call the same schema tools the chat assistant uses.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/apperrors"
	"github.com/ekaya-inc/schema-assistant/pkg/services"
)

// ServerName is advertised to MCP clients.
const ServerName = "schema-assistant"

// Server wraps the mcp-go MCPServer.
type Server struct {
	mcp      *server.MCPServer
	registry services.ToolRegistry
	logger   *zap.Logger
}

// NewServer creates an MCP server with every registry tool plus a health
// tool. Tool calls go through registry.Invoke, so arguments and table names
// are checked exactly as for chat.
func NewServer(version string, registry services.ToolRegistry, logger *zap.Logger) (*Server, error) {
	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		registry: registry,
		logger:   logger.Named("mcp"),
	}

	for _, desc := range registry.ListDescriptions() {
		schema, err := json.Marshal(desc.Parameters)
		if err != nil {
			return nil, fmt.Errorf("marshal schema for %s: %w", desc.Name, err)
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(desc.Name, desc.Description, schema), s.toolHandler(desc.Name))
	}

	registerHealthTool(s.mcp, version)

	return s, nil
}

// MCP returns the underlying MCPServer.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// toolHandler bridges one registry tool. Caller mistakes come back as tool
// results flagged isError so the client model can correct itself; store
// outages are returned as errors.
func (s *Server) toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := s.registry.Invoke(ctx, name, req.GetArguments())
		if err != nil {
			s.logger.Info("MCP tool call failed", zap.String("tool", name), zap.Error(err))

			switch {
			case errors.Is(err, apperrors.ErrUnknownTable):
				return NewErrorResultWithDetails("unknown_table", err.Error(),
					map[string]any{"allowed_tables": allowedTables(s.registry)}), nil
			case errors.Is(err, apperrors.ErrInvalidArguments):
				return NewErrorResult("invalid_arguments", err.Error()), nil
			case errors.Is(err, apperrors.ErrUnknownTool):
				return NewErrorResult("unknown_tool", err.Error()), nil
			case errors.Is(err, apperrors.ErrStoreUnavailable):
				return nil, fmt.Errorf("data store unavailable while running %s", name)
			default:
				return nil, fmt.Errorf("run %s: %w", name, err)
			}
		}

		return mcp.NewToolResultText(result.Text), nil
	}
}

// allowedTables reads the allow-list back from the table_name enum that
// table-scoped tools advertise.
func allowedTables(registry services.ToolRegistry) []string {
	for _, desc := range registry.ListDescriptions() {
		params, ok := desc.Parameters.(map[string]any)
		if !ok {
			continue
		}
		props, _ := params["properties"].(map[string]any)
		table, _ := props["table_name"].(map[string]any)
		enum, _ := table["enum"].([]any)
		if len(enum) == 0 {
			continue
		}
		out := make([]string, 0, len(enum))
		for _, v := range enum {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

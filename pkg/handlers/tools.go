package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/models"
	"github.com/ekaya-inc/schema-assistant/pkg/services"
)

// ToolsResponse for GET /api/tools
type ToolsResponse struct {
	Tools []models.ToolDescription `json:"tools"`
}

// DirectToolRequest for POST /api/direct_tool
type DirectToolRequest struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// DirectToolResponse for POST /api/direct_tool
type DirectToolResponse struct {
	Result *models.ToolResult `json:"result"`
}

// ToolsHandler lists tools and runs them without going through the model.
// Direct calls pass the same registry checks as model-selected ones.
type ToolsHandler struct {
	registry services.ToolRegistry
	logger   *zap.Logger
}

// NewToolsHandler creates a new tools handler.
func NewToolsHandler(registry services.ToolRegistry, logger *zap.Logger) *ToolsHandler {
	return &ToolsHandler{
		registry: registry,
		logger:   logger.Named("tools-handler"),
	}
}

// RegisterRoutes registers the tools handler's routes on the given mux.
func (h *ToolsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tools", h.List)
	mux.HandleFunc("POST /api/direct_tool", h.Invoke)
}

// List handles GET /api/tools.
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	resp := ToolsResponse{Tools: h.registry.ListDescriptions()}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode tools response", zap.Error(err))
	}
}

// Invoke handles POST /api/direct_tool.
func (h *ToolsHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	var req DirectToolRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if req.ToolName == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_tool_name", "tool_name is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.registry.Invoke(r.Context(), req.ToolName, req.Arguments)
	if err != nil {
		h.logger.Info("Direct tool call rejected",
			zap.String("tool", req.ToolName),
			zap.Error(err))
		writeError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, DirectToolResponse{Result: result}); err != nil {
		h.logger.Error("Failed to encode tool result", zap.Error(err))
	}
}

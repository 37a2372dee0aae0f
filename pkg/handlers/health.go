package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/config"
	"github.com/ekaya-inc/schema-assistant/pkg/llm"
)

const healthCheckTimeout = 5 * time.Second

// Pinger checks that a collaborator is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthResponse reports the reachability of each collaborator.
type HealthResponse struct {
	Status     string `json:"status"`
	Store      string `json:"store"`
	Completion string `json:"completion"`
	Database   string `json:"database"`
	Provider   string `json:"provider"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg        *config.Config
	store      Pinger
	completion llm.CompletionClient
	logger     *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. store is usually the catalog
// service.
func NewHealthHandler(cfg *config.Config, store Pinger, completion llm.CompletionClient, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		cfg:        cfg,
		store:      store,
		completion: completion,
		logger:     logger,
	}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// Always answers 200; status is "degraded" when a collaborator is down so
// the chat surface, which has fallbacks, stays in rotation.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     "ok",
		Store:      h.check(ctx, "store", h.store),
		Completion: "unknown",
		Database:   h.cfg.Store.Database,
	}

	if h.completion != nil {
		resp.Provider = h.completion.Provider()
		if p, ok := h.completion.(llm.Pinger); ok {
			resp.Completion = h.check(ctx, "completion", p)
		}
	}

	if resp.Store != "ok" || resp.Completion == "unreachable" {
		resp.Status = "degraded"
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

func (h *HealthHandler) check(ctx context.Context, name string, p Pinger) string {
	if p == nil {
		return "unknown"
	}
	if err := p.Ping(ctx); err != nil {
		h.logger.Warn("Health check failed", zap.String("collaborator", name), zap.Error(err))
		return "unreachable"
	}
	return "ok"
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "schema-assistant",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

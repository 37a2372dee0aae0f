package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/services"
)

// ChatRequest for POST /api/chat
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatHandler handles chat requests.
type ChatHandler struct {
	chat    services.ChatService
	timeout time.Duration
	logger  *zap.Logger
}

// NewChatHandler creates a new chat handler. timeout bounds the whole
// request; zero leaves it unbounded.
func NewChatHandler(chat services.ChatService, timeout time.Duration, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:    chat,
		timeout: timeout,
		logger:  logger.Named("chat-handler"),
	}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.Chat)
}

// Chat handles POST /api/chat.
// Collaborator failures still answer 200 with fallback set; only an empty
// message is rejected.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.chat.Handle(ctx, req.Message)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode chat response", zap.Error(err))
	}
}

// Package handlers exposes the chat assistant over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/schema-assistant/pkg/apperrors"
)

// maxBodyBytes bounds request bodies. Chat messages and tool arguments are
// small.
const maxBodyBytes = 64 << 10

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// DecodeJSON reads a size-limited JSON body into dst. Unknown fields are
// rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// statusForError maps the error taxonomy to an HTTP status and error code.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrEmptyRequest):
		return http.StatusBadRequest, "empty_request"
	case errors.Is(err, apperrors.ErrInvalidArguments):
		return http.StatusBadRequest, "invalid_arguments"
	case errors.Is(err, apperrors.ErrUnknownTool):
		return http.StatusBadRequest, "unknown_tool"
	case errors.Is(err, apperrors.ErrUnknownTable):
		return http.StatusBadRequest, "unknown_table"
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, apperrors.ErrCompletionUnavailable):
		return http.StatusServiceUnavailable, "completion_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError writes err as a JSON error. Store and internal failures get a
// generic message so driver details never reach the client.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, code := statusForError(err)

	message := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		message = "A backing service is unavailable. Please try again shortly."
	case http.StatusInternalServerError:
		message = "Internal server error"
		logger.Error("Request failed", zap.Error(err))
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

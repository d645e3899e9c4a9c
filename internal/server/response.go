package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opencode-ai/agentcore/internal/agent"
	"github.com/opencode-ai/agentcore/internal/agent/deepchat"
	"github.com/opencode-ai/agentcore/internal/config"
	"github.com/opencode-ai/agentcore/internal/orchestrator"
	"github.com/opencode-ai/agentcore/internal/storage"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeConfigError    = "CONFIG_ERROR"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// errorStatus maps a core error onto an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidInput):
		return http.StatusBadRequest, ErrCodeInvalidRequest
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, agent.ErrUnknownAgent),
		errors.Is(err, deepchat.ErrSessionNotInitialized):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, deepchat.ErrGenerationInProgress):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, config.ErrNoDefaultModel):
		return http.StatusUnprocessableEntity, ErrCodeConfigError
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// writeCoreError writes err in the error envelope. Internal errors are logged.
func (s *Server) writeCoreError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, code, err.Error())
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

package handlers

import (
	"encoding/json"
	"net/http"

	"cropscan-gateway/internal/pipeline"
)

// Handler holds dependencies for the gateway endpoints. Debug gates the
// verbose `details` field on 500 responses; it must never be set in
// production.
type Handler struct {
	Service *pipeline.Service
	Debug   bool
}

func New(service *pipeline.Service, debug bool) *Handler {
	return &Handler{Service: service, Debug: debug}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits one of the small set of stable client-facing messages.
// Raw provider errors are only attached when Debug is on.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, cause error) {
	resp := errorResponse{
		Error:   code,
		Message: message,
	}
	if h.Debug && cause != nil {
		resp.Details = cause.Error()
	}
	h.writeJSON(w, status, resp)
}

package handlers

import (
	"net/http"
)

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	service string
	ready   func() bool
}

// NewHealthHandler creates a health handler. ready reports whether a trained
// model is loaded.
func NewHealthHandler(service string, ready func() bool) *HealthHandler {
	return &HealthHandler{service: service, ready: ready}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": h.service})
}

// Ready handles GET /ready. The server accepts training documents without a
// model, so it is always ready; model_loaded tells whether predictions work.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	loaded := h.ready != nil && h.ready()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "model_loaded": loaded})
}

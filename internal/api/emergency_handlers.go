package api

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/quorumgate/internal/emergency"
	"github.com/onnwee/quorumgate/internal/middleware"
)

// ActivateEmergencyRequest is the body for POST /emergency.
type ActivateEmergencyRequest struct {
	Level  int    `json:"level"`
	Reason string `json:"reason"`
}

// EmergencyHandlers holds dependencies for emergency HTTP handlers.
type EmergencyHandlers struct {
	controller *emergency.Controller
}

// NewEmergencyHandlers creates a new EmergencyHandlers instance.
func NewEmergencyHandlers(controller *emergency.Controller) *EmergencyHandlers {
	return &EmergencyHandlers{controller: controller}
}

// Activate handles POST /emergency.
func (h *EmergencyHandlers) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateEmergencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	actor := middleware.GetActor(r.Context())
	state, err := h.controller.Activate(r.Context(), actor, req.Level, req.Reason)
	if err != nil {
		writeDomainError(w, r, err, "activate emergency")
		return
	}
	writeJSON(w, r, http.StatusCreated, state)
}

// Deactivate handles DELETE /emergency.
func (h *EmergencyHandlers) Deactivate(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	if err := h.controller.Deactivate(r.Context(), actor); err != nil {
		writeDomainError(w, r, err, "deactivate emergency")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Current handles GET /emergency.
func (h *EmergencyHandlers) Current(w http.ResponseWriter, r *http.Request) {
	state, err := h.controller.Current(r.Context())
	if err != nil {
		writeDomainError(w, r, err, "get emergency state")
		return
	}
	writeJSON(w, r, http.StatusOK, state)
}

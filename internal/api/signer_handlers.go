package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/onnwee/quorumgate/internal/middleware"
	"github.com/onnwee/quorumgate/internal/signer"
)

// AddSignerRequest is the body for POST /signers.
type AddSignerRequest struct {
	Identity string `json:"identity"`
	Weight   int64  `json:"weight"`
}

// UpdateThresholdRequest is the body for PUT /threshold.
type UpdateThresholdRequest struct {
	Threshold int64 `json:"threshold"`
}

// RegistryResponse summarizes the registry state after a mutation.
type RegistryResponse struct {
	Threshold    int64            `json:"threshold"`
	ActiveWeight int64            `json:"active_weight"`
	Signers      []*signer.Signer `json:"signers"`
}

// SignerHandlers holds dependencies for signer registry HTTP handlers.
type SignerHandlers struct {
	registry *signer.Registry
}

// NewSignerHandlers creates a new SignerHandlers instance.
func NewSignerHandlers(registry *signer.Registry) *SignerHandlers {
	return &SignerHandlers{registry: registry}
}

// AddSigner handles POST /signers.
func (h *SignerHandlers) AddSigner(w http.ResponseWriter, r *http.Request) {
	var req AddSignerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if req.Identity == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "Identity is required")
		return
	}

	actor := middleware.GetActor(r.Context())
	s, err := h.registry.AddSigner(r.Context(), actor, req.Identity, req.Weight)
	if err != nil {
		writeDomainError(w, r, err, "add signer")
		return
	}
	writeJSON(w, r, http.StatusCreated, s)
}

// RemoveSigner handles DELETE /signers/{identity}.
func (h *SignerHandlers) RemoveSigner(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimPrefix(r.URL.Path, "/signers/")
	if identity == "" || strings.Contains(identity, "/") {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Signer identity is required")
		return
	}

	actor := middleware.GetActor(r.Context())
	if err := h.registry.RemoveSigner(r.Context(), actor, identity); err != nil {
		writeDomainError(w, r, err, "remove signer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSigners handles GET /signers.
func (h *SignerHandlers) ListSigners(w http.ResponseWriter, r *http.Request) {
	resp, err := h.registrySnapshot(r)
	if err != nil {
		writeDomainError(w, r, err, "list signers")
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// GetThreshold handles GET /threshold.
func (h *SignerHandlers) GetThreshold(w http.ResponseWriter, r *http.Request) {
	resp, err := h.registrySnapshot(r)
	if err != nil {
		writeDomainError(w, r, err, "get threshold")
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// UpdateThreshold handles PUT /threshold.
func (h *SignerHandlers) UpdateThreshold(w http.ResponseWriter, r *http.Request) {
	var req UpdateThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	actor := middleware.GetActor(r.Context())
	if err := h.registry.UpdateThreshold(r.Context(), actor, req.Threshold); err != nil {
		writeDomainError(w, r, err, "update threshold")
		return
	}

	resp, err := h.registrySnapshot(r)
	if err != nil {
		writeDomainError(w, r, err, "update threshold")
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *SignerHandlers) registrySnapshot(r *http.Request) (*RegistryResponse, error) {
	threshold, err := h.registry.Threshold(r.Context())
	if err != nil {
		return nil, err
	}
	signers, err := h.registry.ActiveSigners(r.Context())
	if err != nil {
		return nil, err
	}
	var total int64
	for _, s := range signers {
		total += s.Weight
	}
	return &RegistryResponse{
		Threshold:    threshold,
		ActiveWeight: total,
		Signers:      signers,
	}, nil
}

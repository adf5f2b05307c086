package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/quorumgate/internal/action"
	"github.com/onnwee/quorumgate/internal/auth"
	"github.com/onnwee/quorumgate/internal/middleware"
	"github.com/onnwee/quorumgate/internal/policy"
)

// SubmitTransactionRequest is the body for POST /transactions.
// Payload is base64-encoded.
type SubmitTransactionRequest struct {
	Target   string    `json:"target"`
	Value    int64     `json:"value"`
	Payload  string    `json:"payload,omitempty"`
	Deadline time.Time `json:"deadline"`
	Class    string    `json:"class"`
}

// SignTransactionRequest is the body for POST /transactions/{id}/signatures.
// Signature is base64-encoded.
type SignTransactionRequest struct {
	Signature string `json:"signature"`
	Class     string `json:"class,omitempty"`
}

// CancelTransactionRequest is the optional body for
// POST /transactions/{id}/cancel.
type CancelTransactionRequest struct {
	Reason string `json:"reason,omitempty"`
}

// TransactionHandlers holds dependencies for transaction HTTP handlers.
type TransactionHandlers struct {
	ledger *action.Ledger
}

// NewTransactionHandlers creates a new TransactionHandlers instance.
func NewTransactionHandlers(ledger *action.Ledger) *TransactionHandlers {
	return &TransactionHandlers{ledger: ledger}
}

// Submit handles POST /transactions.
func (h *TransactionHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	var payload []byte
	if req.Payload != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Payload)
		if err != nil {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "Payload must be base64-encoded")
			return
		}
		payload = decoded
	}

	creator := middleware.GetActor(r.Context())
	a, err := h.ledger.Submit(r.Context(), creator, action.SubmitRequest{
		Target:   req.Target,
		Value:    req.Value,
		Payload:  payload,
		Deadline: req.Deadline,
		Class:    policy.Class(req.Class),
	})
	if err != nil {
		writeDomainError(w, r, err, "submit transaction")
		return
	}
	writeJSON(w, r, http.StatusCreated, a)
}

// Get handles GET /transactions/{id}.
func (h *TransactionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(r.URL.Path, "")
	if !ok {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Transaction id is required")
		return
	}

	a, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err, "get transaction")
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}

// Sign handles POST /transactions/{id}/signatures.
func (h *TransactionHandlers) Sign(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(r.URL.Path, "signatures")
	if !ok {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Transaction id is required")
		return
	}

	var req SignTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	signature, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil || len(signature) == 0 {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "Signature must be base64-encoded and non-empty")
		return
	}

	identity := middleware.GetActor(r.Context())
	a, err := h.ledger.Sign(r.Context(), id, identity, signature, req.Class)
	if err != nil {
		writeDomainError(w, r, err, "sign transaction")
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}

// Execute handles POST /transactions/{id}/execute.
func (h *TransactionHandlers) Execute(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(r.URL.Path, "execute")
	if !ok {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Transaction id is required")
		return
	}

	caller := middleware.GetActor(r.Context())
	a, err := h.ledger.Execute(r.Context(), id, caller)
	if err != nil {
		writeDomainError(w, r, err, "execute transaction")
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}

// Cancel handles POST /transactions/{id}/cancel.
func (h *TransactionHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := transactionID(r.URL.Path, "cancel")
	if !ok {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Transaction id is required")
		return
	}

	// The body is optional; an empty or absent one means no reason given.
	var req CancelTransactionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	caller := middleware.GetActor(r.Context())
	isAdmin := middleware.HasCapability(r.Context(), auth.CapabilityRegistryAdmin)
	a, err := h.ledger.Cancel(r.Context(), id, caller, req.Reason, isAdmin)
	if err != nil {
		writeDomainError(w, r, err, "cancel transaction")
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}

// transactionID extracts the id segment from /transactions/{id}[/suffix].
func transactionID(path, suffix string) (string, bool) {
	rest := strings.TrimPrefix(path, "/transactions/")
	if rest == path || rest == "" {
		return "", false
	}
	parts := strings.Split(rest, "/")
	if suffix == "" {
		if len(parts) != 1 || parts[0] == "" {
			return "", false
		}
		return parts[0], true
	}
	if len(parts) != 2 || parts[0] == "" || parts[1] != suffix {
		return "", false
	}
	return parts[0], true
}

package api

import (
	"net/http"
	"strconv"

	"github.com/onnwee/quorumgate/internal/audit"
)

// maxAuditPageSize caps one page of audit entries.
const maxAuditPageSize = 500

// AuditResponse is the page of entries returned by GET /audit.
type AuditResponse struct {
	Entries []*audit.Entry `json:"entries"`
	LastSeq int64          `json:"last_seq"`
}

// AuditHandlers holds dependencies for audit log HTTP handlers.
type AuditHandlers struct {
	repo audit.Repository
}

// NewAuditHandlers creates a new AuditHandlers instance.
func NewAuditHandlers(repo audit.Repository) *AuditHandlers {
	return &AuditHandlers{repo: repo}
}

// List handles GET /audit?from=N&to=N&limit=N.
func (h *AuditHandlers) List(w http.ResponseWriter, r *http.Request) {
	from, ok := queryInt(r, "from", 1)
	if !ok {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "from must be a positive integer")
		return
	}
	to, ok := queryInt(r, "to", 0)
	if !ok {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "to must be a non-negative integer")
		return
	}
	limit, ok := queryInt(r, "limit", maxAuditPageSize)
	if !ok || limit > maxAuditPageSize {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "limit must be between 1 and 500")
		return
	}

	entries, err := h.repo.Range(r.Context(), from, to, int(limit))
	if err != nil {
		writeDomainError(w, r, err, "list audit entries")
		return
	}
	lastSeq, err := h.repo.LastSeq(r.Context())
	if err != nil {
		writeDomainError(w, r, err, "list audit entries")
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	writeJSON(w, r, http.StatusOK, AuditResponse{Entries: entries, LastSeq: lastSeq})
}

func queryInt(r *http.Request, name string, fallback int64) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

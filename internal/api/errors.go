// Package api provides HTTP handlers for the authorization engine API,
// including standardized error handling.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/quorumgate/internal/action"
	"github.com/onnwee/quorumgate/internal/audit"
	"github.com/onnwee/quorumgate/internal/emergency"
	"github.com/onnwee/quorumgate/internal/middleware"
	"github.com/onnwee/quorumgate/internal/signer"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeForbidden indicates the request is forbidden.
	ErrCodeForbidden = "forbidden"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates a daily submission or request rate limit.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeInvalidSigner indicates the signer is unknown or inactive.
	ErrCodeInvalidSigner = "invalid_signer"

	// ErrCodeSignerExists indicates the identity is already enrolled.
	ErrCodeSignerExists = "signer_exists"

	// ErrCodeThresholdUnreachable indicates the change would make quorum impossible.
	ErrCodeThresholdUnreachable = "threshold_unreachable"

	// ErrCodeDuplicateSignature indicates the signer already signed this transaction.
	ErrCodeDuplicateSignature = "duplicate_signature"

	// ErrCodeVerificationFailed indicates signature verification failure.
	ErrCodeVerificationFailed = "signature_verification_failed"

	// ErrCodeQuorumNotMet indicates collected weight is below the requirement.
	ErrCodeQuorumNotMet = "quorum_not_met"

	// ErrCodeDelayNotElapsed indicates the mandatory delay has not passed.
	ErrCodeDelayNotElapsed = "delay_not_elapsed"

	// ErrCodeExpired indicates the transaction deadline has passed.
	ErrCodeExpired = "transaction_expired"

	// ErrCodeNotPending indicates the transaction is in a terminal state.
	ErrCodeNotPending = "transaction_not_pending"

	// ErrCodeEmergencyActive indicates an emergency episode is already running.
	ErrCodeEmergencyActive = "emergency_already_active"

	// ErrCodeNotInEmergency indicates no emergency episode is running.
	ErrCodeNotInEmergency = "not_in_emergency"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response and propagates the
// error code to the logging middleware via the response writer.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	ctx = middleware.SetErrorCode(ctx, code)
	middleware.UpdateResponseContext(w, ctx)

	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// domainError maps a domain error to its API error code and HTTP status.
// Returns false when the error is not a recognized domain error.
func domainError(err error) (status int, code, message string, ok bool) {
	switch {
	case errors.Is(err, signer.ErrInvalidSigner):
		return http.StatusNotFound, ErrCodeInvalidSigner, "Signer is unknown or not active", true
	case errors.Is(err, signer.ErrSignerExists):
		return http.StatusConflict, ErrCodeSignerExists, "Signer is already active", true
	case errors.Is(err, signer.ErrInvalidWeight):
		return http.StatusBadRequest, ErrCodeValidation, "Signer weight must be between 1 and 255", true
	case errors.Is(err, signer.ErrRegistryFull):
		return http.StatusConflict, ErrCodeValidation, "Registry is at maximum signer capacity", true
	case errors.Is(err, signer.ErrMinSignerCount):
		return http.StatusConflict, ErrCodeThresholdUnreachable, "Removal would drop the registry below the minimum signer count", true
	case errors.Is(err, signer.ErrThresholdUnreachable):
		return http.StatusConflict, ErrCodeThresholdUnreachable, "Change would make the threshold unreachable", true
	case errors.Is(err, signer.ErrInvalidThreshold):
		return http.StatusBadRequest, ErrCodeValidation, "Threshold is outside the configured bounds", true

	case errors.Is(err, action.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "Transaction not found", true
	case errors.Is(err, action.ErrInvalidTarget):
		return http.StatusBadRequest, ErrCodeValidation, "Transaction target cannot be empty", true
	case errors.Is(err, action.ErrInvalidClass):
		return http.StatusBadRequest, ErrCodeValidation, "Transaction class is not recognized", true
	case errors.Is(err, action.ErrInvalidDeadline):
		return http.StatusBadRequest, ErrCodeValidation, "Transaction deadline must be in the future and within the horizon", true
	case errors.Is(err, action.ErrExpired):
		return http.StatusConflict, ErrCodeExpired, "Transaction deadline has passed", true
	case errors.Is(err, action.ErrNotPending):
		return http.StatusConflict, ErrCodeNotPending, "Transaction is no longer pending", true
	case errors.Is(err, action.ErrDuplicateSignature):
		return http.StatusConflict, ErrCodeDuplicateSignature, "Signer has already signed this transaction", true
	case errors.Is(err, action.ErrVerificationFailed):
		return http.StatusUnprocessableEntity, ErrCodeVerificationFailed, "Signature verification failed", true
	case errors.Is(err, action.ErrQuorumNotMet):
		return http.StatusConflict, ErrCodeQuorumNotMet, "Collected weight is below the required weight", true
	case errors.Is(err, action.ErrDelayNotElapsed):
		return http.StatusConflict, ErrCodeDelayNotElapsed, "The mandatory time delay has not elapsed", true
	case errors.Is(err, action.ErrRateLimited):
		return http.StatusTooManyRequests, ErrCodeRateLimited, "Daily submission limit exceeded for this creator", true
	case errors.Is(err, action.ErrUnauthorized):
		return http.StatusForbidden, ErrCodeForbidden, "Caller is not allowed to perform this operation", true

	case errors.Is(err, emergency.ErrAlreadyActive):
		return http.StatusConflict, ErrCodeEmergencyActive, "An emergency episode is already active", true
	case errors.Is(err, emergency.ErrNotInEmergency):
		return http.StatusConflict, ErrCodeNotInEmergency, "No emergency episode is active", true
	case errors.Is(err, emergency.ErrInvalidLevel):
		return http.StatusBadRequest, ErrCodeValidation, "Emergency level must be between 1 and 5", true
	case errors.Is(err, emergency.ErrInvalidReason):
		return http.StatusBadRequest, ErrCodeValidation, "Emergency reason cannot be empty", true

	case errors.Is(err, audit.ErrInvalidRange):
		return http.StatusBadRequest, ErrCodeValidation, "Audit range is invalid", true
	}
	return 0, "", "", false
}

// writeDomainError writes the mapped error response for a domain error, or a
// generic 500 when the error is not recognized.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	if status, code, message, ok := domainError(err); ok {
		WriteError(w, r.Context(), status, code, message)
		return
	}
	slog.ErrorContext(r.Context(), "operation failed", "operation", operation, "error", err)
	WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

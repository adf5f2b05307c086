// Package action provides the transaction ledger: pending actions, their
// collected signatures, and the submit/sign/execute/cancel state machine
// that authorizes outbound dispatches.
package action

import (
	"errors"
	"time"

	"github.com/onnwee/quorumgate/internal/policy"
)

// Status is the lifecycle state of an action. Pending is the only
// non-terminal state.
type Status string

// Action statuses.
const (
	StatusPending   Status = "pending"
	StatusExecuted  Status = "executed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusRejected  Status = "rejected"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// Signature classes. Informational only; they feed the signer trust score
// and never change authorization outcomes.
const (
	SignatureClassStandard  = "standard"
	SignatureClassHardware  = "hardware"
	SignatureClassBiometric = "biometric"
)

// Domain errors for ledger operations.
var (
	ErrNotFound           = errors.New("transaction not found")
	ErrInvalidTarget      = errors.New("transaction target cannot be empty")
	ErrInvalidClass       = errors.New("transaction class is not recognized")
	ErrInvalidDeadline    = errors.New("transaction deadline must be in the future and within the horizon")
	ErrExpired            = errors.New("transaction deadline has passed")
	ErrNotPending         = errors.New("transaction is no longer pending")
	ErrDuplicateSignature = errors.New("signer has already signed this transaction")
	ErrVerificationFailed = errors.New("signature verification failed")
	ErrQuorumNotMet       = errors.New("collected weight is below the required weight")
	ErrDelayNotElapsed    = errors.New("the mandatory time delay has not elapsed")
	ErrRateLimited        = errors.New("daily submission limit exceeded for this creator")
	ErrUnauthorized       = errors.New("caller is not allowed to perform this operation")
)

// Action is a pending or sealed authorization record.
type Action struct {
	ID              string       `json:"id"`
	Target          string       `json:"target"`
	Value           int64        `json:"value"`
	Payload         []byte       `json:"payload,omitempty"`
	Nonce           string       `json:"nonce"`
	CreatedAt       time.Time    `json:"created_at"`
	Deadline        time.Time    `json:"deadline"`
	Creator         string       `json:"creator"`
	Class           policy.Class `json:"class"`
	RequiredWeight  int64        `json:"required_weight"`
	CollectedWeight int64        `json:"collected_weight"`
	Status          Status       `json:"status"`
	Digest          string       `json:"digest"`

	Signatures     []*Signature    `json:"signatures,omitempty"`
	DispatchResult *DispatchResult `json:"dispatch_result,omitempty"`
}

// Signature is one signer's recorded approval of an action.
type Signature struct {
	ActionID  string    `json:"action_id"`
	Signer    string    `json:"signer"`
	Signature []byte    `json:"signature"`
	Digest    string    `json:"digest"`
	Class     string    `json:"class"`
	CreatedAt time.Time `json:"created_at"`
}

// DispatchResult records the outcome of the payload dispatch performed at
// execution. The action seals as Executed either way; authorization state
// and dispatch outcome never desynchronize.
type DispatchResult struct {
	Success      bool      `json:"success"`
	Detail       string    `json:"detail,omitempty"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// ValidSignatureClass reports whether the class is a recognized signature
// class.
func ValidSignatureClass(class string) bool {
	switch class {
	case SignatureClassStandard, SignatureClassHardware, SignatureClassBiometric:
		return true
	}
	return false
}

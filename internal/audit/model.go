// Package audit provides the append-only audit log that records every
// state-changing operation in the authorization engine for forensic
// reconstruction.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrChainBroken is returned by VerifyChain when the log shows gaps or
// entries that do not chain to their predecessor.
var ErrChainBroken = errors.New("audit chain verification failed")

// Outcome values for audit entries.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Action tags recorded by the engine. Each state-changing operation writes
// exactly one entry tagged with one of these.
const (
	ActionSignerAdded         = "signer_added"
	ActionSignerRemoved       = "signer_removed"
	ActionThresholdUpdated    = "threshold_updated"
	ActionTransactionSubmit   = "transaction_submitted"
	ActionTransactionSigned   = "transaction_signed"
	ActionTransactionExecuted = "transaction_executed"
	ActionTransactionCanceled = "transaction_cancelled"
	ActionTransactionExpired  = "transaction_expired"
	ActionEmergencyActivated  = "emergency_activated"
	ActionEmergencyCleared    = "emergency_deactivated"
	ActionAuthRejected        = "authorization_rejected"
	ActionSignatureRejected   = "signature_rejected"
)

// Entry is a single immutable audit record. Seq is assigned by the
// repository and is strictly monotonic; PreviousHash chains each entry to
// its predecessor for tamper detection.
type Entry struct {
	Seq          int64     `json:"seq"`
	ID           string    `json:"id"`
	Actor        string    `json:"actor"`
	Action       string    `json:"action"`
	Digest       string    `json:"digest"`
	Outcome      string    `json:"outcome"`
	CreatedAt    time.Time `json:"created_at"`
	PreviousHash string    `json:"previous_hash"`
}

// Record is the input for appending an audit entry.
type Record struct {
	Actor   string
	Action  string
	Digest  string
	Outcome string
}

// ChainHash computes the hash that the next entry stores as PreviousHash.
// It covers every field of the entry, including its own PreviousHash, so a
// mutation anywhere in the chain invalidates all later links.
func ChainHash(e *Entry) string {
	payload := fmt.Sprintf("%d|%s|%s|%s|%s|%s|%d",
		e.Seq, e.ID, e.Actor, e.Action, e.Digest, e.PreviousHash, e.CreatedAt.UnixNano())
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// VerifyChain checks that the entries form an unbroken hash chain with
// consecutive sequence ids. Entries must be ordered by sequence.
func VerifyChain(entries []*Entry) error {
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if cur.Seq != prev.Seq+1 {
			return fmt.Errorf("%w: gap between seq %d and %d", ErrChainBroken, prev.Seq, cur.Seq)
		}
		if cur.PreviousHash != ChainHash(prev) {
			return fmt.Errorf("%w: entry %d does not chain to its predecessor", ErrChainBroken, cur.Seq)
		}
	}
	return nil
}

// Package signer provides the registry of weighted signers whose joint
// approval authorizes transactions.
package signer

import (
	"errors"
	"time"
)

// MaxWeight caps a single signer's weight so no individual can dwarf the
// rest of the registry.
const MaxWeight = 255

// Signature class multipliers for the informational trust score. The score
// never gates authorization; it only surfaces how a signer tends to sign.
var ClassMultiplier = map[string]float64{
	"standard":  0.5,
	"hardware":  1.0,
	"biometric": 0.8,
}

// DefaultClassMultiplier is used when a signature class is not recognized.
const DefaultClassMultiplier = 0.5

// Validation and invariant errors.
var (
	ErrInvalidSigner        = errors.New("signer is unknown or not active")
	ErrSignerExists         = errors.New("signer is already active")
	ErrInvalidWeight        = errors.New("signer weight must be between 1 and 255")
	ErrRegistryFull         = errors.New("registry is at maximum signer capacity")
	ErrMinSignerCount       = errors.New("removal would drop registry below minimum signer count")
	ErrThresholdUnreachable = errors.New("threshold would exceed the sum of active signer weights")
	ErrInvalidThreshold     = errors.New("threshold is outside the configured bounds")
)

// Signer is a registered identity contributing weight toward quorum.
type Signer struct {
	Identity       string     `json:"identity"`
	Weight         int64      `json:"weight"`
	Active         bool       `json:"active"`
	EnrolledAt     time.Time  `json:"enrolled_at"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	SignatureCount int64      `json:"signature_count"`
	TrustScore     float64    `json:"trust_score"`
}

// Validate checks the signer's weight bounds.
func (s *Signer) Validate() error {
	if s.Weight < 1 || s.Weight > MaxWeight {
		return ErrInvalidWeight
	}
	return nil
}

// RecordUse updates the bookkeeping fields after an accepted signature.
// The trust score is a rolling average of signature class multipliers.
func (s *Signer) RecordUse(class string, at time.Time) {
	multiplier, ok := ClassMultiplier[class]
	if !ok {
		multiplier = DefaultClassMultiplier
	}
	s.TrustScore = (s.TrustScore*float64(s.SignatureCount) + multiplier) / float64(s.SignatureCount+1)
	s.SignatureCount++
	s.LastUsedAt = &at
}

// Config holds the registry bounds. Values come from the service
// configuration and are fixed for the registry's lifetime.
type Config struct {
	MinSigners   int
	MaxSigners   int
	MinThreshold int64
	MaxThreshold int64
}

// Validate checks the config for usable bounds.
func (c Config) Validate() error {
	if c.MinSigners < 1 || c.MaxSigners < c.MinSigners {
		return errors.New("signer count bounds are invalid")
	}
	if c.MinThreshold < 1 || c.MaxThreshold < c.MinThreshold {
		return errors.New("threshold bounds are invalid")
	}
	return nil
}

package signer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/quorumgate/internal/audit"
)

// Registry owns the set of authorized signers and the quorum threshold.
// Every mutation validates the reachability invariant: the sum of active
// signer weights must never fall below the current threshold.
type Registry struct {
	repo   Repository
	audit  audit.Recorder
	cfg    Config
	logger *slog.Logger
}

// NewRegistry creates a Registry over the given repository.
func NewRegistry(repo Repository, recorder audit.Recorder, cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{repo: repo, audit: recorder, cfg: cfg, logger: logger}
}

// AddSigner registers a new weighted signer. An identity that was previously
// removed is re-enrolled with the new weight.
func (r *Registry) AddSigner(ctx context.Context, actor, identity string, weight int64) (*Signer, error) {
	if weight < 1 || weight > MaxWeight {
		return nil, ErrInvalidWeight
	}

	active, err := r.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) >= r.cfg.MaxSigners {
		return nil, ErrRegistryFull
	}

	existing, err := r.repo.Get(ctx, identity)
	switch err {
	case nil:
		if existing.Active {
			return nil, ErrSignerExists
		}
		existing.Active = true
		existing.Weight = weight
		existing.EnrolledAt = time.Now().UTC()
		if err := r.repo.Update(ctx, existing); err != nil {
			return nil, err
		}
		r.recordAudit(ctx, actor, audit.ActionSignerAdded, fmt.Sprintf("%s:%d", identity, weight))
		return existing, nil
	case ErrInvalidSigner:
		s := &Signer{
			Identity:   identity,
			Weight:     weight,
			Active:     true,
			EnrolledAt: time.Now().UTC(),
		}
		if err := r.repo.Insert(ctx, s); err != nil {
			return nil, err
		}
		r.recordAudit(ctx, actor, audit.ActionSignerAdded, fmt.Sprintf("%s:%d", identity, weight))
		return s, nil
	default:
		return nil, err
	}
}

// RemoveSigner deactivates a signer. The removal is rejected if it would drop
// the registry below the minimum signer count or make the current threshold
// unreachable.
func (r *Registry) RemoveSigner(ctx context.Context, actor, identity string) error {
	s, err := r.repo.Get(ctx, identity)
	if err != nil {
		return err
	}
	if !s.Active {
		return ErrInvalidSigner
	}

	active, err := r.repo.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(active)-1 < r.cfg.MinSigners {
		return ErrMinSignerCount
	}

	threshold, err := r.repo.Threshold(ctx)
	if err != nil {
		return err
	}
	var remaining int64
	for _, a := range active {
		if a.Identity != identity {
			remaining += a.Weight
		}
	}
	if remaining < threshold {
		return ErrThresholdUnreachable
	}

	s.Active = false
	if err := r.repo.Update(ctx, s); err != nil {
		return err
	}
	r.recordAudit(ctx, actor, audit.ActionSignerRemoved, identity)
	return nil
}

// UpdateThreshold sets a new quorum threshold. Rejected when outside the
// configured bounds or above the sum of active signer weights.
func (r *Registry) UpdateThreshold(ctx context.Context, actor string, threshold int64) error {
	if threshold < r.cfg.MinThreshold || threshold > r.cfg.MaxThreshold {
		return ErrInvalidThreshold
	}

	total, err := r.ActiveWeight(ctx)
	if err != nil {
		return err
	}
	if threshold > total {
		return ErrThresholdUnreachable
	}

	if err := r.repo.SetThreshold(ctx, threshold); err != nil {
		return err
	}
	r.recordAudit(ctx, actor, audit.ActionThresholdUpdated, fmt.Sprintf("%d", threshold))
	return nil
}

// Threshold returns the current quorum threshold.
func (r *Registry) Threshold(ctx context.Context) (int64, error) {
	return r.repo.Threshold(ctx)
}

// ActiveSigners returns all active signers.
func (r *Registry) ActiveSigners(ctx context.Context) ([]*Signer, error) {
	return r.repo.ListActive(ctx)
}

// ActiveWeight returns the sum of all active signer weights.
func (r *Registry) ActiveWeight(ctx context.Context) (int64, error) {
	active, err := r.repo.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, s := range active {
		total += s.Weight
	}
	return total, nil
}

// GetActive returns the signer for the identity if it is active.
func (r *Registry) GetActive(ctx context.Context, identity string) (*Signer, error) {
	s, err := r.repo.Get(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !s.Active {
		return nil, ErrInvalidSigner
	}
	return s, nil
}

// RecordSignature updates a signer's bookkeeping after an accepted
// signature: last-used time, cumulative count and the informational trust
// score.
func (r *Registry) RecordSignature(ctx context.Context, identity, class string) error {
	s, err := r.GetActive(ctx, identity)
	if err != nil {
		return err
	}
	s.RecordUse(class, time.Now().UTC())
	return r.repo.Update(ctx, s)
}

func (r *Registry) recordAudit(ctx context.Context, actor, action, data string) {
	sum := sha256.Sum256([]byte(data))
	if _, err := r.audit.Append(ctx, audit.Record{
		Actor:   actor,
		Action:  action,
		Digest:  hex.EncodeToString(sum[:]),
		Outcome: audit.OutcomeSuccess,
	}); err != nil {
		r.logger.Error("failed to write audit entry",
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}

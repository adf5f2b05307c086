package action

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/quorumgate/internal/audit"
	"github.com/onnwee/quorumgate/internal/signer"
	"github.com/onnwee/quorumgate/internal/sigverify"
)

// Collector validates and stores signatures against pending actions. A
// signature is accepted only when the signer is active, has not signed this
// action before and the signature verifies against the recomputed content
// digest. The stored signature and the accumulated weight land in one
// repository operation; a failed acceptance stores nothing.
type Collector struct {
	repo      Repository
	registry  *signer.Registry
	verifier  sigverify.Verifier
	audit     audit.Recorder
	domainTag string
	logger    *slog.Logger
	now       func() time.Time
}

// NewCollector creates a Collector.
func NewCollector(repo Repository, registry *signer.Registry, verifier sigverify.Verifier, recorder audit.Recorder, domainTag string, logger *slog.Logger) *Collector {
	if domainTag == "" {
		domainTag = sigverify.DefaultDomainTag
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		repo:      repo,
		registry:  registry,
		verifier:  verifier,
		audit:     recorder,
		domainTag: domainTag,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// VerifyAndStore checks a signature against the action's recomputed digest
// and records it. On acceptance the signer's weight is added to the action's
// collected weight and the signer's bookkeeping is updated. The returned
// action reflects the new collected weight.
func (c *Collector) VerifyAndStore(ctx context.Context, a *Action, identity string, signature []byte, class string) (*Action, error) {
	if class == "" {
		class = SignatureClassStandard
	}
	if !ValidSignatureClass(class) {
		return nil, ErrInvalidClass
	}

	s, err := c.registry.GetActive(ctx, identity)
	if err != nil {
		return nil, err
	}

	for _, existing := range a.Signatures {
		if existing.Signer == identity {
			return nil, ErrDuplicateSignature
		}
	}

	digest, err := sigverify.ComputeDigest(sigverify.Envelope{
		Domain:        c.domainTag,
		ActionID:      a.ID,
		Nonce:         a.Nonce,
		Target:        a.Target,
		Value:         a.Value,
		PayloadDigest: sigverify.PayloadDigest(a.Payload),
	})
	if err != nil {
		return nil, err
	}
	digestBytes, err := hex.DecodeString(digest)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content digest: %w", err)
	}
	if digest != a.Digest || !c.verifier.Verify(identity, digestBytes, signature) {
		c.recordAudit(ctx, identity, audit.ActionSignatureRejected, a.Digest, audit.OutcomeFailure)
		return nil, ErrVerificationFailed
	}

	sig := &Signature{
		ActionID:  a.ID,
		Signer:    identity,
		Signature: signature,
		Digest:    digest,
		Class:     class,
		CreatedAt: c.now(),
	}
	if err := c.repo.ApplySignature(ctx, sig, a.CollectedWeight+s.Weight); err != nil {
		return nil, err
	}
	a.CollectedWeight += s.Weight
	a.Signatures = append(a.Signatures, sig)

	if err := c.registry.RecordSignature(ctx, identity, class); err != nil {
		c.logger.Warn("failed to update signer bookkeeping",
			slog.String("signer", identity),
			slog.String("error", err.Error()))
	}

	c.recordAudit(ctx, identity, audit.ActionTransactionSigned, digest, audit.OutcomeSuccess)
	c.logger.Info("signature accepted",
		slog.String("transaction_id", a.ID),
		slog.String("signer", identity),
		slog.Int64("collected_weight", a.CollectedWeight),
		slog.Int64("required_weight", a.RequiredWeight))
	return a, nil
}

func (c *Collector) recordAudit(ctx context.Context, actor, action, digest, outcome string) {
	if _, err := c.audit.Append(ctx, audit.Record{
		Actor:   actor,
		Action:  action,
		Digest:  digest,
		Outcome: outcome,
	}); err != nil {
		c.logger.Error("failed to write audit entry",
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}

// ErrIsRejection reports whether an error from the ledger maps to a caller
// fault rather than an internal failure. Used by callers to pick log levels
// and metric reasons.
func ErrIsRejection(err error) bool {
	for _, target := range []error{
		ErrInvalidTarget, ErrInvalidClass, ErrInvalidDeadline, ErrExpired,
		ErrNotPending, ErrDuplicateSignature, ErrVerificationFailed,
		ErrQuorumNotMet, ErrDelayNotElapsed, ErrRateLimited, ErrUnauthorized,
		signer.ErrInvalidSigner,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

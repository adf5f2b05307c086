package action

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/quorumgate/internal/audit"
	"github.com/onnwee/quorumgate/internal/policy"
	"github.com/onnwee/quorumgate/internal/signer"
	"github.com/onnwee/quorumgate/internal/sigverify"
)

// SubmitRequest is the input for submitting a new transaction.
type SubmitRequest struct {
	Target   string
	Value    int64
	Payload  []byte
	Deadline time.Time
	Class    policy.Class
}

// Ledger is the transaction lifecycle orchestrator. It creates pending
// actions, routes signatures through the collector, enforces quorum and time
// delay at execution, and expires overdue actions lazily on read as well as
// through the background sweep.
type Ledger struct {
	repo       Repository
	registry   *signer.Registry
	quorum     *policy.QuorumEvaluator
	delay      *policy.TimeDelayPolicy
	collector  *Collector
	usage      UsageStore
	limits     UsageLimits
	dispatcher Dispatcher
	audit      audit.Recorder
	metrics    *Metrics
	domainTag  string
	maxHorizon time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// LedgerOptions carries the ledger's collaborators and tunables.
type LedgerOptions struct {
	Repo       Repository
	Registry   *signer.Registry
	Quorum     *policy.QuorumEvaluator
	Delay      *policy.TimeDelayPolicy
	Collector  *Collector
	Usage      UsageStore
	Limits     UsageLimits
	Dispatcher Dispatcher
	Audit      audit.Recorder
	Metrics    *Metrics
	DomainTag  string
	MaxHorizon time.Duration
}

// NewLedger creates a Ledger.
func NewLedger(opts LedgerOptions, logger *slog.Logger) *Ledger {
	if opts.DomainTag == "" {
		opts.DomainTag = sigverify.DefaultDomainTag
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		repo:       opts.Repo,
		registry:   opts.Registry,
		quorum:     opts.Quorum,
		delay:      opts.Delay,
		collector:  opts.Collector,
		usage:      opts.Usage,
		limits:     opts.Limits,
		dispatcher: opts.Dispatcher,
		audit:      opts.Audit,
		metrics:    opts.Metrics,
		domainTag:  opts.DomainTag,
		maxHorizon: opts.MaxHorizon,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the ledger's clock. Test hook.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
	l.collector.now = now
}

// Submit creates a new pending transaction. The creator must be an active
// signer, the deadline must fall within the horizon, and the creator's daily
// submission quota must have room.
func (l *Ledger) Submit(ctx context.Context, creator string, req SubmitRequest) (*Action, error) {
	if _, err := l.registry.GetActive(ctx, creator); err != nil {
		l.metrics.recordRejected("invalid_creator")
		return nil, err
	}
	if req.Target == "" {
		l.metrics.recordRejected("invalid_target")
		return nil, ErrInvalidTarget
	}
	if !req.Class.Valid() {
		l.metrics.recordRejected("invalid_class")
		return nil, ErrInvalidClass
	}

	now := l.now()
	if !req.Deadline.After(now) {
		l.metrics.recordRejected("invalid_deadline")
		return nil, ErrInvalidDeadline
	}
	if l.maxHorizon > 0 && req.Deadline.After(now.Add(l.maxHorizon)) {
		l.metrics.recordRejected("invalid_deadline")
		return nil, ErrInvalidDeadline
	}

	seq, err := l.repo.NextNonce(ctx)
	if err != nil {
		return nil, err
	}
	nonce, err := formatNonce(seq)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	digest, err := sigverify.ComputeDigest(sigverify.Envelope{
		Domain:        l.domainTag,
		ActionID:      id,
		Nonce:         nonce,
		Target:        req.Target,
		Value:         req.Value,
		PayloadDigest: sigverify.PayloadDigest(req.Payload),
	})
	if err != nil {
		return nil, err
	}

	required, err := l.quorum.RequiredWeight(ctx, req.Class)
	if err != nil {
		return nil, err
	}

	a := &Action{
		ID:             id,
		Target:         req.Target,
		Value:          req.Value,
		Payload:        req.Payload,
		Nonce:          nonce,
		CreatedAt:      now,
		Deadline:       req.Deadline,
		Creator:        creator,
		Class:          req.Class,
		RequiredWeight: required,
		Status:         StatusPending,
		Digest:         digest,
	}
	// Quota is reserved last so only an insert failure can leave it
	// consumed, and that path hands it back.
	if err := l.usage.Reserve(ctx, creator, UsageDay(now), req.Value, l.limits); err != nil {
		l.metrics.recordRejected("rate_limited")
		return nil, err
	}
	if err := l.repo.Insert(ctx, a); err != nil {
		if releaseErr := l.usage.Release(ctx, creator, UsageDay(now), req.Value); releaseErr != nil {
			l.logger.Warn("failed to release usage quota",
				slog.String("creator", creator),
				slog.String("error", releaseErr.Error()))
		}
		return nil, err
	}

	l.recordAudit(ctx, creator, audit.ActionTransactionSubmit, digest, audit.OutcomeSuccess)
	l.metrics.recordSubmitted()
	l.logger.Info("transaction submitted",
		slog.String("transaction_id", a.ID),
		slog.String("creator", creator),
		slog.String("class", string(req.Class)),
		slog.Int64("required_weight", required))
	return a, nil
}

// Sign records a signer's approval of a pending transaction.
func (l *Ledger) Sign(ctx context.Context, id, identity string, signature []byte, class string) (*Action, error) {
	a, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusExpired {
		l.metrics.recordRejected("expired")
		return nil, ErrExpired
	}
	if a.Status != StatusPending {
		l.metrics.recordRejected("not_pending")
		return nil, ErrNotPending
	}

	a, err = l.collector.VerifyAndStore(ctx, a, identity, signature, class)
	if err != nil {
		l.metrics.recordRejected("signature")
		return nil, err
	}
	l.metrics.recordSigned()
	return a, nil
}

// Execute seals a pending transaction once quorum is met and the mandatory
// delay has elapsed, then dispatches the payload. The transaction becomes
// Executed whether or not the dispatch succeeds; the dispatch outcome is
// recorded on the transaction.
func (l *Ledger) Execute(ctx context.Context, id, caller string) (*Action, error) {
	if _, err := l.registry.GetActive(ctx, caller); err != nil {
		l.recordAudit(ctx, caller, audit.ActionAuthRejected, id, audit.OutcomeFailure)
		l.metrics.recordRejected("unauthorized")
		return nil, err
	}

	a, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusExpired {
		l.metrics.recordRejected("expired")
		return nil, ErrExpired
	}
	if a.Status != StatusPending {
		l.metrics.recordRejected("not_pending")
		return nil, ErrNotPending
	}

	met, err := l.quorum.MetQuorum(ctx, a.CollectedWeight, a.RequiredWeight, a.Class)
	if err != nil {
		return nil, err
	}
	if !met {
		l.metrics.recordRejected("quorum_not_met")
		return nil, ErrQuorumNotMet
	}

	elapsed, err := l.delay.ElapsedSufficient(ctx, a.Class, a.CreatedAt, l.now())
	if err != nil {
		return nil, err
	}
	if !elapsed {
		l.metrics.recordRejected("delay_not_elapsed")
		return nil, ErrDelayNotElapsed
	}

	// Seal before dispatching so a storage failure cannot leave the
	// transaction pending after the payload already went out.
	a.Status = StatusExecuted
	if err := l.repo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to seal transaction: %w", err)
	}

	result := l.dispatcher.Dispatch(ctx, a.Target, a.Value, a.Payload)
	a.DispatchResult = result
	if err := l.repo.Update(ctx, a); err != nil {
		l.logger.Error("failed to record dispatch result",
			slog.String("transaction_id", a.ID),
			slog.String("error", err.Error()))
	}

	l.recordAudit(ctx, caller, audit.ActionTransactionExecuted, a.Digest, audit.OutcomeSuccess)
	l.metrics.recordExecuted(result.Success)
	l.logger.Info("transaction executed",
		slog.String("transaction_id", a.ID),
		slog.String("caller", caller),
		slog.Bool("dispatch_success", result.Success))
	return a, nil
}

// Cancel terminates a pending transaction. Only the creator or a registry
// administrator may cancel.
func (l *Ledger) Cancel(ctx context.Context, id, caller, reason string, isAdmin bool) (*Action, error) {
	a, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller != a.Creator && !isAdmin {
		l.recordAudit(ctx, caller, audit.ActionAuthRejected, a.Digest, audit.OutcomeFailure)
		l.metrics.recordRejected("unauthorized")
		return nil, ErrUnauthorized
	}
	if a.Status == StatusExpired {
		l.metrics.recordRejected("expired")
		return nil, ErrExpired
	}
	if a.Status != StatusPending {
		l.metrics.recordRejected("not_pending")
		return nil, ErrNotPending
	}

	a.Status = StatusCancelled
	if err := l.repo.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to cancel transaction: %w", err)
	}

	l.recordAudit(ctx, caller, audit.ActionTransactionCanceled, a.Digest, audit.OutcomeSuccess)
	l.metrics.recordCancelled()
	l.logger.Info("transaction cancelled",
		slog.String("transaction_id", a.ID),
		slog.String("caller", caller),
		slog.String("reason", reason))
	return a, nil
}

// Get returns a transaction, lazily expiring it first if its deadline has
// passed while it was still pending.
func (l *Ledger) Get(ctx context.Context, id string) (*Action, error) {
	return l.load(ctx, id)
}

// ExpireOverdue marks pending transactions whose deadline is in the past as
// expired, up to limit per call. Returns the number expired. Intended for the
// background sweeper; lazy expiry on read keeps correctness independent of
// the sweep cadence.
func (l *Ledger) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	overdue, err := l.repo.ListPendingExpiredBefore(ctx, l.now(), limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, a := range overdue {
		if err := l.expire(ctx, a); err != nil {
			l.logger.Error("failed to expire transaction",
				slog.String("transaction_id", a.ID),
				slog.String("error", err.Error()))
			continue
		}
		expired++
	}
	return expired, nil
}

// load fetches an action and applies lazy expiry: a pending action past its
// deadline is persisted as expired before it is returned.
func (l *Ledger) load(ctx context.Context, id string) (*Action, error) {
	a, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusPending && !a.Deadline.After(l.now()) {
		if err := l.expire(ctx, a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (l *Ledger) expire(ctx context.Context, a *Action) error {
	a.Status = StatusExpired
	if err := l.repo.Update(ctx, a); err != nil {
		return err
	}
	l.recordAudit(ctx, a.Creator, audit.ActionTransactionExpired, a.Digest, audit.OutcomeSuccess)
	l.metrics.recordExpired()
	return nil
}

func (l *Ledger) recordAudit(ctx context.Context, actor, action, digest, outcome string) {
	if _, err := l.audit.Append(ctx, audit.Record{
		Actor:   actor,
		Action:  action,
		Digest:  digest,
		Outcome: outcome,
	}); err != nil {
		l.logger.Error("failed to write audit entry",
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}

// formatNonce combines the monotonic sequence with random bytes so nonces
// are unique across registries that share a domain tag.
func formatNonce(seq int64) (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce entropy: %w", err)
	}
	return fmt.Sprintf("%d-%s", seq, hex.EncodeToString(buf[:])), nil
}

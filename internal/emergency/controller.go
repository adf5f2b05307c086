package emergency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/quorumgate/internal/audit"
)

// ThresholdSource supplies the normal quorum threshold the overrides are
// derived from. The signer registry satisfies this.
type ThresholdSource interface {
	Threshold(ctx context.Context) (int64, error)
}

// Controller owns the emergency state machine: Normal and Emergency(1..5).
// Only one episode can be active at a time and deactivation always restores
// Normal with no intermediate state observable.
type Controller struct {
	repo       Repository
	thresholds ThresholdSource
	audit      audit.Recorder
	baseDelay  time.Duration
	metrics    *Metrics
	logger     *slog.Logger
}

// NewController creates a Controller. metrics may be nil.
func NewController(repo Repository, thresholds ThresholdSource, recorder audit.Recorder, baseDelay time.Duration, metrics *Metrics, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		repo:       repo,
		thresholds: thresholds,
		audit:      recorder,
		baseDelay:  baseDelay,
		metrics:    metrics,
		logger:     logger,
	}
}

// Activate transitions Normal -> Emergency(level). The overrides are a
// deterministic function of the level and the threshold at activation time,
// so repeated activate/deactivate cycles at the same level produce identical
// overrides.
func (c *Controller) Activate(ctx context.Context, actor string, level int, reason string) (*State, error) {
	if level < MinLevel || level > MaxLevel {
		return nil, ErrInvalidLevel
	}
	if reason == "" {
		return nil, ErrInvalidReason
	}

	current, err := c.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if current.Active {
		return nil, ErrAlreadyActive
	}

	threshold, err := c.thresholds.Threshold(ctx)
	if err != nil {
		return nil, err
	}
	thresholdOverride, delayOverride, err := OverridesFor(level, threshold, c.baseDelay)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	state := &State{
		Active:            true,
		Level:             level,
		ActivatedAt:       &now,
		Activator:         actor,
		Reason:            reason,
		ThresholdOverride: thresholdOverride,
		DelayOverride:     delayOverride,
	}
	if err := c.repo.Set(ctx, state); err != nil {
		return nil, err
	}
	c.recordAudit(ctx, actor, audit.ActionEmergencyActivated, fmt.Sprintf("level=%d reason=%s", level, reason))
	c.metrics.recordActivated(level)
	return state, nil
}

// Deactivate transitions Emergency(*) -> Normal, clearing all overrides in a
// single atomic write.
func (c *Controller) Deactivate(ctx context.Context, actor string) error {
	current, err := c.repo.Get(ctx)
	if err != nil {
		return err
	}
	if !current.Active {
		return ErrNotInEmergency
	}

	if err := c.repo.Set(ctx, Normal()); err != nil {
		return err
	}
	c.recordAudit(ctx, actor, audit.ActionEmergencyCleared, fmt.Sprintf("level=%d", current.Level))
	c.metrics.recordDeactivated()
	return nil
}

// Current returns the present emergency state.
func (c *Controller) Current(ctx context.Context) (*State, error) {
	return c.repo.Get(ctx)
}

func (c *Controller) recordAudit(ctx context.Context, actor, action, data string) {
	sum := sha256.Sum256([]byte(data))
	if _, err := c.audit.Append(ctx, audit.Record{
		Actor:   actor,
		Action:  action,
		Digest:  hex.EncodeToString(sum[:]),
		Outcome: audit.OutcomeSuccess,
	}); err != nil {
		c.logger.Error("failed to write audit entry",
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}

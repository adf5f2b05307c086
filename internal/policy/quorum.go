package policy

import (
	"context"

	"github.com/onnwee/quorumgate/internal/emergency"
)

// ThresholdSource supplies the current quorum threshold. The signer registry
// satisfies this.
type ThresholdSource interface {
	Threshold(ctx context.Context) (int64, error)
}

// EmergencySource supplies the current emergency state. The emergency
// controller satisfies this.
type EmergencySource interface {
	Current(ctx context.Context) (*emergency.State, error)
}

// QuorumEvaluator computes the weight an action class must collect. An
// active emergency's threshold override takes precedence over every
// class-specific rule.
type QuorumEvaluator struct {
	thresholds  ThresholdSource
	emergencies EmergencySource
}

// NewQuorumEvaluator creates a QuorumEvaluator.
func NewQuorumEvaluator(thresholds ThresholdSource, emergencies EmergencySource) *QuorumEvaluator {
	return &QuorumEvaluator{thresholds: thresholds, emergencies: emergencies}
}

// RequiredWeight returns the weight currently required for the class.
func (q *QuorumEvaluator) RequiredWeight(ctx context.Context, class Class) (int64, error) {
	state, err := q.emergencies.Current(ctx)
	if err != nil {
		return 0, err
	}
	if state.Active {
		return state.ThresholdOverride, nil
	}

	threshold, err := q.thresholds.Threshold(ctx)
	if err != nil {
		return 0, err
	}
	if class == ClassSecurityCritical {
		return threshold + 1, nil
	}
	return threshold, nil
}

// MetQuorum reports whether the collected weight satisfies both the
// requirement snapshotted at submission and the requirement in force now.
// Re-checking the current requirement means a mid-flight threshold increase
// cannot be bypassed by a stale snapshot, while a decrease can retroactively
// satisfy a previously under-signed action.
func (q *QuorumEvaluator) MetQuorum(ctx context.Context, collected, snapshot int64, class Class) (bool, error) {
	current, err := q.RequiredWeight(ctx, class)
	if err != nil {
		return false, err
	}
	return collected >= snapshot && collected >= current, nil
}

package policy

import (
	"context"
	"time"
)

// Delay multipliers relative to the configured base delay.
const (
	securityCriticalDelayFactor = 2
	emergencyClassDelayDivisor  = 4
)

// TimeDelayPolicy computes the minimum time that must elapse between
// submission and execution. The policy is evaluated against the emergency
// state at execution time, not at submission: an emergency activated after
// submission shortens the wait for already-pending actions, and
// deactivation restores the original wait.
type TimeDelayPolicy struct {
	emergencies EmergencySource
	baseDelay   time.Duration
}

// NewTimeDelayPolicy creates a TimeDelayPolicy with the given base delay.
func NewTimeDelayPolicy(emergencies EmergencySource, baseDelay time.Duration) *TimeDelayPolicy {
	return &TimeDelayPolicy{emergencies: emergencies, baseDelay: baseDelay}
}

// RequiredDelay returns the delay currently required for the class.
func (p *TimeDelayPolicy) RequiredDelay(ctx context.Context, class Class) (time.Duration, error) {
	state, err := p.emergencies.Current(ctx)
	if err != nil {
		return 0, err
	}
	if state.Active {
		return state.DelayOverride, nil
	}

	switch class {
	case ClassSecurityCritical:
		return p.baseDelay * securityCriticalDelayFactor, nil
	case ClassEmergency:
		return p.baseDelay / emergencyClassDelayDivisor, nil
	default:
		return p.baseDelay, nil
	}
}

// ElapsedSufficient reports whether enough time has passed since submission
// for the class under the policy in force right now.
func (p *TimeDelayPolicy) ElapsedSufficient(ctx context.Context, class Class, submittedAt, now time.Time) (bool, error) {
	required, err := p.RequiredDelay(ctx, class)
	if err != nil {
		return false, err
	}
	return !now.Before(submittedAt.Add(required)), nil
}

// Package emergency provides the finite-state controller for emergency
// activation and the threshold/delay overrides an active emergency implies.
package emergency

import (
	"errors"
	"time"
)

// Emergency level bounds.
const (
	MinLevel = 1
	MaxLevel = 5
)

// State transition errors.
var (
	ErrAlreadyActive  = errors.New("an emergency is already active")
	ErrNotInEmergency = errors.New("no emergency is active")
	ErrInvalidLevel   = errors.New("emergency level must be between 1 and 5")
	ErrInvalidReason  = errors.New("emergency reason cannot be empty")
)

// State is the single emergency record. When Active is false the override
// fields are zero and callers must fall back to normal policy.
type State struct {
	Active            bool          `json:"active"`
	Level             int           `json:"level,omitempty"`
	ActivatedAt       *time.Time    `json:"activated_at,omitempty"`
	Activator         string        `json:"activator,omitempty"`
	Reason            string        `json:"reason,omitempty"`
	ThresholdOverride int64         `json:"threshold_override,omitempty"`
	DelayOverride     time.Duration `json:"delay_override,omitempty"`
}

// Normal is the inactive state every deactivation restores, regardless of
// prior emergency history.
func Normal() *State {
	return &State{}
}

// OverridesFor computes the effective overrides for a level as a
// deterministic function of the normal threshold and base delay. Higher
// levels always yield a lower (or equal) threshold and a shorter (or equal)
// delay; only the maximum level drops the delay to zero.
func OverridesFor(level int, threshold int64, baseDelay time.Duration) (int64, time.Duration, error) {
	if level < MinLevel || level > MaxLevel {
		return 0, 0, ErrInvalidLevel
	}
	scale := int64(MaxLevel - level)
	thresholdOverride := threshold * scale / MaxLevel
	if thresholdOverride < 1 {
		thresholdOverride = 1
	}
	delayOverride := baseDelay * time.Duration(scale) / MaxLevel
	return thresholdOverride, delayOverride, nil
}

// Package policy computes the quorum and time-delay requirements an action
// must satisfy before execution, including the overrides an active emergency
// substitutes for normal policy.
package policy

// Class tags an action with the threshold and delay policy that applies.
type Class string

// Action classes.
const (
	ClassStandard         Class = "standard"
	ClassAdministrative   Class = "administrative"
	ClassSecurityCritical Class = "security-critical"
	ClassEmergency        Class = "emergency"
)

// Valid reports whether the class is one of the recognized values.
func (c Class) Valid() bool {
	switch c {
	case ClassStandard, ClassAdministrative, ClassSecurityCritical, ClassEmergency:
		return true
	}
	return false
}

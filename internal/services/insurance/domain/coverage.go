// Package domain holds the pure insurance types and state transitions.
package domain

import (
	"errors"
	"strings"
	"time"
)

// CoverageClass identifies one of the two insurance product variants.
type CoverageClass string

const (
	// CoverageXanax is hour-based coverage paid out in xanax.
	CoverageXanax CoverageClass = "XAN"
	// CoverageEcstasy is jump-based coverage with an itemized reward.
	CoverageEcstasy CoverageClass = "EXTC"
)

// ErrInvalidCoverageClass indicates an unknown coverage class value.
var ErrInvalidCoverageClass = errors.New("invalid coverage class")

// ClassPolicy captures the per-variant behavior that used to live in
// scattered literal-string branches: new variants are one table entry.
type ClassPolicy struct {
	// Marker is the payment message fragment that ties a transfer to this class.
	Marker string
	// DurationUnit names the requested-duration unit ("hours" or "jumps").
	DurationUnit string
	// FixedActiveWindow, when non-zero, overrides the requested duration as
	// the active window length.
	FixedActiveWindow time.Duration
	// ClaimCooldown, when non-zero, limits confirmed claims to one per
	// trailing window of this length.
	ClaimCooldown time.Duration
	// ClaimPerCycle, when true, limits confirmed claims to one per
	// activation cycle of the covering order.
	ClaimPerCycle bool
	// ItemizedReward reports whether the reward carries edvd and ecstasy
	// components in addition to xanax.
	ItemizedReward bool
}

var classPolicies = map[CoverageClass]ClassPolicy{
	CoverageXanax: {
		Marker:        "HJSx",
		DurationUnit:  "hours",
		ClaimCooldown: 4 * time.Hour,
	},
	CoverageEcstasy: {
		Marker:            "HJSe",
		DurationUnit:      "jumps",
		FixedActiveWindow: 2 * time.Hour,
		ClaimPerCycle:     true,
		ItemizedReward:    true,
	},
}

// Policy returns the behavior table entry for the class.
func (c CoverageClass) Policy() (ClassPolicy, bool) {
	policy, ok := classPolicies[c]
	return policy, ok
}

// Valid reports whether the class is a known variant.
func (c CoverageClass) Valid() bool {
	_, ok := classPolicies[c]
	return ok
}

// ActiveWindow returns the active coverage window for a requested duration.
func (c CoverageClass) ActiveWindow(requestedDuration int) time.Duration {
	policy, ok := classPolicies[c]
	if !ok {
		return 0
	}
	if policy.FixedActiveWindow > 0 {
		return policy.FixedActiveWindow
	}
	return time.Duration(requestedDuration) * time.Hour
}

// ParseCoverageClass normalizes a class string into a known variant.
func ParseCoverageClass(value string) (CoverageClass, error) {
	class := CoverageClass(strings.ToUpper(strings.TrimSpace(value)))
	if !class.Valid() {
		return "", ErrInvalidCoverageClass
	}
	return class, nil
}

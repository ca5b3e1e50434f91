package domain

import (
	"fmt"
	"time"

	"github.com/danieltrsl/odcover/internal/platform/id"
)

// Claim is one qualifying-event report against active coverage.
type Claim struct {
	ID          string
	UserID      string
	Class       CoverageClass
	ReportedAt  time.Time
	Confirmed   bool
	ConfirmedAt time.Time
	// Payout is the primary payout amount; PayoutReward itemizes it and
	// PayoutDetails is the rendered breakdown snapshot.
	Payout        int
	PayoutReward  Reward
	PayoutDetails string
	Notes         string
}

// ClaimDenial explains a rejected claim submission.
type ClaimDenial struct {
	// Ambiguous is set when the owner holds both coverage classes and did
	// not pick one.
	Ambiguous bool
	// CycleUsed is set when this activation cycle already paid a claim.
	CycleUsed bool
	// CooldownRemaining is non-zero when a trailing-window cooldown blocks
	// the claim.
	CooldownRemaining time.Duration
}

// ResolveClaimClass picks the coverage class a claim applies to. An empty
// requested class defaults to the single active class; holding both classes
// requires an explicit choice.
func ResolveClaimClass(requested CoverageClass, hasActiveXan, hasActiveExtc bool) (CoverageClass, *ClaimDenial, error) {
	if requested != "" && !requested.Valid() {
		return "", nil, ErrInvalidCoverageClass
	}
	if !hasActiveXan && !hasActiveExtc {
		return "", nil, nil
	}
	if requested == "" {
		if hasActiveXan && hasActiveExtc {
			return "", &ClaimDenial{Ambiguous: true}, nil
		}
		if hasActiveXan {
			return CoverageXanax, nil, nil
		}
		return CoverageEcstasy, nil, nil
	}
	if requested == CoverageXanax && !hasActiveXan {
		return "", nil, nil
	}
	if requested == CoverageEcstasy && !hasActiveExtc {
		return "", nil, nil
	}
	return requested, nil, nil
}

// CheckClaimLimit applies the per-class acceptance policy. activeOrder is
// the owner's active order of the claim class; lastConfirmed is the owner's
// most recent confirmed claim of that class, nil when none exists.
func CheckClaimLimit(class CoverageClass, activeOrder Order, lastConfirmed *Claim, now time.Time) *ClaimDenial {
	policy, ok := class.Policy()
	if !ok || lastConfirmed == nil {
		return nil
	}
	now = now.UTC()
	if policy.ClaimPerCycle {
		// One claim per activation cycle: a confirmation at or after the
		// current order's activation means this cycle already paid out.
		if !lastConfirmed.ConfirmedAt.Before(activeOrder.ActivatedAt) {
			return &ClaimDenial{CycleUsed: true}
		}
		return nil
	}
	if policy.ClaimCooldown > 0 {
		windowStart := now.Add(-policy.ClaimCooldown)
		if lastConfirmed.ConfirmedAt.After(windowStart) {
			return &ClaimDenial{
				CooldownRemaining: lastConfirmed.ConfirmedAt.Add(policy.ClaimCooldown).Sub(now),
			}
		}
	}
	return nil
}

// NewClaim builds an unconfirmed claim stamped with its submission time.
func NewClaim(userID string, class CoverageClass, now func() time.Time, idGenerator func() (string, error)) (Claim, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	claimID, err := idGenerator()
	if err != nil {
		return Claim{}, fmt.Errorf("generate claim id: %w", err)
	}
	return Claim{
		ID:         claimID,
		UserID:     userID,
		Class:      class,
		ReportedAt: now().UTC(),
	}, nil
}

// PayoutSnapshot computes the payout owed for a claim against the given
// active order, frozen at confirmation time. Later pricing changes never
// alter the snapshot.
func PayoutSnapshot(order Order) (amount int, details string, reward Reward) {
	policy, _ := order.Class.Policy()
	if policy.ItemizedReward {
		details = fmt.Sprintf("%d Xanax, %d eDVDs, %d Ecstasy",
			order.Reward.Xanax, order.Reward.EDVDs, order.Reward.Ecstasy)
		return order.Reward.Xanax, details, order.Reward
	}
	details = fmt.Sprintf("%d Xanax", order.Reward.Xanax)
	return order.Reward.Xanax, details, Reward{Xanax: order.Reward.Xanax}
}

// ConfirmClaim stamps the one-time confirmation mutation onto the claim.
func ConfirmClaim(claim Claim, order Order, notes string, now time.Time) (Claim, bool) {
	if claim.Confirmed {
		return claim, false
	}
	amount, details, reward := PayoutSnapshot(order)
	claim.Confirmed = true
	claim.ConfirmedAt = now.UTC()
	claim.Payout = amount
	claim.PayoutDetails = details
	claim.PayoutReward = reward
	claim.Notes = notes
	return claim, true
}

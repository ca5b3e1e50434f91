package domain

import "errors"

// ErrInvalidPricing indicates a pricing option with unusable values.
var ErrInvalidPricing = errors.New("invalid pricing option")

// PricingOption is one purchasable (class, duration) combination.
type PricingOption struct {
	ID       string
	Class    CoverageClass
	Duration int // hours for XAN, jumps for EXTC
	Cost     int // xanax units
	Reward   Reward
	Active   bool
}

// ValidatePricing checks a pricing option before persistence.
func ValidatePricing(option PricingOption) error {
	if !option.Class.Valid() {
		return ErrInvalidCoverageClass
	}
	if option.Duration < 1 || option.Cost < 1 || option.Reward.Xanax < 1 {
		return ErrInvalidPricing
	}
	policy, _ := option.Class.Policy()
	if policy.ItemizedReward && (option.Reward.EDVDs < 1 || option.Reward.Ecstasy < 1) {
		return ErrInvalidPricing
	}
	return nil
}

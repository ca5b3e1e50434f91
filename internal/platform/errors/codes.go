// Package errors provides structured error handling for caller-visible
// validation and conflict failures.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Order errors
	CodeOrderInvalidCoverageClass Code = "ORDER_INVALID_COVERAGE_CLASS"
	CodeOrderInvalidDuration      Code = "ORDER_INVALID_DURATION"
	CodeOrderPricingUnavailable   Code = "ORDER_PRICING_UNAVAILABLE"
	CodeOrderActiveCoverageExists Code = "ORDER_ACTIVE_COVERAGE_EXISTS"
	CodeOrderNotFound             Code = "ORDER_NOT_FOUND"
	CodeOrderNotPending           Code = "ORDER_NOT_PENDING"

	// Claim errors
	CodeClaimNoActiveCoverage Code = "CLAIM_NO_ACTIVE_COVERAGE"
	CodeClaimClassAmbiguous   Code = "CLAIM_CLASS_AMBIGUOUS"
	CodeClaimCycleAlreadyUsed Code = "CLAIM_CYCLE_ALREADY_USED"
	CodeClaimCooldownActive   Code = "CLAIM_COOLDOWN_ACTIVE"
	CodeClaimNotFound         Code = "CLAIM_NOT_FOUND"
	CodeClaimAlreadyConfirmed Code = "CLAIM_ALREADY_CONFIRMED"

	// User errors
	CodeUserNotFound Code = "USER_NOT_FOUND"

	// Feed errors
	CodeFeedCredentialInvalid Code = "FEED_CREDENTIAL_INVALID"
)

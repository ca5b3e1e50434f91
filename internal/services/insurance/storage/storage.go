// Package storage defines the durable store contract for insurance state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/danieltrsl/odcover/internal/services/insurance/domain"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrActiveOrderExists is returned when a placement collides with live
	// coverage of the same class.
	ErrActiveOrderExists = errors.New("active order exists for this coverage class")
	// ErrClaimAlreadyConfirmed is returned when confirming a claim twice.
	ErrClaimAlreadyConfirmed = errors.New("claim is already confirmed")
	// ErrNoActiveOrder is returned when a claim confirmation finds no
	// matching active coverage.
	ErrNoActiveOrder = errors.New("no active order for this coverage class")
	// ErrOrderNotPending is returned when deleting an order that is not
	// pending.
	ErrOrderNotPending = errors.New("order is not pending")
)

// PendingVerification pairs a pending unverified order with the owner
// display name the payment matcher needs.
type PendingVerification struct {
	Order     domain.Order
	OwnerName string
}

// RetentionSweep controls terminal-order cleanup inside a reconciliation
// commit.
type RetentionSweep struct {
	Enabled bool
	Cutoff  time.Time
}

// ReconciliationResult aggregates one tick's mutations. The store commits
// the whole result in a single transaction.
type ReconciliationResult struct {
	// ExpiredOrderIDs are active orders whose deadline passed this tick.
	ExpiredOrderIDs []string
	// Verified carries orders already transitioned to active by the
	// lifecycle manager; the store persists them guarded on pending status.
	Verified  []domain.Order
	Retention RetentionSweep
}

// Empty reports whether the result carries no mutations.
func (r ReconciliationResult) Empty() bool {
	return len(r.ExpiredOrderIDs) == 0 && len(r.Verified) == 0 && !r.Retention.Enabled
}

// Store persists insurance state. Every multi-step mutation executes inside
// a single transaction in the implementation, and every guarded transition
// is safe to re-deliver.
type Store interface {
	// Users
	PutUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
	// OperatorCredential resolves the feed credential: the canonical
	// administrator's if it holds one, else any administrator's.
	OperatorCredential(ctx context.Context, canonicalUserID string) (string, error)

	// Orders
	PlaceOrder(ctx context.Context, order domain.Order) error
	OverrideActivate(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ActiveOrder(ctx context.Context, userID string, class domain.CoverageClass) (domain.Order, error)
	ListPendingUnverified(ctx context.Context) ([]PendingVerification, error)
	ListExpiredActive(ctx context.Context, now time.Time) ([]domain.Order, error)
	DeletePendingOrder(ctx context.Context, orderID string) error
	CommitReconciliation(ctx context.Context, result ReconciliationResult) error
	// TouchLastTick stamps loop liveness, committed separately from the
	// reconciliation result so an empty tick still records progress.
	TouchLastTick(ctx context.Context, now time.Time) error

	// Claims
	CreateClaim(ctx context.Context, claim domain.Claim) error
	GetClaim(ctx context.Context, claimID string) (domain.Claim, error)
	LatestConfirmedClaim(ctx context.Context, userID string, class domain.CoverageClass) (domain.Claim, error)
	// ConfirmClaim snapshots the payout from the matching active order and
	// applies the claim-confirmed lifecycle event in the same transaction.
	ConfirmClaim(ctx context.Context, claimID, notes string, now time.Time) (domain.Claim, error)

	// Pricing
	UpsertPricing(ctx context.Context, option domain.PricingOption) error
	DeletePricing(ctx context.Context, pricingID string) error
	ListPricing(ctx context.Context, class domain.CoverageClass) ([]domain.PricingOption, error)
	// ActivePricing resolves exactly one active option for (class, duration).
	ActivePricing(ctx context.Context, class domain.CoverageClass, duration int) (domain.PricingOption, error)

	// Settings
	Settings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, settings domain.Settings) error
}

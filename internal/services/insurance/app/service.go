// Package app wires the insurance domain, storage, feed and matcher into
// the reconciler runtime.
package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/danieltrsl/odcover/internal/platform/errors"
	"github.com/danieltrsl/odcover/internal/platform/id"
	"github.com/danieltrsl/odcover/internal/services/insurance/domain"
	"github.com/danieltrsl/odcover/internal/services/insurance/feed"
	"github.com/danieltrsl/odcover/internal/services/insurance/match"
	"github.com/danieltrsl/odcover/internal/services/insurance/storage"
)

// EvidenceSource fetches activity evidence for one operator credential.
type EvidenceSource interface {
	Events(ctx context.Context, credential string, lookback time.Duration) ([]feed.Record, error)
}

// Service exposes the insurance operations backed by durable storage.
type Service struct {
	store            storage.Store
	evidence         EvidenceSource
	canonicalAdminID string
	now              func() time.Time
	newID            func() (string, error)
}

// ServiceOption customizes Service construction.
type ServiceOption func(*Service)

// WithClock overrides the service clock.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides the service ID generator.
func WithIDGenerator(newID func() (string, error)) ServiceOption {
	return func(s *Service) { s.newID = newID }
}

// NewService builds the insurance service. canonicalAdminID names the
// administrator whose feed credential is preferred for reconciliation; it
// may be empty.
func NewService(store storage.Store, evidence EvidenceSource, canonicalAdminID string, opts ...ServiceOption) *Service {
	s := &Service{
		store:            store,
		evidence:         evidence,
		canonicalAdminID: canonicalAdminID,
		now:              time.Now,
		newID:            id.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder creates a pending order for one priced coverage option. A new
// placement replaces the owner's prior pending order of the same class;
// live coverage of that class rejects the placement.
func (s *Service) PlaceOrder(ctx context.Context, userID string, class domain.CoverageClass, duration int) (domain.Order, error) {
	if !class.Valid() {
		return domain.Order{}, errors.New(errors.CodeOrderInvalidCoverageClass, fmt.Sprintf("coverage class %q is not offered", class))
	}
	if duration < 1 {
		return domain.Order{}, errors.New(errors.CodeOrderInvalidDuration, "duration must be at least 1")
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return domain.Order{}, errors.New(errors.CodeUserNotFound, "user is not registered")
		}
		return domain.Order{}, fmt.Errorf("load user: %w", err)
	}
	pricing, err := s.store.ActivePricing(ctx, class, duration)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return domain.Order{}, errors.New(errors.CodeOrderPricingUnavailable, "no active pricing for this class and duration")
		}
		return domain.Order{}, fmt.Errorf("resolve pricing: %w", err)
	}

	order, err := domain.NewPendingOrder(userID, pricing, s.now, s.newID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.store.PlaceOrder(ctx, order); err != nil {
		if stderrors.Is(err, storage.ErrActiveOrderExists) {
			return domain.Order{}, errors.New(errors.CodeOrderActiveCoverageExists, "live coverage of this class already exists")
		}
		return domain.Order{}, fmt.Errorf("place order: %w", err)
	}
	return order, nil
}

// AdminActivate installs directly-active coverage by administrative
// override, bypassing payment verification. Existing live coverage of the
// class is completed and pending orders of the class are dropped.
func (s *Service) AdminActivate(ctx context.Context, userID string, class domain.CoverageClass, duration int) (domain.Order, error) {
	if !class.Valid() {
		return domain.Order{}, errors.New(errors.CodeOrderInvalidCoverageClass, fmt.Sprintf("coverage class %q is not offered", class))
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return domain.Order{}, errors.New(errors.CodeUserNotFound, "user is not registered")
		}
		return domain.Order{}, fmt.Errorf("load user: %w", err)
	}
	pricing, err := s.store.ActivePricing(ctx, class, duration)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return domain.Order{}, errors.New(errors.CodeOrderPricingUnavailable, "no active pricing for this class and duration")
		}
		return domain.Order{}, fmt.Errorf("resolve pricing: %w", err)
	}

	order, err := domain.NewOverrideOrder(userID, pricing, s.now, s.newID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.store.OverrideActivate(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("activate order: %w", err)
	}
	return order, nil
}

// DeletePendingOrder removes one pending order by ID. Orders past the
// pending state are never deleted through this path.
func (s *Service) DeletePendingOrder(ctx context.Context, orderID string) error {
	err := s.store.DeletePendingOrder(ctx, orderID)
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, storage.ErrNotFound):
		return errors.New(errors.CodeOrderNotFound, "order does not exist")
	case stderrors.Is(err, storage.ErrOrderNotPending):
		return errors.New(errors.CodeOrderNotPending, "only pending orders can be deleted")
	default:
		return fmt.Errorf("delete pending order: %w", err)
	}
}

// ExpireActiveNow force-expires the owner's live coverage of one class.
func (s *Service) ExpireActiveNow(ctx context.Context, userID string, class domain.CoverageClass) (domain.Order, error) {
	order, err := s.store.ActiveOrder(ctx, userID, class)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return domain.Order{}, errors.New(errors.CodeOrderNotFound, "no live coverage of this class")
		}
		return domain.Order{}, fmt.Errorf("load active order: %w", err)
	}
	expired, changed := domain.Apply(order, domain.Event{Kind: domain.EventAdminExpire}, s.now())
	if !changed {
		return order, nil
	}
	if err := s.store.CommitReconciliation(ctx, storage.ReconciliationResult{
		ExpiredOrderIDs: []string{expired.ID},
	}); err != nil {
		return domain.Order{}, fmt.Errorf("expire order: %w", err)
	}
	return expired, nil
}

// SubmitClaim records a qualifying-event claim against the owner's active
// coverage. An empty class defaults to the single active class; holding
// both classes requires an explicit choice.
func (s *Service) SubmitClaim(ctx context.Context, userID string, requested domain.CoverageClass) (domain.Claim, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return domain.Claim{}, errors.New(errors.CodeUserNotFound, "user is not registered")
		}
		return domain.Claim{}, fmt.Errorf("load user: %w", err)
	}

	xanOrder, hasXan, err := s.activeOrder(ctx, userID, domain.CoverageXanax)
	if err != nil {
		return domain.Claim{}, err
	}
	extcOrder, hasExtc, err := s.activeOrder(ctx, userID, domain.CoverageEcstasy)
	if err != nil {
		return domain.Claim{}, err
	}

	class, denial, err := domain.ResolveClaimClass(requested, hasXan, hasExtc)
	if err != nil {
		return domain.Claim{}, errors.New(errors.CodeOrderInvalidCoverageClass, fmt.Sprintf("coverage class %q is not offered", requested))
	}
	if denial != nil && denial.Ambiguous {
		return domain.Claim{}, errors.New(errors.CodeClaimClassAmbiguous, "both coverage classes are active; pick one")
	}
	if class == "" {
		return domain.Claim{}, errors.New(errors.CodeClaimNoActiveCoverage, "no active coverage for this claim")
	}

	activeOrder := xanOrder
	if class == domain.CoverageEcstasy {
		activeOrder = extcOrder
	}
	lastConfirmed, err := s.latestConfirmed(ctx, userID, class)
	if err != nil {
		return domain.Claim{}, err
	}
	if denial := domain.CheckClaimLimit(class, activeOrder, lastConfirmed, s.now()); denial != nil {
		if denial.CycleUsed {
			return domain.Claim{}, errors.New(errors.CodeClaimCycleAlreadyUsed, "this activation cycle already paid a claim")
		}
		return domain.Claim{}, errors.WithMetadata(errors.CodeClaimCooldownActive, "claim cooldown is active", map[string]string{
			"remaining_seconds": strconv.FormatInt(int64(denial.CooldownRemaining/time.Second), 10),
		})
	}

	claim, err := domain.NewClaim(userID, class, s.now, s.newID)
	if err != nil {
		return domain.Claim{}, err
	}
	if err := s.store.CreateClaim(ctx, claim); err != nil {
		return domain.Claim{}, fmt.Errorf("create claim: %w", err)
	}
	return claim, nil
}

// ConfirmClaim confirms one claim, snapshotting the payout from the
// matching active coverage. Jump coverage is consumed by the confirmation.
func (s *Service) ConfirmClaim(ctx context.Context, claimID, notes string) (domain.Claim, error) {
	claim, err := s.store.ConfirmClaim(ctx, claimID, notes, s.now())
	switch {
	case err == nil:
		return claim, nil
	case stderrors.Is(err, storage.ErrNotFound):
		return domain.Claim{}, errors.New(errors.CodeClaimNotFound, "claim does not exist")
	case stderrors.Is(err, storage.ErrClaimAlreadyConfirmed):
		return domain.Claim{}, errors.New(errors.CodeClaimAlreadyConfirmed, "claim is already confirmed")
	case stderrors.Is(err, storage.ErrNoActiveOrder):
		return domain.Claim{}, errors.New(errors.CodeClaimNoActiveCoverage, "no active coverage backs this claim")
	default:
		return domain.Claim{}, fmt.Errorf("confirm claim: %w", err)
	}
}

// PricingOptions lists the active pricing of one coverage class, or every
// class when class is empty.
func (s *Service) PricingOptions(ctx context.Context, class domain.CoverageClass) ([]domain.PricingOption, error) {
	if class != "" && !class.Valid() {
		return nil, errors.New(errors.CodeOrderInvalidCoverageClass, fmt.Sprintf("coverage class %q is not offered", class))
	}
	return s.store.ListPricing(ctx, class)
}

// SetPricing inserts or replaces one pricing option.
func (s *Service) SetPricing(ctx context.Context, option domain.PricingOption) (domain.PricingOption, error) {
	if option.ID == "" {
		pricingID, err := s.newID()
		if err != nil {
			return domain.PricingOption{}, fmt.Errorf("generate pricing id: %w", err)
		}
		option.ID = pricingID
	}
	if err := s.store.UpsertPricing(ctx, option); err != nil {
		return domain.PricingOption{}, err
	}
	return option, nil
}

// RemovePricing deletes one pricing option by ID.
func (s *Service) RemovePricing(ctx context.Context, pricingID string) error {
	if err := s.store.DeletePricing(ctx, pricingID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.New(errors.CodeOrderPricingUnavailable, "pricing option does not exist")
		}
		return err
	}
	return nil
}

// UpsertUser registers or updates one participant.
func (s *Service) UpsertUser(ctx context.Context, user domain.User) error {
	return s.store.PutUser(ctx, user)
}

// Settings returns the reconciliation settings.
func (s *Service) Settings(ctx context.Context) (domain.Settings, error) {
	return s.store.Settings(ctx)
}

// UpdateSettings replaces the reconciliation settings.
func (s *Service) UpdateSettings(ctx context.Context, settings domain.Settings) error {
	return s.store.SaveSettings(ctx, settings)
}

// VerifyPendingNow runs one immediate verification pass over pending
// orders, outside the periodic loop. It returns the number of orders
// activated.
func (s *Service) VerifyPendingNow(ctx context.Context) (int, error) {
	now := s.now()
	verified, err := s.verifyPending(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(verified) == 0 {
		return 0, nil
	}
	if err := s.store.CommitReconciliation(ctx, storage.ReconciliationResult{Verified: verified}); err != nil {
		return 0, fmt.Errorf("commit verifications: %w", err)
	}
	return len(verified), nil
}

// DetectNewOrders scans recent evidence for deposits that look like
// coverage purchases with no matching order. Detection is advisory: the
// caller decides whether to place orders from the result.
func (s *Service) DetectNewOrders(ctx context.Context) ([]match.DetectedOrder, error) {
	credential, err := s.operatorCredential(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.evidence.Events(ctx, credential, match.DetectionLookback)
	if err != nil {
		return nil, errors.Wrap(errors.CodeFeedCredentialInvalid, "operator credential rejected", err)
	}
	return match.DetectOrders(records, s.now()), nil
}

// verifyPending matches pending orders against evidence and returns the
// activated orders. Feed degradation yields zero matches, never an error.
func (s *Service) verifyPending(ctx context.Context, now time.Time) ([]domain.Order, error) {
	pending, err := s.store.ListPendingUnverified(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	credential, err := s.operatorCredential(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.evidence.Events(ctx, credential, match.VerificationLookback)
	if err != nil {
		return nil, errors.Wrap(errors.CodeFeedCredentialInvalid, "operator credential rejected", err)
	}

	var verified []domain.Order
	for _, item := range pending {
		matched, ok := match.VerifyPayment(item.Order, item.OwnerName, records, now)
		if !ok {
			continue
		}
		activated, changed := domain.Apply(item.Order, domain.Event{
			Kind:        domain.EventPaymentVerified,
			PaymentTime: matched.Record.Timestamp,
		}, now)
		if !changed {
			continue
		}
		verified = append(verified, activated)
	}
	return verified, nil
}

func (s *Service) operatorCredential(ctx context.Context) (string, error) {
	credential, err := s.store.OperatorCredential(ctx, s.canonicalAdminID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return "", errors.New(errors.CodeFeedCredentialInvalid, "no administrator holds a feed credential")
		}
		return "", fmt.Errorf("resolve operator credential: %w", err)
	}
	return credential, nil
}

func (s *Service) activeOrder(ctx context.Context, userID string, class domain.CoverageClass) (domain.Order, bool, error) {
	order, err := s.store.ActiveOrder(ctx, userID, class)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return domain.Order{}, false, nil
		}
		return domain.Order{}, false, fmt.Errorf("load active order: %w", err)
	}
	return order, true, nil
}

func (s *Service) latestConfirmed(ctx context.Context, userID string, class domain.CoverageClass) (*domain.Claim, error) {
	claim, err := s.store.LatestConfirmedClaim(ctx, userID, class)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load latest confirmed claim: %w", err)
	}
	return &claim, nil
}
